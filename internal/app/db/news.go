package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// Article is a row of news_articles.
type Article struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Slug        string     `json:"slug" db:"slug"`
	Excerpt     *string    `json:"excerpt" db:"excerpt"`
	Content     string     `json:"content" db:"content"`
	ImageURL    *string    `json:"image_url" db:"image_url"`
	Category    string     `json:"category" db:"category"`
	IsPublished bool       `json:"is_published" db:"is_published"`
	IsFeatured  bool       `json:"is_featured" db:"is_featured"`
	PublishedAt *time.Time `json:"published_at" db:"published_at"`
	AuthorID    *string    `json:"author_id" db:"author_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

var articleColumns = []string{
	"id", "title", "slug", "excerpt", "content", "image_url", "category", "is_published",
	"is_featured", "published_at", "author_id", "created_at", "updated_at",
}

// ArticleFilter narrows ListArticles. Zero values do not filter.
type ArticleFilter struct {
	Category      string
	Search        string
	PublishedOnly bool
	FeaturedOnly  bool
	Limit         uint64
	Offset        uint64
}

// ArticleParams are the writable columns of an article.
type ArticleParams struct {
	Title       string
	Slug        string
	Excerpt     *string
	Content     string
	ImageURL    *string
	Category    string
	IsPublished bool
	IsFeatured  bool
	PublishedAt *time.Time
	AuthorID    *string
}

// ListArticles returns articles newest first (published date, then creation date).
func (q *Queries) ListArticles(ctx context.Context, f ArticleFilter) ([]Article, error) {
	b := psql.Select(articleColumns...).
		From("news_articles").
		OrderBy("published_at DESC NULLS LAST", "created_at DESC")
	b = applyArticleFilter(b, f)
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}
	if f.Offset > 0 {
		b = b.Offset(f.Offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building articles query: %w", err)
	}

	articles := []Article{}
	if err := pgxscan.Select(ctx, q.db, &articles, query, args...); err != nil {
		return nil, fmt.Errorf("scanning articles: %w", err)
	}
	return articles, nil
}

// CountArticles counts the articles matching f, ignoring its paging.
func (q *Queries) CountArticles(ctx context.Context, f ArticleFilter) (int64, error) {
	n, err := q.count(ctx, applyArticleFilter(psql.Select("count(*)").From("news_articles"), f))
	if err != nil {
		return 0, fmt.Errorf("counting articles: %w", err)
	}
	return n, nil
}

func applyArticleFilter(b squirrel.SelectBuilder, f ArticleFilter) squirrel.SelectBuilder {
	if f.Category != "" {
		b = b.Where(squirrel.Eq{"category": f.Category})
	}
	if f.PublishedOnly {
		b = b.Where(squirrel.Eq{"is_published": true})
	}
	if f.FeaturedOnly {
		b = b.Where(squirrel.Eq{"is_featured": true})
	}
	if f.Search != "" {
		b = b.Where(squirrel.ILike{"title": "%" + f.Search + "%"})
	}
	return b
}

// GetArticleByID returns one article or ErrNotFound.
func (q *Queries) GetArticleByID(ctx context.Context, id string) (*Article, error) {
	return q.getArticle(ctx, squirrel.Eq{"id": id})
}

// GetArticleBySlug returns one article or ErrNotFound.
func (q *Queries) GetArticleBySlug(ctx context.Context, slug string) (*Article, error) {
	return q.getArticle(ctx, squirrel.Eq{"slug": slug})
}

func (q *Queries) getArticle(ctx context.Context, where squirrel.Eq) (*Article, error) {
	query, args, err := psql.Select(articleColumns...).
		From("news_articles").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building article query: %w", err)
	}

	var a Article
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning article: %w", err)
	}
	return &a, nil
}

// CreateArticle inserts an article and returns the stored row.
func (q *Queries) CreateArticle(ctx context.Context, p ArticleParams) (*Article, error) {
	query, args, err := psql.Insert("news_articles").
		Columns("title", "slug", "excerpt", "content", "image_url", "category",
			"is_published", "is_featured", "published_at", "author_id").
		Values(p.Title, p.Slug, p.Excerpt, p.Content, p.ImageURL, p.Category,
			p.IsPublished, p.IsFeatured, p.PublishedAt, p.AuthorID).
		Suffix("RETURNING " + columnList(articleColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert article: %w", err)
	}

	var a Article
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		return nil, fmt.Errorf("inserting article: %w", err)
	}
	return &a, nil
}

// UpdateArticle overwrites the writable columns of article id.
func (q *Queries) UpdateArticle(ctx context.Context, id string, p ArticleParams) (*Article, error) {
	query, args, err := psql.Update("news_articles").
		Set("title", p.Title).
		Set("slug", p.Slug).
		Set("excerpt", p.Excerpt).
		Set("content", p.Content).
		Set("image_url", p.ImageURL).
		Set("category", p.Category).
		Set("is_published", p.IsPublished).
		Set("is_featured", p.IsFeatured).
		Set("published_at", p.PublishedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + columnList(articleColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update article: %w", err)
	}

	var a Article
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating article: %w", err)
	}
	return &a, nil
}

// SetArticlePublished toggles publication; publishedAt is stored as given.
func (q *Queries) SetArticlePublished(ctx context.Context, id string, published bool, publishedAt *time.Time) error {
	return q.execOne(ctx, psql.Update("news_articles").
		Set("is_published", published).
		Set("published_at", publishedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

// SetArticleFeatured toggles the featured flag.
func (q *Queries) SetArticleFeatured(ctx context.Context, id string, featured bool) error {
	return q.execOne(ctx, psql.Update("news_articles").
		Set("is_featured", featured).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}))
}

// DeleteArticle removes article id.
func (q *Queries) DeleteArticle(ctx context.Context, id string) error {
	return q.execOne(ctx, psql.Delete("news_articles").Where(squirrel.Eq{"id": id}))
}
