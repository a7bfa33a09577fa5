/*
Package news implements the news desk: public listings of published articles and the
admin editor (create, edit, publish, feature, delete).

Slugs are derived from the title. published_at is stamped the first time an article is
published and cleared when it is taken down.
*/
package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"

	"sims/internal/app/db"
	"sims/internal/pkg/logx"
)

// Categories lists the accepted article categories in display order.
var Categories = []string{
	"general", "academics", "events", "achievements", "admissions", "placements", "sports", "cultural",
}

const (
	// DefaultPageSize is used when a listing does not ask for a page size.
	DefaultPageSize = 9

	// MaxPageSize caps public and admin listings.
	MaxPageSize = 50

	// HomeFeaturedLimit is the number of featured articles on the home page.
	HomeFeaturedLimit = 3

	// HomeLatestLimit is the number of latest articles on the home page.
	HomeLatestLimit = 6

	slugAttempts = 5
)

var (
	// ErrNotFound is returned for unknown or, on public reads, unpublished articles.
	ErrNotFound = errors.New("news: article not found")

	// ErrSlugTaken is returned when no free slug could be derived from the title.
	ErrSlugTaken = errors.New("news: slug already in use")
)

// Input is the editor form. Field rules mirror the editor's client-side checks.
type Input struct {
	Title       string `json:"title" validate:"required,min=5,max=200"`
	Excerpt     string `json:"excerpt" validate:"max=300"`
	Content     string `json:"content" validate:"required,min=10"`
	ImageURL    string `json:"image_url" validate:"omitempty,url"`
	Category    string `json:"category" validate:"required,oneof=general academics events achievements admissions placements sports cultural"`
	IsPublished bool   `json:"is_published"`
	IsFeatured  bool   `json:"is_featured"`
}

// Query is a listing request.
type Query struct {
	Category string
	Search   string
	Page     int
	PageSize int
}

// Page is one page of a listing.
type Page struct {
	Items    []db.Article `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

// Home is the news block of the landing page.
type Home struct {
	Featured []db.Article `json:"featured"`
	Latest   []db.Article `json:"latest"`
}

// Repository is the subset of db.Queries used by the news desk.
type Repository interface {
	ListArticles(ctx context.Context, f db.ArticleFilter) ([]db.Article, error)
	CountArticles(ctx context.Context, f db.ArticleFilter) (int64, error)
	GetArticleByID(ctx context.Context, id string) (*db.Article, error)
	GetArticleBySlug(ctx context.Context, slug string) (*db.Article, error)
	CreateArticle(ctx context.Context, p db.ArticleParams) (*db.Article, error)
	UpdateArticle(ctx context.Context, id string, p db.ArticleParams) (*db.Article, error)
	SetArticlePublished(ctx context.Context, id string, published bool, publishedAt *time.Time) error
	SetArticleFeatured(ctx context.Context, id string, featured bool) error
	DeleteArticle(ctx context.Context, id string) error
}

// Service runs the news desk against a Repository.
type Service struct {
	repo   Repository
	now    func() time.Time
	logger zerolog.Logger
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		logger: logx.Component("news"),
	}
}

// Slug derives the URL slug of a title.
func Slug(title string) string {
	return slug.Make(title)
}

// fallbackSlug names an article whose title has nothing slug.Make can keep.
func fallbackSlug() string {
	return "article-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// IsCategory reports whether c is an accepted category.
func IsCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Home returns the featured and latest published articles.
func (s *Service) Home(ctx context.Context) (*Home, error) {
	featured, err := s.repo.ListArticles(ctx, db.ArticleFilter{
		PublishedOnly: true,
		FeaturedOnly:  true,
		Limit:         HomeFeaturedLimit,
	})
	if err != nil {
		return nil, err
	}

	latest, err := s.repo.ListArticles(ctx, db.ArticleFilter{
		PublishedOnly: true,
		Limit:         HomeLatestLimit,
	})
	if err != nil {
		return nil, err
	}

	return &Home{Featured: featured, Latest: latest}, nil
}

// ListPublished returns a page of published articles.
func (s *Service) ListPublished(ctx context.Context, q Query) (*Page, error) {
	return s.list(ctx, q, true)
}

// ListAll returns a page of articles for the editor, drafts included.
func (s *Service) ListAll(ctx context.Context, q Query) (*Page, error) {
	return s.list(ctx, q, false)
}

func (s *Service) list(ctx context.Context, q Query, publishedOnly bool) (*Page, error) {
	page, size := normalizePage(q.Page, q.PageSize)

	f := db.ArticleFilter{
		Search:        strings.TrimSpace(q.Search),
		PublishedOnly: publishedOnly,
	}
	if q.Category != "" && q.Category != "all" {
		f.Category = q.Category
	}

	total, err := s.repo.CountArticles(ctx, f)
	if err != nil {
		return nil, err
	}

	f.Limit = uint64(size)
	f.Offset = uint64((page - 1) * size)
	items, err := s.repo.ListArticles(ctx, f)
	if err != nil {
		return nil, err
	}

	return &Page{Items: items, Total: total, Page: page, PageSize: size}, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

// GetPublished returns the published article with the given slug.
func (s *Service) GetPublished(ctx context.Context, articleSlug string) (*db.Article, error) {
	a, err := s.repo.GetArticleBySlug(ctx, articleSlug)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if !a.IsPublished {
		return nil, ErrNotFound
	}
	return a, nil
}

// Get returns any article by id.
func (s *Service) Get(ctx context.Context, id string) (*db.Article, error) {
	a, err := s.repo.GetArticleByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

// Create stores a new article written by authorID. When the title's slug is taken a
// numeric suffix is appended.
func (s *Service) Create(ctx context.Context, in Input, authorID string) (*db.Article, error) {
	p := s.params(in, nil)
	if authorID != "" {
		p.AuthorID = &authorID
	}

	base := Slug(in.Title)
	if base == "" {
		base = fallbackSlug()
	}
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		p.Slug = slugCandidate(base, attempt)

		a, err := s.repo.CreateArticle(ctx, p)
		if err == nil {
			s.logger.Info().Str("article_id", a.ID).Str("slug", a.Slug).Bool("published", a.IsPublished).Msg("Article created.")
			return a, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
	}
	return nil, ErrSlugTaken
}

// Update rewrites article id. The slug follows the title; published_at is kept when
// the article stays published.
func (s *Service) Update(ctx context.Context, id string, in Input) (*db.Article, error) {
	current, err := s.repo.GetArticleByID(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}

	p := s.params(in, current.PublishedAt)
	p.AuthorID = current.AuthorID

	base := Slug(in.Title)
	if base == "" {
		base = current.Slug
	}
	for attempt := 1; attempt <= slugAttempts; attempt++ {
		p.Slug = slugCandidate(base, attempt)

		a, err := s.repo.UpdateArticle(ctx, id, p)
		if err == nil {
			s.logger.Info().Str("article_id", id).Str("slug", a.Slug).Msg("Article updated.")
			return a, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, mapNotFound(err)
		}
	}
	return nil, ErrSlugTaken
}

// TogglePublished flips the publication state of article id and returns the new state.
func (s *Service) TogglePublished(ctx context.Context, id string) (bool, error) {
	a, err := s.repo.GetArticleByID(ctx, id)
	if err != nil {
		return false, mapNotFound(err)
	}

	published := !a.IsPublished
	var publishedAt *time.Time
	if published {
		now := s.now()
		publishedAt = &now
	}

	if err := s.repo.SetArticlePublished(ctx, id, published, publishedAt); err != nil {
		return false, mapNotFound(err)
	}
	s.logger.Info().Str("article_id", id).Bool("published", published).Msg("Article publication toggled.")
	return published, nil
}

// ToggleFeatured flips the featured flag of article id and returns the new state.
func (s *Service) ToggleFeatured(ctx context.Context, id string) (bool, error) {
	a, err := s.repo.GetArticleByID(ctx, id)
	if err != nil {
		return false, mapNotFound(err)
	}

	featured := !a.IsFeatured
	if err := s.repo.SetArticleFeatured(ctx, id, featured); err != nil {
		return false, mapNotFound(err)
	}
	return featured, nil
}

// Delete removes article id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteArticle(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info().Str("article_id", id).Msg("Article deleted.")
	return nil
}

// params converts editor input to columns. previous is the stored published_at.
func (s *Service) params(in Input, previous *time.Time) db.ArticleParams {
	p := db.ArticleParams{
		Title:       strings.TrimSpace(in.Title),
		Content:     in.Content,
		Category:    in.Category,
		IsPublished: in.IsPublished,
		IsFeatured:  in.IsFeatured,
		Excerpt:     optional(in.Excerpt),
		ImageURL:    optional(in.ImageURL),
	}

	if in.IsPublished {
		if previous != nil {
			p.PublishedAt = previous
		} else {
			now := s.now()
			p.PublishedAt = &now
		}
	}
	return p
}

func slugCandidate(base string, attempt int) string {
	if attempt == 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, attempt)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
