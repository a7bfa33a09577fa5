package db

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sims/internal/app/user"
)

var profileColumns = []string{
	"id", "full_name", "email", "phone", "college", "department", "student_id", "avatar_url",
	"created_at", "updated_at",
}

// GetProfile returns the profile row of userID, or ErrNotFound.
func (q *Queries) GetProfile(ctx context.Context, userID string) (*user.Profile, error) {
	query, args, err := psql.Select(profileColumns...).
		From("profiles").
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building profile query: %w", err)
	}

	var p user.Profile
	if err := pgxscan.Get(ctx, q.db, &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning profile: %w", err)
	}
	return &p, nil
}

// ListRoles returns the role labels assigned to userID. Unknown labels are skipped.
func (q *Queries) ListRoles(ctx context.Context, userID string) ([]user.Role, error) {
	query, args, err := psql.Select("role::text AS role").
		From("user_roles").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building roles query: %w", err)
	}

	var labels []string
	if err := pgxscan.Select(ctx, q.db, &labels, query, args...); err != nil {
		return nil, fmt.Errorf("scanning roles: %w", err)
	}

	roles := make([]user.Role, 0, len(labels))
	for _, l := range labels {
		if r, ok := user.ParseRole(l); ok {
			roles = append(roles, r)
		}
	}
	return roles, nil
}

// CountUsersWithRole counts distinct users holding role.
func (q *Queries) CountUsersWithRole(ctx context.Context, role user.Role) (int64, error) {
	n, err := q.count(ctx, psql.Select("count(DISTINCT user_id)").
		From("user_roles").
		Where(squirrel.Eq{"role": string(role)}))
	if err != nil {
		return 0, fmt.Errorf("counting %s users: %w", role, err)
	}
	return n, nil
}
