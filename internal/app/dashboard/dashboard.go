/*
Package dashboard builds the parts shared by every dashboard page: the shell (who is
signed in, their avatar and the navigation their roles unlock) and the admin overview
figures.
*/
package dashboard

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"sims/internal/app/auth"
	"sims/internal/app/db"
	"sims/internal/app/user"
)

// SignOutPath is where the shell's sign-out control posts.
const SignOutPath = "/auth/sign-out"

// RecentAdmissionsLimit is the number of applications on the admin overview.
const RecentAdmissionsLimit = 5

// NavItem is one link of the dashboard navigation.
type NavItem struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// Shell is the dashboard chrome.
type Shell struct {
	DisplayName string      `json:"display_name"`
	Initials    string      `json:"initials"`
	Email       string      `json:"email"`
	AvatarURL   *string     `json:"avatar_url"`
	Roles       []user.Role `json:"roles"`
	Nav         []NavItem   `json:"nav"`
	Current     string      `json:"current"`
	SignOut     string      `json:"sign_out"`
}

// NewShell builds the shell for snap as seen on path.
func NewShell(snap auth.Snapshot, path string) Shell {
	name := user.DisplayName(snap.User, snap.Profile)

	s := Shell{
		DisplayName: name,
		Initials:    user.Initials(name),
		Roles:       snap.Roles,
		Nav:         Nav(snap.Roles),
		Current:     path,
		SignOut:     SignOutPath,
	}
	if snap.User != nil {
		s.Email = snap.User.Email
	}
	if snap.Profile != nil {
		s.AvatarURL = snap.Profile.AvatarURL
	}
	return s
}

// Nav returns the navigation unlocked by roles.
func Nav(roles []user.Role) []NavItem {
	has := func(r user.Role) bool { return user.Intersects(roles, []user.Role{r}) }

	items := []NavItem{}
	if len(roles) > 0 {
		items = append(items, NavItem{Title: "Dashboard", Href: user.LandingPath(roles)})
	}
	if has(user.RoleStudent) {
		items = append(items, NavItem{Title: "My Results", Href: "/student"})
	}
	if has(user.RoleFaculty) {
		items = append(items, NavItem{Title: "Enter Results", Href: "/faculty/results"})
	}
	if has(user.RoleAdmin) {
		items = append(items,
			NavItem{Title: "News Management", Href: "/admin/news"},
			NavItem{Title: "Admissions", Href: "/admin/admissions"},
			NavItem{Title: "Gallery", Href: "/admin/gallery"},
		)
	}
	return items
}

// Overview holds the admin dashboard figures.
type Overview struct {
	TotalStudents     int64          `json:"total_students"`
	TotalNews         int64          `json:"total_news"`
	TotalAdmissions   int64          `json:"total_admissions"`
	PendingAdmissions int64          `json:"pending_admissions"`
	RecentAdmissions  []db.Admission `json:"recent_admissions"`
}

// OverviewSource is the subset of db.Queries the overview reads.
type OverviewSource interface {
	CountUsersWithRole(ctx context.Context, role user.Role) (int64, error)
	CountArticles(ctx context.Context, f db.ArticleFilter) (int64, error)
	CountAdmissions(ctx context.Context, status string) (int64, error)
	ListAdmissions(ctx context.Context, status string, limit, offset uint64) ([]db.Admission, error)
}

// LoadOverview runs the overview queries concurrently.
func LoadOverview(ctx context.Context, src OverviewSource) (*Overview, error) {
	var o Overview
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		o.TotalStudents, err = src.CountUsersWithRole(gCtx, user.RoleStudent)
		return err
	})
	g.Go(func() (err error) {
		o.TotalNews, err = src.CountArticles(gCtx, db.ArticleFilter{})
		return err
	})
	g.Go(func() (err error) {
		o.TotalAdmissions, err = src.CountAdmissions(gCtx, "")
		return err
	})
	g.Go(func() (err error) {
		o.PendingAdmissions, err = src.CountAdmissions(gCtx, "pending")
		return err
	})
	g.Go(func() (err error) {
		o.RecentAdmissions, err = src.ListAdmissions(gCtx, "", RecentAdmissionsLimit, 0)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("loading admin overview: %w", err)
	}
	return &o, nil
}
