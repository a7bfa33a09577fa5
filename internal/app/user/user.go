/*
Package user contains the identity types shared by the auth store, the backend client
and the table repositories.

A User is the backend-issued identity, a Profile is the application-level record keyed by
the user id, and Role is one label of the fixed app_role enumeration.
*/
package user

import (
	"slices"
	"time"
)

// User is the identity the hosted backend returns for a session.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`

	// FullName comes from the sign-up metadata; the profile row is authoritative.
	FullName string `json:"full_name,omitempty"`
}

// Profile is a row of the profiles table. It may be missing right after sign-up.
type Profile struct {
	ID         string    `json:"id" db:"id"`
	FullName   string    `json:"full_name" db:"full_name"`
	Email      string    `json:"email" db:"email"`
	Phone      *string   `json:"phone,omitempty" db:"phone"`
	College    *string   `json:"college,omitempty" db:"college"`
	Department *string   `json:"department,omitempty" db:"department"`
	StudentID  *string   `json:"student_id,omitempty" db:"student_id"`
	AvatarURL  *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the best available name for the dashboard header.
func DisplayName(u *User, p *Profile) string {
	switch {
	case p != nil && p.FullName != "":
		return p.FullName
	case u != nil && u.FullName != "":
		return u.FullName
	case u != nil:
		return u.Email
	}
	return ""
}

// Initials returns up to two upper-case initials of name, used as the avatar fallback.
func Initials(name string) string {
	out := make([]rune, 0, 2)
	start := true
	for _, r := range name {
		if r == ' ' {
			start = true
			continue
		}
		if start {
			if r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			out = append(out, r)
			start = false
			if len(out) == 2 {
				break
			}
		}
	}
	return string(out)
}

// Role is a label of the app_role enumeration.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleFaculty Role = "faculty"
	RoleStudent Role = "student"
)

// Roles lists every known role in landing priority order.
var Roles = []Role{RoleAdmin, RoleFaculty, RoleStudent}

// ParseRole returns the role named s and whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, slices.Contains(Roles, r)
}

// NormalizeRoles drops unknown labels and duplicates, and orders the result by priority.
func NormalizeRoles(in []Role) []Role {
	out := make([]Role, 0, len(in))
	for _, r := range Roles {
		if slices.Contains(in, r) {
			out = append(out, r)
		}
	}
	return out
}

// Intersects reports whether have and want share at least one role.
func Intersects(have, want []Role) bool {
	for _, r := range want {
		if slices.Contains(have, r) {
			return true
		}
	}
	return false
}

// LandingPath returns the dashboard for the highest-priority role held:
// /admin for admins, else /faculty, else /student.
func LandingPath(roles []Role) string {
	switch {
	case slices.Contains(roles, RoleAdmin):
		return "/admin"
	case slices.Contains(roles, RoleFaculty):
		return "/faculty"
	default:
		return "/student"
	}
}
