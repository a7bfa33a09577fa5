package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoles(t *testing.T) {
	got := NormalizeRoles([]Role{RoleStudent, "janitor", RoleAdmin, RoleStudent})
	assert.Equal(t, []Role{RoleAdmin, RoleStudent}, got)
	assert.Empty(t, NormalizeRoles(nil))
}

func TestLandingPath(t *testing.T) {
	tests := []struct {
		roles []Role
		want  string
	}{
		{roles: []Role{RoleFaculty}, want: "/faculty"},
		{roles: []Role{RoleStudent, RoleAdmin}, want: "/admin"},
		{roles: []Role{RoleFaculty, RoleStudent}, want: "/faculty"},
		{roles: []Role{RoleStudent}, want: "/student"},
		{roles: nil, want: "/student"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LandingPath(tt.roles), tt.roles)
	}
}

func TestIntersects(t *testing.T) {
	assert.True(t, Intersects([]Role{RoleAdmin, RoleStudent}, []Role{RoleStudent}))
	assert.False(t, Intersects([]Role{RoleFaculty}, []Role{RoleAdmin}))
	assert.False(t, Intersects(nil, []Role{RoleStudent}))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("faculty")
	assert.True(t, ok)
	assert.Equal(t, RoleFaculty, r)

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestDisplayNameAndInitials(t *testing.T) {
	u := &User{ID: "u1", Email: "ana@sims.example"}
	assert.Equal(t, "ana@sims.example", DisplayName(u, nil))
	assert.Equal(t, "Ana Maria", DisplayName(u, &Profile{FullName: "Ana Maria"}))
	assert.Equal(t, "", DisplayName(nil, nil))

	assert.Equal(t, "AM", Initials("ana maria lopez"))
	assert.Equal(t, "", Initials(""))
}
