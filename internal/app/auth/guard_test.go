package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sims/internal/app/user"
)

func settled(roles ...user.Role) Snapshot {
	return Snapshot{
		User:          &user.User{ID: "u1", Email: "u1@sims.example"},
		Roles:         roles,
		IsInitialized: true,
	}
}

func TestDecide(t *testing.T) {
	admin := Requirement{Roles: []user.Role{user.RoleAdmin}}
	studentArea := Requirement{Roles: []user.Role{user.RoleStudent, user.RoleFaculty, user.RoleAdmin}}

	tests := []struct {
		name string
		snap Snapshot
		req  Requirement
		path string
		want Decision
	}{
		{
			name: "not initialized waits",
			snap: Snapshot{IsLoading: true},
			req:  admin, path: "/admin",
			want: Decision{Kind: KindLoading},
		},
		{
			name: "loading after init waits",
			snap: Snapshot{IsInitialized: true, IsLoading: true},
			req:  admin, path: "/admin",
			want: Decision{Kind: KindLoading},
		},
		{
			name: "signed out goes to auth with origin",
			snap: Snapshot{IsInitialized: true},
			req:  admin, path: "/admin",
			want: Decision{Kind: KindRedirectAuth, Location: "/auth?from=%2Fadmin"},
		},
		{
			name: "custom auth page",
			snap: Snapshot{IsInitialized: true},
			req:  Requirement{RedirectTo: "/login"}, path: "/student",
			want: Decision{Kind: KindRedirectAuth, Location: "/login?from=%2Fstudent"},
		},
		{
			name: "faculty on admin page goes to faculty",
			snap: settled(user.RoleFaculty),
			req:  admin, path: "/admin",
			want: Decision{Kind: KindRedirectRole, Location: "/faculty"},
		},
		{
			name: "student only on admin page goes to student",
			snap: settled(user.RoleStudent),
			req:  admin, path: "/admin",
			want: Decision{Kind: KindRedirectRole, Location: "/student"},
		},
		{
			name: "admin and student on student page is allowed",
			snap: settled(user.RoleAdmin, user.RoleStudent),
			req:  Requirement{Roles: []user.Role{user.RoleStudent}}, path: "/student",
			want: Decision{Kind: KindAllow},
		},
		{
			name: "student area admits faculty",
			snap: settled(user.RoleFaculty),
			req:  studentArea, path: "/student",
			want: Decision{Kind: KindAllow},
		},
		{
			name: "no required roles admits any user",
			snap: settled(),
			req:  Requirement{}, path: "/account",
			want: Decision{Kind: KindAllow},
		},
		{
			name: "role redirect waits for refetch",
			snap: func() Snapshot { s := settled(); s.Refreshing = true; return s }(),
			req:  admin, path: "/admin",
			want: Decision{Kind: KindLoading},
		},
		{
			name: "no roles on student-only page is denied instead of looping",
			snap: settled(),
			req:  Requirement{Roles: []user.Role{user.RoleStudent}}, path: "/student",
			want: Decision{Kind: KindDeny},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.snap, tt.req, tt.path))
		})
	}
}

func TestFacultyNeverSentToStudent(t *testing.T) {
	d := Decide(settled(user.RoleFaculty), Requirement{Roles: []user.Role{user.RoleAdmin}}, "/admin/news")
	assert.Equal(t, KindRedirectRole, d.Kind)
	assert.Equal(t, "/faculty", d.Location)
}

func TestForeignOriginIsNotRecorded(t *testing.T) {
	d := Decide(Snapshot{IsInitialized: true}, Requirement{}, "//evil.example/x")
	assert.Equal(t, "/auth", d.Location)
}

func TestAfterSignIn(t *testing.T) {
	admin := []user.Role{user.RoleAdmin}

	assert.Equal(t, "/admin", AfterSignIn("/admin", admin))
	assert.Equal(t, "/admin/news/new", AfterSignIn("/admin/news/new", admin))
	assert.Equal(t, "/admin", AfterSignIn("", admin))
	assert.Equal(t, "/admin", AfterSignIn("/auth", admin))
	assert.Equal(t, "/student", AfterSignIn("https://evil.example", nil))
	assert.Equal(t, "/faculty", AfterSignIn("//evil.example", []user.Role{user.RoleFaculty}))
}

// The full flow: signed-out visitor hits /admin, signs in as admin, comes back.
func TestGuardFlowAdminReturnsToOrigin(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.passwords["root@sims.example"] = "secret123"
	h.dir.set("root@sims.example", "Root", user.RoleAdmin)
	h.initialize(t)

	req := Requirement{Roles: []user.Role{user.RoleAdmin}}
	first := Decide(h.store.Snapshot(), req, "/admin")
	require.Equal(t, KindRedirectAuth, first.Kind)
	assert.Equal(t, "/auth?from=%2Fadmin", first.Location)

	require.NoError(t, h.store.SignIn(context.Background(), "root@sims.example", "secret123"))
	snap := h.settle(t)

	assert.Equal(t, "/admin", AfterSignIn("/admin", snap.Roles))
	assert.Equal(t, Decision{Kind: KindAllow}, Decide(snap, req, "/admin"))
}

func TestGuardFlowStudentOnAdmin(t *testing.T) {
	h := newHarness(t, Options{})
	h.backend.session = sessionFor("stu@sims.example")
	h.dir.set("stu@sims.example", "Stu", user.RoleStudent)
	h.initialize(t)
	snap := h.settle(t)

	d := Decide(snap, Requirement{Roles: []user.Role{user.RoleAdmin}}, "/admin")
	assert.Equal(t, Decision{Kind: KindRedirectRole, Location: "/student"}, d)
}
