package admissions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sims/internal/app/db"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/randx"
	"sims/internal/pkg/req"
)

type stubRepo struct {
	created    []db.AdmissionParams
	taken      map[string]bool
	listStatus string
	listLimit  uint64
	listOffset uint64
	review     db.AdmissionReview
	reviewErr  error
}

func (s *stubRepo) CreateAdmission(_ context.Context, p db.AdmissionParams) (*db.Admission, error) {
	if s.taken[p.ApplicationNumber] {
		return nil, fmt.Errorf("inserting admission: %w", &pgconn.PgError{Code: "23505"})
	}
	s.created = append(s.created, p)
	number := p.ApplicationNumber
	return &db.Admission{ID: "adm-1", ApplicationNumber: &number, ApplicantName: p.ApplicantName, Status: StatusPending}, nil
}

func (s *stubRepo) ListAdmissions(_ context.Context, status string, limit, offset uint64) ([]db.Admission, error) {
	s.listStatus, s.listLimit, s.listOffset = status, limit, offset
	return []db.Admission{}, nil
}

func (s *stubRepo) GetAdmission(_ context.Context, id string) (*db.Admission, error) {
	if id != "adm-1" {
		return nil, db.ErrNotFound
	}
	return &db.Admission{ID: id}, nil
}

func (s *stubRepo) CountAdmissions(_ context.Context, status string) (int64, error) {
	if status == StatusPending {
		return 2, nil
	}
	return 7, nil
}

func (s *stubRepo) ReviewAdmission(_ context.Context, id string, r db.AdmissionReview) (*db.Admission, error) {
	if s.reviewErr != nil {
		return nil, s.reviewErr
	}
	s.review = r
	return &db.Admission{ID: id, Status: *r.Status}, nil
}

var fixedNow = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, repo *stubRepo) *Service {
	t.Helper()
	logx.InitTestLogger(io.Discard)

	svc := NewService(repo)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func validInput() Input {
	return Input{
		ApplicantName:   "Meera Nair",
		Email:           " Meera.Nair@Example.com ",
		Phone:           "9876543210",
		DateOfBirth:     "2007-08-15",
		Gender:          "female",
		Address:         "12 Temple Road",
		City:            "Mysuru",
		State:           "Karnataka",
		Pincode:         "570001",
		CollegeApplied:  "SIMS College of Pharmacy",
		CourseApplied:   "Pharm.D",
		Qualification:   "PUC (Science)",
		BoardUniversity: "Karnataka PU Board",
		YearOfPassing:   2025,
		Percentage:      88.5,
	}
}

func TestInputValidation(t *testing.T) {
	in := validInput()
	in.Email = "meera@example.com"
	require.Nil(t, req.Validate(in))

	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{name: "short phone", mutate: func(in *Input) { in.Phone = "12345" }, field: "phone"},
		{name: "letters in pincode", mutate: func(in *Input) { in.Pincode = "57A001" }, field: "pincode"},
		{name: "bad gender", mutate: func(in *Input) { in.Gender = "x" }, field: "gender"},
		{name: "bad birth date", mutate: func(in *Input) { in.DateOfBirth = "15-08-2007" }, field: "date_of_birth"},
		{name: "percentage over 100", mutate: func(in *Input) { in.Percentage = 100.5 }, field: "percentage"},
		{name: "old passing year", mutate: func(in *Input) { in.YearOfPassing = 1975 }, field: "year_of_passing"},
		{name: "bad email", mutate: func(in *Input) { in.Email = "meera" }, field: "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			in.Email = "meera@example.com"
			tt.mutate(&in)

			customErr := req.Validate(in)
			require.NotNil(t, customErr)
			assert.Contains(t, customErr.Fields, tt.field)
		})
	}
}

func TestCheckCatalogAndCalendar(t *testing.T) {
	svc := newTestService(t, &stubRepo{})

	tests := []struct {
		name   string
		mutate func(*Input)
		field  string
	}{
		{name: "unknown college", mutate: func(in *Input) { in.CollegeApplied = "SIMS College of Law" }, field: "college_applied"},
		{name: "program of another college", mutate: func(in *Input) { in.CourseApplied = "BPT" }, field: "course_applied"},
		{name: "birth date in the future", mutate: func(in *Input) { in.DateOfBirth = "2030-01-01" }, field: "date_of_birth"},
		{name: "passing year too late", mutate: func(in *Input) { in.YearOfPassing = 2028 }, field: "year_of_passing"},
	}

	require.NoError(t, svc.Check(validInput()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)

			var fieldErr *FieldError
			require.ErrorAs(t, svc.Check(in), &fieldErr)
			assert.Equal(t, tt.field, fieldErr.Field)
		})
	}
}

func TestSubmitAssignsNumber(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	a, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)

	require.NotNil(t, a.ApplicationNumber)
	assert.True(t, randx.IsValidApplicationNumber(*a.ApplicationNumber))
	assert.Contains(t, *a.ApplicationNumber, "SIMS-2026-")
	assert.Equal(t, StatusPending, a.Status)

	require.Len(t, repo.created, 1)
	assert.Equal(t, "meera.nair@example.com", repo.created[0].Email)
	assert.Equal(t, time.Date(2007, 8, 15, 0, 0, 0, 0, time.UTC), repo.created[0].DateOfBirth)
}

func TestSubmitRetriesNumberCollision(t *testing.T) {
	repo := &stubRepo{taken: map[string]bool{"SIMS-2026-AAAAAA": true}}
	svc := newTestService(t, repo)

	draws := []string{"SIMS-2026-AAAAAA", "SIMS-2026-BBBBBB"}
	svc.number = func(int) (string, error) {
		n := draws[0]
		draws = draws[1:]
		return n, nil
	}

	a, err := svc.Submit(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "SIMS-2026-BBBBBB", *a.ApplicationNumber)
}

func TestSubmitGivesUpOnRepeatedCollisions(t *testing.T) {
	repo := &stubRepo{taken: map[string]bool{"SIMS-2026-AAAAAA": true}}
	svc := newTestService(t, repo)
	svc.number = func(int) (string, error) { return "SIMS-2026-AAAAAA", nil }

	_, err := svc.Submit(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrNumberExhausted)
}

func TestSubmitRejectsUnknownProgram(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)

	in := validInput()
	in.CourseApplied = "MBBS"
	_, err := svc.Submit(context.Background(), in)

	var fieldErr *FieldError
	assert.ErrorAs(t, err, &fieldErr)
	assert.Empty(t, repo.created)
}

func TestListBounds(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.List(ctx, "", 0, -5)
	require.NoError(t, err)
	assert.EqualValues(t, DefaultListLimit, repo.listLimit)
	assert.Zero(t, repo.listOffset)

	_, err = svc.List(ctx, StatusUnderReview, 1000, 40)
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, repo.listStatus)
	assert.EqualValues(t, MaxListLimit, repo.listLimit)
	assert.EqualValues(t, 40, repo.listOffset)

	_, err = svc.List(ctx, "archived", 10, 0)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestReview(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo)
	ctx := context.Background()

	notes := "Called the applicant, documents pending."
	a, err := svc.Review(ctx, "adm-1", Review{Status: StatusUnderReview, Notes: &notes}, "uid-admin")
	require.NoError(t, err)

	assert.Equal(t, StatusUnderReview, a.Status)
	require.NotNil(t, repo.review.CounselorID)
	assert.Equal(t, "uid-admin", *repo.review.CounselorID)
	assert.Equal(t, &notes, repo.review.CounselorNotes)

	_, err = svc.Review(ctx, "adm-1", Review{Status: "waitlisted"}, "uid-admin")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	repo.reviewErr = db.ErrNotFound
	_, err = svc.Review(ctx, "missing", Review{Status: StatusAccepted}, "uid-admin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetAndCount(t *testing.T) {
	svc := newTestService(t, &stubRepo{})
	ctx := context.Background()

	_, err := svc.Get(ctx, "adm-1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err := svc.Count(ctx, StatusPending)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestPrograms(t *testing.T) {
	assert.Equal(t, []string{"B.Sc Nursing", "GNM"}, Programs("Aswini College of Nursing"))
	assert.Nil(t, Programs("Unknown"))
	assert.True(t, IsStatus(StatusRejected))
	assert.False(t, IsStatus(""))
}
