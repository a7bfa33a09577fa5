/*
Package admissions takes admission applications from the public site and lets admins
review them.

Every application gets a number of the form SIMS-<year>-<6 base62 chars>. Submissions are
checked against the college/program catalog before they are stored.
*/
package admissions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sims/internal/app/db"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/randx"
)

// Application statuses.
const (
	StatusPending     = "pending"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
)

// Statuses lists every application status in workflow order.
var Statuses = []string{StatusPending, StatusUnderReview, StatusAccepted, StatusRejected}

const (
	// DateLayout is the wire format of the date of birth.
	DateLayout = "2006-01-02"

	// EarliestPassingYear is the oldest accepted qualifying year.
	EarliestPassingYear = 1980

	// DefaultListLimit is used when a listing does not ask for a limit.
	DefaultListLimit = 20

	// MaxListLimit caps admin listings.
	MaxListLimit = 100

	numberAttempts = 3
)

// College is a college of the group and the programs it admits to.
type College struct {
	Name     string   `json:"name"`
	Programs []string `json:"programs"`
}

// Catalog lists the colleges open for admission.
var Catalog = []College{
	{Name: "SIMS College of Pharmacy", Programs: []string{"B.Pharm", "D.Pharm", "Pharm.D"}},
	{Name: "SIMS College of Nursing", Programs: []string{"B.Sc Nursing", "GNM", "ANM"}},
	{Name: "SIMS College of Physiotherapy", Programs: []string{"BPT", "MPT"}},
	{Name: "SIMS College of Education", Programs: []string{"B.Ed", "D.Ed"}},
	{Name: "SIMS College of Life Sciences", Programs: []string{"B.Sc", "M.Sc"}},
	{Name: "Aswini College of Nursing", Programs: []string{"B.Sc Nursing", "GNM"}},
}

var (
	// ErrNotFound is returned for unknown application ids.
	ErrNotFound = errors.New("admissions: application not found")

	// ErrInvalidStatus is returned for a status outside Statuses.
	ErrInvalidStatus = errors.New("admissions: invalid status")

	// ErrNumberExhausted is returned when no free application number could be drawn.
	ErrNumberExhausted = errors.New("admissions: could not allocate an application number")
)

// FieldError reports a submission that passed form validation but not the catalog or
// calendar checks.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("admissions: %s: %s", e.Field, e.Message)
}

// Input is the application form.
type Input struct {
	ApplicantName   string  `json:"applicant_name" validate:"required,min=2,max=100"`
	Email           string  `json:"email" validate:"required,email"`
	Phone           string  `json:"phone" validate:"required,numeric,min=10,max=15"`
	DateOfBirth     string  `json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Gender          string  `json:"gender" validate:"required,oneof=male female other"`
	Address         string  `json:"address" validate:"required,max=500"`
	City            string  `json:"city" validate:"required,max=100"`
	State           string  `json:"state" validate:"required,max=100"`
	Pincode         string  `json:"pincode" validate:"required,numeric,len=6"`
	CollegeApplied  string  `json:"college_applied" validate:"required"`
	CourseApplied   string  `json:"course_applied" validate:"required"`
	Qualification   string  `json:"qualification" validate:"required,max=100"`
	BoardUniversity string  `json:"board_university" validate:"required,max=200"`
	YearOfPassing   int     `json:"year_of_passing" validate:"gte=1980"`
	Percentage      float64 `json:"percentage" validate:"gte=0,lte=100"`
}

// Review is an admin's decision on an application.
type Review struct {
	Status string  `json:"status" validate:"required,oneof=pending under_review accepted rejected"`
	Notes  *string `json:"counselor_notes" validate:"omitempty,max=2000"`
}

// Repository is the subset of db.Queries used for admissions.
type Repository interface {
	CreateAdmission(ctx context.Context, p db.AdmissionParams) (*db.Admission, error)
	ListAdmissions(ctx context.Context, status string, limit, offset uint64) ([]db.Admission, error)
	GetAdmission(ctx context.Context, id string) (*db.Admission, error)
	CountAdmissions(ctx context.Context, status string) (int64, error)
	ReviewAdmission(ctx context.Context, id string, r db.AdmissionReview) (*db.Admission, error)
}

// Service handles applications against a Repository.
type Service struct {
	repo   Repository
	now    func() time.Time
	number func(year int) (string, error)
	logger zerolog.Logger
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		now:    time.Now,
		number: randx.ApplicationNumber,
		logger: logx.Component("admissions"),
	}
}

// Programs returns the programs of college, or nil for an unknown college.
func Programs(college string) []string {
	for _, c := range Catalog {
		if c.Name == college {
			return c.Programs
		}
	}
	return nil
}

// IsStatus reports whether s is a known status.
func IsStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

// Check runs the catalog and calendar checks on a form-valid Input.
func (s *Service) Check(in Input) error {
	programs := Programs(in.CollegeApplied)
	if programs == nil {
		return &FieldError{Field: "college_applied", Message: "Please choose a college from the list"}
	}
	if !slices.Contains(programs, in.CourseApplied) {
		return &FieldError{Field: "course_applied", Message: "This program is not offered by the selected college"}
	}

	now := s.now()
	dob, err := time.Parse(DateLayout, in.DateOfBirth)
	if err != nil || !dob.Before(now) {
		return &FieldError{Field: "date_of_birth", Message: "Please enter a valid date of birth"}
	}
	if in.YearOfPassing > now.Year()+1 {
		return &FieldError{Field: "year_of_passing", Message: fmt.Sprintf("Must be at most %d", now.Year()+1)}
	}
	return nil
}

// Submit checks and stores an application and returns it with its number.
func (s *Service) Submit(ctx context.Context, in Input) (*db.Admission, error) {
	if err := s.Check(in); err != nil {
		return nil, err
	}

	dob, _ := time.Parse(DateLayout, in.DateOfBirth)
	p := db.AdmissionParams{
		ApplicantName:   strings.TrimSpace(in.ApplicantName),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:           in.Phone,
		DateOfBirth:     dob,
		Gender:          in.Gender,
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		State:           strings.TrimSpace(in.State),
		Pincode:         in.Pincode,
		CollegeApplied:  in.CollegeApplied,
		CourseApplied:   in.CourseApplied,
		Qualification:   strings.TrimSpace(in.Qualification),
		BoardUniversity: strings.TrimSpace(in.BoardUniversity),
		YearOfPassing:   in.YearOfPassing,
		Percentage:      in.Percentage,
	}

	year := s.now().Year()
	for range numberAttempts {
		number, err := s.number(year)
		if err != nil {
			return nil, fmt.Errorf("drawing application number: %w", err)
		}
		p.ApplicationNumber = number

		a, err := s.repo.CreateAdmission(ctx, p)
		if err == nil {
			s.logger.Info().
				Str("application_number", p.ApplicationNumber).
				Str("college", p.CollegeApplied).
				Str("course", p.CourseApplied).
				Msg("Admission application received.")
			return a, nil
		}
		if !db.IsUniqueViolation(err) {
			return nil, err
		}
		s.logger.Warn().Str("application_number", p.ApplicationNumber).Msg("Application number collision, drawing again.")
	}
	return nil, ErrNumberExhausted
}

// List returns applications newest first. An empty status lists all.
func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]db.Admission, error) {
	if status != "" && !IsStatus(status) {
		return nil, ErrInvalidStatus
	}
	if limit < 1 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset = max(offset, 0)

	return s.repo.ListAdmissions(ctx, status, uint64(limit), uint64(offset))
}

// Get returns application id.
func (s *Service) Get(ctx context.Context, id string) (*db.Admission, error) {
	a, err := s.repo.GetAdmission(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return a, nil
}

// Review records counselorID's decision on application id.
func (s *Service) Review(ctx context.Context, id string, r Review, counselorID string) (*db.Admission, error) {
	if !IsStatus(r.Status) {
		return nil, ErrInvalidStatus
	}

	review := db.AdmissionReview{Status: &r.Status, CounselorNotes: r.Notes}
	if counselorID != "" {
		review.CounselorID = &counselorID
	}

	a, err := s.repo.ReviewAdmission(ctx, id, review)
	if err != nil {
		return nil, mapNotFound(err)
	}
	s.logger.Info().Str("admission_id", id).Str("status", r.Status).Str("counselor_id", counselorID).Msg("Admission reviewed.")
	return a, nil
}

// Count counts applications. An empty status counts all.
func (s *Service) Count(ctx context.Context, status string) (int64, error) {
	return s.repo.CountAdmissions(ctx, status)
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
