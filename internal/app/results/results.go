/*
Package results holds exam results: the student's report (summary figures plus an
optional semester filter) and the faculty editor.
*/
package results

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sims/internal/app/db"
	"sims/internal/pkg/logx"
)

// Result statuses.
const (
	StatusPass     = "pass"
	StatusFail     = "fail"
	StatusReappear = "reappear"
)

// DateLayout is the wire format of exam and result dates.
const DateLayout = "2006-01-02"

// ErrNotFound is returned for unknown result ids.
var ErrNotFound = errors.New("results: result not found")

// Summary holds the figures shown above a student's result list. They are computed over
// every result of the student, whatever semester is selected.
type Summary struct {
	Count             int     `json:"count"`
	AveragePercentage float64 `json:"average_percentage"`
	PassRate          int     `json:"pass_rate"`
	Semesters         []int   `json:"semesters"`
	CurrentSemester   int     `json:"current_semester"`
}

// Report is a student's result page.
type Report struct {
	Summary  Summary         `json:"summary"`
	Semester *int            `json:"semester"`
	Results  []db.ExamResult `json:"results"`
}

// Input is the faculty result form.
type Input struct {
	StudentID     string `json:"student_id" validate:"required"`
	ExamName      string `json:"exam_name" validate:"required,max=200"`
	Subject       string `json:"subject" validate:"required,max=200"`
	Semester      int    `json:"semester" validate:"gte=1,lte=12"`
	AcademicYear  string `json:"academic_year" validate:"required,max=20"`
	MaxMarks      int    `json:"max_marks" validate:"gt=0"`
	ObtainedMarks int    `json:"obtained_marks" validate:"gte=0,ltefield=MaxMarks"`
	Grade         string `json:"grade" validate:"max=5"`
	Status        string `json:"status" validate:"required,oneof=pass fail reappear"`
	ExamDate      string `json:"exam_date" validate:"required,datetime=2006-01-02"`
	ResultDate    string `json:"result_date" validate:"omitempty,datetime=2006-01-02"`
}

// Repository is the subset of db.Queries used for results.
type Repository interface {
	ListResults(ctx context.Context, studentID string, semester *int) ([]db.ExamResult, error)
	GetResult(ctx context.Context, id string) (*db.ExamResult, error)
	CreateResult(ctx context.Context, p db.ResultParams) (*db.ExamResult, error)
	UpdateResult(ctx context.Context, id string, p db.ResultParams) (*db.ExamResult, error)
	DeleteResult(ctx context.Context, id string) error
}

// Service serves results from a Repository.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

// NewService returns a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: logx.Component("results")}
}

// Percentage is obtained over max marks, in percent. Zero max marks yield zero.
func Percentage(r db.ExamResult) float64 {
	if r.MaxMarks <= 0 {
		return 0
	}
	return float64(r.ObtainedMarks) / float64(r.MaxMarks) * 100
}

// Summarize computes the summary figures of rs.
func Summarize(rs []db.ExamResult) Summary {
	s := Summary{Count: len(rs), Semesters: Semesters(rs), CurrentSemester: 1}
	if len(s.Semesters) > 0 {
		s.CurrentSemester = max(s.Semesters[len(s.Semesters)-1], 1)
	}
	if len(rs) == 0 {
		return s
	}

	var total float64
	passed := 0
	for _, r := range rs {
		total += Percentage(r)
		if r.Status == StatusPass {
			passed++
		}
	}

	s.AveragePercentage = math.Round(total/float64(len(rs))*100) / 100
	s.PassRate = int(math.Round(float64(passed) / float64(len(rs)) * 100))
	return s
}

// Semesters returns the distinct semesters of rs in ascending order.
func Semesters(rs []db.ExamResult) []int {
	out := []int{}
	for _, r := range rs {
		if !slices.Contains(out, r.Semester) {
			out = append(out, r.Semester)
		}
	}
	slices.Sort(out)
	return out
}

// FilterSemester keeps the results of one semester. A nil semester keeps all.
func FilterSemester(rs []db.ExamResult, semester *int) []db.ExamResult {
	if semester == nil {
		return rs
	}
	out := []db.ExamResult{}
	for _, r := range rs {
		if r.Semester == *semester {
			out = append(out, r)
		}
	}
	return out
}

// Report returns studentID's results, most recent first, filtered to semester when set.
func (s *Service) Report(ctx context.Context, studentID string, semester *int) (*Report, error) {
	all, err := s.repo.ListResults(ctx, studentID, nil)
	if err != nil {
		return nil, err
	}

	return &Report{
		Summary:  Summarize(all),
		Semester: semester,
		Results:  FilterSemester(all, semester),
	}, nil
}

// Create stores a result.
func (s *Service) Create(ctx context.Context, in Input) (*db.ExamResult, error) {
	p, err := params(in)
	if err != nil {
		return nil, err
	}

	r, err := s.repo.CreateResult(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("result_id", r.ID).Str("student_id", r.StudentID).Msg("Result recorded.")
	return r, nil
}

// Update rewrites result id.
func (s *Service) Update(ctx context.Context, id string, in Input) (*db.ExamResult, error) {
	p, err := params(in)
	if err != nil {
		return nil, err
	}

	r, err := s.repo.UpdateResult(ctx, id, p)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return r, nil
}

// Get returns result id.
func (s *Service) Get(ctx context.Context, id string) (*db.ExamResult, error) {
	r, err := s.repo.GetResult(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return r, nil
}

// Delete removes result id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteResult(ctx, id); err != nil {
		return mapNotFound(err)
	}
	s.logger.Info().Str("result_id", id).Msg("Result deleted.")
	return nil
}

// params converts a validated Input to columns.
func params(in Input) (db.ResultParams, error) {
	examDate, err := time.Parse(DateLayout, in.ExamDate)
	if err != nil {
		return db.ResultParams{}, err
	}

	p := db.ResultParams{
		StudentID:     in.StudentID,
		ExamName:      strings.TrimSpace(in.ExamName),
		Subject:       strings.TrimSpace(in.Subject),
		Semester:      in.Semester,
		AcademicYear:  strings.TrimSpace(in.AcademicYear),
		MaxMarks:      in.MaxMarks,
		ObtainedMarks: in.ObtainedMarks,
		Status:        in.Status,
		ExamDate:      examDate,
	}

	if g := strings.TrimSpace(in.Grade); g != "" {
		p.Grade = &g
	}
	if in.ResultDate != "" {
		resultDate, err := time.Parse(DateLayout, in.ResultDate)
		if err != nil {
			return db.ResultParams{}, err
		}
		p.ResultDate = &resultDate
	}
	return p, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
