package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// ExamResult is a row of exam_results.
type ExamResult struct {
	ID            string     `json:"id" db:"id"`
	StudentID     string     `json:"student_id" db:"student_id"`
	ExamName      string     `json:"exam_name" db:"exam_name"`
	Subject       string     `json:"subject" db:"subject"`
	Semester      int        `json:"semester" db:"semester"`
	AcademicYear  string     `json:"academic_year" db:"academic_year"`
	MaxMarks      int        `json:"max_marks" db:"max_marks"`
	ObtainedMarks int        `json:"obtained_marks" db:"obtained_marks"`
	Grade         *string    `json:"grade" db:"grade"`
	Status        string     `json:"status" db:"status"`
	ExamDate      time.Time  `json:"exam_date" db:"exam_date"`
	ResultDate    *time.Time `json:"result_date" db:"result_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

var resultColumns = []string{
	"id", "student_id", "exam_name", "subject", "semester", "academic_year", "max_marks",
	"obtained_marks", "grade", "status", "exam_date", "result_date", "created_at", "updated_at",
}

// ResultParams are the writable columns of an exam result.
type ResultParams struct {
	StudentID     string
	ExamName      string
	Subject       string
	Semester      int
	AcademicYear  string
	MaxMarks      int
	ObtainedMarks int
	Grade         *string
	Status        string
	ExamDate      time.Time
	ResultDate    *time.Time
}

// ListResults returns a student's results, most recent exam first.
// A non-nil semester restricts the list to that semester.
func (q *Queries) ListResults(ctx context.Context, studentID string, semester *int) ([]ExamResult, error) {
	b := psql.Select(resultColumns...).
		From("exam_results").
		Where(squirrel.Eq{"student_id": studentID}).
		OrderBy("exam_date DESC")
	if semester != nil {
		b = b.Where(squirrel.Eq{"semester": *semester})
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building results query: %w", err)
	}

	results := []ExamResult{}
	if err := pgxscan.Select(ctx, q.db, &results, query, args...); err != nil {
		return nil, fmt.Errorf("scanning results: %w", err)
	}
	return results, nil
}

// GetResult returns one result or ErrNotFound.
func (q *Queries) GetResult(ctx context.Context, id string) (*ExamResult, error) {
	query, args, err := psql.Select(resultColumns...).
		From("exam_results").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building result query: %w", err)
	}

	var r ExamResult
	if err := pgxscan.Get(ctx, q.db, &r, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning result: %w", err)
	}
	return &r, nil
}

// CreateResult inserts a result and returns the stored row.
func (q *Queries) CreateResult(ctx context.Context, p ResultParams) (*ExamResult, error) {
	query, args, err := psql.Insert("exam_results").
		Columns("student_id", "exam_name", "subject", "semester", "academic_year", "max_marks",
			"obtained_marks", "grade", "status", "exam_date", "result_date").
		Values(p.StudentID, p.ExamName, p.Subject, p.Semester, p.AcademicYear, p.MaxMarks,
			p.ObtainedMarks, p.Grade, p.Status, p.ExamDate, p.ResultDate).
		Suffix("RETURNING " + columnList(resultColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert result: %w", err)
	}

	var r ExamResult
	if err := pgxscan.Get(ctx, q.db, &r, query, args...); err != nil {
		return nil, fmt.Errorf("inserting result: %w", err)
	}
	return &r, nil
}

// UpdateResult overwrites the writable columns of result id.
func (q *Queries) UpdateResult(ctx context.Context, id string, p ResultParams) (*ExamResult, error) {
	query, args, err := psql.Update("exam_results").
		Set("student_id", p.StudentID).
		Set("exam_name", p.ExamName).
		Set("subject", p.Subject).
		Set("semester", p.Semester).
		Set("academic_year", p.AcademicYear).
		Set("max_marks", p.MaxMarks).
		Set("obtained_marks", p.ObtainedMarks).
		Set("grade", p.Grade).
		Set("status", p.Status).
		Set("exam_date", p.ExamDate).
		Set("result_date", p.ResultDate).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + columnList(resultColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building update result: %w", err)
	}

	var r ExamResult
	if err := pgxscan.Get(ctx, q.db, &r, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating result: %w", err)
	}
	return &r, nil
}

// DeleteResult removes result id.
func (q *Queries) DeleteResult(ctx context.Context, id string) error {
	return q.execOne(ctx, psql.Delete("exam_results").Where(squirrel.Eq{"id": id}))
}
