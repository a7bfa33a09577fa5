package db

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
)

// Admission is a row of admissions.
type Admission struct {
	ID                string    `json:"id" db:"id"`
	ApplicationNumber *string   `json:"application_number" db:"application_number"`
	ApplicantName     string    `json:"applicant_name" db:"applicant_name"`
	Email             string    `json:"email" db:"email"`
	Phone             string    `json:"phone" db:"phone"`
	DateOfBirth       time.Time `json:"date_of_birth" db:"date_of_birth"`
	Gender            string    `json:"gender" db:"gender"`
	Address           string    `json:"address" db:"address"`
	City              string    `json:"city" db:"city"`
	State             string    `json:"state" db:"state"`
	Pincode           string    `json:"pincode" db:"pincode"`
	CollegeApplied    string    `json:"college_applied" db:"college_applied"`
	CourseApplied     string    `json:"course_applied" db:"course_applied"`
	Qualification     string    `json:"qualification" db:"qualification"`
	BoardUniversity   string    `json:"board_university" db:"board_university"`
	YearOfPassing     int       `json:"year_of_passing" db:"year_of_passing"`
	Percentage        float64   `json:"percentage" db:"percentage"`
	Status            string    `json:"status" db:"status"`
	CounselorID       *string   `json:"counselor_id" db:"counselor_id"`
	CounselorNotes    *string   `json:"counselor_notes" db:"counselor_notes"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

var admissionColumns = []string{
	"id", "application_number", "applicant_name", "email", "phone", "date_of_birth", "gender",
	"address", "city", "state", "pincode", "college_applied", "course_applied", "qualification",
	"board_university", "year_of_passing", "percentage", "status", "counselor_id",
	"counselor_notes", "created_at", "updated_at",
}

// AdmissionParams are the applicant-supplied columns.
type AdmissionParams struct {
	ApplicationNumber string
	ApplicantName     string
	Email             string
	Phone             string
	DateOfBirth       time.Time
	Gender            string
	Address           string
	City              string
	State             string
	Pincode           string
	CollegeApplied    string
	CourseApplied     string
	Qualification     string
	BoardUniversity   string
	YearOfPassing     int
	Percentage        float64
}

// AdmissionReview is a counselor's change to an application. Nil fields are left as is.
type AdmissionReview struct {
	Status         *string
	CounselorID    *string
	CounselorNotes *string
}

// CreateAdmission inserts a pending application and returns the stored row.
func (q *Queries) CreateAdmission(ctx context.Context, p AdmissionParams) (*Admission, error) {
	query, args, err := psql.Insert("admissions").
		Columns("application_number", "applicant_name", "email", "phone", "date_of_birth", "gender",
			"address", "city", "state", "pincode", "college_applied", "course_applied",
			"qualification", "board_university", "year_of_passing", "percentage").
		Values(p.ApplicationNumber, p.ApplicantName, p.Email, p.Phone, p.DateOfBirth, p.Gender,
			p.Address, p.City, p.State, p.Pincode, p.CollegeApplied, p.CourseApplied,
			p.Qualification, p.BoardUniversity, p.YearOfPassing, p.Percentage).
		Suffix("RETURNING " + columnList(admissionColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building insert admission: %w", err)
	}

	var a Admission
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		return nil, fmt.Errorf("inserting admission: %w", err)
	}
	return &a, nil
}

// ListAdmissions returns applications newest first. An empty status lists all.
func (q *Queries) ListAdmissions(ctx context.Context, status string, limit, offset uint64) ([]Admission, error) {
	b := psql.Select(admissionColumns...).
		From("admissions").
		OrderBy("created_at DESC")
	if status != "" {
		b = b.Where(squirrel.Eq{"status": status})
	}
	if limit > 0 {
		b = b.Limit(limit)
	}
	if offset > 0 {
		b = b.Offset(offset)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building admissions query: %w", err)
	}

	admissions := []Admission{}
	if err := pgxscan.Select(ctx, q.db, &admissions, query, args...); err != nil {
		return nil, fmt.Errorf("scanning admissions: %w", err)
	}
	return admissions, nil
}

// GetAdmission returns one application or ErrNotFound.
func (q *Queries) GetAdmission(ctx context.Context, id string) (*Admission, error) {
	query, args, err := psql.Select(admissionColumns...).
		From("admissions").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building admission query: %w", err)
	}

	var a Admission
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning admission: %w", err)
	}
	return &a, nil
}

// CountAdmissions counts applications. An empty status counts all.
func (q *Queries) CountAdmissions(ctx context.Context, status string) (int64, error) {
	b := psql.Select("count(*)").From("admissions")
	if status != "" {
		b = b.Where(squirrel.Eq{"status": status})
	}
	n, err := q.count(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("counting admissions: %w", err)
	}
	return n, nil
}

// ReviewAdmission applies a counselor review and returns the updated row.
func (q *Queries) ReviewAdmission(ctx context.Context, id string, r AdmissionReview) (*Admission, error) {
	b := psql.Update("admissions").
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Suffix("RETURNING " + columnList(admissionColumns))
	if r.Status != nil {
		b = b.Set("status", *r.Status)
	}
	if r.CounselorID != nil {
		b = b.Set("counselor_id", *r.CounselorID)
	}
	if r.CounselorNotes != nil {
		b = b.Set("counselor_notes", *r.CounselorNotes)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building review admission: %w", err)
	}

	var a Admission
	if err := pgxscan.Get(ctx, q.db, &a, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reviewing admission: %w", err)
	}
	return &a, nil
}
