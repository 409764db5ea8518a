package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tarpaulin/backend/core"
)

type Course struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Number       string    `json:"number"`
	Title        string    `json:"title"`
	Term         string    `json:"term"`
	InstructorID string    `json:"instructor_id"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Enrollment is the (course, student) join record granting a student access
// to a Course's restricted resources. The pair is unique in storage.
type Enrollment struct {
	CourseID   string    `json:"course_id"`
	StudentID  string    `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"` // UTC
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Subject      string `json:"subject" validate:"required"`
	Number       string `json:"number" validate:"required"`
	Title        string `json:"title" validate:"required"`
	Term         string `json:"term" validate:"required"`
	InstructorID string `json:"instructor_id" validate:"required"`
}

func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nc.Subject = core.CleanString(nc.Subject)
	nc.Number = core.CleanString(nc.Number)
	nc.Title = core.CleanString(nc.Title)
	nc.Term = core.CleanString(nc.Term)
	nc.InstructorID = core.CleanString(nc.InstructorID)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckInstructorExists(ctx, nc.InstructorID)
}

// UpdateCourse defines the partial update surface of a Course. Enrollments
// and assignments cannot be modified through it.
type UpdateCourse struct {
	Subject      string `json:"subject"`
	Number       string `json:"number"`
	Title        string `json:"title"`
	Term         string `json:"term"`
	InstructorID string `json:"instructor_id"`
}

func (uc *UpdateCourse) Validate(ctx context.Context, orig Course, validate *validator.Validate, svc Service) error {
	if s := core.CleanString(uc.Subject); s != "" {
		uc.Subject = s
	} else {
		uc.Subject = orig.Subject
	}
	if n := core.CleanString(uc.Number); n != "" {
		uc.Number = n
	} else {
		uc.Number = orig.Number
	}
	if t := core.CleanString(uc.Title); t != "" {
		uc.Title = t
	} else {
		uc.Title = orig.Title
	}
	if t := core.CleanString(uc.Term); t != "" {
		uc.Term = t
	} else {
		uc.Term = orig.Term
	}
	if i := core.CleanString(uc.InstructorID); i != "" {
		uc.InstructorID = i
	} else {
		uc.InstructorID = orig.InstructorID
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.InstructorID != orig.InstructorID {
		return svc.CheckInstructorExists(ctx, uc.InstructorID)
	}
	return nil
}

// EnrollmentUpdate is a single request's add/remove id lists; each id is
// processed independently.
type EnrollmentUpdate struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

func (eu EnrollmentUpdate) IsEmpty() bool {
	return len(eu.Add) == 0 && len(eu.Remove) == 0
}

// EnrollmentResult reports the per-id outcome of an EnrollmentUpdate.
type EnrollmentResult struct {
	Added   []string          `json:"added"`
	Removed []string          `json:"removed"`
	Failed  map[string]string `json:"failed,omitempty"` // id -> reason
}

type QueryFilter struct {
	Subject string `query:"subject"`
	Number  string `query:"number"`
	Term    string `query:"term"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Subject == "" && qf.Number == "" && qf.Term == ""
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject)
	qf.Number = core.CleanString(qf.Number)
	qf.Term = core.CleanString(qf.Term)
}
