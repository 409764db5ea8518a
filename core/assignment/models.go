package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/tarpaulin/backend/core"
)

// Submission statuses. A submission becomes visible once its blob write
// lands; a row stuck in pending is treated as absent by readers.
const (
	SubmissionPending   = "pending"
	SubmissionCommitted = "committed"
)

type Assignment struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	Title     string    `json:"title"`
	Points    int       `json:"points"`
	Due       time.Time `json:"due"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Timestamp    time.Time `json:"timestamp"` // UTC
	Grade        *float64  `json:"grade,omitempty"`
	ContentType  string    `json:"-"`
	Filename     string    `json:"filename"`
	Status       string    `json:"-"`
	FileURL      string    `json:"file"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	CourseID string    `json:"course_id" validate:"required"`
	Title    string    `json:"title" validate:"required"`
	Points   int       `json:"points" validate:"gte=0"`
	Due      time.Time `json:"due" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.CourseID = core.CleanString(na.CourseID)
	na.Title = core.CleanString(na.Title)
	return validate.Struct(na)
}

// UpdateAssignment defines the partial update surface of an Assignment.
// Submissions cannot be modified through it.
type UpdateAssignment struct {
	Title  string     `json:"title"`
	Points *int       `json:"points" validate:"omitempty,gte=0"`
	Due    *time.Time `json:"due"`
}

func (ua *UpdateAssignment) Validate(orig Assignment, validate *validator.Validate) error {
	if t := core.CleanString(ua.Title); t != "" {
		ua.Title = t
	} else {
		ua.Title = orig.Title
	}
	if ua.Points == nil {
		points := orig.Points
		ua.Points = &points
	}
	if ua.Due == nil {
		due := orig.Due
		ua.Due = &due
	}
	return validate.Struct(ua)
}

// NewSubmission carries the metadata of an uploaded submission file; the
// bytes themselves go to the blob store.
type NewSubmission struct {
	AssignmentID string
	StudentID    string
	ContentType  string
	Filename     string `validate:"required"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Filename = core.CleanString(ns.Filename)
	return validate.Struct(ns)
}
