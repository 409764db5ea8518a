package course

import (
	"bytes"
	"context"
	"encoding/csv"
	"time"

	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/user"
)

var (
	// errors
	ErrNotFound          = errors.New("course not found")
	ErrUnknownInstructor = errors.New("instructor_id does not reference a known user")
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		// QueryCourses applies AND operation on available QueryFilter fields.
		QueryCourses(ctx context.Context, filter QueryFilter, page, perPage int) ([]Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error
		CourseIDsByInstructor(ctx context.Context, instructorID string) ([]string, error)
		CourseIDsByStudent(ctx context.Context, studentID string) ([]string, error)

		// Enroll inserts an Enrollment row; inserting an existing
		// (course, student) pair is a no-op (unique composite index).
		Enroll(ctx context.Context, enr Enrollment) error
		// Unenroll deletes the matching row; a missing row is a no-op.
		Unenroll(ctx context.Context, courseID, studentID string) error
		StudentIDsByCourse(ctx context.Context, courseID string) ([]string, error)
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
		DeleteEnrollmentsByCourse(ctx context.Context, courseID string) error
	}

	// AssignmentCascader removes a course's assignments (and their
	// submissions and blobs) when the course goes away.
	AssignmentCascader interface {
		DeleteByCourse(ctx context.Context, courseID string) error
	}

	Service interface {
		CheckInstructorExists(ctx context.Context, instructorID string) error
		Create(ctx context.Context, nc NewCourse) (Course, error)
		Query(ctx context.Context, filter QueryFilter, page, perPage int) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Update(ctx context.Context, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id string) error
		UpdateEnrollment(ctx context.Context, courseID string, eu EnrollmentUpdate) (EnrollmentResult, error)
		Students(ctx context.Context, courseID string) ([]string, error)
		RosterCSV(ctx context.Context, courseID string) ([]byte, error)
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
		CourseIDsByInstructor(ctx context.Context, instructorID string) ([]string, error)
		CourseIDsByStudent(ctx context.Context, studentID string) ([]string, error)
	}

	service struct {
		repo        Repository
		usrSvc      user.Service
		assignments AssignmentCascader
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, assignments AssignmentCascader) Service {
	return &service{
		repo:        repo,
		usrSvc:      usrSvc,
		assignments: assignments,
	}
}

func (svc *service) CheckInstructorExists(ctx context.Context, instructorID string) error {
	if _, err := svc.usrSvc.GetByID(ctx, instructorID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return core.NewValidationError(
				ErrUnknownInstructor,
				core.FieldError{Field: "instructor_id", Error: ErrUnknownInstructor.Error()},
			)
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Subject:      nc.Subject,
		Number:       nc.Number,
		Title:        nc.Title,
		Term:         nc.Term,
		InstructorID: nc.InstructorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, page, perPage int) ([]Course, error) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	filter.Clean()
	return svc.repo.QueryCourses(ctx, filter, page, perPage)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCourse) (Course, error) {
	crs := Course{
		ID:           id,
		Subject:      uc.Subject,
		Number:       uc.Number,
		Title:        uc.Title,
		Term:         uc.Term,
		InstructorID: uc.InstructorID,
		UpdatedAt:    time.Now().UTC(),
	}
	return svc.repo.UpdateCourse(ctx, crs)
}

// Delete cascades over the course's assignments (incl. submissions and
// blobs) and enrollments before removing the course itself. The sequence is
// best-effort: the store offers no cross-collection transaction, so a
// partial failure is surfaced to the caller and the course row stays put.
func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetCourseByID(ctx, id); err != nil {
		return err
	}
	if err := svc.assignments.DeleteByCourse(ctx, id); err != nil {
		return errors.Wrap(err, "cascading assignments")
	}
	if err := svc.repo.DeleteEnrollmentsByCourse(ctx, id); err != nil {
		return errors.Wrap(err, "cascading enrollments")
	}
	return svc.repo.DeleteCourse(ctx, id)
}

// UpdateEnrollment processes each add/remove id independently; a failing id
// is recorded and does not abort the remaining ids.
func (svc *service) UpdateEnrollment(ctx context.Context, courseID string, eu EnrollmentUpdate) (EnrollmentResult, error) {
	res := EnrollmentResult{Failed: make(map[string]string)}

	for _, id := range eu.Add {
		if err := svc.enroll(ctx, courseID, id); err != nil {
			res.Failed[id] = err.Error()
			continue
		}
		res.Added = append(res.Added, id)
	}
	for _, id := range eu.Remove {
		if err := svc.repo.Unenroll(ctx, courseID, id); err != nil {
			res.Failed[id] = err.Error()
			continue
		}
		res.Removed = append(res.Removed, id)
	}
	if len(res.Failed) == 0 {
		res.Failed = nil
	}
	return res, nil
}

func (svc *service) enroll(ctx context.Context, courseID, studentID string) error {
	usr, err := svc.usrSvc.GetByID(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.ErrNotFound
		}
		return err
	}
	if !usr.IsStudent() {
		return errors.New("user is not a student")
	}
	return svc.repo.Enroll(ctx, Enrollment{
		CourseID:   courseID,
		StudentID:  studentID,
		EnrolledAt: time.Now().UTC(),
	})
}

func (svc *service) Students(ctx context.Context, courseID string) ([]string, error) {
	return svc.repo.StudentIDsByCourse(ctx, courseID)
}

// RosterCSV renders the course roster as "id,name,email" rows.
func (svc *service) RosterCSV(ctx context.Context, courseID string) ([]byte, error) {
	ids, err := svc.repo.StudentIDsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var buff bytes.Buffer
	w := csv.NewWriter(&buff)
	for _, id := range ids {
		usr, err := svc.usrSvc.GetByID(ctx, id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue // enrollment outlived the user; skip the row
			}
			return nil, err
		}
		if err = w.Write([]string{usr.ID, usr.Name, usr.Email}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buff.Bytes(), nil
}

func (svc *service) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return svc.repo.IsEnrolled(ctx, courseID, studentID)
}

func (svc *service) CourseIDsByInstructor(ctx context.Context, instructorID string) ([]string, error) {
	return svc.repo.CourseIDsByInstructor(ctx, instructorID)
}

func (svc *service) CourseIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	return svc.repo.CourseIDsByStudent(ctx, studentID)
}
