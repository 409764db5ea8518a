package assignment

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error
		AssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error)

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		MarkSubmissionCommitted(ctx context.Context, id string) error
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string, page, perPage int) ([]Submission, error)
		SubmissionIDsByAssignment(ctx context.Context, assignmentID string) ([]string, error)
		DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error
	}

	// BlobStore holds submission file content, addressed by Submission id.
	BlobStore interface {
		Store(ctx context.Context, id, contentType, filename string, r io.Reader) error
		Exists(ctx context.Context, id string) (bool, error)
		Open(ctx context.Context, id string) (io.ReadCloser, error)
		Delete(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, na NewAssignment) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error)
		Delete(ctx context.Context, id string) error
		DeleteByCourse(ctx context.Context, courseID string) error
		IDsByCourse(ctx context.Context, courseID string) ([]string, error)

		CreateSubmission(ctx context.Context, ns NewSubmission, file io.Reader) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string, page, perPage int) ([]Submission, error)
		// SubmissionFile returns the submission metadata and its content
		// stream; a pending or blob-less submission reads as not found.
		SubmissionFile(ctx context.Context, id string) (Submission, io.ReadCloser, error)
	}

	service struct {
		repo  Repository
		blobs BlobStore
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, blobs BlobStore) Service {
	return &service{
		repo:  repo,
		blobs: blobs,
	}
}

func (svc *service) Create(ctx context.Context, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	a := Assignment{
		CourseID:  na.CourseID,
		Title:     na.Title,
		Points:    na.Points,
		Due:       na.Due,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateAssignment(ctx, a)
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ua UpdateAssignment) (Assignment, error) {
	a := Assignment{
		ID:        id,
		Title:     ua.Title,
		Points:    *ua.Points,
		Due:       *ua.Due,
		UpdatedAt: time.Now().UTC(),
	}
	return svc.repo.UpdateAssignment(ctx, a)
}

// Delete removes the assignment with all its submissions and their blobs.
func (svc *service) Delete(ctx context.Context, id string) error {
	if _, err := svc.repo.GetAssignmentByID(ctx, id); err != nil {
		return err
	}
	if err := svc.deleteSubmissions(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}

func (svc *service) DeleteByCourse(ctx context.Context, courseID string) error {
	assignments, err := svc.repo.AssignmentsByCourse(ctx, courseID)
	if err != nil {
		return err
	}
	for _, a := range assignments {
		if err = svc.deleteSubmissions(ctx, a.ID); err != nil {
			return err
		}
		if err = svc.repo.DeleteAssignment(ctx, a.ID); err != nil {
			return err
		}
	}
	return nil
}

func (svc *service) deleteSubmissions(ctx context.Context, assignmentID string) error {
	subIDs, err := svc.repo.SubmissionIDsByAssignment(ctx, assignmentID)
	if err != nil {
		return err
	}
	for _, subID := range subIDs {
		if err = svc.blobs.Delete(ctx, subID); err != nil {
			return errors.Wrapf(err, "deleting blob %s", subID)
		}
	}
	return svc.repo.DeleteSubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) IDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	assignments, err := svc.repo.AssignmentsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(assignments))
	for _, a := range assignments {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// CreateSubmission writes the metadata row first (pending), then the blob,
// then flips the row to committed. A crash in between leaves a pending row
// that readers ignore; a reconciliation sweep cleans those up out of band.
func (svc *service) CreateSubmission(ctx context.Context, ns NewSubmission, file io.Reader) (Submission, error) {
	sub := Submission{
		AssignmentID: ns.AssignmentID,
		StudentID:    ns.StudentID,
		Timestamp:    time.Now().UTC(),
		ContentType:  ns.ContentType,
		Filename:     ns.Filename,
		Status:       SubmissionPending,
	}
	sub, err := svc.repo.CreateSubmission(ctx, sub)
	if err != nil {
		return Submission{}, err
	}

	if err = svc.blobs.Store(ctx, sub.ID, ns.ContentType, ns.Filename, file); err != nil {
		return Submission{}, errors.Wrap(err, "storing submission blob")
	}
	if err = svc.repo.MarkSubmissionCommitted(ctx, sub.ID); err != nil {
		return Submission{}, errors.Wrap(err, "committing submission")
	}
	sub.Status = SubmissionCommitted
	return sub, nil
}

func (svc *service) QuerySubmissions(ctx context.Context, assignmentID string, page, perPage int) ([]Submission, error) {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	return svc.repo.QuerySubmissions(ctx, assignmentID, page, perPage)
}

func (svc *service) SubmissionFile(ctx context.Context, id string) (Submission, io.ReadCloser, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, id)
	if err != nil {
		return Submission{}, nil, err
	}
	if sub.Status != SubmissionCommitted {
		return Submission{}, nil, ErrSubmissionNotFound
	}
	exists, err := svc.blobs.Exists(ctx, id)
	if err != nil {
		return Submission{}, nil, errors.Wrap(err, "checking submission blob")
	}
	if !exists {
		return Submission{}, nil, ErrSubmissionNotFound
	}
	rc, err := svc.blobs.Open(ctx, id)
	if err != nil {
		return Submission{}, nil, errors.Wrap(err, "opening submission blob")
	}
	return sub, rc, nil
}
