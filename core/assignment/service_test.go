package assignment_test

import (
	"bytes"
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarpaulin/backend/core/assignment"
	inmemdb "github.com/tarpaulin/backend/storage/database/inmem"
)

func setup() (assignment.Service, assignment.Repository) {
	db := inmemdb.NewDB()
	repo := inmemdb.NewAssignmentRepository(db)
	return assignment.NewService(repo, inmemdb.NewBlobStore()), repo
}

func createAssignment(t *testing.T, svc assignment.Service) assignment.Assignment {
	t.Helper()
	asg, err := svc.Create(context.Background(), assignment.NewAssignment{
		CourseID: "c1",
		Title:    "Final Project",
		Points:   100,
		Due:      time.Now().Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	return asg
}

func Test_service_CreateSubmission_roundTrip(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	asg := createAssignment(t, svc)

	content := []byte("%PDF-1.4 final project")
	sub, err := svc.CreateSubmission(ctx, assignment.NewSubmission{
		AssignmentID: asg.ID,
		StudentID:    "s1",
		ContentType:  "application/pdf",
		Filename:     "final.pdf",
	}, bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, assignment.SubmissionCommitted, sub.Status)

	got, rc, err := svc.SubmissionFile(ctx, sub.ID)
	require.NoError(t, err)
	defer rc.Close()

	data, err := ioutil.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "final.pdf", got.Filename)
}

func Test_service_SubmissionFile_pendingReadsAsAbsent(t *testing.T) {
	svc, repo := setup()
	ctx := context.Background()
	asg := createAssignment(t, svc)

	// a metadata row whose blob never landed must not become retrievable
	sub, err := repo.CreateSubmission(ctx, assignment.Submission{
		AssignmentID: asg.ID,
		StudentID:    "s1",
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/pdf",
		Filename:     "final.pdf",
		Status:       assignment.SubmissionPending,
	})
	require.NoError(t, err)

	_, _, err = svc.SubmissionFile(ctx, sub.ID)
	assert.Equal(t, assignment.ErrSubmissionNotFound, err)

	// nor must it show up in listings
	subs, err := svc.QuerySubmissions(ctx, asg.ID, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func Test_service_QuerySubmissions_pagination(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	asg := createAssignment(t, svc)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateSubmission(ctx, assignment.NewSubmission{
			AssignmentID: asg.ID,
			StudentID:    "s1",
			ContentType:  "text/plain",
			Filename:     "notes.txt",
		}, bytes.NewReader([]byte("notes")))
		require.NoError(t, err)
	}

	subs, err := svc.QuerySubmissions(ctx, asg.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subs, err = svc.QuerySubmissions(ctx, asg.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func Test_service_Delete_removesSubmissions(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	asg := createAssignment(t, svc)

	sub, err := svc.CreateSubmission(ctx, assignment.NewSubmission{
		AssignmentID: asg.ID,
		StudentID:    "s1",
		ContentType:  "text/plain",
		Filename:     "notes.txt",
	}, bytes.NewReader([]byte("notes")))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, asg.ID))

	_, err = svc.GetByID(ctx, asg.ID)
	assert.Equal(t, assignment.ErrNotFound, err)
	_, _, err = svc.SubmissionFile(ctx, sub.ID)
	assert.Equal(t, assignment.ErrSubmissionNotFound, err)
}

func Test_service_Update_partial(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	asg := createAssignment(t, svc)

	points := 50
	ua := assignment.UpdateAssignment{Points: &points}
	due := asg.Due
	ua.Due = &due
	ua.Title = asg.Title

	got, err := svc.Update(ctx, asg.ID, ua)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Points)
	assert.Equal(t, asg.Title, got.Title)
}
