package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/user"
)

type assignmentFixture struct {
	owner, other, enrolled, outsider user.User
	asg                              assignment.Assignment
}

func newAssignmentFixture(t *testing.T, env *testEnv) assignmentFixture {
	t.Helper()

	fix := assignmentFixture{
		owner:    env.createUser(t, "Ina", "ina@test.cc", authz.RoleInstructor),
		other:    env.createUser(t, "Jon", "jon@test.cc", authz.RoleInstructor),
		enrolled: env.createUser(t, "Sam", "sam@test.cc", authz.RoleStudent),
		outsider: env.createUser(t, "Tom", "tom@test.cc", authz.RoleStudent),
	}
	crs := env.createCourse(t, fix.owner.ID)
	env.enroll(t, crs.ID, fix.enrolled.ID)

	asg, err := env.asgSvc.Create(context.Background(), assignment.NewAssignment{
		CourseID: crs.ID,
		Title:    "Final Project",
		Points:   100,
		Due:      time.Now().Add(7 * 24 * time.Hour).UTC(),
	})
	require.NoError(t, err)
	fix.asg = asg
	return fix
}

func Test_assignmentApi_create(t *testing.T) {
	srv, env := setup(t)
	fix := newAssignmentFixture(t, env)

	body := []byte(`{"course_id": "` + fix.asg.CourseID + `", "title": "Quiz 1", "points": 10, "due": "2026-10-01T00:00:00Z"}`)

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     body,
			wantCode: http.StatusUnauthorized,
		},
		{
			// the caller already knows the courseId, so this one is an
			// explicit 403 rather than a hidden 404
			name:     "foreign instructor forbidden",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     body,
			token:    getToken(t, env.conf, fix.other),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "student forbidden",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     body,
			token:    getToken(t, env.conf, fix.enrolled),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "course instructor creates",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     body,
			token:    getToken(t, env.conf, fix.owner),
			wantCode: http.StatusCreated,
		},
		{
			name:     "unknown course",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     []byte(`{"course_id": "nope", "title": "Quiz 1", "points": 10, "due": "2026-10-01T00:00:00Z"}`),
			token:    getToken(t, env.conf, fix.owner),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"course_id": "course_id does not reference a known course"}),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/assignments",
			body:     []byte(`{"points": 10}`),
			token:    getToken(t, env.conf, fix.owner),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_assignmentApi_updateDestroy(t *testing.T) {
	srv, env := setup(t)
	fix := newAssignmentFixture(t, env)

	t.Run("retrieve is public", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/assignments/"+fix.asg.ID)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("foreign instructor PATCH reads not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/assignments/"+fix.asg.ID, getToken(t, env.conf, fix.other), []byte(`{"points": 50}`))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner updates points only", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPatch, "/assignments/"+fix.asg.ID, getToken(t, env.conf, fix.owner), []byte(`{"points": 50}`))
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got assignment.Assignment
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, 50, got.Points)
		assert.Equal(t, fix.asg.Title, got.Title)
	})

	t.Run("foreign instructor DELETE reads not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/assignments/"+fix.asg.ID, getToken(t, env.conf, fix.other))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("owner deletes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/assignments/"+fix.asg.ID, getToken(t, env.conf, fix.owner))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		_, err := env.asgSvc.GetByID(context.Background(), fix.asg.ID)
		assert.Equal(t, assignment.ErrNotFound, err)
	})
}

func Test_assignmentApi_submissions(t *testing.T) {
	srv, env := setup(t)
	fix := newAssignmentFixture(t, env)

	content := []byte("%PDF-1.4 my final project")
	subPath := "/assignments/" + fix.asg.ID + "/submissions"

	t.Run("un-enrolled student reads not found", func(t *testing.T) {
		req, rec := newUploadRequest(t, subPath, getToken(t, env.conf, fix.outsider), "final.pdf", "application/pdf", content)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing file part is rejected", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, subPath, getToken(t, env.conf, fix.enrolled), []byte(`{}`))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	var created assignment.Submission
	t.Run("enrolled student submits", func(t *testing.T) {
		req, rec := newUploadRequest(t, subPath, getToken(t, env.conf, fix.enrolled), "final.pdf", "application/pdf", content)
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, fix.enrolled.ID, created.StudentID)
		assert.Equal(t, "/media/submissions/"+created.ID, created.FileURL)
	})

	t.Run("student cannot list submissions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, subPath, getToken(t, env.conf, fix.enrolled))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("course instructor lists submissions", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, subPath, getToken(t, env.conf, fix.owner))
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var subs []assignment.Submission
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
		require.Len(t, subs, 1)
		assert.Equal(t, created.ID, subs[0].ID)
	})

	t.Run("uploaded bytes round-trip via media", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/media/submissions/"+created.ID, getToken(t, env.conf, fix.enrolled))
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.Equal(t, content, rec.Body.Bytes())
	})

	t.Run("media requires a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/media/submissions/"+created.ID)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("metadata without a blob reads not found", func(t *testing.T) {
		// a pending row simulates a crash between the two write phases
		sub, err := env.asgRepo.CreateSubmission(context.Background(), assignment.Submission{
			AssignmentID: fix.asg.ID,
			StudentID:    fix.enrolled.ID,
			Timestamp:    time.Now().UTC(),
			ContentType:  "application/pdf",
			Filename:     "ghost.pdf",
			Status:       assignment.SubmissionPending,
		})
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodGet, "/media/submissions/"+sub.ID, getToken(t, env.conf, fix.enrolled))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown submission reads not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/media/submissions/nope", getToken(t, env.conf, fix.enrolled))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func Test_courseApi_assignments(t *testing.T) {
	srv, env := setup(t)
	fix := newAssignmentFixture(t, env)

	t.Run("requires a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/courses/"+fix.asg.CourseID+"/assignments")
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("any authenticated user lists assignment ids", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/courses/"+fix.asg.CourseID+"/assignments", getToken(t, env.conf, fix.outsider))
		srv.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp AssignmentsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, []string{fix.asg.ID}, resp.Assignments)
	})

	t.Run("unknown course reads not found", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/courses/nope/assignments", getToken(t, env.conf, fix.outsider))
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
