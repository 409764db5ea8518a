package course_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarpaulin/backend/core"
	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/authz"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
	emailsvc "github.com/tarpaulin/backend/services/email"
	inmemdb "github.com/tarpaulin/backend/storage/database/inmem"
)

type testEnv struct {
	usrSvc user.Service
	asgSvc assignment.Service
	svc    course.Service
	repo   course.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	db := inmemdb.NewDB()
	conf := core.NewConfig()
	conf.TestMode = true

	usrSvc := user.NewServiceMock(inmemdb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)
	asgSvc := assignment.NewService(inmemdb.NewAssignmentRepository(db), inmemdb.NewBlobStore())
	repo := inmemdb.NewCourseRepository(db)
	return &testEnv{
		usrSvc: usrSvc,
		asgSvc: asgSvc,
		svc:    course.NewService(repo, usrSvc, asgSvc),
		repo:   repo,
	}
}

func (env *testEnv) createUser(t *testing.T, name, email, role string) user.User {
	t.Helper()
	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:     name,
		Email:    email,
		Password: "Str0ngPa$$",
		Role:     role,
	})
	require.NoError(t, err)
	return usr
}

func (env *testEnv) createCourse(t *testing.T, instructorID string) course.Course {
	t.Helper()
	crs, err := env.svc.Create(context.Background(), course.NewCourse{
		Subject:      "CS",
		Number:       "493",
		Title:        "Cloud Application Development",
		Term:         "sp26",
		InstructorID: instructorID,
	})
	require.NoError(t, err)
	return crs
}

func (env *testEnv) enrollmentCount(t *testing.T) int {
	t.Helper()
	counter, ok := env.repo.(interface{ EnrollmentCount() int })
	require.True(t, ok, "repository must expose EnrollmentCount")
	return counter.EnrollmentCount()
}

func Test_service_UpdateEnrollment(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	instructor := env.createUser(t, "Ina", "ina@test.cc", authz.RoleInstructor)
	std1 := env.createUser(t, "Sam", "sam@test.cc", authz.RoleStudent)
	std2 := env.createUser(t, "Sue", "sue@test.cc", authz.RoleStudent)
	crs := env.createCourse(t, instructor.ID)

	// enroll both students
	res, err := env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{Add: []string{std1.ID, std2.ID}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{std1.ID, std2.ID}, res.Added)
	assert.Empty(t, res.Failed)
	assert.Equal(t, 2, env.enrollmentCount(t))

	enrolled, err := env.svc.IsEnrolled(ctx, crs.ID, std1.ID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	// enrolling again must not create a second row
	res, err = env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{Add: []string{std1.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{std1.ID}, res.Added)
	assert.Equal(t, 2, env.enrollmentCount(t))

	// per-id failures do not abort the remaining ids
	res, err = env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{
		Add:    []string{"nope", instructor.ID},
		Remove: []string{std2.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{std2.ID}, res.Removed)
	assert.Contains(t, res.Failed, "nope")
	assert.Contains(t, res.Failed, instructor.ID)
	assert.Equal(t, 1, env.enrollmentCount(t))

	// removing a non-enrolled student is a no-op success
	res, err = env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{Remove: []string{std2.ID}})
	require.NoError(t, err)
	assert.Equal(t, []string{std2.ID}, res.Removed)
	assert.Empty(t, res.Failed)

	// enroll then unenroll round-trips to false
	enrolled, err = env.svc.IsEnrolled(ctx, crs.ID, std2.ID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func Test_service_Delete_cascades(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	instructor := env.createUser(t, "Ina", "ina@test.cc", authz.RoleInstructor)
	std := env.createUser(t, "Sam", "sam@test.cc", authz.RoleStudent)
	crs := env.createCourse(t, instructor.ID)

	_, err := env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{Add: []string{std.ID}})
	require.NoError(t, err)

	asg, err := env.asgSvc.Create(ctx, assignment.NewAssignment{
		CourseID: crs.ID,
		Title:    "Final Project",
		Points:   100,
		Due:      time.Now().Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)

	sub, err := env.asgSvc.CreateSubmission(ctx, assignment.NewSubmission{
		AssignmentID: asg.ID,
		StudentID:    std.ID,
		ContentType:  "application/pdf",
		Filename:     "final.pdf",
	}, bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)

	require.NoError(t, env.svc.Delete(ctx, crs.ID))

	_, err = env.svc.GetByID(ctx, crs.ID)
	assert.Equal(t, course.ErrNotFound, err)
	_, err = env.asgSvc.GetByID(ctx, asg.ID)
	assert.Equal(t, assignment.ErrNotFound, err)
	_, _, err = env.asgSvc.SubmissionFile(ctx, sub.ID)
	assert.Equal(t, assignment.ErrSubmissionNotFound, err)
	assert.Equal(t, 0, env.enrollmentCount(t))

	// deleting again reports not found
	assert.Equal(t, course.ErrNotFound, env.svc.Delete(ctx, crs.ID))
}

func Test_service_RosterCSV(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	instructor := env.createUser(t, "Ina", "ina@test.cc", authz.RoleInstructor)
	std1 := env.createUser(t, "Sam", "sam@test.cc", authz.RoleStudent)
	std2 := env.createUser(t, "Sue", "sue@test.cc", authz.RoleStudent)
	crs := env.createCourse(t, instructor.ID)

	_, err := env.svc.UpdateEnrollment(ctx, crs.ID, course.EnrollmentUpdate{Add: []string{std1.ID, std2.ID}})
	require.NoError(t, err)

	csv, err := env.svc.RosterCSV(ctx, crs.ID)
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Len(t, rows, 2)
	assert.Contains(t, string(csv), "sam@test.cc")
	assert.Contains(t, string(csv), "sue@test.cc")
}

func Test_service_Create_unknownInstructor(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	nc := course.NewCourse{
		Subject:      "CS",
		Number:       "493",
		Title:        "Cloud Application Development",
		Term:         "sp26",
		InstructorID: "nope",
	}
	err := env.svc.CheckInstructorExists(ctx, nc.InstructorID)
	require.Error(t, err)

	vErr, ok := err.(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError; got %T", err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "instructor_id", vErr.Fields[0].Field)
}

func Test_service_Query_pagination(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	instructor := env.createUser(t, "Ina", "ina@test.cc", authz.RoleInstructor)
	for i := 0; i < 3; i++ {
		env.createCourse(t, instructor.ID)
	}

	courses, err := env.svc.Query(ctx, course.QueryFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	courses, err = env.svc.Query(ctx, course.QueryFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, courses, 1)

	courses, err = env.svc.Query(ctx, course.QueryFilter{Term: "nope"}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, courses)
}
