package inmemdb

import (
	"sync"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/core/user"
)

// DB is a mutex-guarded in-memory database for tests and local development.
type DB struct {
	mutex       sync.RWMutex
	users       map[string]*user.User
	courses     map[string]*course.Course
	enrollments map[string]course.Enrollment // key: courseID + "/" + studentID
	assignments map[string]*assignment.Assignment
	submissions map[string]*assignment.Submission
}

func NewDB() *DB {
	db := new(DB)
	db.Reset()
	return db
}

func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.courses = make(map[string]*course.Course)
	db.enrollments = make(map[string]course.Enrollment)
	db.assignments = make(map[string]*assignment.Assignment)
	db.submissions = make(map[string]*assignment.Submission)
}

func enrollmentKey(courseID, studentID string) string {
	return courseID + "/" + studentID
}
