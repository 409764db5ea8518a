package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tarpaulin/backend/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	crs.ID = uuid.New().String()
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, page, perPage int) ([]course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter.Subject != "" && crs.Subject != filter.Subject {
			continue
		}
		if filter.Number != "" && crs.Number != filter.Number {
			continue
		}
		if filter.Term != "" && crs.Term != filter.Term {
			continue
		}
		courses = append(courses, *crs)
	}
	sort.Slice(courses, func(i, j int) bool {
		if courses[i].Subject != courses[j].Subject {
			return courses[i].Subject < courses[j].Subject
		}
		return courses[i].Number < courses[j].Number
	})

	// paginate
	start := (page - 1) * perPage
	if start >= len(courses) {
		return []course.Course{}, nil
	}
	end := start + perPage
	if end > len(courses) {
		end = len(courses)
	}
	return courses[start:end], nil
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id string) (course.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Subject = crs.Subject
	orig.Number = crs.Number
	orig.Title = crs.Title
	orig.Term = crs.Term
	orig.InstructorID = crs.InstructorID
	orig.UpdatedAt = crs.UpdatedAt
	return *orig, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) CourseIDsByInstructor(_ context.Context, instructorID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids []string
	for _, crs := range repo.db.courses {
		if crs.InstructorID == instructorID {
			ids = append(ids, crs.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *courseRepository) CourseIDsByStudent(_ context.Context, studentID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids []string
	for _, enr := range repo.db.enrollments {
		if enr.StudentID == studentID {
			ids = append(ids, enr.CourseID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *courseRepository) Enroll(_ context.Context, enr course.Enrollment) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	key := enrollmentKey(enr.CourseID, enr.StudentID)
	if _, ok := repo.db.enrollments[key]; ok {
		return nil // already enrolled
	}
	repo.db.enrollments[key] = enr
	return nil
}

func (repo *courseRepository) Unenroll(_ context.Context, courseID, studentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	delete(repo.db.enrollments, enrollmentKey(courseID, studentID))
	return nil
}

func (repo *courseRepository) StudentIDsByCourse(_ context.Context, courseID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	ids := make([]string, 0)
	for key, enr := range repo.db.enrollments {
		if strings.HasPrefix(key, courseID+"/") {
			ids = append(ids, enr.StudentID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	_, ok := repo.db.enrollments[enrollmentKey(courseID, studentID)]
	return ok, nil
}

func (repo *courseRepository) DeleteEnrollmentsByCourse(_ context.Context, courseID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for key := range repo.db.enrollments {
		if strings.HasPrefix(key, courseID+"/") {
			delete(repo.db.enrollments, key)
		}
	}
	return nil
}

// EnrollmentCount reports the number of stored enrollment rows; test helper.
func (repo *courseRepository) EnrollmentCount() int {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return len(repo.db.enrollments)
}
