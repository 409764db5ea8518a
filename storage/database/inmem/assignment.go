package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/tarpaulin/backend/core/assignment"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	a.ID = uuid.New().String()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	orig.Title = a.Title
	orig.Points = a.Points
	orig.Due = a.Due
	orig.UpdatedAt = a.UpdatedAt
	return *orig, nil
}

func (repo *assignmentRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return assignment.ErrNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}

func (repo *assignmentRepository) AssignmentsByCourse(_ context.Context, courseID string) ([]assignment.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.CourseID == courseID {
			assignments = append(assignments, *a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].Due.Before(assignments[j].Due) })
	return assignments, nil
}

func (repo *assignmentRepository) CreateSubmission(_ context.Context, sub assignment.Submission) (assignment.Submission, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub.ID = uuid.New().String()
	repo.db.submissions[sub.ID] = &sub
	return sub, nil
}

func (repo *assignmentRepository) MarkSubmissionCommitted(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	sub, ok := repo.db.submissions[id]
	if !ok {
		return assignment.ErrSubmissionNotFound
	}
	sub.Status = assignment.SubmissionCommitted
	return nil
}

func (repo *assignmentRepository) GetSubmissionByID(_ context.Context, id string) (assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return *sub, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) QuerySubmissions(_ context.Context, assignmentID string, page, perPage int) ([]assignment.Submission, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subs := make([]assignment.Submission, 0)
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID && sub.Status == assignment.SubmissionCommitted {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Timestamp.Before(subs[j].Timestamp) })

	start := (page - 1) * perPage
	if start >= len(subs) {
		return []assignment.Submission{}, nil
	}
	end := start + perPage
	if end > len(subs) {
		end = len(subs)
	}
	return subs[start:end], nil
}

func (repo *assignmentRepository) SubmissionIDsByAssignment(_ context.Context, assignmentID string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var ids []string
	for _, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			ids = append(ids, sub.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (repo *assignmentRepository) DeleteSubmissionsByAssignment(_ context.Context, assignmentID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, sub := range repo.db.submissions {
		if sub.AssignmentID == assignmentID {
			delete(repo.db.submissions, id)
		}
	}
	return nil
}
