package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/storage/database"
)

type assignmentDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	CourseID  string             `bson:"course_id"`
	Title     string             `bson:"title"`
	Points    int                `bson:"points"`
	Due       time.Time          `bson:"due"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func (d assignmentDoc) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:        d.ID.Hex(),
		CourseID:  d.CourseID,
		Title:     d.Title,
		Points:    d.Points,
		Due:       d.Due,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type submissionDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	AssignmentID string             `bson:"assignment_id"`
	StudentID    string             `bson:"student_id"`
	Timestamp    time.Time          `bson:"timestamp"`
	Grade        *float64           `bson:"grade,omitempty"`
	ContentType  string             `bson:"content_type"`
	Filename     string             `bson:"filename"`
	Status       string             `bson:"status"`
}

func (d submissionDoc) toSubmission() assignment.Submission {
	return assignment.Submission{
		ID:           d.ID.Hex(),
		AssignmentID: d.AssignmentID,
		StudentID:    d.StudentID,
		Timestamp:    d.Timestamp,
		Grade:        d.Grade,
		ContentType:  d.ContentType,
		Filename:     d.Filename,
		Status:       d.Status,
	}
}

type assignmentRepository struct {
	assignments *mongo.Collection
	submissions *mongo.Collection
}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository(db *mongo.Database) assignment.Repository {
	return &assignmentRepository{
		assignments: db.Collection(database.AssignmentsCollection),
		submissions: db.Collection(database.SubmissionsCollection),
	}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	doc := assignmentDoc{
		CourseID:  a.CourseID,
		Title:     a.Title,
		Points:    a.Points,
		Due:       a.Due,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	res, err := repo.assignments.InsertOne(ctx, doc)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	a.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	var doc assignmentDoc
	if err = repo.assignments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "finding assignment by ID")
	}
	return doc.toAssignment(), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	oid, err := primitive.ObjectIDFromHex(a.ID)
	if err != nil {
		return assignment.Assignment{}, assignment.ErrNotFound
	}

	set := bson.M{
		"title":      a.Title,
		"points":     a.Points,
		"due":        a.Due,
		"updated_at": a.UpdatedAt,
	}

	var doc assignmentDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = repo.assignments.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return doc.toAssignment(), nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return assignment.ErrNotFound
	}
	res, err := repo.assignments.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if res.DeletedCount == 0 {
		return assignment.ErrNotFound
	}
	return nil
}

func (repo *assignmentRepository) AssignmentsByCourse(ctx context.Context, courseID string) ([]assignment.Assignment, error) {
	cur, err := repo.assignments.Find(ctx, bson.M{"course_id": courseID}, options.Find().SetSort(bson.D{{Key: "due", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments by course")
	}
	defer func() { _ = cur.Close(ctx) }()

	assignments := make([]assignment.Assignment, 0)
	for cur.Next(ctx) {
		var doc assignmentDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding assignment")
		}
		assignments = append(assignments, doc.toAssignment())
	}
	return assignments, errors.Wrap(cur.Err(), "iterating assignments")
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	doc := submissionDoc{
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		Timestamp:    sub.Timestamp,
		Grade:        sub.Grade,
		ContentType:  sub.ContentType,
		Filename:     sub.Filename,
		Status:       sub.Status,
	}
	res, err := repo.submissions.InsertOne(ctx, doc)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	sub.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return sub, nil
}

func (repo *assignmentRepository) MarkSubmissionCommitted(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return assignment.ErrSubmissionNotFound
	}
	res, err := repo.submissions.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": assignment.SubmissionCommitted}})
	if err != nil {
		return errors.Wrap(err, "committing submission")
	}
	if res.MatchedCount == 0 {
		return assignment.ErrSubmissionNotFound
	}
	return nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}

	var doc submissionDoc
	if err = repo.submissions.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return assignment.Submission{}, assignment.ErrSubmissionNotFound
		}
		return assignment.Submission{}, errors.Wrap(err, "finding submission by ID")
	}
	return doc.toSubmission(), nil
}

func (repo *assignmentRepository) QuerySubmissions(ctx context.Context, assignmentID string, page, perPage int) ([]assignment.Submission, error) {
	filter := bson.M{"assignment_id": assignmentID, "status": assignment.SubmissionCommitted}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cur, err := repo.submissions.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	defer func() { _ = cur.Close(ctx) }()

	subs := make([]assignment.Submission, 0, perPage)
	for cur.Next(ctx) {
		var doc submissionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding submission")
		}
		subs = append(subs, doc.toSubmission())
	}
	return subs, errors.Wrap(cur.Err(), "iterating submissions")
}

func (repo *assignmentRepository) SubmissionIDsByAssignment(ctx context.Context, assignmentID string) ([]string, error) {
	cur, err := repo.submissions.Find(ctx, bson.M{"assignment_id": assignmentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions by assignment")
	}
	defer func() { _ = cur.Close(ctx) }()

	var ids []string
	for cur.Next(ctx) {
		var doc submissionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding submission")
		}
		ids = append(ids, doc.ID.Hex())
	}
	return ids, errors.Wrap(cur.Err(), "iterating submissions")
}

func (repo *assignmentRepository) DeleteSubmissionsByAssignment(ctx context.Context, assignmentID string) error {
	_, err := repo.submissions.DeleteMany(ctx, bson.M{"assignment_id": assignmentID})
	return errors.Wrap(err, "deleting submissions")
}
