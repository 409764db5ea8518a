package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarpaulin/backend/core/course"
	"github.com/tarpaulin/backend/storage/database"
)

type courseDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Subject      string             `bson:"subject"`
	Number       string             `bson:"number"`
	Title        string             `bson:"title"`
	Term         string             `bson:"term"`
	InstructorID string             `bson:"instructor_id"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d courseDoc) toCourse() course.Course {
	return course.Course{
		ID:           d.ID.Hex(),
		Subject:      d.Subject,
		Number:       d.Number,
		Title:        d.Title,
		Term:         d.Term,
		InstructorID: d.InstructorID,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

type enrollmentDoc struct {
	CourseID   string    `bson:"course_id"`
	StudentID  string    `bson:"student_id"`
	EnrolledAt time.Time `bson:"enrolled_at"`
}

type courseRepository struct {
	courses     *mongo.Collection
	enrollments *mongo.Collection
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *mongo.Database) course.Repository {
	return &courseRepository{
		courses:     db.Collection(database.CoursesCollection),
		enrollments: db.Collection(database.EnrollmentsCollection),
	}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	doc := courseDoc{
		Subject:      crs.Subject,
		Number:       crs.Number,
		Title:        crs.Title,
		Term:         crs.Term,
		InstructorID: crs.InstructorID,
		CreatedAt:    crs.CreatedAt,
		UpdatedAt:    crs.UpdatedAt,
	}
	res, err := repo.courses.InsertOne(ctx, doc)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = res.InsertedID.(primitive.ObjectID).Hex()
	return crs, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, page, perPage int) ([]course.Course, error) {
	query := bson.M{}
	if filter.Subject != "" {
		query["subject"] = filter.Subject
	}
	if filter.Number != "" {
		query["number"] = filter.Number
	}
	if filter.Term != "" {
		query["term"] = filter.Term
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "subject", Value: 1}, {Key: "number", Value: 1}}).
		SetSkip(int64((page - 1) * perPage)).
		SetLimit(int64(perPage))

	cur, err := repo.courses.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	defer func() { _ = cur.Close(ctx) }()

	courses := make([]course.Course, 0, perPage)
	for cur.Next(ctx) {
		var doc courseDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding course")
		}
		courses = append(courses, doc.toCourse())
	}
	return courses, errors.Wrap(cur.Err(), "iterating courses")
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return course.Course{}, course.ErrNotFound
	}

	var doc courseDoc
	if err = repo.courses.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course by ID")
	}
	return doc.toCourse(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	oid, err := primitive.ObjectIDFromHex(crs.ID)
	if err != nil {
		return course.Course{}, course.ErrNotFound
	}

	set := bson.M{
		"subject":       crs.Subject,
		"number":        crs.Number,
		"title":         crs.Title,
		"term":          crs.Term,
		"instructor_id": crs.InstructorID,
		"updated_at":    crs.UpdatedAt,
	}

	var doc courseDoc
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err = repo.courses.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	return doc.toCourse(), nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return course.ErrNotFound
	}
	res, err := repo.courses.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if res.DeletedCount == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) CourseIDsByInstructor(ctx context.Context, instructorID string) ([]string, error) {
	cur, err := repo.courses.Find(ctx, bson.M{"instructor_id": instructorID})
	if err != nil {
		return nil, errors.Wrap(err, "querying courses by instructor")
	}
	defer func() { _ = cur.Close(ctx) }()

	var ids []string
	for cur.Next(ctx) {
		var doc courseDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding course")
		}
		ids = append(ids, doc.ID.Hex())
	}
	return ids, errors.Wrap(cur.Err(), "iterating courses")
}

func (repo *courseRepository) CourseIDsByStudent(ctx context.Context, studentID string) ([]string, error) {
	cur, err := repo.enrollments.Find(ctx, bson.M{"student_id": studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments by student")
	}
	defer func() { _ = cur.Close(ctx) }()

	var ids []string
	for cur.Next(ctx) {
		var doc enrollmentDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding enrollment")
		}
		ids = append(ids, doc.CourseID)
	}
	return ids, errors.Wrap(cur.Err(), "iterating enrollments")
}

func (repo *courseRepository) Enroll(ctx context.Context, enr course.Enrollment) error {
	filter := bson.M{"course_id": enr.CourseID, "student_id": enr.StudentID}
	update := bson.M{"$setOnInsert": enrollmentDoc{
		CourseID:   enr.CourseID,
		StudentID:  enr.StudentID,
		EnrolledAt: enr.EnrolledAt,
	}}
	// upsert + the unique compound index keeps the pair unique even when
	// two requests race
	_, err := repo.enrollments.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return errors.Wrap(err, "enrolling student")
}

func (repo *courseRepository) Unenroll(ctx context.Context, courseID, studentID string) error {
	_, err := repo.enrollments.DeleteOne(ctx, bson.M{"course_id": courseID, "student_id": studentID})
	return errors.Wrap(err, "unenrolling student")
}

func (repo *courseRepository) StudentIDsByCourse(ctx context.Context, courseID string) ([]string, error) {
	cur, err := repo.enrollments.Find(ctx, bson.M{"course_id": courseID})
	if err != nil {
		return nil, errors.Wrap(err, "querying enrollments by course")
	}
	defer func() { _ = cur.Close(ctx) }()

	ids := make([]string, 0)
	for cur.Next(ctx) {
		var doc enrollmentDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding enrollment")
		}
		ids = append(ids, doc.StudentID)
	}
	return ids, errors.Wrap(cur.Err(), "iterating enrollments")
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	n, err := repo.enrollments.CountDocuments(ctx, bson.M{"course_id": courseID, "student_id": studentID})
	if err != nil {
		return false, errors.Wrap(err, "counting enrollments")
	}
	return n > 0, nil
}

func (repo *courseRepository) DeleteEnrollmentsByCourse(ctx context.Context, courseID string) error {
	_, err := repo.enrollments.DeleteMany(ctx, bson.M{"course_id": courseID})
	return errors.Wrap(err, "deleting enrollments")
}
