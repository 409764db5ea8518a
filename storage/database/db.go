package database

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarpaulin/backend/core"
)

// Collections
const (
	UsersCollection       = "users"
	CoursesCollection     = "courses"
	EnrollmentsCollection = "enrollments"
	AssignmentsCollection = "assignments"
	SubmissionsCollection = "submissions"

	// SubmissionsBucket holds submission file content (GridFS).
	SubmissionsBucket = "submission_files"
)

func uri(conf *core.Config) string {
	u := url.URL{
		Scheme: "mongodb",
		Host:   fmt.Sprintf("%s:%d", conf.Database.Host, conf.Database.Port),
	}
	if conf.Database.User != "" {
		u.User = url.UserPassword(conf.Database.User, conf.Database.Password)
		q := make(url.Values)
		q.Set("authSource", conf.Database.AuthSource)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Open connects to the configured MongoDB deployment and returns a handle on
// the application database.
func Open(ctx context.Context, conf *core.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri(conf)))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to mongo")
	}
	if err = ping(ctx, client); err != nil {
		return nil, err
	}
	return client.Database(conf.Database.Name), nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(ctx context.Context, client *mongo.Client) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = client.Ping(ctx, nil)
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func Close(ctx context.Context, db *mongo.Database) error {
	return db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the app relies on. The compound unique
// index on (course_id, student_id) is what makes enrollment idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)

	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return errors.Wrap(err, "creating users.email index")
	}

	_, err = db.Collection(EnrollmentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "course_id", Value: 1}, {Key: "student_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return errors.Wrap(err, "creating enrollments compound index")
	}

	_, err = db.Collection(CoursesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "instructor_id", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "creating courses.instructor_id index")
	}

	_, err = db.Collection(AssignmentsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "course_id", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "creating assignments.course_id index")
	}

	_, err = db.Collection(SubmissionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "assignment_id", Value: 1}},
	})
	return errors.Wrap(err, "creating submissions.assignment_id index")
}
