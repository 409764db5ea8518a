package blob

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tarpaulin/backend/core/assignment"
	"github.com/tarpaulin/backend/storage/database"
)

// gridFSStore keeps submission file content in a GridFS bucket, addressed
// by the Submission's id.
type gridFSStore struct {
	bucket *gridfs.Bucket
}

var _ assignment.BlobStore = (*gridFSStore)(nil)

func NewGridFSStore(db *mongo.Database) (assignment.BlobStore, error) {
	bucket, err := gridfs.NewBucket(db, options.GridFSBucket().SetName(database.SubmissionsBucket))
	if err != nil {
		return nil, errors.Wrap(err, "creating GridFS bucket")
	}
	return &gridFSStore{bucket: bucket}, nil
}

// applyDeadline forwards the context deadline to the bucket; the v1 GridFS
// API does not take a context per call.
func (s *gridFSStore) applyDeadline(ctx context.Context) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.bucket.SetReadDeadline(deadline)
		_ = s.bucket.SetWriteDeadline(deadline)
	}
}

func (s *gridFSStore) Store(ctx context.Context, id, contentType, filename string, r io.Reader) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Wrap(err, "parsing blob ID")
	}
	s.applyDeadline(ctx)

	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	if err = s.bucket.UploadFromStreamWithID(oid, filename, r, opts); err != nil {
		return errors.Wrap(err, "uploading blob")
	}
	return nil
}

func (s *gridFSStore) Exists(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}
	s.applyDeadline(ctx)

	cur, err := s.bucket.Find(bson.M{"_id": oid}, options.GridFSFind().SetLimit(1))
	if err != nil {
		return false, errors.Wrap(err, "finding blob")
	}
	defer func() { _ = cur.Close(ctx) }()
	return cur.Next(ctx), nil
}

func (s *gridFSStore) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, assignment.ErrSubmissionNotFound
	}
	s.applyDeadline(ctx)

	stream, err := s.bucket.OpenDownloadStream(oid)
	if err != nil {
		if err == gridfs.ErrFileNotFound {
			return nil, assignment.ErrSubmissionNotFound
		}
		return nil, errors.Wrap(err, "opening blob stream")
	}
	return stream, nil
}

func (s *gridFSStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	s.applyDeadline(ctx)

	if err = s.bucket.Delete(oid); err != nil && err != gridfs.ErrFileNotFound {
		return errors.Wrap(err, "deleting blob")
	}
	return nil
}
