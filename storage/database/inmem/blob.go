package inmemdb

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"

	"github.com/tarpaulin/backend/core/assignment"
)

type blobEntry struct {
	content     []byte
	contentType string
	filename    string
}

// BlobStore is an in-memory assignment.BlobStore for tests and local dev.
type BlobStore struct {
	mutex sync.RWMutex
	blobs map[string]blobEntry
}

var _ assignment.BlobStore = (*BlobStore)(nil)

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]blobEntry)}
}

func (s *BlobStore) Store(_ context.Context, id, contentType, filename string, r io.Reader) error {
	content, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading blob content")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.blobs[id] = blobEntry{content: content, contentType: contentType, filename: filename}
	return nil
}

func (s *BlobStore) Exists(_ context.Context, id string) (bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.blobs[id]
	return ok, nil
}

func (s *BlobStore) Open(_ context.Context, id string) (io.ReadCloser, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entry, ok := s.blobs[id]
	if !ok {
		return nil, assignment.ErrSubmissionNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(entry.content)), nil
}

func (s *BlobStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.blobs, id)
	return nil
}
