package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.ObjectStore = (*MemoryStore)(nil)

// MemoryStore keeps objects in memory. It backs dry runs and tests, and can
// be told to fail upcoming puts.
type MemoryStore struct {
	objects  map[string]pkgstorage.EncodedPayload
	puts     []string
	failures []error
	closed   bool
	mu       sync.Mutex
}

// NewMemoryStore creates an empty in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]pkgstorage.EncodedPayload)}
}

// Put stores a copy of the payload under key.
func (s *MemoryStore) Put(ctx context.Context, key string, payload pkgstorage.EncodedPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return putError(key, errors.ErrWriterClosed)
	}
	if err := ctx.Err(); err != nil {
		return putError(key, err)
	}
	s.puts = append(s.puts, key)

	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return putError(key, err)
	}

	stored := payload
	stored.Body = append([]byte(nil), payload.Body...)
	if payload.Metadata != nil {
		stored.Metadata = make(map[string]string, len(payload.Metadata))
		for k, v := range payload.Metadata {
			stored.Metadata[k] = v
		}
	}
	s.objects[key] = stored
	return nil
}

// FailNext makes the next len(errs) puts fail with the given errors, in order.
func (s *MemoryStore) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

// Get returns the stored object for key.
func (s *MemoryStore) Get(key string) (pkgstorage.EncodedPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.objects[key]
	return p, ok
}

// Keys returns the stored keys in lexical order.
func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Puts returns every key passed to Put, including failed attempts, in call order.
func (s *MemoryStore) Puts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.puts...)
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
