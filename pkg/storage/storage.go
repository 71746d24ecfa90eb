// Package storage defines the object store primitive the sink writes through.
//
// An object store accepts whole objects under deterministic keys. Writing the
// same key twice replaces the object, which makes retried uploads idempotent.
package storage

import "context"

// EncodedPayload is the body of one object plus the hints needed to upload it.
type EncodedPayload struct {
	Body []byte

	// Codec is the compression codec name, Extension its key suffix.
	Codec     string
	Extension string

	// ContentEncoding and ContentType are set on the uploaded object when non-empty.
	ContentEncoding string
	ContentType     string

	// Metadata is attached to the object as user metadata.
	Metadata map[string]string
}

// Size returns the number of body bytes.
func (p EncodedPayload) Size() int {
	return len(p.Body)
}

// ObjectStore uploads objects.
type ObjectStore interface {
	// Put writes the payload under key, replacing any existing object.
	Put(ctx context.Context, key string, payload EncodedPayload) error

	// Close releases the store's resources.
	Close() error
}
