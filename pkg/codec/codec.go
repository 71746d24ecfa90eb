// Package codec defines the compression codec interface applied to encoded batches.
package codec

// Codec compresses a whole encoded batch.
type Codec interface {
	// Name returns the registered identifier (e.g., "gzip").
	Name() string

	// Extension returns the suffix appended to object keys (e.g., ".gz").
	// The identity codec returns "".
	Extension() string

	// ContentEncoding returns the content-encoding hint passed to the object store.
	ContentEncoding() string

	// Encode compresses data. The output is self-describing for every codec
	// except the identity codec.
	Encode(data []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(data []byte) ([]byte, error)
}
