// Package encoder defines interfaces for encoding a closed batch into the
// bytes of one object.
package encoder

import "github.com/jittakal/kafobjectsink/pkg/record"

// Format identifies an object body layout.
type Format string

const (
	FormatRaw     Format = "raw"
	FormatCSV     Format = "csv"
	FormatJSONL   Format = "jsonl"
	FormatAvro    Format = "avro"
	FormatParquet Format = "parquet"
)

// Field is a record attribute written by the structured formats.
type Field string

const (
	FieldKey       Field = "key"
	FieldValue     Field = "value"
	FieldOffset    Field = "offset"
	FieldTimestamp Field = "timestamp"
	FieldHeaders   Field = "headers"
)

// ValueEncoding controls how binary keys and values appear in text formats.
type ValueEncoding string

const (
	EncodingBase64 ValueEncoding = "base64"
	EncodingNone   ValueEncoding = "none"
)

// Encoder turns the records of one batch, in offset order, into an object body.
type Encoder interface {
	// Encode returns the uncompressed object body.
	Encode(records []record.Record) ([]byte, error)

	// Format returns the format this encoder produces.
	Format() Format

	// ContentType returns the media type of the encoded body.
	ContentType() string
}
