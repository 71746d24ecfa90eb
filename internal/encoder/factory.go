package encoder

import (
	"fmt"
	"strings"

	"github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Options selects and configures a record-set encoder.
type Options struct {
	Format        encoder.Format
	Fields        []encoder.Field
	ValueEncoding encoder.ValueEncoding

	// AvroCodec is the OCF block codec: null, deflate or snappy.
	AvroCodec string
	// ParquetCompression is the column compression: uncompressed, snappy, gzip, lz4 or zstd.
	ParquetCompression string
}

// DefaultFields is the field list used when none is configured.
var DefaultFields = []encoder.Field{encoder.FieldValue}

// New creates an encoder for the configured format.
func New(opts Options) (encoder.Encoder, error) {
	if opts.Format == "" {
		opts.Format = encoder.FormatRaw
	}
	if len(opts.Fields) == 0 {
		opts.Fields = DefaultFields
	}
	if opts.ValueEncoding == "" {
		opts.ValueEncoding = encoder.EncodingBase64
	}
	if _, err := ParseValueEncoding(string(opts.ValueEncoding)); err != nil {
		return nil, err
	}
	for _, f := range opts.Fields {
		if _, err := ParseField(string(f)); err != nil {
			return nil, err
		}
	}

	switch opts.Format {
	case encoder.FormatRaw:
		return NewRawEncoder(), nil
	case encoder.FormatCSV:
		return NewCSVEncoder(opts.Fields, opts.ValueEncoding), nil
	case encoder.FormatJSONL:
		return NewJSONLEncoder(opts.Fields, opts.ValueEncoding), nil
	case encoder.FormatAvro:
		return NewAvroEncoder(opts.Fields, opts.AvroCodec)
	case encoder.FormatParquet:
		return NewParquetEncoder(opts.Fields, opts.ParquetCompression), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnsupportedFormat, opts.Format)
	}
}

// SupportedFormats returns a list of supported formats.
func SupportedFormats() []encoder.Format {
	return []encoder.Format{
		encoder.FormatRaw,
		encoder.FormatCSV,
		encoder.FormatJSONL,
		encoder.FormatAvro,
		encoder.FormatParquet,
	}
}

// SupportedFields returns the fields structured formats can write.
func SupportedFields() []encoder.Field {
	return []encoder.Field{
		encoder.FieldKey,
		encoder.FieldValue,
		encoder.FieldOffset,
		encoder.FieldTimestamp,
		encoder.FieldHeaders,
	}
}

// ParseFormat resolves a format name.
func ParseFormat(name string) (encoder.Format, error) {
	for _, f := range SupportedFormats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnsupportedFormat, name)
}

// ParseField resolves a field name.
func ParseField(name string) (encoder.Field, error) {
	for _, f := range SupportedFields() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", errors.ErrUnsupportedOutputField, name)
}

// ParseFields resolves a field list, rejecting duplicates.
func ParseFields(names []string) ([]encoder.Field, error) {
	fields := make([]encoder.Field, 0, len(names))
	seen := make(map[encoder.Field]bool, len(names))
	for _, name := range names {
		f, err := ParseField(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		if seen[f] {
			return nil, fmt.Errorf("%w: %q listed twice", errors.ErrUnsupportedOutputField, name)
		}
		seen[f] = true
		fields = append(fields, f)
	}
	return fields, nil
}

// ParseValueEncoding resolves a value encoding name.
func ParseValueEncoding(name string) (encoder.ValueEncoding, error) {
	switch encoder.ValueEncoding(name) {
	case encoder.EncodingBase64, encoder.EncodingNone:
		return encoder.ValueEncoding(name), nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnsupportedEncodingType, name)
	}
}

// hasRecords rejects empty input; the sink never writes an empty object.
func hasRecords(records []record.Record) error {
	if len(records) == 0 {
		return fmt.Errorf("no records to encode")
	}
	return nil
}
