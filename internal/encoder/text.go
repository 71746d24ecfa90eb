package encoder

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Ensure implementations satisfy interface at compile time.
var (
	_ encoder.Encoder = (*RawEncoder)(nil)
	_ encoder.Encoder = (*CSVEncoder)(nil)
	_ encoder.Encoder = (*JSONLEncoder)(nil)
)

// RawEncoder concatenates record values in offset order.
type RawEncoder struct{}

// NewRawEncoder creates a raw encoder.
func NewRawEncoder() *RawEncoder {
	return &RawEncoder{}
}

// Encode returns the concatenated values.
func (e *RawEncoder) Encode(records []record.Record) ([]byte, error) {
	if err := hasRecords(records); err != nil {
		return nil, err
	}

	size := 0
	for i := range records {
		size += len(records[i].Value)
	}
	out := make([]byte, 0, size)
	for i := range records {
		out = append(out, records[i].Value...)
	}
	return out, nil
}

// Format returns the format.
func (e *RawEncoder) Format() encoder.Format { return encoder.FormatRaw }

// ContentType returns the media type.
func (e *RawEncoder) ContentType() string { return "application/octet-stream" }

// CSVEncoder writes one row per record without a header row.
type CSVEncoder struct {
	fields   []encoder.Field
	encoding encoder.ValueEncoding
}

// NewCSVEncoder creates a CSV encoder for the given columns.
func NewCSVEncoder(fields []encoder.Field, encoding encoder.ValueEncoding) *CSVEncoder {
	return &CSVEncoder{fields: fields, encoding: encoding}
}

// Encode writes the records as CSV rows.
func (e *CSVEncoder) Encode(records []record.Record) ([]byte, error) {
	if err := hasRecords(records); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	row := make([]string, len(e.fields))
	for i := range records {
		for j, f := range e.fields {
			row[j] = e.cell(&records[i], f)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row for offset %d: %w", records[i].Offset, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (e *CSVEncoder) cell(rec *record.Record, f encoder.Field) string {
	switch f {
	case encoder.FieldKey:
		return encodeBytes(rec.Key, e.encoding)
	case encoder.FieldValue:
		return encodeBytes(rec.Value, e.encoding)
	case encoder.FieldOffset:
		return strconv.FormatInt(rec.Offset, 10)
	case encoder.FieldTimestamp:
		return strconv.FormatInt(rec.Timestamp.UnixMilli(), 10)
	case encoder.FieldHeaders:
		parts := make([]string, len(rec.Headers))
		for i, h := range rec.Headers {
			parts[i] = h.Key + ":" + encodeBytes(h.Value, e.encoding)
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

// Format returns the format.
func (e *CSVEncoder) Format() encoder.Format { return encoder.FormatCSV }

// ContentType returns the media type.
func (e *CSVEncoder) ContentType() string { return "text/csv" }

// JSONLEncoder writes one JSON object per line, keys in field order.
type JSONLEncoder struct {
	fields   []encoder.Field
	encoding encoder.ValueEncoding
}

// NewJSONLEncoder creates a JSON lines encoder.
func NewJSONLEncoder(fields []encoder.Field, encoding encoder.ValueEncoding) *JSONLEncoder {
	return &JSONLEncoder{fields: fields, encoding: encoding}
}

type jsonHeader struct {
	Key   string  `json:"key"`
	Value *string `json:"value"`
}

// Encode writes the records as JSON lines.
func (e *JSONLEncoder) Encode(records []record.Record) ([]byte, error) {
	if err := hasRecords(records); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for i := range records {
		buf.WriteByte('{')
		for j, f := range e.fields {
			if j > 0 {
				buf.WriteByte(',')
			}
			v, err := json.Marshal(e.value(&records[i], f))
			if err != nil {
				return nil, fmt.Errorf("failed to marshal %s for offset %d: %w", f, records[i].Offset, err)
			}
			buf.WriteString(strconv.Quote(string(f)))
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteString("}\n")
	}
	return buf.Bytes(), nil
}

func (e *JSONLEncoder) value(rec *record.Record, f encoder.Field) any {
	switch f {
	case encoder.FieldKey:
		return e.nullable(rec.Key)
	case encoder.FieldValue:
		return e.nullable(rec.Value)
	case encoder.FieldOffset:
		return rec.Offset
	case encoder.FieldTimestamp:
		return rec.Timestamp.UnixMilli()
	case encoder.FieldHeaders:
		headers := make([]jsonHeader, len(rec.Headers))
		for i, h := range rec.Headers {
			headers[i] = jsonHeader{Key: h.Key, Value: e.nullable(h.Value)}
		}
		return headers
	default:
		return nil
	}
}

func (e *JSONLEncoder) nullable(b []byte) *string {
	if b == nil {
		return nil
	}
	s := encodeBytes(b, e.encoding)
	return &s
}

// Format returns the format.
func (e *JSONLEncoder) Format() encoder.Format { return encoder.FormatJSONL }

// ContentType returns the media type.
func (e *JSONLEncoder) ContentType() string { return "application/x-ndjson" }

func encodeBytes(b []byte, encoding encoder.ValueEncoding) string {
	if encoding == encoder.EncodingNone {
		return string(b)
	}
	return base64.StdEncoding.EncodeToString(b)
}
