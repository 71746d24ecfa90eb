package encoder

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/jittakal/kafobjectsink/pkg/record"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder writes a batch as an Avro object container file. The schema is
// derived from the configured fields and embedded in the file header.
type AvroEncoder struct {
	codec       *goavro.Codec
	fields      []encoder.Field
	compression string
}

// NewAvroEncoder creates an Avro encoder. compression is the OCF block codec
// (null, deflate or snappy); empty means null.
func NewAvroEncoder(fields []encoder.Field, compression string) (*AvroEncoder, error) {
	if compression == "" {
		compression = goavro.CompressionNullLabel
	}
	switch compression {
	case goavro.CompressionNullLabel, goavro.CompressionDeflateLabel, goavro.CompressionSnappyLabel:
	default:
		return nil, fmt.Errorf("unsupported avro codec: %s", compression)
	}

	schema, err := avroSchema(fields)
	if err != nil {
		return nil, err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		fields:      fields,
		compression: compression,
	}, nil
}

// avroSchema returns the record schema for the selected fields.
func avroSchema(fields []encoder.Field) (string, error) {
	nullableBytes := []any{"null", "bytes"}

	avroFields := make([]map[string]any, 0, len(fields))
	for _, f := range fields {
		switch f {
		case encoder.FieldKey, encoder.FieldValue:
			avroFields = append(avroFields, map[string]any{"name": string(f), "type": nullableBytes, "default": nil})
		case encoder.FieldOffset:
			avroFields = append(avroFields, map[string]any{"name": string(f), "type": "long"})
		case encoder.FieldTimestamp:
			avroFields = append(avroFields, map[string]any{"name": string(f), "type": "long"})
		case encoder.FieldHeaders:
			avroFields = append(avroFields, map[string]any{
				"name": string(f),
				"type": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "record",
						"name": "Header",
						"fields": []map[string]any{
							{"name": "key", "type": "string"},
							{"name": "value", "type": nullableBytes, "default": nil},
						},
					},
				},
			})
		default:
			return "", fmt.Errorf("unsupported avro field: %s", f)
		}
	}

	schema, err := json.Marshal(map[string]any{
		"type":      "record",
		"name":      "SinkRecord",
		"namespace": "io.kafobjectsink",
		"fields":    avroFields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build avro schema: %w", err)
	}
	return string(schema), nil
}

// Schema returns the embedded writer schema.
func (e *AvroEncoder) Schema() string {
	return e.codec.Schema()
}

// Encode writes the records to an in-memory object container file.
func (e *AvroEncoder) Encode(records []record.Record) ([]byte, error) {
	if err := hasRecords(records); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           e.codec,
		CompressionName: e.compression,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create OCF writer: %w", err)
	}

	natives := make([]any, len(records))
	for i := range records {
		natives[i] = e.convertToAvroMap(&records[i])
	}
	if err := ocfWriter.Append(natives); err != nil {
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	return buf.Bytes(), nil
}

// convertToAvroMap converts a record to its Avro native representation.
func (e *AvroEncoder) convertToAvroMap(rec *record.Record) map[string]any {
	avroMap := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		switch f {
		case encoder.FieldKey:
			avroMap[string(f)] = avroBytes(rec.Key)
		case encoder.FieldValue:
			avroMap[string(f)] = avroBytes(rec.Value)
		case encoder.FieldOffset:
			avroMap[string(f)] = rec.Offset
		case encoder.FieldTimestamp:
			avroMap[string(f)] = rec.Timestamp.UnixMilli()
		case encoder.FieldHeaders:
			headers := make([]any, len(rec.Headers))
			for i, h := range rec.Headers {
				headers[i] = map[string]any{"key": h.Key, "value": avroBytes(h.Value)}
			}
			avroMap[string(f)] = headers
		}
	}
	return avroMap
}

// avroBytes wraps b for a ["null","bytes"] union.
func avroBytes(b []byte) any {
	if b == nil {
		return nil
	}
	return goavro.Union("bytes", b)
}

// Format returns the format.
func (e *AvroEncoder) Format() encoder.Format { return encoder.FormatAvro }

// ContentType returns the media type.
func (e *AvroEncoder) ContentType() string { return "application/avro" }
