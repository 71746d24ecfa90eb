package encoder

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/linkedin/goavro/v2"
)

func TestNewAvroEncoder(t *testing.T) {
	tests := []struct {
		name        string
		compression string
		wantErr     bool
	}{
		{"default codec", "", false},
		{"null codec", "null", false},
		{"deflate codec", "deflate", false},
		{"snappy codec", "snappy", false},
		{"unsupported codec", "lz4", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewAvroEncoder(SupportedFields(), tt.compression)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewAvroEncoder() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && enc == nil {
				t.Error("expected non-nil encoder")
			}
		})
	}
}

func TestAvroEncoder_Schema(t *testing.T) {
	enc, err := NewAvroEncoder([]encoder.Field{encoder.FieldOffset, encoder.FieldValue}, "")
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}

	schema := enc.Schema()
	if !strings.Contains(schema, `"offset"`) || !strings.Contains(schema, `"value"`) {
		t.Errorf("schema missing selected fields: %s", schema)
	}
	if strings.Contains(schema, `"headers"`) {
		t.Errorf("schema contains unselected field: %s", schema)
	}
}

func TestAvroEncoder_EncodeAndRead(t *testing.T) {
	records := createTestRecords(3)
	records[2].Key = nil

	for _, compression := range []string{"null", "deflate", "snappy"} {
		t.Run(compression, func(t *testing.T) {
			enc, err := NewAvroEncoder(SupportedFields(), compression)
			if err != nil {
				t.Fatalf("NewAvroEncoder() error = %v", err)
			}

			body, err := enc.Encode(records)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.HasPrefix(body, []byte("Obj\x01")) {
				t.Fatalf("body is not an object container file")
			}

			ocfr, err := goavro.NewOCFReader(bytes.NewReader(body))
			if err != nil {
				t.Fatalf("NewOCFReader() error = %v", err)
			}

			var got []map[string]any
			for ocfr.Scan() {
				datum, err := ocfr.Read()
				if err != nil {
					t.Fatalf("Read() error = %v", err)
				}
				got = append(got, datum.(map[string]any))
			}
			if err := ocfr.Err(); err != nil {
				t.Fatalf("reader error = %v", err)
			}

			if len(got) != len(records) {
				t.Fatalf("read %d records, want %d", len(got), len(records))
			}
			for i, datum := range got {
				if datum["offset"].(int64) != records[i].Offset {
					t.Errorf("record %d offset = %v, want %d", i, datum["offset"], records[i].Offset)
				}
				if datum["timestamp"].(int64) != records[i].Timestamp.UnixMilli() {
					t.Errorf("record %d timestamp = %v", i, datum["timestamp"])
				}
				value := datum["value"].(map[string]any)["bytes"].([]byte)
				if string(value) != string(records[i].Value) {
					t.Errorf("record %d value = %q, want %q", i, value, records[i].Value)
				}
				headers := datum["headers"].([]any)
				if len(headers) != 1 {
					t.Errorf("record %d headers = %v", i, headers)
				}
			}
			if got[2]["key"] != nil {
				t.Errorf("null key should read back as nil, got %v", got[2]["key"])
			}
		})
	}
}

func TestAvroEncoder_FormatAndContentType(t *testing.T) {
	enc, err := NewAvroEncoder(DefaultFields, "")
	if err != nil {
		t.Fatalf("NewAvroEncoder() error = %v", err)
	}
	if enc.Format() != encoder.FormatAvro {
		t.Errorf("Format() = %v, want %v", enc.Format(), encoder.FormatAvro)
	}
	if enc.ContentType() != "application/avro" {
		t.Errorf("ContentType() = %v", enc.ContentType())
	}
}
