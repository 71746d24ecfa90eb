package encoder

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jittakal/kafobjectsink/pkg/encoder"
	"github.com/jittakal/kafobjectsink/pkg/record"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// RecordParquet is the Parquet row layout. Columns for fields that are not
// selected are written as nulls or empty lists.
type RecordParquet struct {
	Key       []byte          `parquet:"key,optional"`
	Value     []byte          `parquet:"value,optional"`
	Offset    *int64          `parquet:"offset,optional"`
	Timestamp *time.Time      `parquet:"timestamp,timestamp(millisecond),optional"`
	Headers   []HeaderParquet `parquet:"headers,list"`
}

// HeaderParquet is one element of the headers list column.
type HeaderParquet struct {
	Key   string `parquet:"key"`
	Value []byte `parquet:"value,optional"`
}

// ParquetEncoder writes a batch as a single Parquet file.
type ParquetEncoder struct {
	fields          []encoder.Field
	compressionName string
}

// NewParquetEncoder creates a Parquet encoder with the given column compression.
func NewParquetEncoder(fields []encoder.Field, compression string) *ParquetEncoder {
	return &ParquetEncoder{
		fields:          fields,
		compressionName: compression,
	}
}

// compressionCodec converts a compression name to a parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	default:
		// The object codec compresses the whole file.
		return parquet.Compression(&parquet.Uncompressed)
	}
}

// Encode writes the records to an in-memory Parquet file.
func (e *ParquetEncoder) Encode(records []record.Record) ([]byte, error) {
	if err := hasRecords(records); err != nil {
		return nil, err
	}

	rows := make([]RecordParquet, len(records))
	for i := range records {
		rows[i] = e.convertToParquetRecord(&records[i])
	}

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[RecordParquet](
		&buf,
		compressionCodec(e.compressionName),
		parquet.CreatedBy("kafobjectsink", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

func (e *ParquetEncoder) convertToParquetRecord(rec *record.Record) RecordParquet {
	var row RecordParquet
	for _, f := range e.fields {
		switch f {
		case encoder.FieldKey:
			row.Key = rec.Key
		case encoder.FieldValue:
			row.Value = rec.Value
		case encoder.FieldOffset:
			offset := rec.Offset
			row.Offset = &offset
		case encoder.FieldTimestamp:
			ts := rec.Timestamp
			row.Timestamp = &ts
		case encoder.FieldHeaders:
			row.Headers = make([]HeaderParquet, len(rec.Headers))
			for i, h := range rec.Headers {
				row.Headers[i] = HeaderParquet{Key: h.Key, Value: h.Value}
			}
		}
	}
	return row
}

// Format returns the format.
func (e *ParquetEncoder) Format() encoder.Format { return encoder.FormatParquet }

// ContentType returns the media type.
func (e *ParquetEncoder) ContentType() string { return "application/vnd.apache.parquet" }
