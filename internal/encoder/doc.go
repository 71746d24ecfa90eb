// Package encoder turns closed batches into object bodies.
//
// # Formats
//
//   - raw: record values concatenated in offset order, nothing else
//   - csv: one row per record, columns in the configured field order
//   - jsonl: one JSON object per line
//   - avro: Avro object container file with a schema derived from the fields
//   - parquet: Parquet file with one row per record
//
// The raw format ignores the field list. The value encoding (base64 or none)
// only applies to text formats; avro and parquet store bytes natively.
//
// Compression of the whole object is applied afterwards by the codec layer, so
// the avro and parquet encoders default to no internal compression.
//
//	enc, err := encoder.New(encoder.Options{
//	    Format: pkgencoder.FormatJSONL,
//	    Fields: []pkgencoder.Field{pkgencoder.FieldOffset, pkgencoder.FieldValue},
//	})
//	body, err := enc.Encode(batch.Records)
//
// Encoders hold no per-call state and are safe for concurrent use.
package encoder
