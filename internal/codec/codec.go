// Package codec implements the compression codec registry used to encode a
// closed batch before upload.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jittakal/kafobjectsink/internal/errors"
	pkgcodec "github.com/jittakal/kafobjectsink/pkg/codec"
)

// Registered codec names. Names are matched case-sensitively.
const (
	None   = "none"
	Gzip   = "gzip"
	Snappy = "snappy"
	Zstd   = "zstd"
)

// Ensure implementations satisfy the interface at compile time.
var (
	_ pkgcodec.Codec = noneCodec{}
	_ pkgcodec.Codec = gzipCodec{}
	_ pkgcodec.Codec = snappyCodec{}
	_ pkgcodec.Codec = (*zstdCodec)(nil)
)

var registry = map[string]func() pkgcodec.Codec{
	None:   func() pkgcodec.Codec { return noneCodec{} },
	Gzip:   func() pkgcodec.Codec { return gzipCodec{} },
	Snappy: func() pkgcodec.Codec { return snappyCodec{} },
	Zstd:   func() pkgcodec.Codec { return &zstdCodec{} },
}

// Names returns the registered codec names in a stable order.
func Names() []string {
	return []string{None, Gzip, Snappy, Zstd}
}

// Resolve returns the codec registered under name.
func Resolve(name string) (pkgcodec.Codec, error) {
	newCodec, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported values are: %s)",
			errors.ErrUnsupportedCodec, name, strings.Join(Names(), ", "))
	}
	return newCodec(), nil
}

// noneCodec passes bytes through unchanged.
type noneCodec struct{}

func (noneCodec) Name() string            { return None }
func (noneCodec) Extension() string       { return "" }
func (noneCodec) ContentEncoding() string { return "" }

func (noneCodec) Encode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCodec) Decode(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// gzipCodec produces a standard gzip member.
type gzipCodec struct{}

func (gzipCodec) Name() string            { return Gzip }
func (gzipCodec) Extension() string       { return ".gz" }
func (gzipCodec) ContentEncoding() string { return "gzip" }

func (gzipCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write gzip stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decode(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip stream: %w", err)
	}
	return out, nil
}

// snappyCodec uses the snappy framing format, which carries its own stream
// identifier and checksums.
type snappyCodec struct{}

func (snappyCodec) Name() string            { return Snappy }
func (snappyCodec) Extension() string       { return ".snappy" }
func (snappyCodec) ContentEncoding() string { return "x-snappy-framed" }

func (snappyCodec) Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := snappy.NewBufferedWriter(&buf)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to write snappy stream: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close snappy writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (snappyCodec) Decode(data []byte) ([]byte, error) {
	out, err := io.ReadAll(snappy.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to read snappy stream: %w", err)
	}
	return out, nil
}

// zstdCodec produces a single zstd frame with the content size in its header.
type zstdCodec struct{}

func (*zstdCodec) Name() string            { return Zstd }
func (*zstdCodec) Extension() string       { return ".zst" }
func (*zstdCodec) ContentEncoding() string { return "zstd" }

func (*zstdCodec) Encode(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1), zstd.WithZeroFrames(true))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func (*zstdCodec) Decode(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode zstd frame: %w", err)
	}
	return out, nil
}
