package codec

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name           string
		codec          string
		wantExtension  string
		wantContentEnc string
	}{
		{"none", None, "", ""},
		{"gzip", Gzip, ".gz", "gzip"},
		{"snappy", Snappy, ".snappy", "x-snappy-framed"},
		{"zstd", Zstd, ".zst", "zstd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Resolve(tt.codec)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.codec, err)
			}
			if c.Name() != tt.codec {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.codec)
			}
			if c.Extension() != tt.wantExtension {
				t.Errorf("Extension() = %q, want %q", c.Extension(), tt.wantExtension)
			}
			if c.ContentEncoding() != tt.wantContentEnc {
				t.Errorf("ContentEncoding() = %q, want %q", c.ContentEncoding(), tt.wantContentEnc)
			}
		})
	}
}

func TestResolve_Unsupported(t *testing.T) {
	for _, name := range []string{"", "GZIP", "Gzip", "lz4", "brotli", " gzip"} {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(name)
			if !errors.Is(err, apperrors.ErrUnsupportedCodec) {
				t.Errorf("Resolve(%q) error = %v, want ErrUnsupportedCodec", name, err)
			}
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	random := make([]byte, 64*1024)
	rng.Read(random)

	payloads := map[string][]byte{
		"empty":      {},
		"short text": []byte("hello, object store"),
		"repetitive": bytes.Repeat([]byte("abc123"), 10000),
		"random":     random,
	}

	for _, name := range Names() {
		c, err := Resolve(name)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", name, err)
		}
		for pname, payload := range payloads {
			t.Run(name+"/"+pname, func(t *testing.T) {
				encoded, err := c.Encode(payload)
				if err != nil {
					t.Fatalf("Encode() error = %v", err)
				}
				decoded, err := c.Decode(encoded)
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
				if !bytes.Equal(decoded, payload) {
					t.Errorf("round trip mismatch: got %d bytes, want %d", len(decoded), len(payload))
				}
			})
		}
	}
}

func TestNone_IsIdentity(t *testing.T) {
	c, _ := Resolve(None)
	in := []byte("raw batch bytes")

	first, _ := c.Encode(in)
	second, _ := c.Encode(in)
	if !bytes.Equal(first, in) || !bytes.Equal(second, first) {
		t.Error("none codec should return its input unchanged")
	}

	first[0] = 'X'
	if in[0] == 'X' {
		t.Error("none codec should not alias its input")
	}
}

func TestCodec_SelfDescribingHeaders(t *testing.T) {
	data := []byte("header check")

	tests := []struct {
		name   string
		codec  string
		prefix []byte
	}{
		{"gzip magic", Gzip, []byte{0x1f, 0x8b}},
		{"snappy stream identifier", Snappy, []byte{0xff, 0x06, 0x00, 0x00, 's', 'N', 'a', 'P', 'p', 'Y'}},
		{"zstd magic", Zstd, []byte{0x28, 0xb5, 0x2f, 0xfd}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := Resolve(tt.codec)
			encoded, err := c.Encode(data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if !bytes.HasPrefix(encoded, tt.prefix) {
				t.Errorf("encoded stream starts with %x, want prefix %x", encoded[:len(tt.prefix)], tt.prefix)
			}
		})
	}
}

func TestDecode_Corrupt(t *testing.T) {
	for _, name := range []string{Gzip, Snappy, Zstd} {
		t.Run(name, func(t *testing.T) {
			c, _ := Resolve(name)
			if _, err := c.Decode([]byte("definitely not compressed")); err == nil {
				t.Error("Decode() expected error for corrupt input")
			}
		})
	}
}
