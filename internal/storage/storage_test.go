package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	pkgstorage "github.com/jittakal/kafobjectsink/pkg/storage"
)

type mockMetrics struct {
	mu        sync.Mutex
	errors    map[string]int
	durations map[string]int
}

func newMockMetrics() *mockMetrics {
	return &mockMetrics{errors: map[string]int{}, durations: map[string]int{}}
}

func (m *mockMetrics) ObserveUploadDuration(backend string, seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[backend]++
}

func (m *mockMetrics) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[backend+"/"+operation]++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPayload(body string) pkgstorage.EncodedPayload {
	return pkgstorage.EncodedPayload{
		Body:            []byte(body),
		Codec:           "gzip",
		Extension:       ".gz",
		ContentEncoding: "gzip",
		ContentType:     "application/octet-stream",
		Metadata:        map[string]string{"start-offset": "1007"},
	}
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"memory", Config{Backend: BackendMemory}, nil},
		{"file", Config{Backend: BackendFile, File: FileConfig{BasePath: t.TempDir()}}, nil},
		{"unknown", Config{Backend: "ftp"}, apperrors.ErrUnsupportedBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := New(ctx, tt.cfg, testLogger(), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer store.Close()
		})
	}
}

func TestBackends(t *testing.T) {
	want := map[string]bool{"gcs": true, "s3": true, "azure": true, "file": true, "memory": true}
	got := Backends()
	if len(got) != len(want) {
		t.Fatalf("Backends() = %v", got)
	}
	for _, b := range got {
		if !want[b] {
			t.Errorf("unexpected backend %q", b)
		}
	}
}

func TestPutError(t *testing.T) {
	base := errors.New("boom")
	err := putError("orders-3-1007", base)

	var storageErr *apperrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("putError should return *StorageError, got %T", err)
	}
	if storageErr.Key != "orders-3-1007" || !errors.Is(err, base) {
		t.Errorf("StorageError = %+v", storageErr)
	}
	if !apperrors.IsRetryable(err) {
		t.Error("put errors should be retryable")
	}
}
