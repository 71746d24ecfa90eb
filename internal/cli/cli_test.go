package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jittakal/kafobjectsink/internal/codec"
	"github.com/jittakal/kafobjectsink/internal/config/dto"
	"github.com/jittakal/kafobjectsink/internal/encoder"
	"github.com/jittakal/kafobjectsink/internal/rollover"
	"github.com/jittakal/kafobjectsink/internal/server"
	"github.com/jittakal/kafobjectsink/internal/sink"
	"github.com/jittakal/kafobjectsink/internal/storage"
	"github.com/jittakal/kafobjectsink/internal/template"
	"github.com/jittakal/kafobjectsink/pkg/consumer"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

const fullConfig = `
kafka:
  bootstrap_servers:
    - localhost:9092
  consumer:
    group_id: sink-group
    topics:
      - orders
sink:
  bucket: events
  file:
    prefix: raw/
    compression: gzip
    max_records: 500
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "application.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := BuildCLI("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuildCLI(t *testing.T) {
	cmd := BuildCLI("1.2.3")

	if cmd.Use != "kafobjectsink" {
		t.Errorf("Use = %q, want kafobjectsink", cmd.Use)
	}
	if cmd.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", cmd.Version)
	}

	names := make(map[string]bool)
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
		if c.RunE == nil {
			t.Errorf("command %s should have RunE", c.Name())
		}
	}
	for _, want := range []string{"run", "validate", "render-key"} {
		if !names[want] {
			t.Errorf("missing %q command", want)
		}
	}

	flag := cmd.PersistentFlags().Lookup("config")
	if flag == nil || flag.Shorthand != "c" {
		t.Fatal("root command should have --config/-c")
	}
}

func TestOptions_ConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	if got := (&options{}).configFile(); got != DefaultConfigPath {
		t.Errorf("configFile() = %q, want %q", got, DefaultConfigPath)
	}

	t.Setenv("CONFIG_PATH", "/etc/sink.yaml")
	if got := (&options{}).configFile(); got != "/etc/sink.yaml" {
		t.Errorf("configFile() = %q, want /etc/sink.yaml", got)
	}
	if got := (&options{configPath: "local.yaml"}).configFile(); got != "local.yaml" {
		t.Errorf("configFile() = %q, want local.yaml", got)
	}
}

func TestRenderKey(t *testing.T) {
	path := writeConfig(t, "sink:\n  file:\n    prefix: raw/\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "default template",
			args: []string{"--topic", "orders", "--partition", "3", "--start-offset", "1007"},
			want: "raw/orders-3-1007",
		},
		{
			name: "codec extension",
			args: []string{"--topic", "orders", "--partition", "3", "--start-offset", "1007", "--compression", "gzip"},
			want: "raw/orders-3-1007.gz",
		},
		{
			name: "padded",
			args: []string{"--topic", "orders", "--partition", "3", "--start-offset", "1007",
				"--template", "{{topic}}-{{partition:padding=true}}-{{start_offset:padding=true}}", "--prefix", ""},
			want: "orders-0000000003-00000000000000001007",
		},
		{
			name: "timestamp in zone",
			args: []string{"--topic", "orders", "--partition", "3", "--start-offset", "1007",
				"--template", "{{topic}}/{{timestamp:unit=yyyy}}/{{timestamp:unit=dd}}/{{timestamp:unit=HH}}/{{partition}}-{{start_offset}}",
				"--template-timestamp", "--timezone", "Asia/Tokyo", "--at", "2024-03-09T17:45:00Z"},
			want: "raw/orders/2024/10/02/3-1007",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"render-key", "-c", path}, tt.args...)
			out, err := execute(t, args...)
			if err != nil {
				t.Fatalf("render-key error = %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("render-key = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderKey_Errors(t *testing.T) {
	path := writeConfig(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"missing topic", []string{"--partition", "1"}},
		{"reserved prefix", []string{"--topic", "t", "--prefix", ".well-known/acme-challenge/"}},
		{"unknown codec", []string{"--topic", "t", "--compression", "lz4"}},
		{"timestamp not enabled", []string{"--topic", "t", "--template", "{{topic}}-{{partition}}-{{start_offset}}-{{timestamp:unit=HH}}"}},
		{"bad time", []string{"--topic", "t", "--at", "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"render-key", "-c", path}, tt.args...)
			if _, err := execute(t, args...); err == nil {
				t.Error("render-key should fail")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, fullConfig)

	out, err := execute(t, "validate", "-c", path, "--max-records", "1000")
	if err != nil {
		t.Fatalf("validate error = %v", err)
	}
	for _, want := range []string{"configuration is valid", "gzip", "1000", "raw/", "application default credentials"} {
		if !strings.Contains(out, want) {
			t.Errorf("validate output should contain %q:\n%s", want, out)
		}
	}

	if strings.Contains(out, "warning:") {
		t.Errorf("validate output should carry no warning by default:\n%s", out)
	}

	tsPath := writeConfig(t, fullConfig+"    template_timestamp: true\n    template: \"{{topic}}/{{timestamp:unit=yyyy}}/{{partition}}-{{start_offset}}\"\n")
	out, err = execute(t, "validate", "-c", tsPath)
	if err != nil {
		t.Fatalf("validate with timestamp template error = %v", err)
	}
	if !strings.Contains(out, "warning: sink.file.template_timestamp is enabled") {
		t.Errorf("validate output should warn about template_timestamp:\n%s", out)
	}

	if _, err := execute(t, "validate", "-c", path, "--compression", "lz4"); err == nil {
		t.Error("validate should reject an unknown codec")
	}
	if _, err := execute(t, "validate", "-c", writeConfig(t, "sink:\n  bucket: events\n")); err == nil {
		t.Error("validate should reject a config without kafka settings")
	}
}

type fakeSource struct {
	mu         sync.Mutex
	records    []record.Record
	consumeErr error
	closed     bool
	ready      chan struct{}
	readyOnce  sync.Once
}

func (s *fakeSource) Subscribe(ctx context.Context, topics []string) error { return nil }

func (s *fakeSource) Consume(ctx context.Context, sink consumer.RecordSink) error {
	for _, rec := range s.records {
		if err := sink.Put(ctx, rec); err != nil {
			return err
		}
	}
	s.readyOnce.Do(func() { close(s.ready) })
	if s.consumeErr != nil {
		return s.consumeErr
	}
	<-ctx.Done()
	return nil
}

func (s *fakeSource) Ready() <-chan struct{} { return s.ready }

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSource) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, source *fakeSource) (*app, *storage.MemoryStore) {
	t.Helper()
	c, err := codec.Resolve(codec.None)
	if err != nil {
		t.Fatal(err)
	}
	enc, err := encoder.New(encoder.Options{})
	if err != nil {
		t.Fatal(err)
	}

	store := storage.NewMemoryStore()
	writer := sink.NewObjectWriter(sink.WriterConfig{
		Template: template.MustCompile(template.DefaultTemplate),
		Codec:    c,
		Encoder:  enc,
	}, store, testLogger(), nil)
	task := sink.NewTask(sink.TaskConfig{Policy: rollover.NewPolicy(0)}, writer, testLogger(), nil)

	a := &app{
		cfg: &dto.ApplicationConfig{
			Kafka:    dto.KafkaConfig{Consumer: dto.ConsumerConfig{Topics: []string{"orders"}}},
			Shutdown: dto.ShutdownConfig{GracePeriodSeconds: 5},
		},
		logger: testLogger(),
		source: source,
		task:   task,
		store:  store,
		server: server.NewServer(server.Config{}, server.NewSinkHealth(task, source), nil, testLogger()),
	}
	a.addCleanup("object-store", store.Close)
	a.addCleanup("kafka-consumer", source.Close)
	return a, store
}

func orderRecords(offsets ...int64) []record.Record {
	records := make([]record.Record, len(offsets))
	for i, off := range offsets {
		records[i] = record.Record{Topic: "orders", Partition: 3, Offset: off, Value: []byte("v;")}
	}
	return records
}

func TestApp_RunWritesRemainingBatchesOnShutdown(t *testing.T) {
	source := &fakeSource{records: orderRecords(10, 11, 12), ready: make(chan struct{})}
	a, store := newTestApp(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	select {
	case <-source.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("source did not deliver its records")
	}
	if store.Len() != 0 {
		t.Fatalf("store has %d objects before shutdown, want 0", store.Len())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if keys := store.Keys(); len(keys) != 1 || keys[0] != "orders-3-10" {
		t.Errorf("Keys() = %v, want [orders-3-10]", keys)
	}
	if !a.task.Stopped() {
		t.Error("task should be stopped")
	}
	if !source.IsClosed() {
		t.Error("source should be closed")
	}
}

func TestApp_RunReturnsConsumerFailure(t *testing.T) {
	boom := errors.New("broker unreachable")
	source := &fakeSource{records: orderRecords(1), consumeErr: boom, ready: make(chan struct{})}
	a, store := newTestApp(t, source)

	err := a.run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("run() error = %v, want %v", err, boom)
	}
	if store.Len() != 1 {
		t.Errorf("store has %d objects, want the buffered batch written on shutdown", store.Len())
	}
}

func TestApp_FlushLoop(t *testing.T) {
	source := &fakeSource{ready: make(chan struct{})}
	a, store := newTestApp(t, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, rec := range orderRecords(5, 6) {
		if err := a.task.Put(ctx, rec); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	go a.flushLoop(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if keys := store.Keys(); len(keys) != 1 || keys[0] != "orders-3-5" {
		t.Errorf("Keys() = %v, want [orders-3-5]", keys)
	}
	if off, ok := a.task.Committed(record.TopicPartition{Topic: "orders", Partition: 3}); !ok || off != 6 {
		t.Errorf("Committed() = %d, %v, want 6, true", off, ok)
	}
}
