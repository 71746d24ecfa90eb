package timestamp

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

func TestParseSource(t *testing.T) {
	tests := []struct {
		in      string
		want    Source
		wantErr bool
	}{
		{"wallclock", SourceWallclock, false},
		{"WALLCLOCK", SourceWallclock, false},
		{"event", SourceEvent, false},
		{"EVENT", SourceEvent, false},
		{" event ", SourceEvent, false},
		{"", "", true},
		{"processing", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSource(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSource(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrInvalidTimestampSource) {
				t.Errorf("ParseSource(%q) error = %v, want ErrInvalidTimestampSource", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseSource(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLoadLocation(t *testing.T) {
	valid := []string{"UTC", "Europe/Berlin", "America/New_York", "Asia/Tokyo"}
	for _, name := range valid {
		if _, err := LoadLocation(name); err != nil {
			t.Errorf("LoadLocation(%q) error = %v", name, err)
		}
	}

	invalid := []string{"", "Mars/Olympus", "UTC+25"}
	for _, name := range invalid {
		if _, err := LoadLocation(name); !errors.Is(err, apperrors.ErrInvalidTimezone) {
			t.Errorf("LoadLocation(%q) error = %v, want ErrInvalidTimezone", name, err)
		}
	}
}

func TestResolver_Resolve(t *testing.T) {
	eventTime := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	closedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	rec := record.Record{Topic: "orders", Offset: 1, Timestamp: eventTime}

	tests := []struct {
		name   string
		source Source
		want   time.Time
	}{
		{"event time", SourceEvent, eventTime},
		{"wallclock", SourceWallclock, closedAt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(tt.source, nil)
			if got := r.Resolve(rec, closedAt); !got.Equal(tt.want) {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_ResolveBatch(t *testing.T) {
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := first.Add(time.Hour)
	closedAt := first.Add(24 * time.Hour)

	batch := record.Batch{
		StartOffset: 10,
		Records: []record.Record{
			{Offset: 10, Timestamp: first},
			{Offset: 11, Timestamp: later},
		},
	}

	event := NewResolver(SourceEvent, nil)
	if got := event.ResolveBatch(batch, closedAt); !got.Equal(first) {
		t.Errorf("event ResolveBatch() = %v, want first record time %v", got, first)
	}

	wall := NewResolver(SourceWallclock, nil)
	if got := wall.ResolveBatch(batch, closedAt); !got.Equal(closedAt) {
		t.Errorf("wallclock ResolveBatch() = %v, want close time %v", got, closedAt)
	}

	if got := event.ResolveBatch(record.Batch{}, closedAt); !got.Equal(closedAt) {
		t.Errorf("event ResolveBatch() on empty batch = %v, want %v", got, closedAt)
	}
}

func TestResolver_Clock(t *testing.T) {
	fixed := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	r := NewResolver(SourceWallclock, nil, WithClock(func() time.Time { return fixed }))

	if got := r.Now(); !got.Equal(fixed) {
		t.Errorf("Now() = %v, want %v", got, fixed)
	}
	if r.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", r.Location())
	}
	if r.Source() != SourceWallclock {
		t.Errorf("Source() = %v, want wallclock", r.Source())
	}
}

func TestResolver_LocationDoesNotChangeInstant(t *testing.T) {
	berlin, err := LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}
	instant := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r := NewResolver(SourceEvent, berlin)

	got := r.Resolve(record.Record{Timestamp: instant}, time.Time{})
	if !got.Equal(instant) {
		t.Errorf("Resolve() = %v, want same instant %v", got, instant)
	}
}
