// Package timestamp resolves the single timestamp used when rendering the
// object key of a closed batch.
package timestamp

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for minimal images

	"github.com/jittakal/kafobjectsink/internal/errors"
	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Source selects where the batch timestamp comes from.
type Source string

const (
	// SourceWallclock uses the instant the batch is closed.
	SourceWallclock Source = "wallclock"
	// SourceEvent uses the timestamp carried by the record.
	SourceEvent Source = "event"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "UTC"

// ParseSource parses a timestamp source name. Matching is case-insensitive so
// that "WALLCLOCK" and "EVENT" are accepted.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceWallclock:
		return SourceWallclock, nil
	case SourceEvent:
		return SourceEvent, nil
	default:
		return "", fmt.Errorf("%w: %q (supported values are: %s, %s)",
			errors.ErrInvalidTimestampSource, s, SourceWallclock, SourceEvent)
	}
}

// LoadLocation resolves a zone identifier such as "UTC" or "Europe/Berlin".
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty zone identifier", errors.ErrInvalidTimezone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", errors.ErrInvalidTimezone, name, err)
	}
	return loc, nil
}

// Resolver produces the batch timestamp for a configured source and zone.
type Resolver struct {
	source   Source
	location *time.Location
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a resolver. A nil location means UTC.
func NewResolver(source Source, location *time.Location, opts ...Option) *Resolver {
	if location == nil {
		location = time.UTC
	}
	r := &Resolver{
		source:   source,
		location: location,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Now returns the resolver's current wall-clock time. The sink calls it once
// when a batch closes.
func (r *Resolver) Now() time.Time {
	return r.now()
}

// Resolve returns the timestamp for rec given the instant the batch closed.
func (r *Resolver) Resolve(rec record.Record, closedAt time.Time) time.Time {
	if r.source == SourceEvent {
		return rec.Timestamp
	}
	return closedAt
}

// ResolveBatch returns the single timestamp for a batch. In event mode it is
// the timestamp of the first record.
func (r *Resolver) ResolveBatch(batch record.Batch, closedAt time.Time) time.Time {
	if r.source == SourceEvent && len(batch.Records) > 0 {
		return r.Resolve(batch.Records[0], closedAt)
	}
	return closedAt
}

// Source returns the configured source.
func (r *Resolver) Source() Source {
	return r.source
}

// Location returns the zone used for rendering.
func (r *Resolver) Location() *time.Location {
	return r.location
}
