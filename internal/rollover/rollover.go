// Package rollover decides when an accumulating batch must be closed.
package rollover

import (
	"fmt"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

// Trigger is the reason a batch was closed.
type Trigger int

const (
	// TriggerMaxRecords closes a batch that reached the configured record count.
	TriggerMaxRecords Trigger = iota + 1
	// TriggerExplicitFlush closes a batch because the host asked for a flush.
	TriggerExplicitFlush
	// TriggerTaskStop closes a batch because the task is shutting down.
	TriggerTaskStop
	// TriggerPartitionRevoked closes a batch whose partition was revoked.
	// The host sees it as an explicit flush of that partition.
	TriggerPartitionRevoked
)

// String returns the trigger name used in logs and metric labels.
func (t Trigger) String() string {
	switch t {
	case TriggerMaxRecords:
		return "max-records-reached"
	case TriggerExplicitFlush:
		return "explicit-flush"
	case TriggerTaskStop:
		return "task-stop"
	case TriggerPartitionRevoked:
		return "partition-revoked"
	default:
		return fmt.Sprintf("trigger(%d)", int(t))
	}
}

// IsSignal reports whether the trigger comes from outside the size check.
func (t Trigger) IsSignal() bool {
	return t == TriggerExplicitFlush || t == TriggerTaskStop || t == TriggerPartitionRevoked
}

// Triggers returns every trigger in declaration order.
func Triggers() []Trigger {
	return []Trigger{TriggerMaxRecords, TriggerExplicitFlush, TriggerTaskStop, TriggerPartitionRevoked}
}

// Policy closes batches by record count. MaxRecords of zero disables the
// count check; only signals close the batch then.
type Policy struct {
	MaxRecords int
}

// NewPolicy creates a rollover policy. A negative maxRecords is treated as unlimited.
func NewPolicy(maxRecords int) Policy {
	if maxRecords < 0 {
		maxRecords = 0
	}
	return Policy{MaxRecords: maxRecords}
}

// AfterAppend is consulted after every successful append.
func (p Policy) AfterAppend(stats record.Stats) (Trigger, bool) {
	if p.MaxRecords > 0 && stats.RecordCount >= p.MaxRecords {
		return TriggerMaxRecords, true
	}
	return 0, false
}

// OnSignal returns whether a non-empty batch closes for the given signal.
// Signals always close, whatever the batch size.
func (p Policy) OnSignal(trigger Trigger) bool {
	return trigger.IsSignal()
}

// Unlimited reports whether the policy never closes a batch by itself.
func (p Policy) Unlimited() bool {
	return p.MaxRecords == 0
}

// ExpectedBatches returns how many batches a run of n records produces when
// nothing but the count check closes them: ceil(n / MaxRecords), or 1 when
// unlimited and n > 0.
func (p Policy) ExpectedBatches(n int) int {
	if n <= 0 {
		return 0
	}
	if p.Unlimited() {
		return 1
	}
	return (n + p.MaxRecords - 1) / p.MaxRecords
}
