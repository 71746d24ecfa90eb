package rollover

import (
	"testing"

	"github.com/jittakal/kafobjectsink/pkg/record"
)

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name       string
		maxRecords int
		want       int
	}{
		{"unlimited", 0, 0},
		{"positive", 500, 500},
		{"negative clamps to unlimited", -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.maxRecords)
			if p.MaxRecords != tt.want {
				t.Errorf("MaxRecords = %d, want %d", p.MaxRecords, tt.want)
			}
		})
	}
}

func TestPolicy_AfterAppend(t *testing.T) {
	tests := []struct {
		name       string
		maxRecords int
		count      int
		wantClose  bool
	}{
		{"below limit", 3, 2, false},
		{"at limit", 3, 3, true},
		{"above limit", 3, 4, true},
		{"limit of one", 1, 1, true},
		{"unlimited small", 0, 1, false},
		{"unlimited large", 0, 1_000_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.maxRecords)
			trigger, ok := p.AfterAppend(record.Stats{RecordCount: tt.count, SizeBytes: 1 << 40})
			if ok != tt.wantClose {
				t.Errorf("AfterAppend() close = %v, want %v", ok, tt.wantClose)
			}
			if ok && trigger != TriggerMaxRecords {
				t.Errorf("AfterAppend() trigger = %v, want %v", trigger, TriggerMaxRecords)
			}
		})
	}
}

func TestPolicy_OnSignal(t *testing.T) {
	for _, maxRecords := range []int{0, 10} {
		p := NewPolicy(maxRecords)
		for _, trigger := range []Trigger{TriggerExplicitFlush, TriggerTaskStop, TriggerPartitionRevoked} {
			if !p.OnSignal(trigger) {
				t.Errorf("OnSignal(%v) with MaxRecords=%d = false, want true", trigger, maxRecords)
			}
		}
		if p.OnSignal(TriggerMaxRecords) {
			t.Errorf("OnSignal(%v) = true, want false", TriggerMaxRecords)
		}
	}
}

func TestTrigger_String(t *testing.T) {
	tests := []struct {
		trigger Trigger
		want    string
	}{
		{TriggerMaxRecords, "max-records-reached"},
		{TriggerExplicitFlush, "explicit-flush"},
		{TriggerTaskStop, "task-stop"},
		{TriggerPartitionRevoked, "partition-revoked"},
		{Trigger(42), "trigger(42)"},
	}

	for _, tt := range tests {
		if got := tt.trigger.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}

	if len(Triggers()) != 4 {
		t.Errorf("Triggers() = %v, want 4 entries", Triggers())
	}
}

func TestPolicy_SimulatedRun(t *testing.T) {
	tests := []struct {
		name       string
		maxRecords int
		records    int
		wantSizes  []int
	}{
		{"exact multiple", 2, 6, []int{2, 2, 2}},
		{"remainder", 3, 7, []int{3, 3, 1}},
		{"fewer than limit", 10, 4, []int{4}},
		{"unlimited", 0, 5, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPolicy(tt.maxRecords)

			var sizes []int
			count := 0
			for i := 0; i < tt.records; i++ {
				count++
				if _, ok := p.AfterAppend(record.Stats{RecordCount: count}); ok {
					sizes = append(sizes, count)
					count = 0
				}
			}
			// Final explicit flush closes the remainder.
			if count > 0 && p.OnSignal(TriggerExplicitFlush) {
				sizes = append(sizes, count)
			}

			if len(sizes) != len(tt.wantSizes) {
				t.Fatalf("batch sizes = %v, want %v", sizes, tt.wantSizes)
			}
			for i := range sizes {
				if sizes[i] != tt.wantSizes[i] {
					t.Errorf("batch sizes = %v, want %v", sizes, tt.wantSizes)
					break
				}
			}
			if got := p.ExpectedBatches(tt.records); got != len(tt.wantSizes) {
				t.Errorf("ExpectedBatches(%d) = %d, want %d", tt.records, got, len(tt.wantSizes))
			}
		})
	}
}
