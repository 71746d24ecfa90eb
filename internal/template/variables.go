package template

import (
	"sort"
	"strings"
)

// Variable is a placeholder name recognized by the parser.
type Variable string

// Recognized variables. Only the ones belonging to a supported Combination
// can appear in a compiled template.
const (
	VarTopic       Variable = "topic"
	VarPartition   Variable = "partition"
	VarStartOffset Variable = "start_offset"
	VarTimestamp   Variable = "timestamp"
	VarKey         Variable = "key"
	VarValue       Variable = "value"
)

var knownVariables = map[Variable]VariableSet{
	VarTopic:       SetTopic,
	VarPartition:   SetPartition,
	VarStartOffset: SetStartOffset,
	VarTimestamp:   SetTimestamp,
	VarKey:         SetKey,
	VarValue:       SetValue,
}

// VariableSet is a bit set of variables referenced by a template.
type VariableSet uint8

const (
	SetTopic VariableSet = 1 << iota
	SetPartition
	SetStartOffset
	SetTimestamp
	SetKey
	SetValue
)

var setOrder = []struct {
	bit VariableSet
	v   Variable
}{
	{SetTopic, VarTopic},
	{SetPartition, VarPartition},
	{SetStartOffset, VarStartOffset},
	{SetTimestamp, VarTimestamp},
	{SetKey, VarKey},
	{SetValue, VarValue},
}

// Has reports whether v is in the set.
func (s VariableSet) Has(v Variable) bool {
	bit, ok := knownVariables[v]
	return ok && s&bit != 0
}

// Variables returns the members of the set in declaration order.
func (s VariableSet) Variables() []Variable {
	var out []Variable
	for _, e := range setOrder {
		if s&e.bit != 0 {
			out = append(out, e.v)
		}
	}
	return out
}

func (s VariableSet) String() string {
	vars := s.Variables()
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = string(v)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Combination is one of the variable sets a template is allowed to use.
// Object keys are parsed back into topic/partition/offset by downstream
// consumers, so the set of combinations is closed.
type Combination int

const (
	// TopicPartitionStartOffset is {topic, partition, start_offset}.
	TopicPartitionStartOffset Combination = iota + 1
	// TopicPartitionStartOffsetTimestamp adds the timestamp variable. It is not
	// part of DefaultCombinations.
	TopicPartitionStartOffsetTimestamp
)

// Variables returns the variable set of the combination.
func (c Combination) Variables() VariableSet {
	switch c {
	case TopicPartitionStartOffset:
		return SetTopic | SetPartition | SetStartOffset
	case TopicPartitionStartOffsetTimestamp:
		return SetTopic | SetPartition | SetStartOffset | SetTimestamp
	default:
		return 0
	}
}

func (c Combination) String() string {
	return c.Variables().String()
}

// DefaultCombinations is the whitelist used by Compile.
var DefaultCombinations = []Combination{TopicPartitionStartOffset}

func describeCombinations(combos []Combination) string {
	names := make([]string, len(combos))
	for i, c := range combos {
		names[i] = c.String()
	}
	sort.Strings(names)
	return strings.Join(names, "; ")
}
