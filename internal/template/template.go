// Package template compiles object key templates such as
// "{{topic}}-{{partition}}-{{start_offset}}" and renders them for a closed batch.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jittakal/kafobjectsink/internal/errors"
)

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "{{topic}}-{{partition}}-{{start_offset}}"

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Zero-padding widths used by the padding=true parameter.
const (
	partitionPadWidth   = 10
	startOffsetPadWidth = 20
)

var timestampUnits = map[string]string{
	"yyyy": "2006",
	"MM":   "01",
	"dd":   "02",
	"HH":   "15",
}

type segment struct {
	literal  string
	variable Variable
	layout   string // timestamp layout
	pad      bool
}

// Template is an immutable compiled template.
type Template struct {
	source      string
	segments    []segment
	vars        VariableSet
	combination Combination
}

// Context holds the values substituted into a template.
type Context struct {
	Topic       string
	Partition   int32
	StartOffset int64
	Timestamp   time.Time
	Location    *time.Location
}

// Compile parses tmpl and checks it against DefaultCombinations.
func Compile(tmpl string) (*Template, error) {
	return CompileWith(tmpl, DefaultCombinations...)
}

// MustCompile is like Compile but panics on error.
func MustCompile(tmpl string) *Template {
	t, err := Compile(tmpl)
	if err != nil {
		panic(err)
	}
	return t
}

// CompileWith parses tmpl and checks its variable set against combos.
func CompileWith(tmpl string, combos ...Combination) (*Template, error) {
	segments, vars, err := parse(tmpl)
	if err != nil {
		return nil, err
	}

	for _, c := range combos {
		if c.Variables() == vars {
			return &Template{
				source:      tmpl,
				segments:    segments,
				vars:        vars,
				combination: c,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: template %q uses variables %s, supported combinations are: %s",
		errors.ErrInvalidTemplate, tmpl, vars, describeCombinations(combos))
}

func parse(tmpl string) ([]segment, VariableSet, error) {
	var (
		segments []segment
		vars     VariableSet
		rest     = tmpl
	)

	for len(rest) > 0 {
		open := strings.Index(rest, openDelim)
		if open < 0 {
			if strings.Contains(rest, closeDelim) {
				return nil, 0, fmt.Errorf("%w: unbalanced %q in %q", errors.ErrInvalidTemplate, closeDelim, tmpl)
			}
			segments = append(segments, segment{literal: rest})
			break
		}

		if lit := rest[:open]; lit != "" {
			if strings.Contains(lit, closeDelim) {
				return nil, 0, fmt.Errorf("%w: unbalanced %q in %q", errors.ErrInvalidTemplate, closeDelim, tmpl)
			}
			segments = append(segments, segment{literal: lit})
		}

		rest = rest[open+len(openDelim):]
		end := strings.Index(rest, closeDelim)
		if end < 0 {
			return nil, 0, fmt.Errorf("%w: unclosed %q in %q", errors.ErrInvalidTemplate, openDelim, tmpl)
		}
		body := rest[:end]
		if strings.Contains(body, openDelim) {
			return nil, 0, fmt.Errorf("%w: nested %q in %q", errors.ErrInvalidTemplate, openDelim, tmpl)
		}
		rest = rest[end+len(closeDelim):]

		seg, err := parsePlaceholder(body)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v in %q", errors.ErrInvalidTemplate, err, tmpl)
		}
		segments = append(segments, seg)
		vars |= knownVariables[seg.variable]
	}

	return segments, vars, nil
}

// parsePlaceholder parses "name" or "name:param=value" with optional whitespace.
func parsePlaceholder(body string) (segment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return segment{}, fmt.Errorf("empty placeholder")
	}

	name, params, hasParams := strings.Cut(body, ":")
	v := Variable(strings.TrimSpace(name))
	if _, ok := knownVariables[v]; !ok {
		return segment{}, fmt.Errorf("unsupported variable %q", v)
	}

	seg := segment{variable: v}
	var param, value string
	if hasParams {
		var ok bool
		param, value, ok = strings.Cut(params, "=")
		if !ok {
			return segment{}, fmt.Errorf("malformed parameter %q for variable %q", params, v)
		}
		param, value = strings.TrimSpace(param), strings.TrimSpace(value)
	}

	switch v {
	case VarTimestamp:
		if !hasParams || param != "unit" {
			return segment{}, fmt.Errorf("variable %q requires a unit parameter", v)
		}
		layout, ok := timestampUnits[value]
		if !ok {
			return segment{}, fmt.Errorf("unsupported timestamp unit %q", value)
		}
		seg.layout = layout
	case VarPartition, VarStartOffset:
		if hasParams {
			if param != "padding" {
				return segment{}, fmt.Errorf("unsupported parameter %q for variable %q", param, v)
			}
			pad, err := strconv.ParseBool(value)
			if err != nil {
				return segment{}, fmt.Errorf("invalid padding value %q", value)
			}
			seg.pad = pad
		}
	default:
		if hasParams {
			return segment{}, fmt.Errorf("variable %q takes no parameters", v)
		}
	}

	return seg, nil
}

// Render substitutes ctx into the template. Render never fails: every
// variable the template uses was checked at compile time.
func (t *Template) Render(ctx Context) string {
	loc := ctx.Location
	if loc == nil {
		loc = time.UTC
	}

	var b strings.Builder
	for _, seg := range t.segments {
		switch seg.variable {
		case "":
			b.WriteString(seg.literal)
		case VarTopic:
			b.WriteString(ctx.Topic)
		case VarPartition:
			b.WriteString(formatInt(int64(ctx.Partition), seg.pad, partitionPadWidth))
		case VarStartOffset:
			b.WriteString(formatInt(ctx.StartOffset, seg.pad, startOffsetPadWidth))
		case VarTimestamp:
			b.WriteString(ctx.Timestamp.In(loc).Format(seg.layout))
		}
	}
	return b.String()
}

func formatInt(n int64, pad bool, width int) string {
	s := strconv.FormatInt(n, 10)
	if pad && len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}

// Variables returns the set of variables referenced by the template.
func (t *Template) Variables() VariableSet {
	return t.vars
}

// Combination returns the supported combination the template matched.
func (t *Template) Combination() Combination {
	return t.combination
}

// UsesTimestamp reports whether rendering depends on the batch timestamp.
func (t *Template) UsesTimestamp() bool {
	return t.vars.Has(VarTimestamp)
}

// String returns the template source.
func (t *Template) String() string {
	return t.source
}
