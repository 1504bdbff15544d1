// internal/query/builder.go
package query

import (
	"fmt"

	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/schema"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500

	SortFieldValue = "value"
	TieBreakSchool = "school_name"
)

// Sort is always fully specified; storage must not reorder within ties.
type Sort struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
	TieBreak   string `json:"tie_break"`
}

// FilterSpec is a storage-agnostic query. Ranges are OR'ed; an empty slice
// leaves the value unconstrained. Rows with no value never match a range.
type FilterSpec struct {
	Indicator   schema.Indicator   `json:"indicator"`
	Demographic schema.Demographic `json:"demographic"`
	Location    string             `json:"location,omitempty"`
	Ranges      []schema.Range     `json:"ranges,omitempty"`
	Sort        Sort               `json:"sort"`
	Limit       int                `json:"limit"`
}

// Constrained reports whether any numeric range applies.
func (f FilterSpec) Constrained() bool {
	for _, r := range f.Ranges {
		if !r.Unbounded() {
			return true
		}
	}
	return false
}

// Matches reports whether a non-null value satisfies the ranges.
func (f FilterSpec) Matches(v float64) bool {
	if !f.Constrained() {
		return true
	}
	for _, r := range f.Ranges {
		if r.Contains(v) {
			return true
		}
	}
	return false
}

type Builder struct {
	registry *schema.Registry
	limit    int
}

// NewBuilder clamps limit into [1, MaxLimit]; zero means DefaultLimit.
func NewBuilder(registry *schema.Registry, limit int) *Builder {
	switch {
	case limit <= 0:
		limit = DefaultLimit
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return &Builder{registry: registry, limit: limit}
}

func (b *Builder) Limit() int { return b.limit }

// Build compiles a canonical intent into a FilterSpec. It fails only when
// the indicator is not in the registry.
func (b *Builder) Build(c intent.Canonical) (FilterSpec, error) {
	spec, err := b.registry.Describe(c.Indicator)
	if err != nil {
		return FilterSpec{}, err
	}

	f := FilterSpec{
		Indicator:   c.Indicator,
		Demographic: schema.AllStudents,
		Limit:       b.limit,
	}
	if c.Demographic != nil {
		f.Demographic = *c.Demographic
	}
	if c.Location != nil {
		f.Location = *c.Location
	}

	ranges, err := b.valueRanges(c)
	if err != nil {
		return FilterSpec{}, fmt.Errorf("build value range: %w", err)
	}
	f.Ranges = ranges
	f.Sort = sortFor(spec.Polarity, c.Direction == intent.DirectionHigh)
	return f, nil
}

func (b *Builder) valueRanges(c intent.Canonical) ([]schema.Range, error) {
	switch {
	case c.Threshold != nil:
		return []schema.Range{c.Threshold.Range()}, nil
	case len(c.Colors) > 0:
		return b.registry.BandRanges(c.Indicator, c.Colors...)
	case c.Direction == intent.DirectionLow:
		return b.registry.BandRanges(c.Indicator, schema.WorstColors()...)
	case c.Direction == intent.DirectionHigh:
		return b.registry.BandRanges(c.Indicator, schema.BestColors()...)
	}
	return nil, nil
}

// sortFor orders best-first or worst-first in the indicator's own terms.
func sortFor(p schema.Polarity, bestFirst bool) Sort {
	desc := bestFirst
	if p == schema.LowerIsBetter {
		desc = !desc
	}
	return Sort{Field: SortFieldValue, Descending: desc, TieBreak: TieBreakSchool}
}
