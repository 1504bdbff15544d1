// internal/intent/merger.go
package intent

import (
	"fmt"
	"strings"

	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/schema"
)

// Policy decides which source wins when both supply a valid value.
type Policy string

const (
	PreferExtractor Policy = "prefer_extractor"
	PreferFallback  Policy = "prefer_fallback"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreferExtractor:
		return PreferExtractor, nil
	case PreferFallback:
		return PreferFallback, nil
	}
	return "", fmt.Errorf("unknown merge policy %q", s)
}

const (
	FieldIndicator   = "indicator"
	FieldDemographic = "demographic"
	FieldLocation    = "location"
	FieldDirection   = "direction"
	FieldThreshold   = "threshold"
	FieldColors      = "colors"
)

type Merger struct {
	registry *schema.Registry
	policy   Policy
	logger   logger.Logger
}

func NewMerger(registry *schema.Registry, policy Policy, log logger.Logger) *Merger {
	if policy == "" {
		policy = PreferExtractor
	}
	return &Merger{
		registry: registry,
		policy:   policy,
		logger:   log.WithFields(map[string]interface{}{"component": "merger"}),
	}
}

func (m *Merger) Policy() Policy { return m.policy }

// Merge reconciles the two candidates field by field. A nil extractor
// candidate means extraction failed and only the fallback is consulted.
// Confidence is never used to break ties; the policy alone decides.
func (m *Merger) Merge(extracted *Candidate, fallback Candidate) Result {
	first, second := extracted, &fallback
	if m.policy == PreferFallback {
		first, second = &fallback, extracted
	}
	order := []*Candidate{first, second}

	out := Canonical{Provenance: map[string]Source{}}

	indicator, ok := m.pickIndicator(order, &out)
	if !ok {
		return ambiguous(FieldIndicator)
	}
	out.Indicator = indicator

	demographic, named := m.pickDemographic(order, &out)
	if demographic != nil {
		out.Demographic = demographic
	} else if named {
		return ambiguous(FieldDemographic)
	}

	for _, c := range order {
		if c == nil || c.Location == nil {
			continue
		}
		if loc := strings.TrimSpace(*c.Location); loc != "" && !IsStatewide(loc) {
			out.Location = StringPtr(loc)
			out.Provenance[FieldLocation] = c.Source
			break
		}
	}

	out.Direction = DirectionNone
	for _, c := range order {
		if c != nil && (c.Direction == DirectionHigh || c.Direction == DirectionLow) {
			out.Direction = c.Direction
			out.Provenance[FieldDirection] = c.Source
			break
		}
	}

	for _, c := range order {
		if c != nil && c.Threshold != nil && c.Threshold.Comparator.Valid() {
			t := *c.Threshold
			out.Threshold = &t
			out.Provenance[FieldThreshold] = c.Source
			break
		}
	}

	for _, c := range order {
		if c == nil || len(c.Colors) == 0 {
			continue
		}
		if colors, ok := validColors(c.Colors); ok {
			out.Colors = colors
			out.Provenance[FieldColors] = c.Source
			break
		}
		out.Discarded = append(out.Discarded, fmt.Sprintf("%s:%s", c.Source, FieldColors))
	}

	out.Broad = out.Location == nil && out.Demographic == nil

	m.logger.Debug("intent merged", map[string]interface{}{
		"indicator":  out.Indicator,
		"broad":      out.Broad,
		"provenance": out.Provenance,
		"discarded":  out.Discarded,
		"policy":     m.policy,
	})
	return resolved(out)
}

func (m *Merger) pickIndicator(order []*Candidate, out *Canonical) (schema.Indicator, bool) {
	for _, c := range order {
		if c == nil || c.Indicator == nil {
			continue
		}
		id, err := m.registry.LookupIndicator(*c.Indicator)
		if err != nil {
			out.Discarded = append(out.Discarded, fmt.Sprintf("%s:%s", c.Source, FieldIndicator))
			m.logger.Info("discarding indicator", map[string]interface{}{
				"source": c.Source,
				"value":  *c.Indicator,
			})
			continue
		}
		out.Provenance[FieldIndicator] = c.Source
		return id, true
	}
	return "", false
}

// pickDemographic returns the first valid demographic. named reports whether
// any source supplied a value at all, valid or not.
func (m *Merger) pickDemographic(order []*Candidate, out *Canonical) (*schema.Demographic, bool) {
	named := false
	for _, c := range order {
		if c == nil || c.Demographic == nil || strings.TrimSpace(*c.Demographic) == "" {
			continue
		}
		named = true
		code, err := m.registry.LookupDemographic(*c.Demographic)
		if err != nil {
			out.Discarded = append(out.Discarded, fmt.Sprintf("%s:%s", c.Source, FieldDemographic))
			m.logger.Info("discarding demographic", map[string]interface{}{
				"source": c.Source,
				"value":  *c.Demographic,
			})
			continue
		}
		out.Provenance[FieldDemographic] = c.Source
		return &code, true
	}
	return nil, named
}

func validColors(in []schema.Color) ([]schema.Color, bool) {
	seen := make(map[schema.Color]bool, len(in))
	for _, c := range in {
		parsed, err := schema.ParseColor(string(c))
		if err != nil {
			return nil, false
		}
		seen[parsed] = true
	}
	// Keep registry order so equal sets compare equal.
	ordered := make([]schema.Color, 0, len(seen))
	for _, c := range schema.Colors {
		if seen[c] {
			ordered = append(ordered, c)
		}
	}
	return ordered, true
}
