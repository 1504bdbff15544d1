// internal/intent/intent.go
package intent

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"ca-schools-query/internal/schema"
)

type Direction string

const (
	DirectionNone Direction = "none"
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// ParseDirection maps free text to a Direction. Unrecognized input is None.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "good", "strong", "best", "top", "up":
		return DirectionHigh
	case "low", "bad", "weak", "worst", "concerning", "poor", "down":
		return DirectionLow
	default:
		return DirectionNone
	}
}

type Comparator string

const (
	Above   Comparator = "above"
	AtLeast Comparator = "at_least"
	Below   Comparator = "below"
	AtMost  Comparator = "at_most"
)

func (c Comparator) Valid() bool {
	switch c {
	case Above, AtLeast, Below, AtMost:
		return true
	}
	return false
}

// Threshold is an explicit numeric bound stated in the question, in the
// indicator's own unit.
type Threshold struct {
	Value      float64    `json:"value"`
	Comparator Comparator `json:"comparator"`
}

// Range converts the threshold to a numeric interval.
func (t Threshold) Range() schema.Range {
	switch t.Comparator {
	case Above:
		return schema.Above(t.Value, false)
	case AtLeast:
		return schema.Above(t.Value, true)
	case Below:
		return schema.Below(t.Value, false)
	default:
		return schema.Below(t.Value, true)
	}
}

type Source string

const (
	SourceExtractor Source = "extractor"
	SourceFallback  Source = "fallback"
)

// RawQuery is one incoming question. It is never mutated.
type RawQuery struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at"`
}

func NewRawQuery(text string) RawQuery {
	return RawQuery{
		ID:         uuid.New().String(),
		Text:       text,
		ReceivedAt: time.Now().UTC(),
	}
}

// Candidate is a partial interpretation of a question. Nil pointers and
// empty slices mean the producer found nothing for that field. Indicator and
// Demographic hold the producer's raw identifier and are validated on merge.
type Candidate struct {
	Source      Source         `json:"source"`
	Location    *string        `json:"location,omitempty"`
	Indicator   *string        `json:"indicator,omitempty"`
	Demographic *string        `json:"demographic,omitempty"`
	Direction   Direction      `json:"direction"`
	Threshold   *Threshold     `json:"threshold,omitempty"`
	Colors      []schema.Color `json:"colors,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// Canonical is a validated, query-ready intent. Indicator is always set.
type Canonical struct {
	Indicator   schema.Indicator    `json:"indicator"`
	Demographic *schema.Demographic `json:"demographic,omitempty"`
	Location    *string             `json:"location,omitempty"`
	Direction   Direction           `json:"direction"`
	Threshold   *Threshold          `json:"threshold,omitempty"`
	Colors      []schema.Color      `json:"colors,omitempty"`
	// Broad marks an intent that names neither a place nor a group.
	Broad      bool              `json:"broad"`
	Provenance map[string]Source `json:"provenance"`
	Discarded  []string          `json:"discarded,omitempty"`
}

// Ambiguity names the fields that could not be resolved.
type Ambiguity struct {
	Fields []string `json:"fields"`
}

func (a Ambiguity) Error() string {
	return "ambiguous intent: " + strings.Join(a.Fields, ", ")
}

// Result is either a Canonical intent or an Ambiguity. Exactly one of the
// two pointers is set.
type Result struct {
	Intent    *Canonical
	Ambiguity *Ambiguity
}

func (r Result) Ambiguous() bool { return r.Ambiguity != nil }

func resolved(c Canonical) Result        { return Result{Intent: &c} }
func ambiguous(fields ...string) Result { return Result{Ambiguity: &Ambiguity{Fields: fields}} }

// statewide names the whole state rather than a place to filter on.
var statewide = map[string]bool{
	"california":          true,
	"ca":                  true,
	"calif":               true,
	"the state":           true,
	"state":               true,
	"statewide":           true,
	"state of california": true,
	"all of california":   true,
}

// IsStatewide reports whether loc means "all of California". Such a value
// never becomes a location filter.
func IsStatewide(loc string) bool {
	return statewide[strings.ToLower(strings.Trim(strings.TrimSpace(loc), ".,"))]
}

// StringPtr is a convenience for building candidates.
func StringPtr(s string) *string { return &s }
