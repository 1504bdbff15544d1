// internal/schema/registry.go
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrUnknownIndicator   = errors.New("UNKNOWN_INDICATOR")
	ErrUnknownDemographic = errors.New("UNKNOWN_DEMOGRAPHIC")
	ErrUnknownColor       = errors.New("UNKNOWN_COLOR")
	ErrValueOutOfRange    = errors.New("VALUE_OUT_OF_RANGE")
)

type Indicator string

const (
	ChronicAbsenteeism     Indicator = "chronic_absenteeism"
	ELAPerformance         Indicator = "ela_performance"
	MathPerformance        Indicator = "math_performance"
	SuspensionRate         Indicator = "suspension_rate"
	CollegeCareer          Indicator = "college_career"
	GraduationRate         Indicator = "graduation_rate"
	EnglishLearnerProgress Indicator = "english_learner_progress"
)

type Polarity string

const (
	HigherIsBetter Polarity = "higher_is_better"
	LowerIsBetter  Polarity = "lower_is_better"
)

type Unit string

const (
	UnitPercent            Unit = "percent"
	UnitPointsFromStandard Unit = "points_from_standard"
)

// Color is a dashboard performance band label.
type Color string

const (
	Red    Color = "red"
	Orange Color = "orange"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	NoData Color = "no_data"
)

// Colors lists band labels from worst to best.
var Colors = []Color{Red, Orange, Yellow, Green, Blue}

// Band covers [Lower, Upper). The top band of a bounded domain also
// includes Upper.
type Band struct {
	Lower          float64 `json:"lower"`
	Upper          float64 `json:"upper"`
	UpperInclusive bool    `json:"upper_inclusive,omitempty"`
	Color          Color   `json:"color"`
}

func (b Band) Contains(v float64) bool {
	if v < b.Lower {
		return false
	}
	if v < b.Upper {
		return true
	}
	return b.UpperInclusive && v == b.Upper
}

type IndicatorSpec struct {
	ID       Indicator `json:"id"`
	Name     string    `json:"name"`
	Unit     Unit      `json:"unit"`
	Polarity Polarity  `json:"polarity"`
	Synonyms []string  `json:"synonyms"`
	// Bands are in ascending numeric order.
	Bands []Band `json:"bands"`
}

// Min returns the lower end of the indicator's domain.
func (s IndicatorSpec) Min() float64 { return s.Bands[0].Lower }

// Max returns the upper end of the indicator's domain.
func (s IndicatorSpec) Max() float64 { return s.Bands[len(s.Bands)-1].Upper }

type Demographic string

// AllStudents is the whole-school group, used when no group is named.
const AllStudents Demographic = "ALL"

type DemographicGroup struct {
	Code     Demographic `json:"code"`
	Name     string      `json:"name"`
	Synonyms []string    `json:"synonyms"`
}

// Registry is the immutable catalogue of indicators, demographic groups and
// band thresholds. Build it once with Default and share the pointer.
type Registry struct {
	indicators   map[Indicator]IndicatorSpec
	order        []Indicator
	demographics map[Demographic]DemographicGroup
	groupOrder   []Demographic
}

func newRegistry(indicators []IndicatorSpec, groups []DemographicGroup) (*Registry, error) {
	r := &Registry{
		indicators:   make(map[Indicator]IndicatorSpec, len(indicators)),
		demographics: make(map[Demographic]DemographicGroup, len(groups)),
	}
	for _, spec := range indicators {
		if err := validateBands(spec); err != nil {
			return nil, err
		}
		r.indicators[spec.ID] = spec
		r.order = append(r.order, spec.ID)
	}
	for _, g := range groups {
		r.demographics[g.Code] = g
		r.groupOrder = append(r.groupOrder, g.Code)
	}
	return r, nil
}

func validateBands(spec IndicatorSpec) error {
	if len(spec.Bands) != len(Colors) {
		return fmt.Errorf("indicator %s: expected %d bands, got %d", spec.ID, len(Colors), len(spec.Bands))
	}
	for i := 1; i < len(spec.Bands); i++ {
		if spec.Bands[i].Lower != spec.Bands[i-1].Upper {
			return fmt.Errorf("indicator %s: gap or overlap between %s and %s", spec.ID, spec.Bands[i-1].Color, spec.Bands[i].Color)
		}
	}
	return nil
}

// Describe returns a copy of the indicator's definition.
func (r *Registry) Describe(id Indicator) (IndicatorSpec, error) {
	spec, ok := r.indicators[id]
	if !ok {
		return IndicatorSpec{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, id)
	}
	spec.Synonyms = append([]string(nil), spec.Synonyms...)
	spec.Bands = append([]Band(nil), spec.Bands...)
	return spec, nil
}

// Indicators returns every indicator definition in registry order.
func (r *Registry) Indicators() []IndicatorSpec {
	out := make([]IndicatorSpec, 0, len(r.order))
	for _, id := range r.order {
		spec, _ := r.Describe(id)
		out = append(out, spec)
	}
	return out
}

func (r *Registry) ListDemographics() []DemographicGroup {
	out := make([]DemographicGroup, 0, len(r.groupOrder))
	for _, code := range r.groupOrder {
		g := r.demographics[code]
		g.Synonyms = append([]string(nil), g.Synonyms...)
		out = append(out, g)
	}
	return out
}

func (r *Registry) Demographic(code Demographic) (DemographicGroup, error) {
	g, ok := r.demographics[code]
	if !ok {
		return DemographicGroup{}, fmt.Errorf("%w: %q", ErrUnknownDemographic, code)
	}
	g.Synonyms = append([]string(nil), g.Synonyms...)
	return g, nil
}

// Classify returns the band containing value for the given indicator.
func (r *Registry) Classify(id Indicator, value float64) (Band, error) {
	spec, ok := r.indicators[id]
	if !ok {
		return Band{}, fmt.Errorf("%w: %q", ErrUnknownIndicator, id)
	}
	if math.IsNaN(value) {
		return Band{}, fmt.Errorf("%w: NaN", ErrValueOutOfRange)
	}
	for _, b := range spec.Bands {
		if b.Contains(value) {
			return b, nil
		}
	}
	return Band{}, fmt.Errorf("%w: %v not in [%v, %v] for %s", ErrValueOutOfRange, value, spec.Min(), spec.Max(), id)
}

// BandRanges returns the numeric ranges covered by the given colors,
// merging adjacent bands. Ranges are in ascending order.
func (r *Registry) BandRanges(id Indicator, colors ...Color) ([]Range, error) {
	spec, ok := r.indicators[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndicator, id)
	}
	want := make(map[Color]bool, len(colors))
	for _, c := range colors {
		if !IsBandColor(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColor, c)
		}
		want[c] = true
	}

	var ranges []Range
	var cur *Range
	for _, b := range spec.Bands {
		if !want[b.Color] {
			if cur != nil {
				ranges = append(ranges, *cur)
				cur = nil
			}
			continue
		}
		if cur == nil {
			cur = &Range{MinInclusive: true}
			if !math.IsInf(b.Lower, -1) {
				cur.Min = float64Ptr(b.Lower)
			}
		}
		cur.Max = nil
		cur.MaxInclusive = false
		if !math.IsInf(b.Upper, 1) {
			cur.Max = float64Ptr(b.Upper)
			cur.MaxInclusive = b.UpperInclusive
		}
	}
	if cur != nil {
		ranges = append(ranges, *cur)
	}
	return ranges, nil
}

// WorstColors and BestColors are the two bands at each end of the scale.
func WorstColors() []Color { return []Color{Red, Orange} }
func BestColors() []Color  { return []Color{Green, Blue} }

func IsBandColor(c Color) bool {
	for _, known := range Colors {
		if c == known {
			return true
		}
	}
	return false
}

// ParseColor resolves a color word. Unknown words return ErrUnknownColor.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !IsBandColor(c) {
		return "", fmt.Errorf("%w: %q", ErrUnknownColor, s)
	}
	return c, nil
}

// BandFromStatusCode maps the dashboard's numeric status color (1..5) to a
// band label. Anything else is NoData.
func BandFromStatusCode(code int) Color {
	if code < 1 || code > len(Colors) {
		return NoData
	}
	return Colors[code-1]
}

// LookupIndicator resolves an id, display name or synonym case-insensitively.
func (r *Registry) LookupIndicator(text string) (Indicator, error) {
	key := normalize(text)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownIndicator)
	}
	for _, id := range r.order {
		spec := r.indicators[id]
		if key == normalize(string(id)) || key == normalize(spec.Name) {
			return id, nil
		}
		for _, syn := range spec.Synonyms {
			if key == normalize(syn) {
				return id, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIndicator, text)
}

// LookupDemographic resolves a code, display name or synonym case-insensitively.
func (r *Registry) LookupDemographic(text string) (Demographic, error) {
	key := normalize(text)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrUnknownDemographic)
	}
	for _, code := range r.groupOrder {
		g := r.demographics[code]
		if key == normalize(string(code)) || key == normalize(g.Name) {
			return code, nil
		}
		for _, syn := range g.Synonyms {
			if key == normalize(syn) {
				return code, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDemographic, text)
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// ContextEntry is one named item in the prompt context.
type ContextEntry struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Synonyms []string `json:"synonyms,omitempty"`
	Polarity Polarity `json:"polarity,omitempty"`
}

// PromptContext carries names and synonyms only. Thresholds stay in the
// registry.
type PromptContext struct {
	Indicators   []ContextEntry `json:"indicators"`
	Demographics []ContextEntry `json:"demographics"`
	Colors       []Color        `json:"colors"`
}

func (r *Registry) Context() PromptContext {
	ctx := PromptContext{Colors: append([]Color(nil), Colors...)}
	for _, spec := range r.Indicators() {
		ctx.Indicators = append(ctx.Indicators, ContextEntry{
			ID:       string(spec.ID),
			Name:     spec.Name,
			Synonyms: spec.Synonyms,
			Polarity: spec.Polarity,
		})
	}
	for _, g := range r.ListDemographics() {
		ctx.Demographics = append(ctx.Demographics, ContextEntry{
			ID:       string(g.Code),
			Name:     g.Name,
			Synonyms: g.Synonyms,
		})
	}
	return ctx
}

// ContextJSON serializes Context for embedding in a prompt.
func (r *Registry) ContextJSON() string {
	b, _ := json.Marshal(r.Context())
	return string(b)
}

// IndicatorPhrases returns every (phrase, indicator) pair, longest phrase first.
func (r *Registry) IndicatorPhrases() []Phrase {
	var out []Phrase
	for _, id := range r.order {
		spec := r.indicators[id]
		out = append(out, Phrase{Text: strings.ToLower(spec.Name), Value: string(id)})
		for _, syn := range spec.Synonyms {
			out = append(out, Phrase{Text: strings.ToLower(syn), Value: string(id)})
		}
	}
	sortPhrases(out)
	return out
}

// DemographicPhrases returns every (phrase, group) pair, longest phrase first.
func (r *Registry) DemographicPhrases() []Phrase {
	var out []Phrase
	for _, code := range r.groupOrder {
		g := r.demographics[code]
		out = append(out, Phrase{Text: strings.ToLower(g.Name), Value: string(code)})
		for _, syn := range g.Synonyms {
			out = append(out, Phrase{Text: strings.ToLower(syn), Value: string(code)})
		}
	}
	sortPhrases(out)
	return out
}

type Phrase struct {
	Text  string
	Value string
}

func sortPhrases(p []Phrase) {
	sort.SliceStable(p, func(i, j int) bool {
		return len(p[i].Text) > len(p[j].Text)
	})
}

func float64Ptr(v float64) *float64 { return &v }
