// internal/fallback/interpreter.go
package fallback

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/schema"
)

// Interpreter derives a candidate intent from keywords alone. It holds only
// compiled patterns and is safe for concurrent use.
type Interpreter struct {
	registry     *schema.Registry
	indicators   []matcher
	demographics []matcher
	places       []matcher
	aliases      []matcher
}

type matcher struct {
	re    *regexp.Regexp
	value string
}

var (
	// "in Fresno", "for San Luis Obispo Unified"
	capitalizedPlace = regexp.MustCompile(`\b(?:in|at|near|around|from)\s+((?:[A-Z][A-Za-z.'-]*)(?:\s+[A-Z][A-Za-z.'-]*){0,3})`)

	standardDistance = regexp.MustCompile(`(?i)\b(more than|over|at least|less than|under|at most)?\s*(\d+(?:\.\d+)?)\s*(?:points?|pts)\s+(above|below)\s+(?:the\s+)?standard\b`)
	comparison       = regexp.MustCompile(`(?i)\b(above|over|more than|greater than|higher than|exceeding|at least|no less than|below|under|less than|lower than|fewer than|at most|no more than)\s+(-?\d+(?:\.\d+)?)\s*(%|percent|points?|pts)?`)

	colorWords  = regexp.MustCompile(`\b(red|orange|yellow|green|blue)\b`)
	schoolLevel = regexp.MustCompile(`\b(?:high|middle|elementary)[\s-]schools?\b`)

	qualityLow  = regexp.MustCompile(`\b(concerning|concerns?|worst|struggling|struggles?|poor(?:ly)?|problems?|problematic|weak(?:est)?|failing|bad|underperforming|low[\s-]performing|lagging|behind|troubled|needs? improvement|(?:below|under|beneath)\s+(?:the\s+)?standard)\b`)
	qualityHigh = regexp.MustCompile(`\b(best|strong(?:est)?|excellent|top|good|great|outstanding|high[\s-]performing|successful|exemplary|leading|improving|(?:above|meets?|meeting|exceeds?|exceeding)\s+(?:the\s+)?standard)\b`)
	numericHigh = regexp.MustCompile(`\b(high|higher|highest|most|many|elevated)\b`)
	numericLow  = regexp.MustCompile(`\b(low|lower|lowest|least|few|fewest|minimal)\b`)
)

func New(registry *schema.Registry) *Interpreter {
	in := &Interpreter{registry: registry}
	for _, p := range registry.IndicatorPhrases() {
		in.indicators = append(in.indicators, matcher{re: phrasePattern(p.Text), value: p.Value})
	}
	for _, p := range registry.DemographicPhrases() {
		in.demographics = append(in.demographics, matcher{re: phrasePattern(p.Text), value: p.Value})
	}

	places := append([]string(nil), californiaPlaces...)
	sort.SliceStable(places, func(i, j int) bool { return len(places[i]) > len(places[j]) })
	for _, p := range places {
		in.places = append(in.places, matcher{
			re:    phrasePattern(strings.ToLower(p)),
			value: strings.TrimSuffix(p, " County"),
		})
	}

	aliases := make([]string, 0, len(placeAliases))
	for k := range placeAliases {
		aliases = append(aliases, k)
	}
	sort.Strings(aliases)
	for _, k := range aliases {
		in.aliases = append(in.aliases, matcher{re: regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`), value: placeAliases[k]})
	}
	return in
}

// phrasePattern matches a lowercase phrase on word boundaries, treating
// spaces, hyphens and slashes between words as interchangeable.
func phrasePattern(phrase string) *regexp.Regexp {
	words := strings.FieldsFunc(phrase, func(r rune) bool {
		return r == ' ' || r == '-' || r == '/'
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b` + strings.Join(words, `[\s\-/]+`) + `\b`)
}

// Interpret never fails. Fields it cannot recognize are left empty.
func (in *Interpreter) Interpret(q intent.RawQuery) intent.Candidate {
	c := intent.Candidate{Source: intent.SourceFallback, Direction: intent.DirectionNone}
	original := q.Text
	work := strings.ToLower(original)

	if v, span := firstMatch(in.indicators, work); span != nil {
		c.Indicator = intent.StringPtr(v)
		work = blank(work, span)
	}
	if v, span := firstMatch(in.demographics, work); span != nil {
		c.Demographic = intent.StringPtr(v)
		work = blank(work, span)
	}

	if loc, spans := in.matchPlace(original, work); loc != "" {
		c.Location = intent.StringPtr(loc)
		for _, span := range spans {
			work = blank(work, span)
		}
	}

	var polarity schema.Polarity = schema.HigherIsBetter
	if c.Indicator != nil {
		if spec, err := in.registry.Describe(schema.Indicator(*c.Indicator)); err == nil {
			polarity = spec.Polarity
		}
	}

	for _, span := range schoolLevel.FindAllStringIndex(work, -1) {
		work = blank(work, span)
	}

	if th, span := matchThreshold(work); th != nil {
		c.Threshold = th
		work = blank(work, span)
	}

	seen := map[schema.Color]bool{}
	for _, m := range colorWords.FindAllString(work, -1) {
		col := schema.Color(m)
		if !seen[col] {
			seen[col] = true
			c.Colors = append(c.Colors, col)
		}
	}

	c.Direction = direction(work, polarity)
	c.Confidence = confidence(c)
	return c
}

func firstMatch(ms []matcher, text string) (string, []int) {
	for _, m := range ms {
		if loc := m.re.FindStringIndex(text); loc != nil {
			return m.value, loc
		}
	}
	return "", nil
}

// matchPlace returns the place name and every span it occupies in the
// lowercase work text.
func (in *Interpreter) matchPlace(original, work string) (string, [][]int) {
	if v, span := firstMatch(in.places, work); span != nil {
		return v, [][]int{span}
	}
	if v, span := firstMatch(in.aliases, original); span != nil {
		return v, [][]int{span}
	}

	for _, sub := range capitalizedPlace.FindAllStringSubmatchIndex(original, -1) {
		start, end := sub[2], sub[3]
		name := strings.TrimRight(original[start:end], ".'")
		if in.isVocabulary(name) {
			continue
		}
		// The lowercase work text keeps byte offsets for ASCII input only.
		if len(work) != len(original) {
			return name, nil
		}
		return name, [][]int{{start, start + len(name)}}
	}
	return "", nil
}

// isVocabulary rejects capitalized phrases that are really indicator or
// group names ("in Math", "for English Learners").
func (in *Interpreter) isVocabulary(name string) bool {
	lower := strings.ToLower(name)
	if notPlaces[lower] || intent.IsStatewide(lower) {
		return true
	}
	if _, err := schema.ParseColor(lower); err == nil {
		return true
	}
	if _, err := in.registry.LookupIndicator(lower); err == nil {
		return true
	}
	if _, err := in.registry.LookupDemographic(lower); err == nil {
		return true
	}
	first := strings.Fields(lower)[0]
	if _, err := in.registry.LookupIndicator(first); err == nil {
		return true
	}
	if _, err := in.registry.LookupDemographic(first); err == nil {
		return true
	}
	return false
}

func matchThreshold(work string) (*intent.Threshold, []int) {
	if m := standardDistance.FindStringSubmatchIndex(work); m != nil {
		qualifier := ""
		if m[2] >= 0 {
			qualifier = work[m[2]:m[3]]
		}
		value, err := strconv.ParseFloat(work[m[4]:m[5]], 64)
		if err == nil {
			side := work[m[6]:m[7]]
			if side == "below" {
				value = -value
			}
			return &intent.Threshold{Value: value, Comparator: standardComparator(qualifier, side)}, []int{m[0], m[1]}
		}
	}

	m := comparison.FindStringSubmatchIndex(work)
	if m == nil {
		return nil, nil
	}
	value, err := strconv.ParseFloat(work[m[4]:m[5]], 64)
	if err != nil {
		return nil, nil
	}
	var cmp intent.Comparator
	switch work[m[2]:m[3]] {
	case "at least", "no less than":
		cmp = intent.AtLeast
	case "below", "under", "less than", "lower than", "fewer than":
		cmp = intent.Below
	case "at most", "no more than":
		cmp = intent.AtMost
	default:
		cmp = intent.Above
	}
	return &intent.Threshold{Value: value, Comparator: cmp}, []int{m[0], m[1]}
}

// standardComparator turns "more than 20 points below standard" into a
// bound on the signed distance from standard.
func standardComparator(qualifier, side string) intent.Comparator {
	below := side == "below"
	switch qualifier {
	case "more than", "over":
		if below {
			return intent.Below
		}
		return intent.Above
	case "less than", "under":
		if below {
			return intent.Above
		}
		return intent.Below
	case "at most":
		if below {
			return intent.AtLeast
		}
		return intent.AtMost
	default:
		if below {
			return intent.AtMost
		}
		return intent.AtLeast
	}
}

// direction prefers quality words. Bare numeric words describe the raw
// number, so they flip for indicators where lower is better.
func direction(work string, polarity schema.Polarity) intent.Direction {
	lowAt := indexOf(qualityLow, work)
	highAt := indexOf(qualityHigh, work)
	switch {
	case lowAt >= 0 && (highAt < 0 || lowAt < highAt):
		return intent.DirectionLow
	case highAt >= 0:
		return intent.DirectionHigh
	}

	numHigh := indexOf(numericHigh, work)
	numLow := indexOf(numericLow, work)
	var d intent.Direction
	switch {
	case numHigh >= 0 && (numLow < 0 || numHigh < numLow):
		d = intent.DirectionHigh
	case numLow >= 0:
		d = intent.DirectionLow
	default:
		return intent.DirectionNone
	}
	if polarity == schema.LowerIsBetter {
		if d == intent.DirectionHigh {
			return intent.DirectionLow
		}
		return intent.DirectionHigh
	}
	return d
}

func indexOf(re *regexp.Regexp, s string) int {
	if loc := re.FindStringIndex(s); loc != nil {
		return loc[0]
	}
	return -1
}

func blank(s string, span []int) string {
	if span == nil || span[0] < 0 || span[1] > len(s) {
		return s
	}
	return s[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + s[span[1]:]
}

func confidence(c intent.Candidate) float64 {
	found := 0
	if c.Indicator != nil {
		found++
	}
	if c.Location != nil {
		found++
	}
	if c.Demographic != nil {
		found++
	}
	if c.Direction != intent.DirectionNone || c.Threshold != nil || len(c.Colors) > 0 {
		found++
	}
	return float64(found) / 4
}
