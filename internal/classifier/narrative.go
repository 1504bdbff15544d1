package classifier

import (
	"fmt"
	"math"
	"strings"

	"ca-schools-query/internal/schema"
)

// narrativeListSize caps the schools listed in a multi-school narrative.
const narrativeListSize = 8

// FormatValue renders a value in the dashboard's own terms.
func FormatValue(unit schema.Unit, v *float64) string {
	if v == nil {
		return "no data"
	}
	if unit == schema.UnitPointsFromStandard {
		dir := "above"
		if *v < 0 {
			dir = "below"
		}
		return fmt.Sprintf("%.1f pts %s standard", math.Abs(*v), dir)
	}
	return fmt.Sprintf("%.1f%%", *v)
}

// BandLabel is the display form of a band color.
func BandLabel(c schema.Color) string {
	if c == schema.NoData {
		return "No Data"
	}
	s := string(c)
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// narrate is the template answer used when no narrative model is available.
func (c *Classifier) narrate(spec schema.IndicatorSpec, p ResponsePayload) string {
	scope := spec.Name
	if g, err := c.registry.Demographic(p.Filter.Demographic); err == nil && g.Code != schema.AllStudents {
		scope += " for " + g.Name
	}
	if p.Filter.Location != "" {
		scope += " in " + p.Filter.Location
	}

	switch {
	case len(p.Records) == 0:
		return fmt.Sprintf("No schools matched %s.", scope)
	case len(p.Records) == 1 && p.TotalMatches <= 1:
		r := p.Records[0]
		return fmt.Sprintf("**%s** (%s)\n• %s: **%s** (%s)",
			r.SchoolName, r.District, spec.Name, BandLabel(r.Band), r.Display)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Found %d schools** for %s:", p.TotalMatches, scope)
	for i, r := range p.Records {
		if i == narrativeListSize {
			break
		}
		fmt.Fprintf(&b, "\n• **%s** (%s): %s (%s)", r.SchoolName, r.District, BandLabel(r.Band), r.Display)
	}
	if listed := min(len(p.Records), narrativeListSize); p.TotalMatches > listed {
		fmt.Fprintf(&b, "\n*...and %d more schools*", p.TotalMatches-listed)
	}
	return b.String()
}
