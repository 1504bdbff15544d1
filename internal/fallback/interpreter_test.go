package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/schema"
)

func interpret(t *testing.T, text string) intent.Candidate {
	t.Helper()
	return New(schema.Default()).Interpret(intent.NewRawQuery(text))
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ==========================
// Full Question Scenarios
// ==========================

func TestInterpret_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		question    string
		indicator   string
		demographic string
		location    string
		direction   intent.Direction
	}{
		{
			name:        "math concerns for english learners",
			question:    "Which schools in San Jose have math concerns for English Learner students?",
			indicator:   "math_performance",
			demographic: "EL",
			location:    "San Jose",
			direction:   intent.DirectionLow,
		},
		{
			name:      "high performing ela",
			question:  "Show me high-performing ELA schools in San Francisco",
			indicator: "ela_performance",
			location:  "San Francisco",
			direction: intent.DirectionHigh,
		},
		{
			name:      "highest absenteeism flips to low quality",
			question:  "Which schools have the highest chronic absenteeism in Fresno?",
			indicator: "chronic_absenteeism",
			location:  "Fresno",
			direction: intent.DirectionLow,
		},
		{
			name:      "lowest suspensions flips to high quality",
			question:  "Schools with the lowest suspension rates",
			indicator: "suspension_rate",
			direction: intent.DirectionHigh,
		},
		{
			name:        "demographic phrase does not leak direction",
			question:    "low income students with poor attendance in Stockton",
			indicator:   "chronic_absenteeism",
			demographic: "SED",
			location:    "Stockton",
			direction:   intent.DirectionLow,
		},
		{
			name:      "below standard without a number is low",
			question:  "Which schools in Santa Ana have math scores below standard?",
			indicator: "math_performance",
			location:  "Santa Ana",
			direction: intent.DirectionLow,
		},
		{
			name:      "above standard without a number is high",
			question:  "ELA schools above the standard in Irvine",
			indicator: "ela_performance",
			location:  "Irvine",
			direction: intent.DirectionHigh,
		},
		{
			name:      "indicator phrase wins over group phrase",
			question:  "english learner progress in Fresno",
			indicator: "english_learner_progress",
			location:  "Fresno",
			direction: intent.DirectionNone,
		},
		{
			name:      "district beats city",
			question:  "graduation in Oakland Unified",
			indicator: "graduation_rate",
			location:  "Oakland Unified",
			direction: intent.DirectionNone,
		},
		{
			name:      "uppercase alias",
			question:  "struggling math schools in LAUSD",
			indicator: "math_performance",
			location:  "Los Angeles Unified",
			direction: intent.DirectionLow,
		},
		{
			name:      "capitalized place outside gazetteer",
			question:  "How is math in Lemoore?",
			indicator: "math_performance",
			location:  "Lemoore",
			direction: intent.DirectionNone,
		},
		{
			name:      "high school is not a direction",
			question:  "graduation at high schools in Modesto",
			indicator: "graduation_rate",
			location:  "Modesto",
			direction: intent.DirectionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := interpret(t, tt.question)
			assert.Equal(t, intent.SourceFallback, c.Source)
			assert.Equal(t, tt.indicator, deref(c.Indicator))
			assert.Equal(t, tt.demographic, deref(c.Demographic))
			assert.Equal(t, tt.location, deref(c.Location))
			assert.Equal(t, tt.direction, c.Direction)
		})
	}
}

// ==========================
// Field-Level Behavior
// ==========================

func TestInterpret_VocabularyIsNotAPlace(t *testing.T) {
	c := interpret(t, "How are English Learners doing in Math?")
	assert.Equal(t, "math_performance", deref(c.Indicator))
	assert.Equal(t, "EL", deref(c.Demographic))
	assert.Nil(t, c.Location)
}

func TestInterpret_StatewideIsNotAPlace(t *testing.T) {
	c := interpret(t, "Which schools in California have the worst graduation rates?")
	assert.Equal(t, "graduation_rate", deref(c.Indicator))
	assert.Nil(t, c.Location)
	assert.Equal(t, intent.DirectionLow, c.Direction)
}

func TestInterpret_Threshold(t *testing.T) {
	c := interpret(t, "graduation rate above 90% for Hispanic students in Oakland")
	require.NotNil(t, c.Threshold)
	assert.Equal(t, 90.0, c.Threshold.Value)
	assert.Equal(t, intent.Above, c.Threshold.Comparator)
	assert.Equal(t, "HI", deref(c.Demographic))
	assert.Equal(t, intent.DirectionNone, c.Direction)
}

func TestInterpret_ThresholdComparators(t *testing.T) {
	tests := map[string]intent.Comparator{
		"suspension rate at least 5%":      intent.AtLeast,
		"absenteeism under 10 percent":     intent.Below,
		"college career no more than 40":   intent.AtMost,
		"graduation greater than 95%":      intent.Above,
		"math lower than -20 points today": intent.Below,
	}
	for question, want := range tests {
		c := interpret(t, question)
		require.NotNil(t, c.Threshold, question)
		assert.Equal(t, want, c.Threshold.Comparator, question)
	}
}

func TestInterpret_DistanceFromStandard(t *testing.T) {
	c := interpret(t, "math scores more than 30 points below standard in LAUSD")
	require.NotNil(t, c.Threshold)
	assert.Equal(t, -30.0, c.Threshold.Value)
	assert.Equal(t, intent.Below, c.Threshold.Comparator)

	c = interpret(t, "ELA at least 10 points above standard")
	require.NotNil(t, c.Threshold)
	assert.Equal(t, 10.0, c.Threshold.Value)
	assert.Equal(t, intent.AtLeast, c.Threshold.Comparator)

	c = interpret(t, "ELA 15 pts below the standard")
	require.NotNil(t, c.Threshold)
	assert.Equal(t, -15.0, c.Threshold.Value)
	assert.Equal(t, intent.AtMost, c.Threshold.Comparator)
}

func TestInterpret_Colors(t *testing.T) {
	c := interpret(t, "red or orange ELA schools in Sacramento, not yellow red")
	assert.Equal(t, []schema.Color{schema.Red, schema.Orange, schema.Yellow}, c.Colors)
	assert.Equal(t, "Sacramento", deref(c.Location))
}

func TestInterpret_CountyIsNotAColor(t *testing.T) {
	c := interpret(t, "Orange County schools with green graduation rates")
	assert.Equal(t, "Orange", deref(c.Location))
	assert.Equal(t, []schema.Color{schema.Green}, c.Colors)
	assert.Equal(t, "graduation_rate", deref(c.Indicator))
}

func TestInterpret_NothingRecognized(t *testing.T) {
	c := interpret(t, "What's going on with the weather?")
	assert.Nil(t, c.Indicator)
	assert.Nil(t, c.Demographic)
	assert.Nil(t, c.Location)
	assert.Nil(t, c.Threshold)
	assert.Empty(t, c.Colors)
	assert.Equal(t, intent.DirectionNone, c.Direction)
	assert.Equal(t, 0.0, c.Confidence)
}

func TestInterpret_EmptyText(t *testing.T) {
	c := interpret(t, "")
	assert.Nil(t, c.Indicator)
	assert.Equal(t, 0.0, c.Confidence)
}

func TestInterpret_Confidence(t *testing.T) {
	c := interpret(t, "Which schools in San Jose have math concerns for English Learner students?")
	assert.Equal(t, 1.0, c.Confidence)

	c = interpret(t, "math")
	assert.Equal(t, 0.25, c.Confidence)
}

func TestInterpret_Deterministic(t *testing.T) {
	in := New(schema.Default())
	q := intent.NewRawQuery("worst suspension rates for foster youth in Riverside")
	assert.Equal(t, in.Interpret(q), in.Interpret(q))
}

func TestPhrasePattern(t *testing.T) {
	re := phrasePattern("long-term english learners")
	assert.True(t, re.MatchString("long term english learners"))
	assert.True(t, re.MatchString("long-term english learners"))
	assert.False(t, re.MatchString("longterm english learners"))

	assert.False(t, phrasePattern("math").MatchString("aftermath"))
}

func TestStandardComparator(t *testing.T) {
	assert.Equal(t, intent.Below, standardComparator("more than", "below"))
	assert.Equal(t, intent.Above, standardComparator("more than", "above"))
	assert.Equal(t, intent.Above, standardComparator("less than", "below"))
	assert.Equal(t, intent.AtLeast, standardComparator("at most", "below"))
	assert.Equal(t, intent.AtLeast, standardComparator("", "above"))
}
