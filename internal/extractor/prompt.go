package extractor

import (
	"encoding/json"
	"regexp"
	"strings"

	"ca-schools-query/internal/common/validation"
)

const promptTemplate = `You convert questions about California School Dashboard data into a JSON query intent.

Vocabulary (use only these ids):
{{CONTEXT}}

Return one JSON object with exactly these keys:
- "location": city, county, district or school name mentioned in the question, or null
- "indicator": one indicator id from the vocabulary, or null if none is clearly asked about
- "demographic": one demographic id from the vocabulary, or null
- "direction": "high" when the user wants strong or good results, "low" when they want weak, concerning or problem results, otherwise "none".
  Judge quality, not the raw number: "high absenteeism" is "low" because lower absenteeism is better.
- "threshold": {"value": number, "comparator": "above"|"at_least"|"below"|"at_most"} when the question states a number, otherwise null
- "colors": list of dashboard colors named in the question (red, orange, yellow, green, blue), or []
- "confidence": number between 0 and 1

Do not guess ids that are not in the vocabulary. Do not add commentary.

Question: {{QUESTION}}`

func buildPrompt(context, question string) string {
	return strings.NewReplacer(
		"{{CONTEXT}}", context,
		"{{QUESTION}}", strings.TrimSpace(question),
	).Replace(promptTemplate)
}

// jsonObject finds the outermost {...} in a response that may be wrapped in
// prose or a markdown fence.
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

func extractJSON(text string) (json.RawMessage, bool) {
	raw := jsonObject.FindString(text)
	if raw == "" || !json.Valid([]byte(raw)) {
		return nil, false
	}
	return json.RawMessage(raw), true
}

var intentSchema = validation.MustCompile("extracted-intent", `{
	"type": "object",
	"required": ["indicator"],
	"properties": {
		"location":    {"type": ["string", "null"], "maxLength": 200},
		"indicator":   {"type": ["string", "null"], "maxLength": 100},
		"demographic": {"type": ["string", "null"], "maxLength": 100},
		"direction":   {"type": ["string", "null"], "enum": ["high", "low", "none", null]},
		"threshold": {
			"oneOf": [
				{"type": "null"},
				{
					"type": "object",
					"required": ["value", "comparator"],
					"properties": {
						"value": {"type": "number"},
						"comparator": {"type": "string", "enum": ["above", "at_least", "below", "at_most"]}
					}
				}
			]
		},
		"colors": {
			"type": ["array", "null"],
			"items": {"type": "string"},
			"maxItems": 5
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`)

type wireThreshold struct {
	Value      float64 `json:"value"`
	Comparator string  `json:"comparator"`
}

type wireIntent struct {
	Location    *string        `json:"location"`
	Indicator   *string        `json:"indicator"`
	Demographic *string        `json:"demographic"`
	Direction   *string        `json:"direction"`
	Threshold   *wireThreshold `json:"threshold"`
	Colors      []string       `json:"colors"`
	Confidence  float64        `json:"confidence"`
}
