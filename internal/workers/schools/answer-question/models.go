// internal/workers/schools/answer-question/models.go
package answerquestion

import "ca-schools-query/internal/classifier"

type Input struct {
	Question  string `json:"question"`
	RequestID string `json:"requestId,omitempty"`
}

// Output becomes the job's process variables. Payload is set when the
// status is "answered"; AmbiguousFields and Clarification otherwise.
type Output struct {
	Status          string                      `json:"status"`
	QueryID         string                      `json:"queryId"`
	RequestID       string                      `json:"requestId,omitempty"`
	Payload         *classifier.ResponsePayload `json:"payload,omitempty"`
	AmbiguousFields []string                    `json:"ambiguousFields,omitempty"`
	Clarification   string                      `json:"clarification,omitempty"`
}

const inputSchema = `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question":  {"type": "string", "minLength": 1, "maxLength": 4000},
		"requestId": {"type": "string", "maxLength": 128}
	}
}`

const outputSchema = `{
	"type": "object",
	"required": ["status", "queryId"],
	"properties": {
		"status":  {"enum": ["answered", "clarification_needed"]},
		"queryId": {"type": "string", "minLength": 1}
	},
	"oneOf": [
		{
			"properties": {"status": {"const": "answered"}},
			"required": ["payload"]
		},
		{
			"properties": {"status": {"const": "clarification_needed"}},
			"required": ["ambiguousFields", "clarification"]
		}
	]
}`
