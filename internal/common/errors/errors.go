// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeExtractionTimeout ErrorCode = "EXTRACTION_TIMEOUT"

	ErrCodeUnknownIndicator   ErrorCode = "UNKNOWN_INDICATOR"
	ErrCodeUnknownDemographic ErrorCode = "UNKNOWN_DEMOGRAPHIC"
	ErrCodeAmbiguousIntent    ErrorCode = "AMBIGUOUS_INTENT"

	ErrCodeQueryBuildFailed   ErrorCode = "QUERY_BUILD_FAILED"
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrCodeStorageTimeout     ErrorCode = "STORAGE_TIMEOUT"

	ErrCodeResponseValidationFailed ErrorCode = "RESPONSE_VALIDATION_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err to a StandardError if one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError creates a non-retryable input validation error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false)
}

// NewExtractionFailedError is informational; the pipeline recovers from it.
func NewExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionFailed, "Language model extraction failed", err.Error(), false)
}

func NewExtractionTimeoutError() *StandardError {
	return newError(ErrCodeExtractionTimeout, "Language model extraction timed out", "", false)
}

func NewUnknownIndicatorError(value string) *StandardError {
	return newError(ErrCodeUnknownIndicator, "Unknown performance indicator", value, false)
}

func NewUnknownDemographicError(value string) *StandardError {
	return newError(ErrCodeUnknownDemographic, "Unknown demographic group", value, false)
}

// NewAmbiguousIntentError names the fields that need user clarification.
func NewAmbiguousIntentError(fields []string) *StandardError {
	e := newError(ErrCodeAmbiguousIntent, "Question needs clarification", strings.Join(fields, ","), false)
	return e.WithMetadata("ambiguousFields", fields)
}

func NewQueryBuildFailedError(err error) *StandardError {
	return newError(ErrCodeQueryBuildFailed, "Could not build storage query", err.Error(), false)
}

// NewStorageUnavailableError is retryable; retries belong to the workflow engine.
func NewStorageUnavailableError(err error) *StandardError {
	return newError(ErrCodeStorageUnavailable, "School data is temporarily unavailable, try again", err.Error(), true)
}

func NewStorageTimeoutError(err error) *StandardError {
	return newError(ErrCodeStorageTimeout, "School data query timed out", err.Error(), true)
}

func NewResponseValidationFailedError(details string) *StandardError {
	return newError(ErrCodeResponseValidationFailed, "Response payload failed validation", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to BPMN error codes. Codes
// missing here are passed through unchanged.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeAmbiguousIntent:          "AMBIGUOUS_INTENT",
	ErrCodeStorageUnavailable:       "STORAGE_UNAVAILABLE",
	ErrCodeStorageTimeout:           "STORAGE_UNAVAILABLE",
	ErrCodeQueryBuildFailed:         "QUERY_BUILD_FAILED",
	ErrCodeResponseValidationFailed: "RESPONSE_VALIDATION_FAILED",
	ErrCodeExtractionFailed:         "EXTRACTION_FAILED",
	ErrCodeExtractionTimeout:        "EXTRACTION_FAILED",
	ErrCodeUnknownIndicator:         "UNKNOWN_INDICATOR",
	ErrCodeUnknownDemographic:       "UNKNOWN_DEMOGRAPHIC",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeStorageUnavailable:
		return 3
	case ErrCodeStorageTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "EXTRACTION"):
		return "LANGUAGE_MODEL"
	case strings.HasPrefix(codeStr, "UNKNOWN") || strings.Contains(codeStr, "AMBIGUOUS"):
		return "INTENT"
	case strings.HasPrefix(codeStr, "STORAGE") || strings.Contains(codeStr, "QUERY"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
