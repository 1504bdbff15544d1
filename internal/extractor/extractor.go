// internal/extractor/extractor.go
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/schema"
)

var (
	// ErrExtractionFailed covers every way the model can fail to produce a
	// usable candidate: transport errors, non-JSON output, schema violations.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrExtractionTimeout wraps ErrExtractionFailed.
	ErrExtractionTimeout = fmt.Errorf("%w: timeout", ErrExtractionFailed)
)

const DefaultTimeout = 8 * time.Second

type Config struct {
	Timeout time.Duration
}

// Extractor asks a language model to interpret a question against the
// registry vocabulary. Its output is a Candidate; nothing it returns is
// trusted until the merger validates it.
type Extractor struct {
	model   LanguageModel
	context string
	timeout time.Duration
	cache   Cache
	logger  logger.Logger
}

// New builds an Extractor. cache may be nil.
func New(model LanguageModel, registry *schema.Registry, cfg Config, cache Cache, log logger.Logger) *Extractor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Extractor{
		model:   model,
		context: registry.ContextJSON(),
		timeout: cfg.Timeout,
		cache:   cache,
		logger:  logger.Component(log, "extractor"),
	}
}

func (e *Extractor) ModelName() string { return e.model.Name() }

// Extract returns the model's candidate for q. Every failure wraps
// ErrExtractionFailed.
func (e *Extractor) Extract(ctx context.Context, q intent.RawQuery) (intent.Candidate, error) {
	if strings.TrimSpace(q.Text) == "" {
		return intent.Candidate{}, fmt.Errorf("%w: empty question", ErrExtractionFailed)
	}

	if e.cache != nil {
		if cand, ok := e.cache.Get(ctx, q.Text); ok {
			e.logger.Debug("extraction cache hit", map[string]interface{}{"queryId": q.ID})
			return cand, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	text, err := e.model.Generate(ctx, buildPrompt(e.context, q.Text))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return intent.Candidate{}, fmt.Errorf("%w after %s", ErrExtractionTimeout, e.timeout)
		}
		return intent.Candidate{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	cand, err := parseCandidate(text)
	if err != nil {
		e.logger.Warn("unusable model output", map[string]interface{}{
			"queryId": q.ID,
			"model":   e.model.Name(),
			"error":   err,
		})
		return intent.Candidate{}, err
	}

	e.logger.Debug("extraction complete", map[string]interface{}{
		"queryId":    q.ID,
		"model":      e.model.Name(),
		"durationMs": time.Since(start).Milliseconds(),
		"confidence": cand.Confidence,
	})

	if e.cache != nil {
		e.cache.Set(ctx, q.Text, cand)
	}
	return cand, nil
}

// parseCandidate pulls the first JSON object out of text, validates it and
// maps it to a Candidate. Identifiers are passed through unvalidated.
func parseCandidate(text string) (intent.Candidate, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return intent.Candidate{}, fmt.Errorf("%w: no JSON object in model output", ErrExtractionFailed)
	}
	if res := intentSchema.ValidateJSON(raw); !res.Valid {
		return intent.Candidate{}, fmt.Errorf("%w: %v", ErrExtractionFailed, res.Err())
	}

	var w wireIntent
	if err := json.Unmarshal(raw, &w); err != nil {
		return intent.Candidate{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	cand := intent.Candidate{
		Source:      intent.SourceExtractor,
		Location:    nonBlank(w.Location),
		Indicator:   nonBlank(w.Indicator),
		Demographic: nonBlank(w.Demographic),
		Direction:   intent.DirectionNone,
		Confidence:  w.Confidence,
	}
	if w.Direction != nil {
		cand.Direction = intent.ParseDirection(*w.Direction)
	}
	if w.Threshold != nil {
		cand.Threshold = &intent.Threshold{
			Value:      w.Threshold.Value,
			Comparator: intent.Comparator(w.Threshold.Comparator),
		}
	}
	for _, c := range w.Colors {
		cand.Colors = append(cand.Colors, schema.Color(strings.ToLower(strings.TrimSpace(c))))
	}
	return cand, nil
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" || strings.EqualFold(t, "null") {
		return nil
	}
	return &t
}
