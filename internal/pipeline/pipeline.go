// internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"ca-schools-query/internal/classifier"
	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/common/metrics"
	"ca-schools-query/internal/common/observability"
	"ca-schools-query/internal/extractor"
	"ca-schools-query/internal/fallback"
	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/query"
	"ca-schools-query/internal/schema"
	"ca-schools-query/internal/storage"
)

var ErrEmptyQuestion = errors.New("question is empty")

// MaxQuestionLength bounds, in runes, the text sent to the language model.
const MaxQuestionLength = 500

type Status string

const (
	StatusAnswered            Status = "answered"
	StatusClarificationNeeded Status = "clarification_needed"
)

// Answer is either a payload or a request for clarification.
type Answer struct {
	Status        Status                      `json:"status"`
	QueryID       string                      `json:"query_id"`
	Payload       *classifier.ResponsePayload `json:"payload,omitempty"`
	Ambiguity     *intent.Ambiguity           `json:"ambiguity,omitempty"`
	Clarification string                      `json:"clarification,omitempty"`
}

// Extractor is the language-model side of intent derivation.
type Extractor interface {
	Extract(ctx context.Context, q intent.RawQuery) (intent.Candidate, error)
}

type Config struct {
	MaxRows     int
	MergePolicy intent.Policy
}

type Pipeline struct {
	registry   *schema.Registry
	extractor  Extractor
	fallback   *fallback.Interpreter
	merger     *intent.Merger
	builder    *query.Builder
	store      storage.Store
	classifier *classifier.Classifier
	obs        *observability.Observability
	logger     logger.Logger
}

// New wires the stages. ext may be nil, in which case every question runs
// on the fallback interpreter alone. obs may be nil.
func New(registry *schema.Registry, ext Extractor, store storage.Store, cfg Config, obs *observability.Observability, log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Pipeline{
		registry:   registry,
		extractor:  ext,
		fallback:   fallback.New(registry),
		merger:     intent.NewMerger(registry, cfg.MergePolicy, log),
		builder:    query.NewBuilder(registry, cfg.MaxRows),
		store:      store,
		classifier: classifier.New(registry, log),
		obs:        obs,
		logger:     logger.Component(log, "pipeline"),
	}
}

// Answer runs one question end to end. The error is non-nil only for an
// empty question or storage failure (wrapping storage.ErrStorageUnavailable).
func (p *Pipeline) Answer(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		p.record(ctx, "invalid_input")
		return Answer{}, ErrEmptyQuestion
	}
	if r := []rune(question); len(r) > MaxQuestionLength {
		question = string(r[:MaxQuestionLength])
	}

	q := intent.NewRawQuery(question)
	ctx, span := p.obs.StartSpan(ctx, "pipeline.answer", attribute.String("query.id", q.ID))
	defer span.End()

	extracted, fallbackCand := p.derive(ctx, q)

	start := time.Now()
	res := p.merger.Merge(extracted, fallbackCand)
	p.obs.RecordStage(ctx, "merge", time.Since(start))

	if res.Ambiguous() {
		span.SetAttributes(attribute.StringSlice("ambiguous.fields", res.Ambiguity.Fields))
		p.record(ctx, string(StatusClarificationNeeded))
		p.logger.Info("question needs clarification", map[string]interface{}{
			"queryId": q.ID,
			"fields":  res.Ambiguity.Fields,
		})
		return Answer{
			Status:        StatusClarificationNeeded,
			QueryID:       q.ID,
			Ambiguity:     res.Ambiguity,
			Clarification: p.clarification(res.Ambiguity),
		}, nil
	}

	in := *res.Intent
	for field, src := range in.Provenance {
		metrics.FieldProvenance.WithLabelValues(field, string(src)).Inc()
	}

	f, err := p.builder.Build(in)
	if err != nil {
		// A merged intent always names a registry indicator.
		span.SetStatus(codes.Error, err.Error())
		return Answer{}, fmt.Errorf("build filter: %w", err)
	}

	payload, err := p.execute(ctx, q, in, f)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage unavailable")
		p.record(ctx, "storage_unavailable")
		p.logger.Error("storage query failed", map[string]interface{}{
			"queryId": q.ID,
			"backend": p.store.Name(),
			"error":   err,
		})
		return Answer{}, err
	}

	p.record(ctx, string(StatusAnswered))
	p.logger.Info("question answered", map[string]interface{}{
		"queryId":   q.ID,
		"indicator": in.Indicator,
		"returned":  payload.Returned,
		"total":     payload.TotalMatches,
	})
	return Answer{Status: StatusAnswered, QueryID: q.ID, Payload: &payload}, nil
}

// derive runs the extractor and the fallback side by side. Neither can fail
// the request: an extractor error is logged and yields a nil candidate.
func (p *Pipeline) derive(ctx context.Context, q intent.RawQuery) (*intent.Candidate, intent.Candidate) {
	var (
		extracted    *intent.Candidate
		fallbackCand intent.Candidate
		g            errgroup.Group
	)

	g.Go(func() error {
		if p.extractor == nil {
			metrics.ExtractionResults.WithLabelValues("disabled").Inc()
			return nil
		}
		ctx, span := p.obs.StartSpan(ctx, "pipeline.extract")
		defer span.End()

		start := time.Now()
		cand, err := p.extractor.Extract(ctx, q)
		p.obs.RecordStage(ctx, "extract", time.Since(start))
		if err != nil {
			result := "failed"
			if errors.Is(err, extractor.ErrExtractionTimeout) {
				result = "timeout"
			}
			metrics.ExtractionResults.WithLabelValues(result).Inc()
			span.RecordError(err)
			p.logger.Warn("extraction failed, using fallback only", map[string]interface{}{
				"queryId": q.ID,
				"error":   err,
			})
			return nil
		}
		metrics.ExtractionResults.WithLabelValues("ok").Inc()
		extracted = &cand
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		fallbackCand = p.fallback.Interpret(q)
		p.obs.RecordStage(ctx, "fallback", time.Since(start))
		return nil
	})

	_ = g.Wait()
	return extracted, fallbackCand
}

func (p *Pipeline) execute(ctx context.Context, q intent.RawQuery, in intent.Canonical, f query.FilterSpec) (classifier.ResponsePayload, error) {
	ctx, span := p.obs.StartSpan(ctx, "pipeline.storage",
		attribute.String("storage.backend", p.store.Name()),
		attribute.String("indicator", string(f.Indicator)),
	)
	defer span.End()

	start := time.Now()
	cur, err := p.store.Query(ctx, f)
	if err != nil {
		metrics.StorageQueryDuration.WithLabelValues(p.store.Name(), "error").Observe(time.Since(start).Seconds())
		return classifier.ResponsePayload{}, storage.Unavailable(err)
	}

	payload, err := p.classifier.Classify(ctx, q, in, f, cur)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.StorageQueryDuration.WithLabelValues(p.store.Name(), status).Observe(time.Since(start).Seconds())
	p.obs.RecordStage(ctx, "storage", time.Since(start))
	return payload, err
}

func (p *Pipeline) record(ctx context.Context, outcome string) {
	metrics.PipelineAnswers.WithLabelValues(outcome).Inc()
	p.obs.RecordAnswer(ctx, outcome)
}

// clarification phrases a follow-up question for the first unresolved field.
func (p *Pipeline) clarification(a *intent.Ambiguity) string {
	if len(a.Fields) == 0 {
		return ""
	}
	switch a.Fields[0] {
	case intent.FieldIndicator:
		var names []string
		for _, spec := range p.registry.Indicators() {
			names = append(names, strings.ToLower(spec.Name))
		}
		return "Which measure are you asking about? I can look up " + joinOr(names) + "."
	case intent.FieldDemographic:
		var names []string
		for _, g := range p.registry.ListDemographics() {
			names = append(names, g.Name)
		}
		return "Which student group do you mean? Known groups are " + joinOr(names) + "."
	}
	return "Could you rephrase the question with more detail about " + strings.Join(a.Fields, ", ") + "?"
}

func joinOr(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}
