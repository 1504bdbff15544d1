// internal/workers/schools/answer-question/handler.go
package answerquestion

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"ca-schools-query/internal/common/errors"
	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/common/metrics"
	"ca-schools-query/internal/common/validation"
	"ca-schools-query/internal/pipeline"
	"ca-schools-query/internal/storage"
)

const TaskType = "answer-school-question"

var (
	inputValidator  = validation.MustCompile("answer-question-input", inputSchema)
	outputValidator = validation.MustCompile("answer-question-output", outputSchema)
)

// Answerer is satisfied by *pipeline.Pipeline.
type Answerer interface {
	Answer(ctx context.Context, question string) (pipeline.Answer, error)
}

type Handler struct {
	config     *Config
	answerer   Answerer
	errHandler *errors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, answerer Answerer, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		answerer:   answerer,
		errHandler: errors.NewErrorHandler(log),
		logger:     log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	raw := []byte(job.GetVariables())
	if result := inputValidator.ValidateJSON(raw); !result.Valid {
		return nil, errors.NewInvalidInputError(result.Err().Error())
	}

	var input Input
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute answers one question. A clarification request is a successful
// outcome; only invalid input and storage failures are errors.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil {
		return nil, errors.NewInvalidInputError("input cannot be nil")
	}

	ans, err := h.answerer.Answer(ctx, input.Question)
	if err != nil {
		return nil, classify(ctx, err)
	}

	output := &Output{
		Status:    string(ans.Status),
		QueryID:   ans.QueryID,
		RequestID: input.RequestID,
		Payload:   ans.Payload,
	}
	if ans.Ambiguity != nil {
		output.AmbiguousFields = ans.Ambiguity.Fields
		output.Clarification = ans.Clarification
	}

	if result := outputValidator.Validate(output); !result.Valid {
		return nil, errors.NewResponseValidationFailedError(result.Err().Error())
	}
	return output, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case stderrors.Is(err, pipeline.ErrEmptyQuestion):
		return errors.NewInvalidInputError(err.Error())
	case stderrors.Is(err, storage.ErrStorageUnavailable):
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.NewStorageTimeoutError(err)
		}
		return errors.NewStorageUnavailableError(err)
	}
	return errors.NewInternalError(err)
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(errors.ErrCodeInternal)
	if stdErr, ok := errors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	ctx, cancel := errors.CommandContext(ctx)
	defer cancel()
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err,
		})
	}
}
