package answerquestion

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"ca-schools-query/internal/pipeline"
	"ca-schools-query/internal/storage"
)

// ==========================
// Fake Zeebe Gateway
// ==========================

// recordingGateway captures job commands and the state of the context each
// one was sent with.
type recordingGateway struct {
	pb.GatewayClient

	completed []*pb.CompleteJobRequest
	failed    []*pb.FailJobRequest
	thrown    []*pb.ThrowErrorRequest
	sendErrs  []error
}

func (g *recordingGateway) CompleteJob(ctx context.Context, in *pb.CompleteJobRequest, _ ...grpc.CallOption) (*pb.CompleteJobResponse, error) {
	g.sendErrs = append(g.sendErrs, ctx.Err())
	g.completed = append(g.completed, in)
	return &pb.CompleteJobResponse{}, ctx.Err()
}

func (g *recordingGateway) FailJob(ctx context.Context, in *pb.FailJobRequest, _ ...grpc.CallOption) (*pb.FailJobResponse, error) {
	g.sendErrs = append(g.sendErrs, ctx.Err())
	g.failed = append(g.failed, in)
	return &pb.FailJobResponse{}, ctx.Err()
}

func (g *recordingGateway) ThrowError(ctx context.Context, in *pb.ThrowErrorRequest, _ ...grpc.CallOption) (*pb.ThrowErrorResponse, error) {
	g.sendErrs = append(g.sendErrs, ctx.Err())
	g.thrown = append(g.thrown, in)
	return &pb.ThrowErrorResponse{}, ctx.Err()
}

func neverRetry(context.Context, error) bool { return false }

type testJobClient struct{ gateway *recordingGateway }

func (c testJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 {
	return commands.NewCompleteJobCommand(c.gateway, neverRetry)
}

func (c testJobClient) NewFailJobCommand() commands.FailJobCommandStep1 {
	return commands.NewFailJobCommand(c.gateway, neverRetry)
}

func (c testJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1 {
	return commands.NewThrowErrorCommand(c.gateway, neverRetry)
}

func activatedJob(variables string, retries int32) entities.Job {
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:       42,
		Type:      TaskType,
		Retries:   retries,
		Variables: variables,
	}}
}

// blockingAnswerer holds the storage query until the job deadline passes.
type blockingAnswerer struct{}

func (blockingAnswerer) Answer(ctx context.Context, question string) (pipeline.Answer, error) {
	<-ctx.Done()
	return pipeline.Answer{}, storage.Unavailable(ctx.Err())
}

func decodeVariables(t *testing.T, raw string) map[string]interface{} {
	t.Helper()
	var vars map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &vars))
	return vars
}

// ==========================
// Handle
// ==========================

func TestHandler_Handle(t *testing.T) {
	const sanJoseMath = `{"question": "Which schools in San Jose have math concerns for English Learner students?", "requestId": "req-7"}`

	tests := []struct {
		name    string
		handler func(t *testing.T) *Handler
		vars    string
		verify  func(t *testing.T, g *recordingGateway)
	}{
		{
			name:    "answered question completes the job",
			handler: func(t *testing.T) *Handler { return createTestHandler(t, testStore()) },
			vars:    sanJoseMath,
			verify: func(t *testing.T, g *recordingGateway) {
				require.Len(t, g.completed, 1)
				assert.Empty(t, g.failed)
				assert.Empty(t, g.thrown)
				assert.Equal(t, int64(42), g.completed[0].JobKey)

				vars := decodeVariables(t, g.completed[0].Variables)
				assert.Equal(t, "answered", vars["status"])
				assert.Equal(t, "req-7", vars["requestId"])
				assert.NotEmpty(t, vars["queryId"])
				assert.NotNil(t, vars["payload"])
			},
		},
		{
			name:    "clarification completes the job",
			handler: func(t *testing.T) *Handler { return createTestHandler(t, testStore()) },
			vars:    `{"question": "how are the schools in Fresno doing?"}`,
			verify: func(t *testing.T, g *recordingGateway) {
				require.Len(t, g.completed, 1)
				vars := decodeVariables(t, g.completed[0].Variables)
				assert.Equal(t, "clarification_needed", vars["status"])
				assert.Equal(t, []interface{}{"indicator"}, vars["ambiguousFields"])
				assert.NotEmpty(t, vars["clarification"])
			},
		},
		{
			name: "storage unavailable fails with retries",
			handler: func(t *testing.T) *Handler {
				return NewHandler(&Config{Timeout: time.Second},
					stubAnswerer{err: storage.Unavailable(errors.New("connection refused"))}, createTestLogger(t))
			},
			vars: sanJoseMath,
			verify: func(t *testing.T, g *recordingGateway) {
				assert.Empty(t, g.completed)
				assert.Empty(t, g.thrown)
				require.Len(t, g.failed, 1)
				assert.Equal(t, int32(2), g.failed[0].Retries)
				assert.Equal(t, "STORAGE_UNAVAILABLE", decodeVariables(t, g.failed[0].Variables)["originalErrorCode"])
			},
		},
		{
			name:    "invalid input throws a BPMN error",
			handler: func(t *testing.T) *Handler { return createTestHandler(t, testStore()) },
			vars:    `{"requestId": "req-8"}`,
			verify: func(t *testing.T, g *recordingGateway) {
				assert.Empty(t, g.completed)
				assert.Empty(t, g.failed)
				require.Len(t, g.thrown, 1)
				assert.Equal(t, "INVALID_INPUT", g.thrown[0].ErrorCode)
			},
		},
		{
			name: "unexpected error throws without retries",
			handler: func(t *testing.T) *Handler {
				return NewHandler(&Config{Timeout: time.Second}, stubAnswerer{err: errors.New("boom")}, createTestLogger(t))
			},
			vars: sanJoseMath,
			verify: func(t *testing.T, g *recordingGateway) {
				assert.Empty(t, g.failed)
				require.Len(t, g.thrown, 1)
				assert.Equal(t, "INTERNAL_ERROR", g.thrown[0].ErrorCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gateway := &recordingGateway{}

			tt.handler(t).Handle(testJobClient{gateway: gateway}, activatedJob(tt.vars, 3))

			tt.verify(t, gateway)
			for _, err := range gateway.sendErrs {
				assert.NoError(t, err, "job command sent with a dead context")
			}
		})
	}
}

func TestHandler_Handle_StorageTimeoutStillReportsFailure(t *testing.T) {
	gateway := &recordingGateway{}
	h := NewHandler(&Config{Timeout: 20 * time.Millisecond}, blockingAnswerer{}, createTestLogger(t))

	h.Handle(testJobClient{gateway: gateway}, activatedJob(`{"question": "math in Oakland"}`, 3))

	require.Len(t, gateway.failed, 1)
	assert.Empty(t, gateway.thrown)
	assert.Equal(t, []error{nil}, gateway.sendErrs)
	assert.Equal(t, int32(2), gateway.failed[0].Retries)
	assert.Equal(t, "STORAGE_TIMEOUT", decodeVariables(t, gateway.failed[0].Variables)["originalErrorCode"])
}

func TestHandler_Handle_LastRetryThrows(t *testing.T) {
	gateway := &recordingGateway{}
	h := NewHandler(&Config{Timeout: time.Second},
		stubAnswerer{err: storage.Unavailable(errors.New("connection refused"))}, createTestLogger(t))

	h.Handle(testJobClient{gateway: gateway}, activatedJob(`{"question": "math in Oakland"}`, 0))

	assert.Empty(t, gateway.failed)
	require.Len(t, gateway.thrown, 1)
	assert.Equal(t, "STORAGE_UNAVAILABLE", gateway.thrown[0].ErrorCode)
}
