package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ca-schools-query/internal/common/logger"
	"ca-schools-query/internal/intent"
	"ca-schools-query/internal/schema"
)

type fakeModel struct {
	text   string
	err    error
	delay  time.Duration
	calls  int32
	prompt string
}

func (f *fakeModel) Name() string { return "fake" }

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func newTestExtractor(t *testing.T, m LanguageModel, cache Cache) *Extractor {
	return New(m, schema.Default(), Config{Timeout: time.Second}, cache, logger.NewTestLogger(t))
}

// ==========================
// Extract
// ==========================

func TestExtract_ValidOutput(t *testing.T) {
	m := &fakeModel{text: "Here you go:\n```json\n" + `{
		"location": "San Jose",
		"indicator": "math",
		"demographic": "EL",
		"direction": "low",
		"threshold": null,
		"colors": ["Red", " orange "],
		"confidence": 0.9
	}` + "\n```"}
	e := newTestExtractor(t, m, nil)

	cand, err := e.Extract(context.Background(), intent.NewRawQuery("Which schools in San Jose have the worst math scores for English learners?"))
	require.NoError(t, err)

	assert.Equal(t, intent.SourceExtractor, cand.Source)
	require.NotNil(t, cand.Location)
	assert.Equal(t, "San Jose", *cand.Location)
	assert.Equal(t, "math", *cand.Indicator)
	assert.Equal(t, "EL", *cand.Demographic)
	assert.Equal(t, intent.DirectionLow, cand.Direction)
	assert.Nil(t, cand.Threshold)
	assert.Equal(t, []schema.Color{schema.Red, schema.Orange}, cand.Colors)
	assert.InDelta(t, 0.9, cand.Confidence, 1e-9)

	assert.Contains(t, m.prompt, "San Jose have the worst math")
	assert.Contains(t, m.prompt, `"chronic_absenteeism"`)
}

func TestExtract_IdentifiersPassThroughUnvalidated(t *testing.T) {
	m := &fakeModel{text: `{"indicator": "reading_fluency", "demographic": "martians", "location": "", "direction": "sideways_not_allowed"}`}
	e := newTestExtractor(t, m, nil)

	_, err := e.Extract(context.Background(), intent.NewRawQuery("q"))
	// direction is constrained by the output schema
	require.ErrorIs(t, err, ErrExtractionFailed)

	m.text = `{"indicator": "reading_fluency", "demographic": "martians", "location": "  ", "direction": "none", "threshold": {"value": 90, "comparator": "at_least"}}`
	cand, err := e.Extract(context.Background(), intent.NewRawQuery("q"))
	require.NoError(t, err)
	assert.Equal(t, "reading_fluency", *cand.Indicator)
	assert.Equal(t, "martians", *cand.Demographic)
	assert.Nil(t, cand.Location)
	require.NotNil(t, cand.Threshold)
	assert.Equal(t, intent.AtLeast, cand.Threshold.Comparator)
	assert.Equal(t, 90.0, cand.Threshold.Value)
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{"prose only", "I could not understand the question.", nil},
		{"broken json", `{"indicator": "math",`, nil},
		{"missing indicator key", `{"location": "Fresno"}`, nil},
		{"wrong type", `{"indicator": 42}`, nil},
		{"bad comparator", `{"indicator": "math", "threshold": {"value": 1, "comparator": "near"}}`, nil},
		{"confidence out of range", `{"indicator": "math", "confidence": 7}`, nil},
		{"transport error", "", errors.New("connection reset")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExtractor(t, &fakeModel{text: tt.text, err: tt.err}, nil)
			_, err := e.Extract(context.Background(), intent.NewRawQuery("math in Fresno"))
			assert.ErrorIs(t, err, ErrExtractionFailed)
			assert.NotErrorIs(t, err, ErrExtractionTimeout)
		})
	}
}

func TestExtract_Timeout(t *testing.T) {
	m := &fakeModel{text: `{"indicator":"math"}`, delay: 200 * time.Millisecond}
	e := New(m, schema.Default(), Config{Timeout: 20 * time.Millisecond}, nil, logger.NewNoOpLogger())

	start := time.Now()
	_, err := e.Extract(context.Background(), intent.NewRawQuery("math"))
	assert.ErrorIs(t, err, ErrExtractionTimeout)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestExtract_EmptyQuestion(t *testing.T) {
	m := &fakeModel{text: `{"indicator":"math"}`}
	e := newTestExtractor(t, m, nil)

	_, err := e.Extract(context.Background(), intent.NewRawQuery("   "))
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Equal(t, int32(0), m.calls)
}

func TestNew_DefaultTimeout(t *testing.T) {
	e := New(&fakeModel{}, schema.Default(), Config{}, nil, nil)
	assert.Equal(t, DefaultTimeout, e.timeout)
	assert.Equal(t, "fake", e.ModelName())
}

// ==========================
// Gateway model
// ==========================

func TestGatewayModel_Generate(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/api/ai/generate", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req gatewayRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "the prompt", req.Prompt)

		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(gatewayResponse{Text: `{"indicator":"ela"}`})
	}))
	defer srv.Close()

	m := NewGatewayModel(srv.URL, "secret", 2, srv.Client())
	text, err := m.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"indicator":"ela"}`, text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "gateway:"+srv.URL, m.Name())
}

func TestGatewayModel_ClientErrorNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewGatewayModel(srv.URL, "", 3, nil)
	_, err := m.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGatewayModel_RetriesExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewGatewayModel(srv.URL, "", 2, nil)
	_, err := m.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestGatewayModel_EmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	}))
	defer srv.Close()

	_, err := NewGatewayModel(srv.URL, "", 0, nil).Generate(context.Background(), "p")
	assert.ErrorIs(t, err, errEmptyResponse)
}

func TestGatewayModel_ThroughExtractor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(gatewayResponse{Text: `{"indicator":"ela","location":"San Francisco","direction":"high","confidence":0.8}`})
	}))
	defer srv.Close()

	e := newTestExtractor(t, NewGatewayModel(srv.URL, "", 0, nil), nil)
	cand, err := e.Extract(context.Background(), intent.NewRawQuery("Best ELA schools in San Francisco"))
	require.NoError(t, err)
	assert.Equal(t, "ela", *cand.Indicator)
	assert.Equal(t, intent.DirectionHigh, cand.Direction)
}

// ==========================
// Cache
// ==========================

func TestTieredCache_LocalHitSkipsModel(t *testing.T) {
	cache, err := NewTieredCache(8, nil, time.Minute, "fake", nil)
	require.NoError(t, err)

	m := &fakeModel{text: `{"indicator":"math","confidence":0.5}`}
	e := newTestExtractor(t, m, cache)

	first, err := e.Extract(context.Background(), intent.NewRawQuery("Math in Fresno"))
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), intent.NewRawQuery("  math   in FRESNO "))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), m.calls)
}

func TestTieredCache_FailuresAreNotCached(t *testing.T) {
	cache, err := NewTieredCache(8, nil, time.Minute, "fake", nil)
	require.NoError(t, err)

	m := &fakeModel{text: "nope"}
	e := newTestExtractor(t, m, cache)

	_, err = e.Extract(context.Background(), intent.NewRawQuery("math"))
	require.Error(t, err)
	_, err = e.Extract(context.Background(), intent.NewRawQuery("math"))
	require.Error(t, err)
	assert.Equal(t, int32(2), m.calls)
}

func TestTieredCache_RedisSharedAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	writer, err := NewTieredCache(8, rdb, 10*time.Minute, "fake", nil)
	require.NoError(t, err)
	reader, err := NewTieredCache(8, rdb, 10*time.Minute, "fake", nil)
	require.NoError(t, err)

	cand := intent.Candidate{Source: intent.SourceExtractor, Indicator: intent.StringPtr("ela"), Direction: intent.DirectionHigh}
	writer.Set(context.Background(), "ELA in Oakland", cand)

	got, ok := reader.Get(context.Background(), "ela in oakland")
	require.True(t, ok)
	assert.Equal(t, "ela", *got.Indicator)

	key := writer.key("ELA in Oakland")
	assert.True(t, mr.Exists(key))
	assert.Equal(t, 10*time.Minute, mr.TTL(key))

	other, err := NewTieredCache(8, rdb, time.Minute, "other-model", nil)
	require.NoError(t, err)
	_, ok = other.Get(context.Background(), "ELA in Oakland")
	assert.False(t, ok)
}

func TestTieredCache_RedisErrorsAreMisses(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache, err := NewTieredCache(8, rdb, time.Minute, "fake", nil)
	require.NoError(t, err)

	key := cache.key("math")
	mock.ExpectGet(key).SetErr(errors.New("redis down"))
	_, ok := cache.Get(context.Background(), "math")
	assert.False(t, ok)

	cand := intent.Candidate{Source: intent.SourceExtractor, Indicator: intent.StringPtr("math"), Direction: intent.DirectionNone}
	raw, _ := json.Marshal(cand)
	mock.ExpectSet(key, raw, time.Minute).SetErr(errors.New("redis down"))
	cache.Set(context.Background(), "math", cand)

	// the local tier still serves it
	got, ok := cache.Get(context.Background(), "math")
	assert.True(t, ok)
	assert.Equal(t, "math", *got.Indicator)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTieredCache_CorruptEntryIgnored(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cache, err := NewTieredCache(8, rdb, time.Minute, "fake", nil)
	require.NoError(t, err)

	mock.ExpectGet(cache.key("math")).SetVal("{not json")
	_, ok := cache.Get(context.Background(), "math")
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
