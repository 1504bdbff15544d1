package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReadiness map[string]error

func (f fakeReadiness) Ready(ctx context.Context) map[string]error { return f }

func TestMux_Health(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(fakeReadiness{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMux_Ready(t *testing.T) {
	tests := []struct {
		name       string
		failed     fakeReadiness
		wantStatus int
		wantBody   string
	}{
		{name: "all probes pass", failed: fakeReadiness{}, wantStatus: http.StatusOK, wantBody: "ready"},
		{
			name:       "postgres down",
			failed:     fakeReadiness{"postgres": errors.New("postgres ping failed: connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "not_ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMux(tt.failed).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body["status"])
			if len(tt.failed) > 0 {
				assert.Contains(t, body["failed"], "postgres")
			}
		})
	}
}

func TestMux_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newMux(fakeReadiness{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
