package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// ==========================
// LoadFromFile
// ==========================

func TestLoadFromFile_PostgresDefaults(t *testing.T) {
	t.Setenv("GENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: db
    database: dashboard
    user: reader
workers:
  answer-school-question:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "dashboard_results", cfg.Storage.Table)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, ProviderGemini, cfg.APIs.GenAI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.APIs.GenAI.Model)
	assert.Equal(t, 50, cfg.Pipeline.MaxRows)
	assert.Equal(t, "prefer_extractor", cfg.Pipeline.MergePolicy)
	assert.Equal(t, 8*time.Second, GetDuration(cfg.Pipeline.ExtractionTimeout))
	assert.Equal(t, ":8080", cfg.Metrics.Address)

	w := GetWorkerConfig(cfg, "answer-school-question")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_ExpandsPlaceholdersAndEnvSecrets(t *testing.T) {
	t.Setenv("SCHOOLQ_TEST_HOST", "pg.internal")
	t.Setenv("GENAI_API_KEY", "secret-key")
	t.Setenv("DB_PASSWORD", "pw")

	path := writeConfig(t, `
database:
  postgres:
    host: ${SCHOOLQ_TEST_HOST}
    database: dashboard
    user: reader
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pg.internal", cfg.Database.Postgres.Host)
	assert.Equal(t, "secret-key", cfg.APIs.GenAI.APIKey)
	assert.Equal(t, "pw", cfg.Database.Postgres.Password)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "host=pg.internal port=5432")
}

func TestLoadFromFile_MemoryBackend(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: Memory
  data_file: ./testdata/results.json
apis:
  genai:
    provider: none
pipeline:
  merge_policy: prefer_fallback
  max_rows: 20
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, ProviderNone, cfg.APIs.GenAI.Provider)
	assert.Equal(t, "prefer_fallback", cfg.Pipeline.MergePolicy)
	assert.Equal(t, 20, cfg.Pipeline.MaxRows)
}

func TestLoadFromFile_ValidationErrors(t *testing.T) {
	t.Setenv("DB_USER", "")

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "postgres without host",
			body:    "database:\n  postgres:\n    database: d\n    user: u\n",
			wantErr: "database.postgres.host is required",
		},
		{
			name:    "postgres without user",
			body:    "database:\n  postgres:\n    host: h\n    database: d\n",
			wantErr: "database.postgres.user is required",
		},
		{
			name:    "elasticsearch without addresses",
			body:    "storage:\n  backend: elasticsearch\n",
			wantErr: "database.elasticsearch.addresses is required",
		},
		{
			name:    "memory without data file",
			body:    "storage:\n  backend: memory\n",
			wantErr: "storage.data_file is required",
		},
		{
			name:    "unknown backend",
			body:    "storage:\n  backend: sqlite\n",
			wantErr: `unknown storage.backend "sqlite"`,
		},
		{
			name:    "gateway without base url",
			body:    "storage:\n  backend: memory\n  data_file: x.json\napis:\n  genai:\n    provider: gateway\n",
			wantErr: "apis.genai.base_url is required",
		},
		{
			name:    "unknown provider",
			body:    "storage:\n  backend: memory\n  data_file: x.json\napis:\n  genai:\n    provider: openai\n",
			wantErr: `unknown apis.genai.provider "openai"`,
		},
		{
			name:    "unknown merge policy",
			body:    "storage:\n  backend: memory\n  data_file: x.json\npipeline:\n  merge_policy: highest_confidence\n",
			wantErr: "pipeline.merge_policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

// ==========================
// Worker helpers
// ==========================

func TestIsWorkerEnabled(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"answer-school-question": {Enabled: false},
	}}
	assert.False(t, IsWorkerEnabled(cfg, "answer-school-question"))
	assert.True(t, IsWorkerEnabled(cfg, "unlisted"))
}
