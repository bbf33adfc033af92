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
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	path := writeConfig(t, "app:\n  name: writer\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, 30000, cfg.Orchestration.ModelCallTimeout)
	assert.Equal(t, 250, cfg.Orchestration.RetryBackoff)
	assert.Equal(t, 8, cfg.Orchestration.MaxConcurrentGenerations)
	assert.Equal(t, 86400, cfg.Orchestration.CacheTTL)
	assert.Equal(t, 0.4, cfg.Orchestration.LowConfidenceThreshold)
	assert.Equal(t, "openai", cfg.Models.Creative.Provider)
	assert.Equal(t, "anthropic", cfg.Models.Nuanced.Provider)
	assert.Equal(t, "sk-test", cfg.Models.Creative.APIKey)
	assert.Equal(t, "writer", cfg.Telemetry.ServiceName)
	assert.Equal(t, "free", cfg.Tenants.DefaultPlan)
	assert.False(t, cfg.Database.Postgres.Enabled())
	assert.False(t, cfg.Database.Elasticsearch.Enabled())
}

func TestLoadFromFile_ExpandsEnvAndBlanksUnset(t *testing.T) {
	t.Setenv("TEST_REDIS_ADDR", "localhost:6390")
	path := writeConfig(t, `
database:
  redis:
    address: ${TEST_REDIS_ADDR}
  postgres:
    host: ${TEST_UNSET_PG_HOST}
workers:
  generate-email-content:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6390", cfg.Database.Redis.Address)
	assert.Equal(t, "", cfg.Database.Postgres.Host)

	w := GetWorkerConfig(cfg, "generate-email-content")
	assert.True(t, w.Enabled)
	assert.Equal(t, 120000, w.Timeout)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 2*time.Minute, GetDuration(w.Timeout))
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown provider", "models:\n  creative:\n    provider: cohere\n"},
		{"gateway without url", "models:\n  nuanced:\n    provider: gateway\n"},
		{"threshold out of range", "orchestration:\n  low_confidence_threshold: 1.5\n"},
		{"camunda without broker", "camunda:\n  enabled: true\n"},
		{"sns without topic", "notifications:\n  sns:\n    enabled: true\n"},
		{"ses without sender", "notifications:\n  ses:\n    enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "tenants", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=tenants sslmode=disable", p.GetDSN())
	assert.True(t, p.Enabled())
}
