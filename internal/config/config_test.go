package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

mongo:
  uri: "mongodb://db.internal:27017"
  database: "broker_test"

mailboxes:
  - name: "chartering"
    tenant_id: "tenant-1"
    client_id: "client-1"
    client_secret: "secret-1"
    user_id: "ops@example.com"
  - name: "fixtures"
    tenant_id: "tenant-2"
    client_id: "client-2"
    client_secret: "secret-2"

openai:
  api_key: "test-api-key"
  model: "gpt-4o-mini"
  temperature: 0.4
  workers: 3

pipeline:
  attempt_interval_seconds: 2
  read_batch_size: 25
  read_limit: 500

queues:
  mailbox: 100
  extraction: 50
  matching: 75
  outbound: 5

matching:
  radius_km: 900
  top_k: 3

outbound:
  recipients:
    - "desk@example.com"
    - "backup@example.com"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Test server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Test mongo config
	assert.Equal(t, "mongodb://db.internal:27017", cfg.Mongo.URI)
	assert.Equal(t, "broker_test", cfg.Mongo.Database)

	// Test mailbox groups
	require.Len(t, cfg.Mailboxes, 2)
	assert.Equal(t, "chartering", cfg.Mailboxes[0].Name)
	assert.Equal(t, "tenant-1", cfg.Mailboxes[0].TenantID)
	assert.Equal(t, "ops@example.com", cfg.Mailboxes[0].UserID)
	assert.True(t, cfg.Mailboxes[0].Configured())
	assert.True(t, cfg.Mailboxes[1].Configured())

	// Test oracle config
	assert.Equal(t, "test-api-key", cfg.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 0.4, cfg.OpenAI.Temperature)
	assert.Equal(t, 3, cfg.OpenAI.Workers)

	// Test pipeline pacing
	assert.Equal(t, 2, cfg.Pipeline.AttemptIntervalSeconds)
	assert.Equal(t, 25, cfg.Pipeline.ReadBatchSize)
	assert.Equal(t, 500, cfg.Pipeline.ReadLimit)

	// Test queue capacities
	assert.Equal(t, 100, cfg.Queues.Mailbox)
	assert.Equal(t, 50, cfg.Queues.Extraction)
	assert.Equal(t, 75, cfg.Queues.Matching)
	assert.Equal(t, 5, cfg.Queues.Outbound)

	// Test matching config (partial file, rest defaulted)
	assert.Equal(t, float64(900), cfg.Matching.RadiusKM)
	assert.Equal(t, 3, cfg.Matching.TopK)
	assert.Equal(t, 31, cfg.Matching.RecencyDays)
	assert.Equal(t, 5.0, cfg.Matching.CommissionCap)

	// Test outbound config
	assert.Equal(t, []string{"desk@example.com", "backup@example.com"}, cfg.Outbound.Recipients)
}

func TestLoadDefaults(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
openai:
  api_key: "test-key"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "broker", cfg.Mongo.Database)
	assert.Equal(t, "https://api.openai.com", cfg.OpenAI.BaseURL)
	assert.Equal(t, "gpt-3.5-turbo-1106", cfg.OpenAI.Model)
	assert.Equal(t, 0.2, cfg.OpenAI.Temperature)
	assert.Equal(t, 5, cfg.OpenAI.Workers)
	assert.Equal(t, "https://maps.googleapis.com", cfg.Google.BaseURL)
	assert.Equal(t, 5, cfg.Pipeline.AttemptIntervalSeconds)
	assert.Equal(t, 50, cfg.Pipeline.ReadBatchSize)
	assert.Equal(t, 0, cfg.Pipeline.ReadLimit)
	assert.Equal(t, 2000, cfg.Queues.Mailbox)
	assert.Equal(t, 500, cfg.Queues.Extraction)
	assert.Equal(t, 1500, cfg.Queues.Matching)
	assert.Equal(t, 20, cfg.Queues.Outbound)
	assert.Equal(t, float64(1500), cfg.Matching.RadiusKM)
	assert.Equal(t, 5, cfg.Matching.TopK)
	assert.Equal(t, 0.80, cfg.Matching.CapacityBandLow)
	assert.Equal(t, 1.20, cfg.Matching.CapacityBandHigh)
	assert.Equal(t, 1, cfg.Matching.MonthWindow)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
mongo:
  uri: "mongodb://file-host:27017"

openai:
  api_key: "file-key"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set environment variables
	os.Setenv("MONGO_URI", "mongodb://env-host:27017")
	os.Setenv("OPENAI_API_KEY", "env-key")
	os.Setenv("AZURE_TENANT_ID", "env-tenant")
	os.Setenv("AZURE_CLIENT_ID", "env-client")
	os.Setenv("AZURE_CLIENT_SECRET", "env-secret")
	defer func() {
		os.Unsetenv("MONGO_URI")
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("AZURE_TENANT_ID")
		os.Unsetenv("AZURE_CLIENT_ID")
		os.Unsetenv("AZURE_CLIENT_SECRET")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "mongodb://env-host:27017", cfg.Mongo.URI)
	assert.Equal(t, "env-key", cfg.OpenAI.APIKey)

	// Azure env vars create the primary mailbox group when the file has none
	require.Len(t, cfg.Mailboxes, 1)
	assert.Equal(t, "primary", cfg.Mailboxes[0].Name)
	assert.Equal(t, "env-tenant", cfg.Mailboxes[0].TenantID)
	assert.True(t, cfg.Mailboxes[0].Configured())
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	cfg := OpenAIConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*1000000000, int(cfg.Timeout().Nanoseconds()))
}

func TestAttemptInterval(t *testing.T) {
	cfg := PipelineConfig{AttemptIntervalSeconds: 5}
	assert.Equal(t, 5*1000000000, int(cfg.AttemptInterval().Nanoseconds()))
}
