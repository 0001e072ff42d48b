package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Mongo     MongoConfig     `yaml:"mongo"`
	IMAP      IMAPConfig      `yaml:"imap"`
	Mailboxes []MailboxConfig `yaml:"mailboxes"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Google    GoogleConfig    `yaml:"google"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Queues    QueuesConfig    `yaml:"queues"`
	Matching  MatchingConfig  `yaml:"matching"`
	Outbound  OutboundConfig  `yaml:"outbound"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with environment override
func (c ServerConfig) GetHost() string {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// IMAPConfig holds the legacy direct-mailbox credentials. The Graph adapter
// replaced this path; the fields are kept so old deployments keep parsing.
type IMAPConfig struct {
	Email string `yaml:"email"`
	PW    string `yaml:"pw"`
}

// MailboxConfig holds one Microsoft Graph mailbox registration
type MailboxConfig struct {
	Name         string `yaml:"name"`
	TenantID     string `yaml:"tenant_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	UserID       string `yaml:"user_id"`
}

// Configured reports whether the group carries a usable app registration.
func (c MailboxConfig) Configured() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != ""
}

// OpenAIConfig holds the extraction oracle configuration
type OpenAIConfig struct {
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	Workers        int     `yaml:"workers"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c OpenAIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GoogleConfig holds the geocoding API configuration
type GoogleConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PipelineConfig holds pacing knobs for the task set
type PipelineConfig struct {
	AttemptIntervalSeconds   int `yaml:"attempt_interval_seconds"`
	ReadBatchSize            int `yaml:"read_batch_size"`
	ReadLimit                int `yaml:"read_limit"`
	ExtractionPaceSeconds    int `yaml:"extraction_pace_seconds"`
	MatchScanIntervalSeconds int `yaml:"match_scan_interval_seconds"`
}

// AttemptInterval returns the full-queue retry pause as a duration
func (c PipelineConfig) AttemptInterval() time.Duration {
	return time.Duration(c.AttemptIntervalSeconds) * time.Second
}

// ExtractionPace returns the pause between extraction dispatches
func (c PipelineConfig) ExtractionPace() time.Duration {
	return time.Duration(c.ExtractionPaceSeconds) * time.Second
}

// MatchScanInterval returns the pause between unpaired-ship scans
func (c PipelineConfig) MatchScanInterval() time.Duration {
	return time.Duration(c.MatchScanIntervalSeconds) * time.Second
}

// QueuesConfig holds the four stage-queue capacities
type QueuesConfig struct {
	Mailbox    int `yaml:"mailbox"`
	Extraction int `yaml:"extraction"`
	Matching   int `yaml:"matching"`
	Outbound   int `yaml:"outbound"`
}

// MatchingConfig holds the hard-filter and ranking parameters
type MatchingConfig struct {
	RadiusKM         float64 `yaml:"radius_km"`
	RecencyDays      int     `yaml:"recency_days"`
	TopK             int     `yaml:"top_k"`
	CommissionCap    float64 `yaml:"commission_cap"`
	CapacityBandLow  float64 `yaml:"capacity_band_low"`
	CapacityBandHigh float64 `yaml:"capacity_band_high"`
	MonthWindow      int     `yaml:"month_window"`
}

// OutboundConfig holds the notification mail settings
type OutboundConfig struct {
	Recipients   []string `yaml:"recipients"`
	TemplatePath string   `yaml:"template_path"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "broker"
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com"
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = "gpt-3.5-turbo-1106"
	}
	if cfg.OpenAI.Temperature == 0 {
		cfg.OpenAI.Temperature = 0.2
	}
	if cfg.OpenAI.Workers == 0 {
		cfg.OpenAI.Workers = 5
	}
	if cfg.OpenAI.TimeoutSeconds == 0 {
		cfg.OpenAI.TimeoutSeconds = 120
	}
	if cfg.Google.BaseURL == "" {
		cfg.Google.BaseURL = "https://maps.googleapis.com"
	}
	if cfg.Google.TimeoutSeconds == 0 {
		cfg.Google.TimeoutSeconds = 30
	}
	if cfg.Pipeline.AttemptIntervalSeconds == 0 {
		cfg.Pipeline.AttemptIntervalSeconds = 5
	}
	if cfg.Pipeline.ReadBatchSize == 0 {
		cfg.Pipeline.ReadBatchSize = 50
	}
	if cfg.Pipeline.ExtractionPaceSeconds == 0 {
		cfg.Pipeline.ExtractionPaceSeconds = 1
	}
	if cfg.Pipeline.MatchScanIntervalSeconds == 0 {
		cfg.Pipeline.MatchScanIntervalSeconds = 60
	}
	if cfg.Queues.Mailbox == 0 {
		cfg.Queues.Mailbox = 2000
	}
	if cfg.Queues.Extraction == 0 {
		cfg.Queues.Extraction = 500
	}
	if cfg.Queues.Matching == 0 {
		cfg.Queues.Matching = 1500
	}
	if cfg.Queues.Outbound == 0 {
		cfg.Queues.Outbound = 20
	}
	if cfg.Matching.RadiusKM == 0 {
		cfg.Matching.RadiusKM = 1500
	}
	if cfg.Matching.RecencyDays == 0 {
		cfg.Matching.RecencyDays = 31
	}
	if cfg.Matching.TopK == 0 {
		cfg.Matching.TopK = 5
	}
	if cfg.Matching.CommissionCap == 0 {
		cfg.Matching.CommissionCap = 5.0
	}
	if cfg.Matching.CapacityBandLow == 0 {
		cfg.Matching.CapacityBandLow = 0.80
	}
	if cfg.Matching.CapacityBandHigh == 0 {
		cfg.Matching.CapacityBandHigh = 1.20
	}
	if cfg.Matching.MonthWindow == 0 {
		cfg.Matching.MonthWindow = 1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if db := os.Getenv("MONGO_DATABASE"); db != "" {
		cfg.Mongo.Database = db
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.OpenAI.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		cfg.OpenAI.Model = model
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		cfg.Google.APIKey = apiKey
	}
	if baseURL := os.Getenv("GOOGLE_BASE_URL"); baseURL != "" {
		cfg.Google.BaseURL = baseURL
	}
	if email := os.Getenv("IMAP_EMAIL"); email != "" {
		cfg.IMAP.Email = email
	}
	if pw := os.Getenv("IMAP_PW"); pw != "" {
		cfg.IMAP.PW = pw
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	// Azure app registration overrides land on the primary mailbox group,
	// creating it when the file carries none.
	tenant := os.Getenv("AZURE_TENANT_ID")
	client := os.Getenv("AZURE_CLIENT_ID")
	secret := os.Getenv("AZURE_CLIENT_SECRET")
	user := os.Getenv("AZURE_USER_ID")
	if tenant != "" || client != "" || secret != "" || user != "" {
		if len(cfg.Mailboxes) == 0 {
			cfg.Mailboxes = append(cfg.Mailboxes, MailboxConfig{Name: "primary"})
		}
		if tenant != "" {
			cfg.Mailboxes[0].TenantID = tenant
		}
		if client != "" {
			cfg.Mailboxes[0].ClientID = client
		}
		if secret != "" {
			cfg.Mailboxes[0].ClientSecret = secret
		}
		if user != "" {
			cfg.Mailboxes[0].UserID = user
		}
	}

	return cfg, nil
}
