// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Orchestration OrchestrationConfig     `mapstructure:"orchestration"`
	Models        ModelsConfig            `mapstructure:"models"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
	Tenants       TenantConfig            `mapstructure:"tenants"`
	Telemetry     TelemetryConfig         `mapstructure:"telemetry"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address      string `mapstructure:"address"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int    `mapstructure:"write_timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// OrchestrationConfig tunes the generation pipeline.
type OrchestrationConfig struct {
	ModelCallTimeout         int     `mapstructure:"model_call_timeout"` // milliseconds
	RetryBackoff             int     `mapstructure:"retry_backoff"`      // milliseconds
	MaxConcurrentGenerations int     `mapstructure:"max_concurrent_generations"`
	CacheTTL                 int     `mapstructure:"cache_ttl"` // seconds
	CacheMaxCost             int64   `mapstructure:"cache_max_cost"`
	LowConfidenceThreshold   float64 `mapstructure:"low_confidence_threshold"`
	DefaultFooter            string  `mapstructure:"default_footer"`
	RegistryPath             string  `mapstructure:"registry_path"`
	PendingTTL               int     `mapstructure:"pending_ttl"` // seconds
}

// ModelsConfig binds the two model classes the router chooses between.
type ModelsConfig struct {
	Creative ModelConfig `mapstructure:"creative"`
	Nuanced  ModelConfig `mapstructure:"nuanced"`
}

// ModelConfig selects a provider adapter and model identifier.
type ModelConfig struct {
	Provider  string `mapstructure:"provider"` // openai | anthropic | gateway
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether a tenant database is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

type ElasticsearchConfig struct {
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	HistoryIndex string   `mapstructure:"history_index"`
}

// Enabled reports whether generation history indexing is configured.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Addresses) > 0
}

type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// NotificationConfig holds reviewer notification settings.
type NotificationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	SNS struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"sns"`
	SES struct {
		Enabled        bool     `mapstructure:"enabled"`
		FromEmail      string   `mapstructure:"from_email"`
		ReviewerEmails []string `mapstructure:"reviewer_emails"`
	} `mapstructure:"ses"`
	ReviewBaseURL string `mapstructure:"review_base_url"`
}

// TenantConfig holds quota settings for the API layer.
type TenantConfig struct {
	PlanLimits  map[string]int `mapstructure:"plan_limits"`
	DefaultPlan string         `mapstructure:"default_plan"`
}

// TelemetryConfig holds tracing and metrics exposition settings.
type TelemetryConfig struct {
	ServiceName      string  `mapstructure:"service_name"`
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
	MetricsPath      string  `mapstructure:"metrics_path"`
}
