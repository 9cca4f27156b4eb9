package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the comparison service.
type Config struct {
	HTTPPort string

	Database     DatabaseConfig
	Redis        RedisConfig
	Providers    ProvidersConfig
	Orchestrator OrchestratorConfig
	Queue        QueueConfig

	// CatalogPath optionally points to a YAML file that overrides or
	// extends the built-in model catalog.
	CatalogPath string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string
	// DSN is the SQLite file path or Postgres URL.
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. Redis is optional; when the
// address is empty the service runs with in-memory queues and spend totals.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool {
	return c.Address != ""
}

// ProvidersConfig holds backend credentials. A missing key leaves that
// provider family unconfigured; requests naming its models are rejected.
type ProvidersConfig struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
}

// OrchestratorConfig holds streaming tuning knobs.
type OrchestratorConfig struct {
	EventBuffer     int
	RequestBudget   time.Duration
	SlotIdleTimeout time.Duration
	MaxTokens       int
}

// QueueConfig holds history persistence queue settings.
type QueueConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables. All settings have
// defaults; without any environment the service runs on SQLite with
// in-memory queues.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:    getEnvString("HTTP_PORT", "8080"),
		CatalogPath: getEnvString("MODEL_CATALOG_PATH", ""),
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "sqlite"),
			DSN:             getEnvString("DB_DSN", "modelarena.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:      getEnvString("REDIS_ADDRESS", ""),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Providers: ProvidersConfig{
			OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
			OpenAIBaseURL:    getEnvString("OPENAI_BASE_URL", ""),
			AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicBaseURL: getEnvString("ANTHROPIC_BASE_URL", ""),
		},
		Orchestrator: OrchestratorConfig{
			EventBuffer:     getEnvInt("STREAM_EVENT_BUFFER", 64),
			RequestBudget:   getEnvDuration("STREAM_REQUEST_BUDGET", 5*time.Minute),
			SlotIdleTimeout: getEnvDuration("STREAM_SLOT_IDLE_TIMEOUT", 60*time.Second),
			MaxTokens:       getEnvInt("STREAM_MAX_TOKENS", 0),
		},
		Queue: QueueConfig{
			BatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
	}

	return cfg, nil
}
