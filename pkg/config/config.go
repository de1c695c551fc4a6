package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Reasoning ReasoningConfig
	Budget    BudgetConfig
	Pipeline  PipelineConfig
	Worker    WorkerConfig
	OTEL      OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Name     string
	Env      string
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
	// AllowedOrigins is the CORS allow-list; "*" allows any origin.
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// PoolSize of zero keeps the go-redis default.
	PoolSize    int
	DialTimeout time.Duration
}

// ReasoningConfig holds configuration for the external reasoning API.
type ReasoningConfig struct {
	APIKey        string
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
	StreamTimeout time.Duration
	// ForceModel pins every tier onto one model. Budgets are unaffected.
	ForceModel     string
	RateLimitRPM   int
	RateLimitBurst int
}

// BudgetConfig holds the daily call ceilings enforced by the budget guard.
type BudgetConfig struct {
	GlobalDailyLimit  int64
	PerUserDailyLimit int64
}

// PipelineConfig holds clinical text pipeline settings
type PipelineConfig struct {
	MinTranscriptWords int
	DefaultTier        string
	DefaultEffort      string
	TierPolicyFile     string
}

// WorkerConfig holds background job runner settings
type WorkerConfig struct {
	Concurrency   int
	JobTimeout    time.Duration
	MaxDeliveries int
	QueueName     string
	LockTTL       time.Duration
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: getEnv("APP_NAME", "visitscribe"),
			Env:  getEnv("APP_ENV", "development"),

			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),

			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "visitscribe"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),

			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 0),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Reasoning: ReasoningConfig{
			APIKey:         getEnv("REASONING_API_KEY", ""),
			BaseURL:        getEnv("REASONING_BASE_URL", "https://api.anthropic.com"),
			APIVersion:     getEnv("REASONING_API_VERSION", "2023-06-01"),
			Timeout:        getEnvAsDuration("REASONING_TIMEOUT", 120*time.Second),
			StreamTimeout:  getEnvAsDuration("REASONING_STREAM_TIMEOUT", 300*time.Second),
			ForceModel:     getEnv("REASONING_FORCE_MODEL", ""),
			RateLimitRPM:   getEnvAsInt("REASONING_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("REASONING_RATE_LIMIT_BURST", 5),
		},
		Budget: BudgetConfig{
			GlobalDailyLimit:  int64(getEnvAsInt("BUDGET_GLOBAL_DAILY_LIMIT", 500)),
			PerUserDailyLimit: int64(getEnvAsInt("BUDGET_PER_USER_DAILY_LIMIT", 50)),
		},
		Pipeline: PipelineConfig{
			MinTranscriptWords: getEnvAsInt("PIPELINE_MIN_TRANSCRIPT_WORDS", 50),
			DefaultTier:        getEnv("PIPELINE_DEFAULT_TIER", "basic"),
			DefaultEffort:      getEnv("PIPELINE_DEFAULT_EFFORT", "medium"),
			TierPolicyFile:     getEnv("PIPELINE_TIER_POLICY_FILE", ""),
		},
		Worker: WorkerConfig{
			Concurrency:   getEnvAsInt("WORKER_CONCURRENCY", 4),
			JobTimeout:    getEnvAsDuration("WORKER_JOB_TIMEOUT", 10*time.Minute),
			MaxDeliveries: getEnvAsInt("WORKER_MAX_DELIVERIES", 2),
			QueueName:     getEnv("WORKER_QUEUE_NAME", "jobs:clinical_notes"),
			LockTTL:       getEnvAsDuration("WORKER_LOCK_TTL", 15*time.Minute),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "visitscribe"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if cfg.Budget.GlobalDailyLimit < 0 || cfg.Budget.PerUserDailyLimit < 0 {
		return nil, fmt.Errorf("budget limits must not be negative")
	}
	if cfg.Worker.MaxDeliveries < 1 {
		cfg.Worker.MaxDeliveries = 1
	}

	return cfg, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Bare integers are seconds
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
