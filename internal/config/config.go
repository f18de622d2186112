// Package config loads service configuration from a YAML file with
// environment variable overrides. A .env file is loaded first if present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	defaultServiceName     = "assessment-worker"
	defaultServiceVersion  = "1.0.0"
	defaultServicePort     = 8090
	defaultConcurrency     = 4
	defaultQueueSize       = 64
	defaultJobTimeout      = 15 * time.Minute
	defaultDBHost          = "localhost"
	defaultDBPort          = 5432
	defaultDBUser          = "postgres"
	defaultDBName          = "assessment"
	defaultDBSSLMode       = "disable"
	defaultDBMaxConns      = 25
	defaultDBMaxIdleConns  = 5
	defaultRedisAddress    = "localhost:6379"
	defaultLeaseTTL        = 20 * time.Minute
	defaultBlobTimeout     = 2 * time.Minute
	defaultTranscriberURL  = "https://api.openai.com/v1"
	defaultTranscribeModel = "whisper-1"
	defaultExternalTimeout = 5 * time.Minute
	defaultExternalRPS     = 2
	defaultAssessorModel   = "claude-sonnet-4-20250514"
	defaultAssessorTokens  = 2048
	defaultLogLevel        = "info"
	defaultLogFormat       = "json"
)

// Config holds all configuration for the assessment worker.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Blob        BlobConfig        `yaml:"blob"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Assessor    AssessorConfig    `yaml:"assessor"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Port        int           `yaml:"port"`
	Debug       bool          `yaml:"debug"`
	Concurrency int           `yaml:"concurrency"`
	QueueSize   int           `yaml:"queue_size"`
	JobTimeout  time.Duration `yaml:"job_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"sslmode"`
	MaxConns     int    `yaml:"max_connections"`
	MaxIdleConns int    `yaml:"max_idle_connections"`
}

// RedisConfig holds Redis configuration for the per-job claim lease.
type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	Database int           `yaml:"database"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// BlobConfig holds blob-store client configuration.
type BlobConfig struct {
	BaseURL string        `yaml:"base_url"`
	Bucket  string        `yaml:"bucket"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

// TranscriberConfig holds transcription service configuration.
type TranscriberConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
	RPS     int           `yaml:"rps"`
}

// AssessorConfig holds assessor (LLM) configuration.
type AssessorConfig struct {
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	RPS       int           `yaml:"rps"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads configuration from the given YAML path (optional) and applies
// environment variable overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	// File-not-found is fine, .env is optional in containerized deployments.
	_ = godotenv.Load(".env")

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, uerr)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Service.Port = getEnvInt("WORKER_PORT", cfg.Service.Port)
	cfg.Service.Debug = getEnvBool("APP_DEBUG", cfg.Service.Debug)
	cfg.Service.Concurrency = getEnvInt("WORKER_CONCURRENCY", cfg.Service.Concurrency)

	cfg.Database.Host = getEnv("POSTGRES_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("POSTGRES_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("POSTGRES_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("POSTGRES_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnv("POSTGRES_DB", cfg.Database.Database)
	cfg.Database.SSLMode = getEnv("POSTGRES_SSLMODE", cfg.Database.SSLMode)

	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Blob.BaseURL = getEnv("BLOB_BASE_URL", cfg.Blob.BaseURL)
	cfg.Blob.Bucket = getEnv("BLOB_BUCKET", cfg.Blob.Bucket)
	cfg.Blob.Token = getEnv("BLOB_TOKEN", cfg.Blob.Token)

	cfg.Transcriber.BaseURL = getEnv("TRANSCRIBER_BASE_URL", cfg.Transcriber.BaseURL)
	cfg.Transcriber.APIKey = getEnv("TRANSCRIBER_API_KEY", cfg.Transcriber.APIKey)
	cfg.Transcriber.Model = getEnv("TRANSCRIBER_MODEL", cfg.Transcriber.Model)

	cfg.Assessor.APIKey = getEnv("ANTHROPIC_API_KEY", cfg.Assessor.APIKey)
	cfg.Assessor.Model = getEnv("ASSESSOR_MODEL", cfg.Assessor.Model)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setDatabaseDefaults(&cfg.Database)
	setRedisDefaults(&cfg.Redis)
	setClientDefaults(cfg)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(s *ServiceConfig) {
	if s.Name == "" {
		s.Name = defaultServiceName
	}
	if s.Version == "" {
		s.Version = defaultServiceVersion
	}
	if s.Port == 0 {
		s.Port = defaultServicePort
	}
	if s.Concurrency == 0 {
		s.Concurrency = defaultConcurrency
	}
	if s.QueueSize == 0 {
		s.QueueSize = defaultQueueSize
	}
	if s.JobTimeout == 0 {
		s.JobTimeout = defaultJobTimeout
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Host == "" {
		d.Host = defaultDBHost
	}
	if d.Port == 0 {
		d.Port = defaultDBPort
	}
	if d.User == "" {
		d.User = defaultDBUser
	}
	if d.Database == "" {
		d.Database = defaultDBName
	}
	if d.SSLMode == "" {
		d.SSLMode = defaultDBSSLMode
	}
	if d.MaxConns == 0 {
		d.MaxConns = defaultDBMaxConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultDBMaxIdleConns
	}
}

func setRedisDefaults(r *RedisConfig) {
	if r.Address == "" {
		r.Address = defaultRedisAddress
	}
	if r.LeaseTTL == 0 {
		r.LeaseTTL = defaultLeaseTTL
	}
}

func setClientDefaults(cfg *Config) {
	if cfg.Blob.Timeout == 0 {
		cfg.Blob.Timeout = defaultBlobTimeout
	}
	if cfg.Transcriber.BaseURL == "" {
		cfg.Transcriber.BaseURL = defaultTranscriberURL
	}
	if cfg.Transcriber.Model == "" {
		cfg.Transcriber.Model = defaultTranscribeModel
	}
	if cfg.Transcriber.Timeout == 0 {
		cfg.Transcriber.Timeout = defaultExternalTimeout
	}
	if cfg.Transcriber.RPS == 0 {
		cfg.Transcriber.RPS = defaultExternalRPS
	}
	if cfg.Assessor.Model == "" {
		cfg.Assessor.Model = defaultAssessorModel
	}
	if cfg.Assessor.MaxTokens == 0 {
		cfg.Assessor.MaxTokens = defaultAssessorTokens
	}
	if cfg.Assessor.Timeout == 0 {
		cfg.Assessor.Timeout = defaultExternalTimeout
	}
	if cfg.Assessor.RPS == 0 {
		cfg.Assessor.RPS = defaultExternalRPS
	}
}

func setLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = defaultLogLevel
	}
	if l.Format == "" {
		l.Format = defaultLogFormat
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
