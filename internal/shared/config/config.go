package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	AI        AIConfig
	Safety    SafetyConfig
	Audit     AuditConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool // disables TLS, development only
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// AI providers
const (
	AIProviderHTTP   = "http"
	AIProviderGemini = "gemini"
)

type AIConfig struct {
	// Provider is "http" for the companion AI service or "gemini"
	Provider string
	URL      string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// SafetyConfig controls the pattern registry and crisis localisation.
type SafetyConfig struct {
	// RegistryPath overrides the built-in pattern registry with a YAML file
	RegistryPath string
	// DefaultCountry is used for crisis resources when a request names none
	DefaultCountry string
}

// Audit sinks
const (
	AuditSinkPostgres  = "postgres"
	AuditSinkKurrentDB = "kurrentdb"
	AuditSinkJSONL     = "jsonl"
	AuditSinkNone      = "none"
)

type AuditConfig struct {
	Sink         string
	JSONLPath    string
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "guardrail"),
			Password: getEnv("DB_PASSWORD", "guardrail"),
			Database: getEnv("DB_NAME", "guardrail"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			Issuer:    getEnv("JWT_ISSUER", ""),
		},
		AI: AIConfig{
			Provider: getEnv("AI_PROVIDER", AIProviderHTTP),
			URL:      getEnv("AI_SERVICE_URL", "http://localhost:5000"),
			APIKey:   getEnv("GEMINI_API_KEY", ""),
			Model:    getEnv("AI_MODEL", "gemini-1.5-flash"),
			Timeout:  getEnvDuration("AI_TIMEOUT", 20*time.Second),
		},
		Safety: SafetyConfig{
			RegistryPath:   getEnv("SAFETY_REGISTRY_PATH", ""),
			DefaultCountry: getEnv("SAFETY_DEFAULT_COUNTRY", "US"),
		},
		Audit: AuditConfig{
			Sink:         getEnv("AUDIT_SINK", AuditSinkPostgres),
			JSONLPath:    getEnv("AUDIT_JSONL_PATH", "data/safety-audit.jsonl"),
			QueueSize:    getEnvInt("AUDIT_QUEUE_SIZE", 1024),
			Workers:      getEnvInt("AUDIT_WORKERS", 2),
			WriteTimeout: getEnvDuration("AUDIT_WRITE_TIMEOUT", 5*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvInt("RATE_LIMIT_RPS", 2),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case AIProviderHTTP:
		if c.AI.URL == "" {
			return fmt.Errorf("AI_SERVICE_URL is required for the http provider")
		}
	case AIProviderGemini:
		if c.AI.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
	}

	switch c.Audit.Sink {
	case AuditSinkPostgres, AuditSinkKurrentDB, AuditSinkNone:
	case AuditSinkJSONL:
		if c.Audit.JSONLPath == "" {
			return fmt.Errorf("AUDIT_JSONL_PATH is required for the jsonl sink")
		}
	default:
		return fmt.Errorf("unknown AUDIT_SINK %q", c.Audit.Sink)
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction reports whether authentication is enforced
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
