package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Intake    IntakeConfig
	Captcha   CaptchaConfig
	Notify    NotifyConfig
	Admin     AdminConfig
	CORS      CORSConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	Port        int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage settings
type StorageConfig struct {
	Type      string // "memory" for dev/tests, "minio" for production
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// IntakeConfig holds the intake pipeline limits
type IntakeConfig struct {
	RateLimitMax      int64
	RateLimitWindow   time.Duration
	GrantExpiry       time.Duration
	MaxAttachmentSize int64
	MaxAttachments    int
	LimiterType       string // "memory" or "redis"
}

// CaptchaConfig holds anti-abuse verification settings
// An empty Secret disables enforcement entirely.
type CaptchaConfig struct {
	Secret    string
	VerifyURL string
	MinScore  float64
	FailOpen  bool
	Timeout   time.Duration
}

// NotifyConfig holds notification delivery settings
type NotifyConfig struct {
	Enabled  bool
	SMTPHost string
	SMTPPort int
	From     string
	To       []string
	Retries  int
}

// AdminConfig holds back-office auth settings
type AdminConfig struct {
	Token string
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins []string
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof bool
	PprofPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			Port:        getEnvInt("PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "intake"),
			User:        getEnv("POSTGRES_USER", "intake"),
			Password:    getEnv("POSTGRES_PASSWORD", "intake"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Type:      getEnv("STORAGE_TYPE", "minio"),
			Endpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey: getEnv("STORAGE_SECRET_KEY", ""),
			Bucket:    getEnv("STORAGE_BUCKET", "intake"),
			UseSSL:    getEnvBool("STORAGE_USE_SSL", false),
		},
		Intake: IntakeConfig{
			RateLimitMax:      int64(getEnvInt("RATE_LIMIT_MAX", 10)),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			GrantExpiry:       getEnvDuration("UPLOAD_GRANT_EXPIRY", 15*time.Minute),
			MaxAttachmentSize: int64(getEnvInt("MAX_ATTACHMENT_SIZE", 20<<20)),
			MaxAttachments:    getEnvInt("MAX_ATTACHMENTS", 10),
			LimiterType:       getEnv("RATE_LIMITER_TYPE", "redis"),
		},
		Captcha: CaptchaConfig{
			Secret:    getEnv("CAPTCHA_SECRET", ""),
			VerifyURL: getEnv("CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			MinScore:  getEnvFloat("CAPTCHA_MIN_SCORE", 0.3),
			FailOpen:  getEnvBool("CAPTCHA_FAIL_OPEN", false),
			Timeout:   getEnvDuration("CAPTCHA_TIMEOUT", 5*time.Second),
		},
		Notify: NotifyConfig{
			Enabled:  getEnvBool("NOTIFY_ENABLED", false),
			SMTPHost: getEnv("SMTP_HOST", "localhost"),
			SMTPPort: getEnvInt("SMTP_PORT", 25),
			From:     getEnv("NOTIFY_FROM", "no-reply@localhost"),
			To:       getEnvSlice("NOTIFY_TO", nil),
			Retries:  getEnvInt("NOTIFY_RETRIES", 3),
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Telemetry: TelemetryConfig{
			EnablePprof: getEnvBool("ENABLE_PPROF", false),
			PprofPort:   getEnvInt("PPROF_PORT", 6060),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Service.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Intake.RateLimitMax < 1 {
		return fmt.Errorf("rate limit max must be >= 1")
	}

	if c.Intake.RateLimitWindow < time.Second {
		return fmt.Errorf("rate limit window must be >= 1s")
	}

	if c.Intake.MaxAttachments < 1 {
		return fmt.Errorf("max attachments must be >= 1")
	}

	switch c.Storage.Type {
	case "memory", "minio":
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
