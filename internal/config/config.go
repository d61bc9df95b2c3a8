package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers for CNIC documents and schedule exports
const (
	StorageS3    = "s3"
	StorageMinIO = "minio"
	StorageNone  = "none"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server
	Port               string
	CORSOrigins        []string
	Env                string
	PublicURL          string // Optional: advertised in the OpenAPI server list
	RateLimitPerMinute int

	// Generative AI
	AI AIConfig

	// Redis (form sessions and AI response cache)
	Redis      RedisConfig
	SessionTTL time.Duration

	// Risk scoring
	RiskScorerURL     string
	RiskScorerTimeout time.Duration

	// Object storage
	StorageDriver string
	S3            S3Config
	MinIO         MinIOConfig
}

// AIConfig holds text-generation provider settings
type AIConfig struct {
	APIKey   string // Empty disables AI features
	Model    string
	Timeout  time.Duration
	CacheTTL time.Duration // Zero disables the response cache
}

// Enabled reports whether a provider credential is configured
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string // Empty keeps sessions in memory
	Password string
	DB       int
	Prefix   string
}

// S3Config holds AWS S3 configuration
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // Optional: for LocalStack local dev
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // Optional: base URL used in returned object links
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Port:        getEnv("PORT", "8080"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env:         getEnv("ENV", "development"),
		PublicURL:   getEnv("PUBLIC_URL", ""),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			Prefix:   getEnv("REDIS_PREFIX", "mlms"),
		},
		RiskScorerURL: getEnv("RISK_SCORER_URL", ""),
		StorageDriver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageNone)),
		S3: S3Config{
			Region:          getEnv("S3_REGION", "us-east-1"),
			Bucket:          getEnv("S3_BUCKET", "mlms-documents"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", "mlms-documents"),
			PublicURL: getEnv("MINIO_PUBLIC_URL", ""),
		},
	}

	var err error
	if cfg.AI, err = loadAI(); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.Redis.DB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.MinIO.UseSSL, err = getEnvBool("MINIO_USE_SSL", false); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RiskScorerTimeout, err = getEnvDuration("RISK_SCORER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadAI reads only the text-generation settings. Used by tools that need no database.
func LoadAI() (AIConfig, error) {
	_ = godotenv.Load()

	ai, err := loadAI()
	if err != nil {
		return AIConfig{}, err
	}
	if ai.Timeout <= 0 {
		return AIConfig{}, fmt.Errorf("AI_TIMEOUT must be positive")
	}
	return ai, nil
}

func loadAI() (AIConfig, error) {
	ai := AIConfig{
		APIKey: getEnv("GEMINI_API_KEY", ""),
		Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
	}

	var err error
	if ai.Timeout, err = getEnvDuration("AI_TIMEOUT", 30*time.Second); err != nil {
		return AIConfig{}, err
	}
	if ai.CacheTTL, err = getEnvDuration("AI_CACHE_TTL", time.Hour); err != nil {
		return AIConfig{}, err
	}
	return ai, nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.RateLimitPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be at least 1")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT must be positive")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	switch c.StorageDriver {
	case StorageNone:
	case StorageS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	case StorageMinIO:
		if c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when STORAGE_DRIVER=minio")
		}
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of s3, minio, none")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return v, nil
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}
