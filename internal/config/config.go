package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/service"
	"go.uber.org/zap"
)

const (
	TaxonomyBuiltin  = "builtin"
	TaxonomyDatabase = "database"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBPath                string
	DBDriver              string
	RedisAddr             string
	GRPCPort              int
	GRPCReflectionEnabled bool
	HTTPPort              int
	HTTPRequestTimeout    time.Duration
	CORSAllowedOrigins    []string
	CacheEnabled          bool
	CacheTTL              time.Duration
	ShutdownTimeout       time.Duration
	RateLimitRPS          float64
	RateLimitBurst        int

	TaxonomySource  string
	TaxonomyVersion string

	SentimentPositiveThreshold float64
	SentimentNeutralThreshold  float64

	AnomalyEpsilon          float64
	AnomalyMinPoints        int
	AnomalyHighScore        float64
	AnomalyMediumScore      float64
	AnomalyLowRatingCutoff  float64
	AnomalyHighRatingCutoff float64
	AnomalyConfidenceScale  float64
}

// LoadFromEnv loads configuration from environment variables. Unparsable values fall
// back to their defaults.
func LoadFromEnv() *Config {
	thresholds := sentiment.DefaultThresholds()
	params := anomaly.DefaultParams()

	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBPath:                getEnv("DB_PATH", "./data/evaluations.db"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		GRPCPort:              getEnvInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getEnvBool("GRPC_REFLECTION_ENABLED", false),
		HTTPPort:              getEnvInt("HTTP_PORT", 8080),
		HTTPRequestTimeout:    getEnvDuration("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		CORSAllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS"),
		CacheEnabled:          getEnvBool("CACHE_ENABLED", true),
		CacheTTL:              getEnvDuration("CACHE_TTL", 5*time.Minute),
		ShutdownTimeout:       getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitRPS:          getEnvFloat("RATE_LIMIT_RPS", 50),
		RateLimitBurst:        getEnvInt("RATE_LIMIT_BURST", 100),

		TaxonomySource:  getEnv("TAXONOMY_SOURCE", TaxonomyBuiltin),
		TaxonomyVersion: getEnv("TAXONOMY_VERSION", "v1"),

		SentimentPositiveThreshold: getEnvFloat("SENTIMENT_POSITIVE_THRESHOLD", thresholds.Positive),
		SentimentNeutralThreshold:  getEnvFloat("SENTIMENT_NEUTRAL_THRESHOLD", thresholds.Neutral),

		AnomalyEpsilon:          getEnvFloat("ANOMALY_EPSILON", params.Epsilon),
		AnomalyMinPoints:        getEnvInt("ANOMALY_MIN_POINTS", params.MinPoints),
		AnomalyHighScore:        getEnvFloat("ANOMALY_HIGH_SCORE", params.HighScore),
		AnomalyMediumScore:      getEnvFloat("ANOMALY_MEDIUM_SCORE", params.MediumScore),
		AnomalyLowRatingCutoff:  getEnvFloat("ANOMALY_LOW_RATING_CUTOFF", params.LowRatingCutoff),
		AnomalyHighRatingCutoff: getEnvFloat("ANOMALY_HIGH_RATING_CUTOFF", params.HighRatingCutoff),
		AnomalyConfidenceScale:  getEnvFloat("ANOMALY_CONFIDENCE_SCALE", params.ConfidenceScale),
	}
}

// Validate checks the settings that have a closed set of values.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("%w: DB_DRIVER must be sqlite3 or pgx, got %q", ErrInvalidConfig, c.DBDriver)
	}
	switch c.TaxonomySource {
	case TaxonomyBuiltin, TaxonomyDatabase:
	default:
		return fmt.Errorf("%w: TAXONOMY_SOURCE must be %s or %s, got %q", ErrInvalidConfig, TaxonomyBuiltin, TaxonomyDatabase, c.TaxonomySource)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	_, err := c.EngineOptions()
	return err
}

// EngineOptions builds and validates the sentiment thresholds and anomaly parameters.
func (c *Config) EngineOptions() (service.EngineOptions, error) {
	opts := service.EngineOptions{
		Thresholds: sentiment.Thresholds{
			Positive: c.SentimentPositiveThreshold,
			Neutral:  c.SentimentNeutralThreshold,
		},
		Anomaly: anomaly.Params{
			Epsilon:          c.AnomalyEpsilon,
			MinPoints:        c.AnomalyMinPoints,
			HighScore:        c.AnomalyHighScore,
			MediumScore:      c.AnomalyMediumScore,
			LowRatingCutoff:  c.AnomalyLowRatingCutoff,
			HighRatingCutoff: c.AnomalyHighRatingCutoff,
			ConfidenceScale:  c.AnomalyConfidenceScale,
		},
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return service.EngineOptions{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := opts.Anomaly.Validate(); err != nil {
		return service.EngineOptions{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return opts, nil
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
