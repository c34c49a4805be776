package config

import (
	"testing"
	"time"

	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg := LoadFromEnv()

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.False(t, cfg.GRPCReflectionEnabled)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.CacheEnabled)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, TaxonomyBuiltin, cfg.TaxonomySource)
	assert.Equal(t, "v1", cfg.TaxonomyVersion)
	require.NoError(t, cfg.Validate())

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, service.DefaultEngineOptions(), opts)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DB_PATH", "postgres://localhost/evals")
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("GRPC_REFLECTION_ENABLED", "true")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("CACHE_ENABLED", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.edu, ,https://b.example.edu")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("TAXONOMY_SOURCE", TaxonomyDatabase)
	t.Setenv("TAXONOMY_VERSION", "v2")
	t.Setenv("SENTIMENT_POSITIVE_THRESHOLD", "3.25")
	t.Setenv("SENTIMENT_NEUTRAL_THRESHOLD", "2.25")
	t.Setenv("ANOMALY_EPSILON", "0.2")
	t.Setenv("ANOMALY_MIN_POINTS", "6")

	cfg := LoadFromEnv()

	assert.Equal(t, "production", cfg.AppEnv)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/evals", cfg.DBPath)
	assert.Equal(t, 6000, cfg.GRPCPort)
	assert.True(t, cfg.GRPCReflectionEnabled)
	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.False(t, cfg.CacheEnabled)
	assert.Equal(t, []string{"https://a.example.edu", "https://b.example.edu"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	require.NoError(t, cfg.Validate())

	opts, err := cfg.EngineOptions()
	require.NoError(t, err)
	assert.Equal(t, sentiment.Thresholds{Positive: 3.25, Neutral: 2.25}, opts.Thresholds)
	assert.Equal(t, 0.2, opts.Anomaly.Epsilon)
	assert.Equal(t, 6, opts.Anomaly.MinPoints)
	assert.Equal(t, anomaly.DefaultParams().HighScore, opts.Anomaly.HighScore)
}

func TestLoadFromEnv_BadValuesFallBack(t *testing.T) {
	t.Setenv("GRPC_PORT", "not-a-port")
	t.Setenv("GRPC_REFLECTION_ENABLED", "maybe")
	t.Setenv("CACHE_TTL", "five minutes")
	t.Setenv("ANOMALY_EPSILON", "wide")

	cfg := LoadFromEnv()

	assert.Equal(t, 50051, cfg.GRPCPort)
	assert.False(t, cfg.GRPCReflectionEnabled)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, anomaly.DefaultParams().Epsilon, cfg.AnomalyEpsilon)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown driver", mutate: func(c *Config) { c.DBDriver = "mysql" }},
		{name: "unknown taxonomy source", mutate: func(c *Config) { c.TaxonomySource = "remote" }},
		{name: "negative rate", mutate: func(c *Config) { c.RateLimitRPS = -1 }},
		{name: "overlapping thresholds", mutate: func(c *Config) { c.SentimentNeutralThreshold = 3.8 }},
		{name: "zero epsilon", mutate: func(c *Config) { c.AnomalyEpsilon = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadFromEnv()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	t.Run("engine errors keep their cause", func(t *testing.T) {
		cfg := LoadFromEnv()
		cfg.AnomalyMinPoints = 0
		_, err := cfg.EngineOptions()
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, anomaly.ErrInvalidParams)
	})
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development"} {
		t.Run(env, func(t *testing.T) {
			logger, err := NewLogger(&Config{AppEnv: env})
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}
