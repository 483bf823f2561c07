package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8020, cfg.HTTPPort)
	assert.Equal(t, 3, cfg.ColumnCount)
	assert.Equal(t, 50, cfg.ItemsPerPage)
	assert.Equal(t, 390.0, cfg.ViewportWidth)
	assert.Equal(t, 2*time.Minute, cfg.FetchTimeout)
	assert.Equal(t, int64(100*1024*1024), cfg.CacheByteBudget)
	assert.Equal(t, 100, cfg.CacheImageCountLimit)
	assert.Equal(t, 50, cfg.CacheVideoCountLimit)
	assert.Equal(t, "https://api.pexels.com/v1/", cfg.PexelsBaseURL)
	assert.Equal(t, "d3factz", cfg.PexelsCollectionID)
	assert.Equal(t, "asc", cfg.PexelsSort)
	assert.Equal(t, 30*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(t, 3, cfg.HTTPClientMaxRetries)
	assert.False(t, cfg.RedisEnabled)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr())
	assert.Equal(t, time.Hour, cfg.MediaCacheTTL)
	assert.False(t, cfg.OTelEnabled)
	assert.Equal(t, 1.0, cfg.OTelSampleRate)
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"FEED_COLUMN_COUNT":       "2",
		"FEED_ITEMS_PER_PAGE":     "80",
		"FEED_VIEWPORT_WIDTH":     "428",
		"CACHE_BYTE_BUDGET":       "1048576",
		"PEXELS_API_KEY":          "key",
		"REDIS_ENABLED":           "true",
		"REDIS_HOST":              "cache",
		"REDIS_PORT":              "6380",
		"MEDIA_CACHE_TTL":         "15m",
		"HTTP_CLIENT_MAX_RETRIES": "0",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.ColumnCount)
	assert.Equal(t, 80, cfg.ItemsPerPage)
	assert.Equal(t, 428.0, cfg.ViewportWidth)
	assert.Equal(t, int64(1<<20), cfg.CacheByteBudget)
	assert.Equal(t, "key", cfg.PexelsAPIKey)
	assert.True(t, cfg.RedisEnabled)
	assert.Equal(t, "cache:6380", cfg.RedisAddr())
	assert.Equal(t, 15*time.Minute, cfg.MediaCacheTTL)
	assert.Equal(t, 0, cfg.HTTPClientMaxRetries)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		vars  map[string]string
		field string
	}{
		{"zero columns", map[string]string{"FEED_COLUMN_COUNT": "0"}, "ColumnCount"},
		{"too many columns", map[string]string{"FEED_COLUMN_COUNT": "13"}, "ColumnCount"},
		{"page too large", map[string]string{"FEED_ITEMS_PER_PAGE": "81"}, "ItemsPerPage"},
		{"zero budget", map[string]string{"CACHE_BYTE_BUDGET": "0"}, "CacheByteBudget"},
		{"bad sort", map[string]string{"PEXELS_SORT": "random"}, "PexelsSort"},
		{"bad log level", map[string]string{"LOG_LEVEL": "verbose"}, "LogLevel"},
		{"sample rate", map[string]string{"OTEL_SAMPLE_RATE": "1.5"}, "OTelSampleRate"},
		{"bad base url", map[string]string{"PEXELS_BASE_URL": "not a url"}, "PexelsBaseURL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadFrom_ParseError(t *testing.T) {
	_, err := LoadFrom(map[string]string{"FEED_COLUMN_COUNT": "three"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load feed config")
}
