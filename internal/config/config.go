package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/utafrali/mediafeed/pkg/config"
	"github.com/utafrali/mediafeed/pkg/validator"
)

// Config holds all configuration for the feed service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// HTTP server
	HTTPPort int `env:"FEED_HTTP_PORT" envDefault:"8020" validate:"gt=0,lte=65535"`

	// Feed layout and paging
	ColumnCount   int           `env:"FEED_COLUMN_COUNT" envDefault:"3" validate:"gte=1,lte=12"`
	ItemsPerPage  int           `env:"FEED_ITEMS_PER_PAGE" envDefault:"50" validate:"gte=1,lte=80"`
	ViewportWidth float64       `env:"FEED_VIEWPORT_WIDTH" envDefault:"390" validate:"gt=0"`
	FetchTimeout  time.Duration `env:"FEED_FETCH_TIMEOUT" envDefault:"2m" validate:"gt=0"`

	// In-process media cache
	CacheByteBudget      int64 `env:"CACHE_BYTE_BUDGET" envDefault:"104857600" validate:"gt=0"`
	CacheImageCountLimit int   `env:"CACHE_IMAGE_COUNT_LIMIT" envDefault:"100" validate:"gt=0"`
	CacheVideoCountLimit int   `env:"CACHE_VIDEO_COUNT_LIMIT" envDefault:"50" validate:"gt=0"`

	// Pexels API
	PexelsBaseURL      string `env:"PEXELS_BASE_URL" envDefault:"https://api.pexels.com/v1/" validate:"required,url"`
	PexelsAPIKey       string `env:"PEXELS_API_KEY"`
	PexelsCollectionID string `env:"PEXELS_COLLECTION_ID" envDefault:"d3factz" validate:"required"`
	PexelsSort         string `env:"PEXELS_SORT" envDefault:"asc" validate:"omitempty,oneof=asc desc"`

	// Outbound HTTP
	HTTPClientTimeout    time.Duration `env:"HTTP_CLIENT_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	HTTPClientMaxRetries int           `env:"HTTP_CLIENT_MAX_RETRIES" envDefault:"3" validate:"gte=0,lte=10"`

	// Redis second-level media cache
	RedisEnabled  bool          `env:"REDIS_ENABLED" envDefault:"false"`
	RedisHost     string        `env:"REDIS_HOST" envDefault:"localhost" validate:"required_if=RedisEnabled true"`
	RedisPort     int           `env:"REDIS_PORT" envDefault:"6379" validate:"gt=0,lte=65535"`
	RedisPassword string        `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0" validate:"gte=0"`
	MediaCacheTTL time.Duration `env:"MEDIA_CACHE_TTL" envDefault:"1h" validate:"gt=0"`

	// OpenTelemetry
	OTelEnabled          bool          `env:"OTEL_ENABLED" envDefault:"false"`
	OTelExporterEndpoint string        `env:"OTEL_EXPORTER_ENDPOINT" envDefault:"localhost:4318"`
	OTelSampleRate       float64       `env:"OTEL_SAMPLE_RATE" envDefault:"1.0" validate:"gte=0,lte=1"`
	SlowOperationWarn    time.Duration `env:"SLOW_OPERATION_THRESHOLD" envDefault:"2s" validate:"gte=0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load feed config: %w", err)
	}
	return validated(cfg)
}

// LoadFrom reads configuration from vars instead of the environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load feed config: %w", err)
	}
	return validated(cfg)
}

func validated(cfg *Config) (*Config, error) {
	if err := validator.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid feed config: %w", err)
	}
	return cfg, nil
}

// RedisAddr returns the Redis address as host:port.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}
