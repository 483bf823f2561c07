package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    Port        int   `env:"FEED_HTTP_PORT" envDefault:"8020"`
//	    ColumnCount int   `env:"FEED_COLUMN_COUNT" envDefault:"3"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFrom parses the given variables instead of the process environment.
// Tags and defaults behave exactly as in Load.
func LoadFrom(cfg any, vars map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: vars}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
