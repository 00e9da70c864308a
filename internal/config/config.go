package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the profiles backend.
// Values come from an optional YAML file with environment variable overrides.
// Secrets (DATABASE_URL) are only read from the environment.
type Config struct {
	Port     string `yaml:"port" env:"PORT" env-default:"5050"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`

	// AllowedOrigins is the CORS allow-list. Origins not listed get no
	// Access-Control-Allow-Origin header.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:5174"`

	Database  DatabaseConfig  `yaml:"database"`
	Geometry  GeometryConfig  `yaml:"geometry"`
	Place     PlaceConfig     `yaml:"place"`
	Profile   ProfileConfig   `yaml:"profile"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `yaml:"-" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"20"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"20"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" env:"DB_SLOW_THRESHOLD" env-default:"100ms"`
	MigrationsPath  string        `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// GeometryConfig bounds what a place geometry may look like.
// Areas are planar, in square degrees of WGS84 coordinates.
type GeometryConfig struct {
	MinArea   float64 `yaml:"min_area" env:"GEOMETRY_MIN_AREA" env-default:"0.00000001"`
	MaxArea   float64 `yaml:"max_area" env:"GEOMETRY_MAX_AREA" env-default:"0.5"`
	MaxBytes  int     `yaml:"max_bytes" env:"GEOMETRY_MAX_BYTES" env-default:"65536"`
	MinGeoids int     `yaml:"min_geoids" env:"GEOMETRY_MIN_GEOIDS" env-default:"1"`
	MaxGeoids int     `yaml:"max_geoids" env:"GEOMETRY_MAX_GEOIDS" env-default:"100"`
}

// PlaceConfig holds the text length bounds enforced on completed places.
type PlaceConfig struct {
	NameMin        int `yaml:"name_min" env:"PLACE_NAME_MIN" env-default:"5"`
	NameMax        int `yaml:"name_max" env:"PLACE_NAME_MAX" env-default:"70"`
	DescriptionMin int `yaml:"description_min" env:"PLACE_DESCRIPTION_MIN" env-default:"10"`
	DescriptionMax int `yaml:"description_max" env:"PLACE_DESCRIPTION_MAX" env-default:"140"`
}

// ProfileConfig holds profile evaluation policy.
type ProfileConfig struct {
	// ClearStaleEvaluation drops evaluation and evaluated_at when a profile
	// is saved incomplete. Off by default: stale values are kept.
	ClearStaleEvaluation bool `yaml:"clear_stale_evaluation" env:"PROFILE_CLEAR_STALE_EVALUATION" env-default:"false"`
}

// RateLimitConfig throttles write routes.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" env:"RATE_LIMIT_ENABLED" env-default:"true"`
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"RATE_LIMIT_RPS" env-default:"10"`
	Burst             int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

// Load reads path (when it exists) with environment overrides, or the
// environment alone when it does not, then validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if _, statErr := os.Stat(path); statErr == nil {
		err = cleanenv.ReadConfig(path, cfg)
	} else {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that bounds are ordered and required settings are present.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is empty"))
	}
	if c.Geometry.MinArea < 0 || c.Geometry.MinArea > c.Geometry.MaxArea {
		errs = append(errs, fmt.Errorf("geometry area bounds [%g, %g] are not ordered", c.Geometry.MinArea, c.Geometry.MaxArea))
	}
	if c.Geometry.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("geometry max_bytes must be positive, got %d", c.Geometry.MaxBytes))
	}
	if c.Geometry.MinGeoids < 0 || c.Geometry.MinGeoids > c.Geometry.MaxGeoids {
		errs = append(errs, fmt.Errorf("geoid bounds [%d, %d] are not ordered", c.Geometry.MinGeoids, c.Geometry.MaxGeoids))
	}
	if c.Place.NameMin > c.Place.NameMax {
		errs = append(errs, fmt.Errorf("place name bounds [%d, %d] are not ordered", c.Place.NameMin, c.Place.NameMax))
	}
	if c.Place.DescriptionMin > c.Place.DescriptionMax {
		errs = append(errs, fmt.Errorf("place description bounds [%d, %d] are not ordered", c.Place.DescriptionMin, c.Place.DescriptionMax))
	}
	return errors.Join(errs...)
}
