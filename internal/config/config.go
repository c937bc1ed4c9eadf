// Package config builds the single runtime configuration passed to every
// component. Nothing else in the module reads the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Safety     SafetyConfig     `yaml:"safety"`
	Store      StoreConfig      `yaml:"store"`
	Cache      CacheConfig      `yaml:"cache"`
	Directions DirectionsConfig `yaml:"directions"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	RateRPS           float64       `yaml:"rateRps"`
	RateBurst         int           `yaml:"rateBurst"`
}

// SafetyConfig holds the grid and privacy parameters.
type SafetyConfig struct {
	TileSizeMeters    float64 `yaml:"tileSizeMeters"`
	KAnon             int     `yaml:"kAnon"`
	WindowDays        int     `yaml:"windowDays"`
	HeatmapWindowDays int     `yaml:"heatmapWindowDays"`
	DefaultSteps      int     `yaml:"defaultSteps"`
	MaxTiles          int     `yaml:"maxTiles"`
}

type StoreConfig struct {
	// DSN selects the report store: postgres://..., sqlite://path or empty for memory.
	DSN          string        `yaml:"dsn"`
	QueryTimeout time.Duration `yaml:"queryTimeout"`
	Migrate      bool          `yaml:"migrate"`
}

type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
	RedisURL string        `yaml:"redisUrl"`
}

type DirectionsConfig struct {
	RoutesAPIKey     string        `yaml:"routesApiKey"`
	RoutesBaseURL    string        `yaml:"routesBaseUrl"`
	DirectionsAPIKey string        `yaml:"directionsApiKey"`
	DirectionsURL    string        `yaml:"directionsBaseUrl"`
	AttemptTimeout   time.Duration `yaml:"attemptTimeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or text
}

// Default returns the stated defaults: 50 m tiles, k=3, 30 day window,
// 90 day heatmap window, 60 s cache TTL.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateRPS:           5,
			RateBurst:         10,
		},
		Safety: SafetyConfig{
			TileSizeMeters:    50,
			KAnon:             3,
			WindowDays:        30,
			HeatmapWindowDays: 90,
			DefaultSteps:      20,
			MaxTiles:          250000,
		},
		Store: StoreConfig{
			QueryTimeout: 5 * time.Second,
			Migrate:      true,
		},
		Cache: CacheConfig{
			TTL:      60 * time.Second,
			Capacity: 1024,
		},
		Directions: DirectionsConfig{
			RoutesBaseURL:  "https://routes.googleapis.com",
			DirectionsURL:  "https://maps.googleapis.com",
			AttemptTimeout: 4 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads the optional YAML file at path, then overlays environment
// variables, then validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}
	num("RATE_RPS", &c.Server.RateRPS)
	integer("RATE_BURST", &c.Server.RateBurst)
	num("SAFETY_TILE_METERS", &c.Safety.TileSizeMeters)
	integer("SAFETY_K_ANON", &c.Safety.KAnon)
	integer("SAFETY_WINDOW_DAYS", &c.Safety.WindowDays)
	integer("SAFETY_HEATMAP_DAYS", &c.Safety.HeatmapWindowDays)
	str("DATABASE_URL", &c.Store.DSN)
	dur("STORE_QUERY_TIMEOUT", &c.Store.QueryTimeout)
	if v, ok := lookup("DB_MIGRATE"); ok && v != "" {
		c.Store.Migrate = v != "false" && v != "0"
	}
	str("REDIS_URL", &c.Cache.RedisURL)
	dur("HEATMAP_CACHE_TTL", &c.Cache.TTL)
	integer("HEATMAP_CACHE_CAPACITY", &c.Cache.Capacity)
	str("ROUTES_API_KEY", &c.Directions.RoutesAPIKey)
	str("ROUTES_BASE_URL", &c.Directions.RoutesBaseURL)
	str("DIRECTIONS_API_KEY", &c.Directions.DirectionsAPIKey)
	str("DIRECTIONS_BASE_URL", &c.Directions.DirectionsURL)
	dur("PROVIDER_TIMEOUT", &c.Directions.AttemptTimeout)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	return errors.Join(errs...)
}

// Validate checks ranges. Degenerate grid sizes fail here, at startup.
func (c *Config) Validate() error {
	var errs []error
	if !(c.Safety.TileSizeMeters > 0) {
		errs = append(errs, fmt.Errorf("safety.tileSizeMeters must be > 0, got %v", c.Safety.TileSizeMeters))
	}
	if c.Safety.KAnon < 1 {
		errs = append(errs, fmt.Errorf("safety.kAnon must be >= 1, got %d", c.Safety.KAnon))
	}
	if c.Safety.WindowDays < 1 || c.Safety.HeatmapWindowDays < 1 {
		errs = append(errs, errors.New("safety window days must be >= 1"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be > 0"))
	}
	if c.Store.QueryTimeout <= 0 || c.Directions.AttemptTimeout <= 0 {
		errs = append(errs, errors.New("timeouts must be > 0"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
