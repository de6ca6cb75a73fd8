// Package config defines service configuration and its defaults.
//
// Values are layered by Load: defaults, an optional YAML file, an optional
// .env file, then FACEQUIZ_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Store backends.
const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3001".
	Addr string `koanf:"addr"`

	// Store selects the persistence backend: mongo or memory.
	Store            string `koanf:"store"`
	MongoURI         string `koanf:"mongo_uri"`
	MongoDatabase    string `koanf:"mongo_database"`
	PeopleCollection string `koanf:"people_collection"`

	// RedisURL points at the counter cache. Empty disables caching.
	RedisURL   string `koanf:"redis_url"`
	CacheTTLMS int    `koanf:"cache_ttl_ms"`

	// LeaderboardSize is the number of entries retained per quiz length.
	LeaderboardSize int `koanf:"leaderboard_size"`
	// PruneIntervalMS schedules leaderboard maintenance. 0 disables the ticker.
	PruneIntervalMS int `koanf:"prune_interval_ms"`

	// MaxSample caps sample sizes and quiz rounds per request.
	MaxSample int `koanf:"max_sample"`

	VisitQueueSize   int `koanf:"visit_queue_size"`
	VisitWorkerCount int `koanf:"visit_worker_count"`
	DedupeSize       int `koanf:"dedupe_size"`

	GeoEnabled   bool    `koanf:"geo_enabled"`
	GeoURL       string  `koanf:"geo_url"`
	GeoTimeoutMS int     `koanf:"geo_timeout_ms"`
	GeoRPS       float64 `koanf:"geo_rps"`

	// StaticDir serves assets from disk when set; otherwise the embedded site is used.
	StaticDir string `koanf:"static_dir"`

	// SeedFile is a JSON array of people loaded into the memory store at startup.
	SeedFile string `koanf:"seed_file"`

	AllowedOccupations []string `koanf:"allowed_occupations"`
	CORSOrigins        []string `koanf:"cors_origins"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":3001",
		Store:            StoreMongo,
		MongoURI:         "mongodb://localhost:27017",
		MongoDatabase:    "facequiz",
		PeopleCollection: "AsianPeople",
		CacheTTLMS:       5000,
		LeaderboardSize:  10,
		PruneIntervalMS:  60_000,
		MaxSample:        100,
		VisitQueueSize:   10_000,
		VisitWorkerCount: 4,
		DedupeSize:       50_000,
		GeoEnabled:       true,
		GeoURL:           "http://ip-api.com/json/%s?fields=status,countryCode",
		GeoTimeoutMS:     2000,
		GeoRPS:           1,
		CORSOrigins:      []string{"*"},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Store != StoreMongo && c.Store != StoreMemory:
		return fmt.Errorf("%w: store must be %q or %q, got %q", ErrInvalidConfig, StoreMongo, StoreMemory, c.Store)
	case c.Store == StoreMongo && c.MongoURI == "":
		return fmt.Errorf("%w: mongo_uri must not be empty", ErrInvalidConfig)
	case c.LeaderboardSize < 1:
		return fmt.Errorf("%w: leaderboard_size must be >= 1", ErrInvalidConfig)
	case c.MaxSample < 1:
		return fmt.Errorf("%w: max_sample must be >= 1", ErrInvalidConfig)
	case c.SeedFile != "" && c.Store != StoreMemory:
		return fmt.Errorf("%w: seed_file needs store %q; import into mongo with cmd/seed", ErrInvalidConfig, StoreMemory)
	}
	return nil
}

// CacheTTL returns the counter cache TTL.
func (c *Config) CacheTTL() time.Duration { return time.Duration(c.CacheTTLMS) * time.Millisecond }

// PruneInterval returns the scheduled maintenance interval.
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalMS) * time.Millisecond
}

// GeoTimeout returns the per-lookup timeout.
func (c *Config) GeoTimeout() time.Duration { return time.Duration(c.GeoTimeoutMS) * time.Millisecond }
