// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package config defines the Eventscout configuration tree and loads it
// via Koanf v2 with layered sources (highest priority wins):
//
//  1. Environment variables (EVENTSCOUT-style names, see koanf.go)
//  2. Config file (config.yaml)
//  3. Built-in defaults
//
// All components receive their configuration by value at construction
// time; nothing reads the environment after startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Eventscout server and CLI.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Cache     CacheConfig     `koanf:"cache"`
	Search    SearchConfig    `koanf:"search"`
	Sources   SourcesConfig   `koanf:"sources"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Push      PushConfig      `koanf:"push"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig holds event cache settings.
type CacheConfig struct {
	// Path is the BadgerDB directory. Empty selects an in-memory store
	// (tests, CLI dry runs).
	Path string `koanf:"path"`

	// TTL applied to entries upserted without an explicit expiry.
	TTL time.Duration `koanf:"ttl" validate:"required"`

	// JanitorInterval is how often expired rows are purged.
	JanitorInterval time.Duration `koanf:"janitor_interval"`
}

// SearchConfig holds aggregation settings.
type SearchConfig struct {
	// City is the single configured deployment city, used when a request
	// carries no location.
	City string `koanf:"city" validate:"required"`

	// Timezone is the IANA zone for temporal phrase resolution.
	Timezone string `koanf:"timezone" validate:"required"`

	// SourceTimeout bounds each source's fetch during fan-out so one slow
	// provider cannot stall the whole aggregation.
	SourceTimeout time.Duration `koanf:"source_timeout"`

	// MaxResults caps the merged, deduplicated result list.
	MaxResults int `koanf:"max_results" validate:"min=1"`
}

// SourcesConfig enables and configures each event source adapter.
// An adapter with no credential reports itself unavailable and is
// silently excluded from fan-out; it never needs disabling here.
type SourcesConfig struct {
	Ticketmaster TicketmasterConfig `koanf:"ticketmaster"`
	SeatGeek     SeatGeekConfig     `koanf:"seatgeek"`
	Dice         DiceConfig         `koanf:"dice"`
	Exa          ExaConfig          `koanf:"exa"`

	// LocalEnabled registers the cache-backed "local" source fed by the
	// scrape CLI.
	LocalEnabled bool `koanf:"local_enabled"`
}

// TicketmasterConfig configures the Ticketmaster Discovery API adapter.
type TicketmasterConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`

	// RateLimit is client-side requests/second against the Discovery API.
	RateLimit float64 `koanf:"rate_limit"`
}

// SeatGeekConfig configures the SeatGeek Platform API adapter.
type SeatGeekConfig struct {
	ClientID string `koanf:"client_id"`
	BaseURL  string `koanf:"base_url"`
}

// DiceConfig configures the DICE GraphQL adapter.
type DiceConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// ExaConfig configures the Exa neural search adapter.
type ExaConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// DiscoveryConfig holds background deep-discovery settings. The webset
// API shares the Exa credential; deep discovery is unavailable without it.
type DiscoveryConfig struct {
	BaseURL      string        `koanf:"base_url"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"required"`
	MaxPolls     int           `koanf:"max_polls" validate:"min=1"`
	ResultCount  int           `koanf:"result_count" validate:"min=1"`
}

// PushConfig holds session push channel settings.
type PushConfig struct {
	// BufferSize is the per-session message buffer. A full buffer drops
	// the message with a warning rather than blocking the pusher.
	BufferSize int `koanf:"buffer_size" validate:"min=1"`
}

// Default returns a Config with production-ready defaults. Defaults are
// applied first, then overridden by config file and env vars.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8740,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Cache: CacheConfig{
			Path:            "/data/eventscout",
			TTL:             24 * time.Hour,
			JanitorInterval: time.Hour,
		},
		Search: SearchConfig{
			City:          "Berlin",
			Timezone:      "Europe/Berlin",
			SourceTimeout: 25 * time.Second,
			MaxResults:    15,
		},
		Sources: SourcesConfig{
			Ticketmaster: TicketmasterConfig{
				BaseURL:   "https://app.ticketmaster.com/discovery/v2",
				RateLimit: 4,
			},
			SeatGeek: SeatGeekConfig{
				BaseURL: "https://api.seatgeek.com/2",
			},
			Dice: DiceConfig{
				BaseURL: "https://api.dice.fm/graphql",
			},
			Exa: ExaConfig{
				BaseURL: "https://api.exa.ai",
			},
			LocalEnabled: true,
		},
		Discovery: DiscoveryConfig{
			BaseURL:      "https://api.exa.ai/websets/v0",
			PollInterval: 5 * time.Second,
			MaxPolls:     60,
			ResultCount:  10,
		},
		Push: PushConfig{
			BufferSize: 64,
		},
	}
}

// Validate checks the configuration for structural problems. It runs the
// validator/v10 struct tags first, then cross-field checks the tags cannot
// express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	if _, err := time.LoadLocation(c.Search.Timezone); err != nil {
		return fmt.Errorf("config validation: invalid search.timezone %q: %w", c.Search.Timezone, err)
	}
	if c.Search.SourceTimeout <= 0 {
		return fmt.Errorf("config validation: search.source_timeout must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config validation: cache.ttl must be positive")
	}
	if c.Discovery.PollInterval <= 0 {
		return fmt.Errorf("config validation: discovery.poll_interval must be positive")
	}
	return nil
}

// Location resolves the configured timezone. Validate guarantees this
// cannot fail after a successful load.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Search.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
