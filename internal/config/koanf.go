// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/eventscout/config.yaml",
	"/etc/eventscout/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, an optional YAML file,
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional config file
	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths are config paths parsed as comma-separated slices when
// they arrive as env var strings.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated env strings to slices for
// known slice fields. YAML-sourced values are already slices and skipped.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf
// config paths. Only listed variables are honored; this keeps unrelated
// environment noise out of the configuration.
var envMappings = map[string]string{
	"http_host":               "server.host",
	"http_port":               "server.port",
	"http_timeout":            "server.timeout",
	"rate_limit_reqs":         "server.rate_limit_reqs",
	"rate_limit_window":       "server.rate_limit_window",
	"cors_origins":            "server.cors_origins",
	"log_level":               "logging.level",
	"log_format":              "logging.format",
	"log_caller":              "logging.caller",
	"cache_path":              "cache.path",
	"cache_ttl":               "cache.ttl",
	"janitor_interval":        "cache.janitor_interval",
	"search_city":             "search.city",
	"search_timezone":         "search.timezone",
	"source_timeout":          "search.source_timeout",
	"max_results":             "search.max_results",
	"ticketmaster_api_key":    "sources.ticketmaster.api_key",
	"ticketmaster_base_url":   "sources.ticketmaster.base_url",
	"ticketmaster_rate_limit": "sources.ticketmaster.rate_limit",
	"seatgeek_client_id":      "sources.seatgeek.client_id",
	"seatgeek_base_url":       "sources.seatgeek.base_url",
	"dice_api_key":            "sources.dice.api_key",
	"dice_base_url":           "sources.dice.base_url",
	"exa_api_key":             "sources.exa.api_key",
	"exa_base_url":            "sources.exa.base_url",
	"local_source_enabled":    "sources.local_enabled",
	"webset_base_url":         "discovery.base_url",
	"webset_poll_interval":    "discovery.poll_interval",
	"webset_max_polls":        "discovery.max_polls",
	"webset_result_count":     "discovery.result_count",
	"push_buffer_size":        "push.buffer_size",
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unknown variables map to "" and are ignored by the env provider.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
