// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tessella/config.yaml",
	"/etc/tessella/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "TESSELLA_CONFIG"

// envPrefix namespaces Tessella environment variables.
const envPrefix = "TESSELLA_"

// defaultConfig returns a Config with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8181,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      ":memory:",
			MaxMemory: "2GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Layergroup: LayergroupConfig{
			StorePath: "/data/tessella/layergroups",
			StoreTTL:  48 * time.Hour,
			MemoryTTL: 5 * time.Minute,
		},
		Dataview: DataviewConfig{
			CategoryLimit: 6,
			HistogramBins: 48,
			ListLimit:     500,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file
//  3. Environment variables: TESSELLA_SERVER_PORT etc. (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	envProvider := env.Provider(envPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// envMappings maps environment variable names (after stripping the prefix) to
// koanf config paths. Only multi-word leaf keys need an entry; single-word
// leaves are handled by the generic section_key transform.
var envMappings = map[string]string{
	"DATABASE_MAX_MEMORY":     "database.max_memory",
	"LAYERGROUP_STORE_PATH":   "layergroup.store_path",
	"LAYERGROUP_STORE_TTL":    "layergroup.store_ttl",
	"LAYERGROUP_MEMORY_TTL":   "layergroup.memory_ttl",
	"DATAVIEW_CATEGORY_LIMIT": "dataview.category_limit",
	"DATAVIEW_HISTOGRAM_BINS": "dataview.histogram_bins",
	"DATAVIEW_LIST_LIMIT":     "dataview.list_limit",
	"SECURITY_CORS_ORIGINS":   "security.cors_origins",
}

// envTransformFunc maps TESSELLA_SECTION_KEY environment variables to koanf
// paths such as "section.key".
//
// Examples:
//   - TESSELLA_SERVER_PORT            -> server.port
//   - TESSELLA_DATABASE_PATH          -> database.path
//   - TESSELLA_DATAVIEW_CATEGORY_LIMIT -> dataview.category_limit
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return strings.Replace(strings.ToLower(key), "_", ".", 1)
}

// sliceConfigPaths defines which config paths are parsed as comma-separated slices.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults).
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

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
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}
