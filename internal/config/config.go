// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package config provides layered configuration loading for Tessella using
// Koanf v2: struct defaults, then an optional YAML file, then environment
// variables, each layer overriding the previous one.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Tessella server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Layergroup LayergroupConfig `koanf:"layergroup"`
	Dataview   DataviewConfig   `koanf:"dataview"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig holds DuckDB settings for the query engine.
type DatabaseConfig struct {
	// Path is the DuckDB database file, or ":memory:" for an in-memory engine.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// LayergroupConfig holds compiled-configuration cache settings.
type LayergroupConfig struct {
	// StorePath is the Badger directory for the persistent token store.
	StorePath string `koanf:"store_path"`

	// StoreTTL is the persistence TTL for registered configurations.
	StoreTTL time.Duration `koanf:"store_ttl"`

	// MemoryTTL is the TTL of the in-process parsed-configuration cache.
	MemoryTTL time.Duration `koanf:"memory_ttl"`
}

// DataviewConfig holds widget computation settings.
type DataviewConfig struct {
	// CategoryLimit is the number of distinct categories returned before the
	// tail collapses into a single "Other" bucket.
	CategoryLimit int `koanf:"category_limit"`

	// HistogramBins is the default bin count when a histogram widget does not
	// specify one.
	HistogramBins int `koanf:"histogram_bins"`

	// ListLimit caps the number of rows a list widget may return.
	ListLimit int `koanf:"list_limit"`
}

// SecurityConfig holds the HTTP security surface settings.
type SecurityConfig struct {
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Layergroup.StoreTTL <= 0 {
		return fmt.Errorf("layergroup.store_ttl must be positive, got %s", c.Layergroup.StoreTTL)
	}
	if c.Layergroup.MemoryTTL <= 0 {
		return fmt.Errorf("layergroup.memory_ttl must be positive, got %s", c.Layergroup.MemoryTTL)
	}
	if c.Dataview.CategoryLimit < 1 {
		return fmt.Errorf("dataview.category_limit must be at least 1, got %d", c.Dataview.CategoryLimit)
	}
	if c.Dataview.HistogramBins < 1 {
		return fmt.Errorf("dataview.histogram_bins must be at least 1, got %d", c.Dataview.HistogramBins)
	}
	if c.Dataview.ListLimit < 1 {
		return fmt.Errorf("dataview.list_limit must be at least 1, got %d", c.Dataview.ListLimit)
	}
	return nil
}
