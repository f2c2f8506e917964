// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8181 {
		t.Errorf("expected default port 8181, got %d", cfg.Server.Port)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("expected default database path :memory:, got %q", cfg.Database.Path)
	}
	if cfg.Dataview.CategoryLimit != 6 {
		t.Errorf("expected default category limit 6, got %d", cfg.Dataview.CategoryLimit)
	}
	if cfg.Dataview.HistogramBins != 48 {
		t.Errorf("expected default histogram bins 48, got %d", cfg.Dataview.HistogramBins)
	}
	if cfg.Layergroup.MemoryTTL != 5*time.Minute {
		t.Errorf("expected default memory TTL 5m, got %s", cfg.Layergroup.MemoryTTL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TESSELLA_SERVER_PORT", "9999")
	t.Setenv("TESSELLA_DATAVIEW_CATEGORY_LIMIT", "12")
	t.Setenv("TESSELLA_SECURITY_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected env-overridden port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Dataview.CategoryLimit != 12 {
		t.Errorf("expected env-overridden category limit 12, got %d", cfg.Dataview.CategoryLimit)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[0] != "https://a.example" {
		t.Errorf("expected comma-split CORS origins, got %v", cfg.Security.CORSOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty database path", func(c *Config) { c.Database.Path = "" }, true},
		{"zero store ttl", func(c *Config) { c.Layergroup.StoreTTL = 0 }, true},
		{"zero category limit", func(c *Config) { c.Dataview.CategoryLimit = 0 }, true},
		{"zero bins", func(c *Config) { c.Dataview.HistogramBins = 0 }, true},
		{"zero list limit", func(c *Config) { c.Dataview.ListLimit = 0 }, true},
		{"negative timeout", func(c *Config) { c.Server.Timeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"TESSELLA_SERVER_PORT", "server.port"},
		{"TESSELLA_DATABASE_PATH", "database.path"},
		{"TESSELLA_DATABASE_MAX_MEMORY", "database.max_memory"},
		{"TESSELLA_DATAVIEW_HISTOGRAM_BINS", "dataview.histogram_bins"},
		{"TESSELLA_LOGGING_LEVEL", "logging.level"},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.in); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
