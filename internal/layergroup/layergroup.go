// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

// Package layergroup manages registered map configurations: registration
// assigns each configuration a deterministic user-scoped token, and
// resolution turns a token back into the compiled configuration. Compiled
// configurations live in a two-tier cache: a short-TTL in-process tier over a
// BadgerDB-backed durable tier whose TTL refreshes on use.
package layergroup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tessella-maps/tessella/internal/cache"
	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/logging"
	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/metrics"
)

// ErrNotFound reports a token with no registered configuration: never
// registered, expired, or scoped to a different user.
var ErrNotFound = errors.New("layergroup: not found")

// CacheUnavailableError reports a durable-store failure. It is distinct from
// ErrNotFound so callers can surface a 5xx rather than a 404.
type CacheUnavailableError struct {
	Err error
}

func (e *CacheUnavailableError) Error() string {
	return fmt.Sprintf("layergroup store unavailable: %v", e.Err)
}

func (e *CacheUnavailableError) Unwrap() error {
	return e.Err
}

// Registration is the result of registering a configuration.
type Registration struct {
	Token  string
	Config *mapconfig.MapConfig
}

// Cache is the compiled-configuration cache. Registration and resolution are
// safe for concurrent use; concurrent operations on the same token share one
// compilation via singleflight.
type Cache struct {
	store     Store
	memory    *cache.Cache
	storeTTL  time.Duration
	memoryTTL time.Duration
	group     singleflight.Group
}

// New creates a compiled-configuration cache over the given durable store.
func New(store Store, cfg config.LayergroupConfig) *Cache {
	return &Cache{
		store:     store,
		memory:    cache.New(cfg.MemoryTTL),
		storeTTL:  cfg.StoreTTL,
		memoryTTL: cfg.MemoryTTL,
	}
}

// Register validates and compiles a raw configuration, persists its canonical
// form, and returns the token. Registration is idempotent: the same user
// registering an equal configuration (modulo key order and whitespace) gets
// the same token, and concurrent identical registrations compile once.
//
// Cancellation of ctx abandons the wait, not the flight: other callers of the
// same registration still receive the result.
func (c *Cache) Register(ctx context.Context, user string, raw []byte) (*Registration, error) {
	canonical, err := canonicalize(raw)
	if err != nil {
		return nil, &mapconfig.ConfigurationError{Reason: err.Error()}
	}

	token := Token(user, canonical)
	key := storeKey(user, token)
	metrics.LayergroupRegistrations.Inc()

	ch := c.group.DoChan(key, func() (interface{}, error) {
		cfg, err := c.compile(canonical)
		if err != nil {
			return nil, err
		}

		if err := c.store.Set(key, canonical, c.storeTTL); err != nil {
			return nil, &CacheUnavailableError{Err: err}
		}
		c.memory.Set(key, cfg)

		logging.Ctx(ctx).Info().
			Str("token", token).
			Int("layers", len(cfg.Layers)).
			Int("widgets", len(cfg.Dataviews)).
			Msg("Layergroup registered")
		return cfg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &Registration{Token: token, Config: res.Val.(*mapconfig.MapConfig)}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Resolve returns the compiled configuration for a token. A hit on either
// tier refreshes the durable TTL, so configurations in active use never
// expire underneath their clients.
func (c *Cache) Resolve(ctx context.Context, user, token string) (*mapconfig.MapConfig, error) {
	key := storeKey(user, token)

	if cached, ok := c.memory.Get(key); ok {
		metrics.LayergroupCacheHits.Inc()
		metrics.LayergroupUsage.Inc()
		c.touch(key)
		return cached.(*mapconfig.MapConfig), nil
	}
	metrics.LayergroupCacheMisses.Inc()

	ch := c.group.DoChan("resolve:"+key, func() (interface{}, error) {
		canonical, err := c.store.Get(key)
		if errors.Is(err, ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, &CacheUnavailableError{Err: err}
		}

		cfg, err := c.compile(canonical)
		if err != nil {
			return nil, err
		}
		c.memory.Set(key, cfg)
		c.touch(key)
		return cfg, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		metrics.LayergroupUsage.Inc()
		return res.Val.(*mapconfig.MapConfig), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// compile parses and validates the canonical configuration and counts the
// compilation. Parsing is deterministic, so every tier holds an equivalent
// compiled form.
func (c *Cache) compile(canonical []byte) (*mapconfig.MapConfig, error) {
	cfg, err := mapconfig.Parse(canonical)
	if err != nil {
		return nil, err
	}
	metrics.LayergroupCompilations.Inc()
	return cfg, nil
}

// touch extends the durable TTL. Failures are logged, not surfaced: the
// caller already has its result.
func (c *Cache) touch(key string) {
	if err := c.store.Touch(key, c.storeTTL); err != nil {
		logging.Warn().Err(err).Msg("Layergroup TTL refresh failed")
	}
}

// Close releases the in-memory tier and the durable store.
func (c *Cache) Close() error {
	c.memory.Close()
	return c.store.Close()
}
