// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package layergroup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/mapconfig"
	"github.com/tessella-maps/tessella/internal/metrics"
)

const validConfigJSON = `{
	"version": "1.8.0",
	"layers": [
		{"type": "cartodb", "options": {"sql": "SELECT * FROM places", "cartocss": "#layer {}", "cartocss_version": "2.3.0"}}
	],
	"analyses": [{"id": "a0", "query": "SELECT * FROM places"}],
	"dataviews": {
		"country_count": {"type": "formula", "source": {"id": "a0"}, "options": {"operation": "count"}}
	}
}`

// reorderedConfigJSON is validConfigJSON with different key order and
// whitespace; it must canonicalize to the same token.
const reorderedConfigJSON = `{"dataviews":{"country_count":{"options":{"operation":"count"},"source":{"id":"a0"},"type":"formula"}},"analyses":[{"query":"SELECT * FROM places","id":"a0"}],"layers":[{"options":{"cartocss_version":"2.3.0","cartocss":"#layer {}","sql":"SELECT * FROM places"},"type":"cartodb"}],"version":"1.8.0"}`

// countingStore wraps MemoryStore and counts operations.
type countingStore struct {
	*MemoryStore
	gets    atomic.Int64
	sets    atomic.Int64
	touches atomic.Int64
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: NewMemoryStore()}
}

func (s *countingStore) Get(key string) ([]byte, error) {
	s.gets.Add(1)
	return s.MemoryStore.Get(key)
}

func (s *countingStore) Set(key string, value []byte, ttl time.Duration) error {
	s.sets.Add(1)
	return s.MemoryStore.Set(key, value, ttl)
}

func (s *countingStore) Touch(key string, ttl time.Duration) error {
	s.touches.Add(1)
	return s.MemoryStore.Touch(key, ttl)
}

// failingStore errors on every operation.
type failingStore struct{}

func (failingStore) Get(string) ([]byte, error)              { return nil, errors.New("disk gone") }
func (failingStore) Set(string, []byte, time.Duration) error { return errors.New("disk gone") }
func (failingStore) Touch(string, time.Duration) error       { return nil }
func (failingStore) Close() error                            { return nil }

func testCacheConfig() config.LayergroupConfig {
	return config.LayergroupConfig{
		StoreTTL:  time.Hour,
		MemoryTTL: time.Minute,
	}
}

func TestRegisterAndResolve(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	reg, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.Token == "" {
		t.Fatal("Register() returned empty token")
	}
	if _, ok := reg.Config.Widget("country_count"); !ok {
		t.Error("registered config lost its widget")
	}

	resolved, err := c.Resolve(context.Background(), "alice", reg.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if _, ok := resolved.Widget("country_count"); !ok {
		t.Error("resolved config lost its widget")
	}
}

func TestRegisterDeterministicToken(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	first, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	second, err := c.Register(context.Background(), "alice", []byte(reorderedConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if first.Token != second.Token {
		t.Errorf("equivalent configurations produced different tokens:\n%s\n%s", first.Token, second.Token)
	}
}

func TestRegisterUserScopedToken(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	alice, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	bob, err := c.Register(context.Background(), "bob", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if alice.Token == bob.Token {
		t.Error("tokens not scoped to the registering user")
	}

	// Alice's token does not resolve for Bob.
	if _, err := c.Resolve(context.Background(), "bob", alice.Token); !errors.Is(err, ErrNotFound) {
		t.Errorf("cross-user Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestRegisterInvalidConfig(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	tests := []struct {
		name string
		raw  string
	}{
		{"malformed json", `{not json`},
		{"no layers", `{"version": "1.8.0", "layers": []}`},
		{"bad widget", `{"layers": [{"options": {"sql": "SELECT 1", "widgets": {"w": {"type": "nope", "options": {}}}}}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Register(context.Background(), "alice", []byte(tt.raw))
			var ce *mapconfig.ConfigurationError
			if !errors.As(err, &ce) {
				t.Errorf("Register() error = %v, want ConfigurationError", err)
			}
		})
	}
}

func TestRegisterInvalidConfigNotStored(t *testing.T) {
	store := newCountingStore()
	c := New(store, testCacheConfig())
	defer c.Close()

	_, err := c.Register(context.Background(), "alice", []byte(`{"version": "1.8.0", "layers": []}`))
	if err == nil {
		t.Fatal("Register() accepted an invalid configuration")
	}
	if store.sets.Load() != 0 {
		t.Error("invalid configuration reached the durable store")
	}
}

func TestResolveUnknownToken(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	_, err := c.Resolve(context.Background(), "alice", "deadbeef")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve() error = %v, want ErrNotFound", err)
	}
}

func TestResolveStoreUnavailable(t *testing.T) {
	c := New(failingStore{}, testCacheConfig())
	defer c.Close()

	_, err := c.Resolve(context.Background(), "alice", "deadbeef")
	var cu *CacheUnavailableError
	if !errors.As(err, &cu) {
		t.Errorf("Resolve() error = %v, want CacheUnavailableError", err)
	}
}

func TestRegisterStoreUnavailable(t *testing.T) {
	c := New(failingStore{}, testCacheConfig())
	defer c.Close()

	_, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	var cu *CacheUnavailableError
	if !errors.As(err, &cu) {
		t.Errorf("Register() error = %v, want CacheUnavailableError", err)
	}
}

func TestUsageCountsSuccessfulResolutionsOnly(t *testing.T) {
	c := New(NewMemoryStore(), testCacheConfig())
	defer c.Close()

	reg, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	before := testutil.ToFloat64(metrics.LayergroupUsage)

	if _, err := c.Resolve(context.Background(), "alice", "deadbeef"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrNotFound", err)
	}
	if got := testutil.ToFloat64(metrics.LayergroupUsage); got != before {
		t.Errorf("usage counter moved on failed resolution: %v -> %v", before, got)
	}

	if _, err := c.Resolve(context.Background(), "alice", reg.Token); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := testutil.ToFloat64(metrics.LayergroupUsage); got != before+1 {
		t.Errorf("usage counter = %v, want %v", got, before+1)
	}
}

func TestResolveMemoryMissFallsBackToStore(t *testing.T) {
	store := newCountingStore()

	// Near-zero memory TTL forces every resolve down to the durable tier.
	cfg := testCacheConfig()
	cfg.MemoryTTL = time.Nanosecond
	c := New(store, cfg)
	defer c.Close()

	reg, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	time.Sleep(time.Millisecond)

	if _, err := c.Resolve(context.Background(), "alice", reg.Token); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if store.gets.Load() == 0 {
		t.Error("memory miss did not fall back to the durable store")
	}
}

func TestResolveRefreshesTTL(t *testing.T) {
	store := newCountingStore()
	c := New(store, testCacheConfig())
	defer c.Close()

	reg, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := c.Resolve(context.Background(), "alice", reg.Token); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if store.touches.Load() == 0 {
		t.Error("resolve did not refresh the durable TTL")
	}
}

// blockingStore holds every Set until released, keeping a registration flight
// open so concurrent callers must join it.
type blockingStore struct {
	*countingStore
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *blockingStore) Set(key string, value []byte, ttl time.Duration) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.countingStore.Set(key, value, ttl)
}

func TestConcurrentRegisterSharesOneFlight(t *testing.T) {
	store := &blockingStore{
		countingStore: newCountingStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c := New(store, testCacheConfig())
	defer c.Close()

	const workers = 8
	tokens := make(chan string, workers)
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := c.Register(context.Background(), "alice", []byte(validConfigJSON))
			if err != nil {
				errs <- err
				return
			}
			tokens <- reg.Token
		}()
	}

	// Wait for the first flight to reach the store, give the remaining
	// workers time to join it, then let it finish.
	<-store.entered
	time.Sleep(50 * time.Millisecond)
	close(store.release)
	wg.Wait()
	close(tokens)
	close(errs)

	for err := range errs {
		t.Fatalf("Register() error = %v", err)
	}

	var first string
	for tok := range tokens {
		if first == "" {
			first = tok
			continue
		}
		if tok != first {
			t.Errorf("concurrent registrations returned different tokens")
		}
	}
	if got := store.sets.Load(); got != 1 {
		t.Errorf("store received %d writes, want 1 shared flight", got)
	}
}

func TestRegisterContextCancelled(t *testing.T) {
	store := &blockingStore{
		countingStore: newCountingStore(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	c := New(store, testCacheConfig())
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Register(ctx, "alice", []byte(validConfigJSON))
		done <- err
	}()

	<-store.entered
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Register() error = %v, want context.Canceled", err)
	}

	// The abandoned flight still completes and persists the entry.
	close(store.release)
	deadline := time.After(2 * time.Second)
	for store.sets.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("abandoned flight never persisted the configuration")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTokenFormat(t *testing.T) {
	canonical, err := canonicalize([]byte(validConfigJSON))
	if err != nil {
		t.Fatalf("canonicalize() error = %v", err)
	}

	tok := Token("alice", canonical)
	if len(tok) != 64 {
		t.Errorf("Token() length = %d, want 64 hex chars", len(tok))
	}
	if tok != Token("alice", canonical) {
		t.Error("Token() not deterministic")
	}
	if tok == Token("bob", canonical) {
		t.Error("Token() ignores the user scope")
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Set("k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, err := s.Get("k"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if _, err := s.Get("k"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrKeyNotFound", err)
	}
}

func TestMemoryStoreTouch(t *testing.T) {
	s := NewMemoryStore()

	if err := s.Set("k", []byte("v"), 20*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Touch("k", time.Hour); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get("k"); err != nil {
		t.Errorf("Get() after Touch() error = %v, want entry alive", err)
	}

	// Touching a missing key is not an error.
	if err := s.Touch("missing", time.Hour); err != nil {
		t.Errorf("Touch(missing) error = %v", err)
	}
}
