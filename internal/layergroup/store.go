// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package layergroup

import (
	"errors"
	"sync"
	"time"
)

// ErrKeyNotFound reports a token absent from the durable store.
var ErrKeyNotFound = errors.New("layergroup: key not found")

// Store is the durable tier of the compiled-configuration cache: it maps a
// token key to the canonical configuration JSON it was computed from, with a
// TTL refreshed on use.
type Store interface {
	// Get returns the stored value, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, expiring after ttl.
	Set(key string, value []byte, ttl time.Duration) error

	// Touch extends the TTL of an existing key. Missing keys are not an
	// error; the caller already holds the value.
	Touch(key string, ttl time.Duration) error

	// Close releases store resources.
	Close() error
}

// MemoryStore is an in-process Store for tests and single-node setups without
// persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, ErrKeyNotFound
	}
	return entry.value, nil
}

func (s *MemoryStore) Set(key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Touch(key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
