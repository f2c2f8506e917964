// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestGetSet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get() on empty cache returned ok")
	}

	c.Set("token", "compiled")
	got, ok := c.Get("token")
	if !ok {
		t.Fatal("Get() after Set() returned !ok")
	}
	if got != "compiled" {
		t.Errorf("Get() = %v, want %q", got, "compiled")
	}
}

func TestExpiration(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("token", "compiled", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := c.Get("token"); ok {
		t.Error("Get() returned expired entry")
	}

	stats := c.GetStats()
	if stats.Evictions == 0 {
		t.Error("expired read did not count as eviction")
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get() after Delete() returned ok")
	}

	c.Clear()
	if _, ok := c.Get("b"); ok {
		t.Error("Get() after Clear() returned ok")
	}
	if stats := c.GetStats(); stats.TotalKeys != 0 {
		t.Errorf("TotalKeys = %d after Clear()", stats.TotalKeys)
	}
}

func TestHitRate(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("a", 1)
	c.Get("a")
	c.Get("a")
	c.Get("missing")

	if rate := c.HitRate(); rate < 66.0 || rate > 67.0 {
		t.Errorf("HitRate() = %v, want ~66.67", rate)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d", j%7)
				c.Set(key, n)
				c.Get(key)
			}
		}(i)
	}
	wg.Wait()
}

func TestCleanup(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("old", 1, time.Millisecond)
	c.Set("fresh", 2)
	time.Sleep(10 * time.Millisecond)

	c.cleanup()

	c.mu.RLock()
	_, oldExists := c.entries["old"]
	_, freshExists := c.entries["fresh"]
	c.mu.RUnlock()

	if oldExists {
		t.Error("cleanup() left expired entry")
	}
	if !freshExists {
		t.Error("cleanup() removed live entry")
	}
}
