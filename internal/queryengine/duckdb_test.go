// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package queryengine

import (
	"context"
	"errors"
	"testing"

	"github.com/tessella-maps/tessella/internal/config"
)

func testEngine(t *testing.T) *DuckDB {
	t.Helper()

	engine, err := NewDuckDB(&config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "256MB",
		Threads:   2,
	})
	if err != nil {
		t.Fatalf("NewDuckDB() error = %v", err)
	}
	t.Cleanup(func() {
		if err := engine.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return engine
}

func TestQueryMaterializesRows(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	if err := engine.Exec(ctx, "CREATE TABLE places (name VARCHAR, pop_max BIGINT)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if err := engine.Exec(ctx, "INSERT INTO places VALUES ('Madrid', 5567000), ('Paris', 9904000)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	rows, err := engine.Query(ctx, "SELECT name, pop_max FROM places WHERE pop_max > ? ORDER BY name", 6000000)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["name"] != "Paris" {
		t.Errorf("rows[0][name] = %v", rows[0]["name"])
	}
}

func TestQueryAggregates(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	if err := engine.Exec(ctx, "CREATE TABLE t (v DOUBLE)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if err := engine.Exec(ctx, "INSERT INTO t VALUES (1), (2), (3)"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}

	rows, err := engine.Query(ctx, "SELECT SUM(v) AS result FROM t")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if got, ok := rows[0]["result"].(float64); !ok || got != 6 {
		t.Errorf("result = %v (%T), want 6", rows[0]["result"], rows[0]["result"])
	}
}

func TestQuerySyntaxError(t *testing.T) {
	engine := testEngine(t)

	if _, err := engine.Query(context.Background(), "SELEKT nonsense"); err == nil {
		t.Fatal("Query() accepted invalid SQL")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	engine := testEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := engine.Query(ctx, "SELEKT nonsense"); err == nil {
			t.Fatal("Query() accepted invalid SQL")
		}
	}

	_, err := engine.Query(ctx, "SELECT 1")
	if !errors.Is(err, ErrEngineBusy) {
		t.Fatalf("Query() with open breaker error = %v, want ErrEngineBusy", err)
	}
}

func TestQueryContextCancelled(t *testing.T) {
	engine := testEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Query(ctx, "SELECT 1"); err == nil {
		t.Fatal("Query() succeeded with cancelled context")
	}
}
