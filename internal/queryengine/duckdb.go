// Tessella - Map Configuration and Dataview Analytics Backend
// Copyright 2026 Tessella Maps
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessella-maps/tessella

package queryengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/tessella-maps/tessella/internal/config"
	"github.com/tessella-maps/tessella/internal/logging"
)

// DuckDB is the embedded DuckDB-backed query engine. Query round trips run
// through a circuit breaker so a failing engine sheds load fast instead of
// piling up blocked requests.
type DuckDB struct {
	conn    *sql.DB
	breaker *gobreaker.CircuitBreaker[[]Row]
}

// NewDuckDB opens a DuckDB database and configures the connection pool.
func NewDuckDB(cfg *config.DatabaseConfig) (*DuckDB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		// Use 0750 permissions (owner: rwx, group: rx, other: none) per gosec G301
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted network
	// environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// DuckDB is an in-process engine; a small pool avoids writer contention.
	conn.SetMaxOpenConns(numThreads)
	conn.SetMaxIdleConns(numThreads)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[[]Row](gobreaker.Settings{
		Name:    "duckdb",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Query engine circuit breaker state change")
		},
	})

	return &DuckDB{conn: conn, breaker: breaker}, nil
}

// Query executes a SQL statement and materializes all result rows.
func (d *DuckDB) Query(ctx context.Context, sqlText string, args ...interface{}) ([]Row, error) {
	rows, err := d.breaker.Execute(func() ([]Row, error) {
		return d.query(ctx, sqlText, args...)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrEngineBusy, err)
		}
		return nil, err
	}
	return rows, nil
}

func (d *DuckDB) query(ctx context.Context, sqlText string, args ...interface{}) ([]Row, error) {
	rows, err := d.conn.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer closeRowsQuietly(rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return result, nil
}

// Exec runs a statement without returning rows. Used by tests and tooling to
// seed datasets.
func (d *DuckDB) Exec(ctx context.Context, sqlText string, args ...interface{}) error {
	if _, err := d.conn.ExecContext(ctx, sqlText, args...); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (d *DuckDB) Close() error {
	return d.conn.Close()
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close database connection")
	}
}

func closeRowsQuietly(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close result rows")
	}
}
