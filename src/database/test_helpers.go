package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewTestDatabase returns a file-backed database in a per-test temp dir
func NewTestDatabase(t *testing.T) *Database {
	t.Helper()

	gw, err := NewFileGateway(filepath.Join(t.TempDir(), "api.json"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db := NewDatabaseFromGateway(gw, BackendFile)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// GetTestDatabaseURL returns the postgres URL for integration tests, or ""
func GetTestDatabaseURL() string {
	return os.Getenv("TEST_DATABASE_URL")
}

// GetTestRedisURL returns the redis URL for integration tests, or ""
func GetTestRedisURL() string {
	return os.Getenv("TEST_REDIS_URL")
}

// WithTestPostgres runs fn against a postgres-backed gateway.
// It skips the test if no database is configured or reachable.
func WithTestPostgres(t *testing.T, fn func(gw *PostgresGateway)) {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Skipf("Could not parse test database URL: %v", err)
	}

	// Smaller pool for tests
	config.MaxConns = 2
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		t.Skipf("Could not connect to test database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Skipf("Test database not reachable: %v", err)
	}

	gw, err := NewPostgresGatewayFromPool(ctx, pool)
	if err != nil {
		t.Fatalf("failed to initialize postgres gateway: %v", err)
	}
	if _, err := pool.Exec(ctx, "DELETE FROM documents"); err != nil {
		t.Fatalf("failed to reset documents: %v", err)
	}

	fn(gw)
}
