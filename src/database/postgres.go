package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/khabaroff/mockhook/src/logging"
)

// PostgresGateway keeps the document in a single JSONB row
type PostgresGateway struct {
	pool *pgxpool.Pool
}

// NewPostgresGateway creates a connection pool and initializes the schema
func NewPostgresGateway(ctx context.Context, databaseURL string) (*PostgresGateway, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	gw := &PostgresGateway{pool: pool}
	if err := gw.initializeSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return gw, nil
}

// NewPostgresGatewayFromPool wraps an existing pool (used by tests)
func NewPostgresGatewayFromPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresGateway, error) {
	gw := &PostgresGateway{pool: pool}
	if err := gw.initializeSchema(ctx); err != nil {
		return nil, err
	}
	return gw, nil
}

func (p *PostgresGateway) initializeSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			body JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create documents table: %w", err)
	}

	empty, err := encodeDocument(NewDocument())
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (id, body) VALUES (1, $1) ON CONFLICT (id) DO NOTHING`,
		string(empty),
	)
	if err != nil {
		return fmt.Errorf("failed to seed document: %w", err)
	}
	return nil
}

// Read returns the stored document; a missing or corrupt row yields an empty one
func (p *PostgresGateway) Read(ctx context.Context) (*Document, error) {
	var body []byte
	err := p.pool.QueryRow(ctx, "SELECT body FROM documents WHERE id = 1").Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := decodeDocument(body)
	if err != nil {
		log := logging.NewLogger("database")
		log.Warn().Err(err).Str("backend", BackendPostgres).Msg("document unreadable, using empty document")
		return NewDocument(), nil
	}
	return doc, nil
}

// Write upserts the single document row
func (p *PostgresGateway) Write(ctx context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO documents (id, body, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at
	`, string(data))
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Ping checks the pool
func (p *PostgresGateway) Ping(ctx context.Context) error {
	if p.pool == nil {
		return fmt.Errorf("database connection not initialized")
	}
	return p.pool.Ping(ctx)
}

// Close closes the connection pool
func (p *PostgresGateway) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
