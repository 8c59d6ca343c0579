package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/khabaroff/mockhook/src/logging"
	_ "modernc.org/sqlite"
)

// SQLiteGateway keeps the document in a single-row table
type SQLiteGateway struct {
	db *sql.DB
}

// NewSQLiteGateway opens (or creates) the database file at dsn
func NewSQLiteGateway(ctx context.Context, dsn string) (*SQLiteGateway, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// One connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &SQLiteGateway{db: db}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteGateway) init(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		body TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return err
	}

	empty, err := encodeDocument(NewDocument())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, "INSERT OR IGNORE INTO documents (id, body) VALUES (1, ?)", string(empty))
	return err
}

// Read returns the stored document; a missing or corrupt row yields an empty one
func (s *SQLiteGateway) Read(ctx context.Context) (*Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, "SELECT body FROM documents WHERE id = 1").Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := decodeDocument([]byte(body))
	if err != nil {
		log := logging.NewLogger("database")
		log.Warn().Err(err).Str("backend", BackendSQLite).Msg("document unreadable, using empty document")
		return NewDocument(), nil
	}
	return doc, nil
}

// Write upserts the single document row
func (s *SQLiteGateway) Write(ctx context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, body, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
	`, string(data), time.Now())
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	return nil
}

// Ping checks the connection
func (s *SQLiteGateway) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database
func (s *SQLiteGateway) Close() error {
	return s.db.Close()
}
