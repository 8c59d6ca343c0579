package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/khabaroff/mockhook/src/logging"
)

// Database serializes access to the persisted document
type Database struct {
	gw      Gateway
	backend string
	mu      sync.Mutex
}

// New opens the backend named by databaseURL
func New(ctx context.Context, databaseURL string) (*Database, error) {
	gw, backend, err := OpenGateway(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", backendLabel(backend), err)
	}

	log := logging.NewLogger("database")
	log.Info().Str("backend", backend).Msg("document store opened")

	return &Database{gw: gw, backend: backend}, nil
}

// NewDatabaseFromGateway wraps an already opened gateway
func NewDatabaseFromGateway(gw Gateway, backend string) *Database {
	return &Database{gw: gw, backend: backend}
}

func backendLabel(backend string) string {
	if backend == "" {
		return "unknown"
	}
	return backend
}

// Backend returns the name of the backing store
func (db *Database) Backend() string {
	return db.backend
}

// Close closes the backing store
func (db *Database) Close() error {
	if db == nil || db.gw == nil {
		return nil
	}
	return db.gw.Close()
}

// View reads the document and hands it to fn. The document is a private copy.
func (db *Database) View(ctx context.Context, fn func(doc *Document) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	doc, err := db.gw.Read(ctx)
	if err != nil {
		return err
	}
	return fn(doc)
}

// Update runs a read-modify-write sequence under the document lock.
// The document is written back only when fn reports a change.
func (db *Database) Update(ctx context.Context, fn func(doc *Document) (bool, error)) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	doc, err := db.gw.Read(ctx)
	if err != nil {
		return err
	}

	changed, err := fn(doc)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	return db.gw.Write(ctx, doc)
}

// Health checks if the backing store is reachable
func (db *Database) Health(ctx context.Context) error {
	if db == nil || db.gw == nil {
		return fmt.Errorf("database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return db.gw.Ping(ctx)
}
