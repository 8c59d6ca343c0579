package database

import (
	"context"
	"fmt"
	"strings"
)

// Gateway reads and writes the whole document as a unit.
// Writes are last-writer-wins; callers serialize read-modify-write
// sequences through Database.Update.
type Gateway interface {
	Read(ctx context.Context) (*Document, error)
	Write(ctx context.Context, doc *Document) error
	Ping(ctx context.Context) error
	Close() error
}

// Backend names reported by Database.Backend
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// OpenGateway picks a backend from the URL scheme. A bare path is a JSON file.
func OpenGateway(ctx context.Context, databaseURL string) (Gateway, string, error) {
	switch {
	case databaseURL == "":
		return nil, "", fmt.Errorf("database URL is empty")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		gw, err := NewPostgresGateway(ctx, databaseURL)
		return gw, BackendPostgres, err
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		gw, err := NewRedisGateway(ctx, databaseURL)
		return gw, BackendRedis, err
	case strings.HasPrefix(databaseURL, "sqlite://"):
		gw, err := NewSQLiteGateway(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
		return gw, BackendSQLite, err
	default:
		gw, err := NewFileGateway(strings.TrimPrefix(databaseURL, "file://"))
		return gw, BackendFile, err
	}
}
