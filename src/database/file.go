package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/khabaroff/mockhook/src/logging"
)

// FileGateway stores the document as an indented JSON file
type FileGateway struct {
	path string
}

// NewFileGateway creates the parent directory and an empty document if needed
func NewFileGateway(path string) (*FileGateway, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is empty")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	gw := &FileGateway{path: path}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := gw.Write(context.Background(), NewDocument()); err != nil {
			return nil, fmt.Errorf("failed to initialize document: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	return gw, nil
}

// Path returns the document location on disk
func (f *FileGateway) Path() string {
	return f.path
}

// Read loads the document; a missing or corrupt file yields an empty one
func (f *FileGateway) Read(ctx context.Context) (*Document, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		log := logging.NewLogger("database")
		log.Warn().Err(err).Str("path", f.path).Msg("document unreadable, using empty document")
		return NewDocument(), nil
	}
	return doc, nil
}

// Write replaces the file atomically via a temp file and rename
func (f *FileGateway) Write(ctx context.Context, doc *Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace document: %w", err)
	}
	return nil
}

// Ping checks that the document directory is reachable
func (f *FileGateway) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}

// Close is a no-op for files
func (f *FileGateway) Close() error {
	return nil
}
