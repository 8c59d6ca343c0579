package repositories

import (
	"context"

	"github.com/khabaroff/mockhook/src/database"
)

// DocumentStore defines access to the persisted document.
// View hands fn a private copy; Update serializes read-modify-write
// sequences and persists only when fn reports a change.
type DocumentStore interface {
	View(ctx context.Context, fn func(doc *database.Document) error) error
	Update(ctx context.Context, fn func(doc *database.Document) (bool, error)) error
}

var _ DocumentStore = (*database.Database)(nil)
