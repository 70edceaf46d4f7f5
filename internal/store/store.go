package store

import (
	"context"

	"github.com/nao1215/wmsender/internal/model"
)

// Store loads and saves the webmention database.
type Store interface {
	// Load returns the last saved database.
	Load(ctx context.Context) (*model.Database, error)

	// Save replaces the stored database with db.
	Save(ctx context.Context, db *model.Database) error

	// Location describes where the database lives, without credentials.
	Location() string

	// Close releases the backend's resources.
	Close() error
}

// HistoryStore is implemented by backends that keep a record of saves.
type HistoryStore interface {
	Store

	// History returns up to limit saved runs, newest first.
	History(ctx context.Context, limit int) ([]RunRecord, error)
}
