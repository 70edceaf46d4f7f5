package store

import (
	"context"
	"sync"

	"github.com/nao1215/wmsender/internal/model"
)

// MemoryStore keeps the encoded database in memory. Loads and saves go
// through the same codec as persistent backends, so callers never share
// state with the store.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load decodes the last saved database.
func (s *MemoryStore) Load(_ context.Context) (*model.Database, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNotFound
	}
	return Decode(s.data)
}

// Save encodes and keeps db.
func (s *MemoryStore) Save(_ context.Context, db *model.Database) error {
	data, err := Encode(db)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
	return nil
}

// Location returns "memory://".
func (s *MemoryStore) Location() string {
	return "memory://"
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
