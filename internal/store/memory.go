package store

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/registrar/internal/model"
)

// MemoryStore keeps encoded records in memory. Records go through the
// same codec as the durable backends.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

// LoadMode returns the stored mode.
func (s *MemoryStore) LoadMode(ctx context.Context) (model.Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.records[keyMode]
	if !ok {
		return model.Mode{}, ErrNotFound
	}
	return decodeMode(data)
}

// SaveMode replaces or deletes the stored mode.
func (s *MemoryStore) SaveMode(ctx context.Context, mode *model.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mode == nil {
		delete(s.records, keyMode)
		return nil
	}
	data, err := encodeMode(*mode)
	if err != nil {
		return err
	}
	s.records[keyMode] = data
	return nil
}

// Load returns the stored state.
func (s *MemoryStore) Load(ctx context.Context) (model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.records[keyState]
	if !ok {
		return model.PersistedState{}, ErrNotFound
	}
	return decodeState(data)
}

// Update applies mutate under the store lock.
func (s *MemoryStore) Update(ctx context.Context, mutate func(*model.PersistedState) error) (model.PersistedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, data, err := applyUpdate(s.records[keyState], mutate)
	if err != nil {
		return model.PersistedState{}, err
	}
	s.records[keyState] = data
	return state, nil
}

// Clear deletes the state record.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, keyState)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// PutRaw stores raw bytes under a record key. Used to simulate corrupt
// or foreign records.
func (s *MemoryStore) PutRaw(name string, data []byte) error {
	if name != keyMode && name != keyState {
		return errors.New("store: unknown record " + name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[name] = append([]byte(nil), data...)
	return nil
}
