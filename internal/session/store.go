// Package session holds settled batch outcomes for the lifetime of a user
// session. Outcomes are write-once and expire with the session; nothing is
// persisted beyond that.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marklens/marklens/internal/common"
	"github.com/marklens/marklens/internal/entity"
)

// Store keeps batch outcomes addressable by batch ID until they expire.
type Store interface {
	// Put stores a settled outcome. Outcomes are write-once; storing the
	// same batch ID twice is a caller bug.
	Put(ctx context.Context, outcome *entity.BatchOutcome) error

	// Get returns the outcome for the batch ID, or common.ErrNotFound when
	// it never existed or has expired.
	Get(ctx context.Context, batchID uuid.UUID) (*entity.BatchOutcome, error)
}

type memoryEntry struct {
	outcome   *entity.BatchOutcome
	expiresAt time.Time
}

// MemoryStore is the default in-process backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
}

// NewMemoryStore creates an in-process store whose entries expire after ttl.
// A non-positive ttl falls back to 2 hours.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &MemoryStore{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
	}
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, outcome *entity.BatchOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[outcome.BatchID]; exists {
		return fmt.Errorf("batch %s already stored: %w", outcome.BatchID, common.ErrInvalidInput)
	}
	s.sweepLocked()
	s.entries[outcome.BatchID] = memoryEntry{
		outcome:   outcome,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, batchID uuid.UUID) (*entity.BatchOutcome, error) {
	s.mu.RLock()
	entry, ok := s.entries[batchID]
	s.mu.RUnlock()
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, fmt.Errorf("batch %s: %w", batchID, common.ErrNotFound)
	}
	return entry.outcome, nil
}

// sweepLocked drops expired entries. Called with the write lock held, on the
// write path, so an idle process never needs a janitor goroutine.
func (s *MemoryStore) sweepLocked() {
	now := time.Now()
	for id, entry := range s.entries {
		if now.After(entry.expiresAt) {
			delete(s.entries, id)
		}
	}
}
