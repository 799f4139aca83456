// Package store persists vesting engine state. Two backends are provided:
// an in-memory store for tests and ephemeral runs, and a SQLite store for
// durable daemon state.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/vestflow-xyz/go-vestflow/engine"
)

// ErrSnapshotNotFound is returned when no snapshot exists for an instance.
var ErrSnapshotNotFound = errors.New("store: snapshot not found")

// Store saves and loads engine snapshots keyed by instance id.
type Store interface {
	// Save persists the snapshot, replacing any previous state for the
	// same instance.
	Save(ctx context.Context, snap *engine.Snapshot) error

	// Load retrieves the snapshot for an instance.
	Load(ctx context.Context, instanceID string) (*engine.Snapshot, error)

	// Instances lists the known instance ids.
	Instances(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}

// MemoryStore keeps snapshots in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]*engine.Snapshot
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]*engine.Snapshot)}
}

// Save persists a copy of the snapshot.
func (s *MemoryStore) Save(_ context.Context, snap *engine.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.ID] = cloneSnapshot(snap)
	return nil
}

// Load retrieves a copy of the stored snapshot.
func (s *MemoryStore) Load(_ context.Context, instanceID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[instanceID]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return cloneSnapshot(snap), nil
}

// Instances lists known instance ids.
func (s *MemoryStore) Instances(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		ids = append(ids, id)
	}
	return ids, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

func cloneSnapshot(snap *engine.Snapshot) *engine.Snapshot {
	out := &engine.Snapshot{
		ID:      snap.ID,
		Account: snap.Account,
		Owner:   snap.Owner,
	}
	if snap.Withdrawable != nil {
		out.Withdrawable = snap.Withdrawable.Clone()
	}
	for _, sched := range snap.Schedules {
		out.Schedules = append(out.Schedules, sched.Clone())
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
