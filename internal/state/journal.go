package state

import (
	"context"
	"fmt"

	"github.com/nspcc-dev/neo-go/pkg/core/storage"
)

// Journal persists committed top-level changesets outside the process.
type Journal interface {
	// Load replays every persisted key/value pair into fn.
	Load(ctx context.Context, fn func(key, value []byte) error) error
	// Commit durably applies one changeset.
	Commit(ctx context.Context, changes []Change) error
}

// Restore replays journal j into lower and returns the number of keys loaded.
func Restore(ctx context.Context, lower storage.Store, j Journal) (int, error) {
	tx := Begin(lower)
	n := 0
	err := j.Load(ctx, func(key, value []byte) error {
		tx.Put(key, value)
		n++
		return nil
	})
	if err != nil {
		tx.Discard()
		return 0, fmt.Errorf("restore state: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("restore state: %w", err)
	}
	return n, nil
}

// MemoryJournal is a Journal that keeps changesets in memory. It backs tests
// and deployments without a database.
type MemoryJournal struct {
	data    map[string][]byte
	commits int
}

// NewMemoryJournal returns an empty MemoryJournal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{data: make(map[string][]byte)}
}

// Load implements Journal.
func (m *MemoryJournal) Load(_ context.Context, fn func(key, value []byte) error) error {
	for k, v := range m.data {
		if err := fn([]byte(k), v); err != nil {
			return err
		}
	}
	return nil
}

// Commit implements Journal.
func (m *MemoryJournal) Commit(_ context.Context, changes []Change) error {
	for _, c := range changes {
		if c.Deleted {
			delete(m.data, string(c.Key))
			continue
		}
		m.data[string(c.Key)] = c.Value
	}
	m.commits++
	return nil
}

// Len returns the number of persisted keys.
func (m *MemoryJournal) Len() int {
	return len(m.data)
}

// Commits returns how many changesets were committed.
func (m *MemoryJournal) Commits() int {
	return m.commits
}
