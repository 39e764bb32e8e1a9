package mem

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"commit-reveal-voting/models"
	"commit-reveal-voting/storage"
)

var (
	_ storage.Store       = (*Store)(nil)
	_ storage.ChangeStore = (*Store)(nil)
)

// Store implements a minimal in memory storage.Store for unit testing and
// throwaway rounds.
type Store struct {
	mu       sync.RWMutex
	snapshot *models.Snapshot
	journal  []*models.Entry
}

func NewMemStore() *Store {
	return &Store{}
}

func (m *Store) LoadSnapshot(_ context.Context) (*models.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot == nil {
		return nil, storage.ErrNotFound
	}
	return copySnapshot(m.snapshot), nil
}

func (m *Store) SaveSnapshot(_ context.Context, snap *models.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.snapshot = copySnapshot(snap)
	return nil
}

func (m *Store) AppendEntry(_ context.Context, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	m.journal = append(m.journal, &e)
	return nil
}

func (m *Store) SaveChange(_ context.Context, snap *models.Snapshot, entry *models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := *entry
	m.snapshot = copySnapshot(snap)
	m.journal = append(m.journal, &e)
	return nil
}

func (m *Store) LoadJournal(_ context.Context) ([]*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*models.Entry, len(m.journal))
	copy(entries, m.journal)
	return entries, nil
}

func (m *Store) Close() error {
	return nil
}

func copySnapshot(snap *models.Snapshot) *models.Snapshot {
	c := *snap
	c.Commitments = make(map[common.Address]common.Hash, len(snap.Commitments))
	for k, v := range snap.Commitments {
		c.Commitments[k] = v
	}
	c.Tally = make(map[models.Candidate]uint64, len(snap.Tally))
	for k, v := range snap.Tally {
		c.Tally[k] = v
	}
	return &c
}
