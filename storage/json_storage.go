package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"commit-reveal-voting/models"
)

const (
	snapshotFile = "round_state.json"
	journalFile  = "journal.json"
)

// Journal is the on-disk form of the round journal.
type Journal struct {
	Entries []*models.Entry `json:"entries"`
}

// JSONStore keeps the snapshot and journal as JSON files under basePath.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex
	journal  *Journal
}

var _ Store = (*JSONStore)(nil)

func NewJSONStore(basePath string) (*JSONStore, error) {
	// Create storage directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	store := &JSONStore{basePath: basePath}

	journal, err := store.loadJournalFromFile()
	if err != nil {
		return nil, err
	}
	store.journal = journal

	return store, nil
}

func (s *JSONStore) LoadSnapshot(_ context.Context) (*models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.basePath, snapshotFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.WithStack(err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal snapshot")
	}
	return &snap, nil
}

func (s *JSONStore) SaveSnapshot(_ context.Context, snap *models.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}
	return writeFileAtomic(filepath.Join(s.basePath, snapshotFile), data, 0644)
}

func (s *JSONStore) AppendEntry(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := &Journal{Entries: make([]*models.Entry, len(s.journal.Entries), len(s.journal.Entries)+1)}
	copy(next.Entries, s.journal.Entries)
	next.Entries = append(next.Entries, entry)

	// Save entire journal to file
	if err := s.saveJournalToFile(next); err != nil {
		return err
	}
	s.journal = next
	return nil
}

func (s *JSONStore) LoadJournal(_ context.Context) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy of the entries to prevent modification
	entries := make([]*models.Entry, len(s.journal.Entries))
	copy(entries, s.journal.Entries)
	return entries, nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) loadJournalFromFile() (*Journal, error) {
	path := filepath.Join(s.basePath, journalFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Journal{Entries: make([]*models.Entry, 0)}, nil
		}
		return nil, errors.WithStack(err)
	}

	var journal Journal
	if err := json.Unmarshal(data, &journal); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal journal")
	}
	return &journal, nil
}

func (s *JSONStore) saveJournalToFile(journal *Journal) error {
	data, err := json.Marshal(journal)
	if err != nil {
		return errors.Wrap(err, "failed to marshal journal")
	}
	return writeFileAtomic(filepath.Join(s.basePath, journalFile), data, 0644)
}
