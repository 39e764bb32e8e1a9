package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"commit-reveal-voting/models"
)

// ErrNotFound is returned by LoadSnapshot when nothing has been persisted yet.
var ErrNotFound = errors.New("not found")

// Store persists the round snapshot and its journal.
type Store interface {
	LoadSnapshot(ctx context.Context) (*models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap *models.Snapshot) error
	AppendEntry(ctx context.Context, entry *models.Entry) error
	LoadJournal(ctx context.Context) ([]*models.Entry, error)
	Close() error
}

// ChangeStore is implemented by stores that can save a snapshot together with
// the journal entry that produced it, so neither is written without the other.
type ChangeStore interface {
	SaveChange(ctx context.Context, snap *models.Snapshot, entry *models.Entry) error
}

// LoadSignatureBook reads a signatures file in the {"0xAddress": "0xSignature"} format.
func LoadSignatureBook(path string) (models.SignatureBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read signature book %s", path)
	}

	book := make(models.SignatureBook)
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, errors.Wrapf(err, "decode signature book %s", path)
	}
	return book, nil
}

// WriteSignatureBook writes book to path, replacing it atomically.
func WriteSignatureBook(path string, book models.SignatureBook) error {
	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode signature book")
	}
	return writeFileAtomic(path, data, 0644)
}

// LoadWhitelist reads the list of addresses to sign, [{"address": "0x..."}].
func LoadWhitelist(path string) ([]models.WhitelistEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read whitelist %s", path)
	}

	var entries []models.WhitelistEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode whitelist %s", path)
	}
	return entries, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "create directory")
	}

	// Write to temporary file first
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return errors.Wrapf(err, "write %s", tempPath)
	}

	// Atomic rename to ensure consistency
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrapf(err, "rename %s", tempPath)
	}
	return nil
}
