package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-reveal-voting/models"
)

func TestJSONStoreSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	_, err = store.LoadSnapshot(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	voter := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	snap := &models.Snapshot{
		Phase:         models.PhaseReveal,
		Commitments:   map[common.Address]common.Hash{voter: common.HexToHash("0xabcd")},
		Tally:         map[models.Candidate]uint64{"toto": 2},
		TrustedSigner: common.Address{1},
		Administrator: common.Address{2},
	}
	require.NoError(t, store.SaveSnapshot(ctx, snap))

	loaded, err := store.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	_, err = os.Stat(filepath.Join(dir, snapshotFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestJSONStoreJournal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewJSONStore(dir)
	require.NoError(t, err)

	journal, err := store.LoadJournal(ctx)
	require.NoError(t, err)
	assert.Empty(t, journal)

	first := models.NewEntry(nil, models.ActionCommit, common.Address{1}, json.RawMessage(`{"commitment":"0x01"}`))
	second := models.NewEntry(first, models.ActionAdvancePhase, common.Address{2}, json.RawMessage(`{"phase":1}`))
	require.NoError(t, store.AppendEntry(ctx, first))
	require.NoError(t, store.AppendEntry(ctx, second))

	reopened, err := NewJSONStore(dir)
	require.NoError(t, err)
	journal, err = reopened.LoadJournal(ctx)
	require.NoError(t, err)
	require.Len(t, journal, 2)
	assert.Equal(t, second.Hash, journal[1].Hash)
	assert.NoError(t, models.ValidateChain(journal))
}

func TestSignatureBookFiles(t *testing.T) {
	dir := t.TempDir()
	voter := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	book := models.SignatureBook{voter: []byte{0xde, 0xad, 0xbe, 0xef}}
	path := filepath.Join(dir, "signatures.json")
	require.NoError(t, WriteSignatureBook(path, book))

	loaded, err := LoadSignatureBook(path)
	require.NoError(t, err)
	sig, ok := loaded.Lookup(voter)
	require.True(t, ok)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, sig)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"0xdeadbeef"`)

	_, err = LoadSignatureBook(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadWhitelist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "whitelist.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"address": "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
  {"address": "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"}
]`), 0644))

	entries, err := LoadWhitelist(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), entries[1].Address)

	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0644))
	_, err = LoadWhitelist(path)
	assert.Error(t, err)
}
