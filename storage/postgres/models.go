package postgres

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"commit-reveal-voting/models"
)

const roundStateID = 1

type roundStateModel struct {
	ID            uint8     `gorm:"primaryKey"`
	Phase         uint8     `gorm:"not null"`
	TrustedSigner string    `gorm:"size:42;not null"`
	Administrator string    `gorm:"size:42;not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (roundStateModel) TableName() string { return "round_state" }

type commitmentModel struct {
	Voter      string `gorm:"primaryKey;size:42"`
	Commitment string `gorm:"size:66;not null"`
}

func (commitmentModel) TableName() string { return "commitments" }

type tallyModel struct {
	Candidate string `gorm:"primaryKey"`
	Votes     uint64 `gorm:"not null"`
}

func (tallyModel) TableName() string { return "tallies" }

// journalEntryModel keeps Data as text: jsonb would reorder keys and break
// the entry hashes.
type journalEntryModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	Seq       uint64 `gorm:"uniqueIndex;not null"`
	Timestamp int64  `gorm:"not null"`
	Action    string `gorm:"size:32;not null"`
	Actor     string `gorm:"size:42;not null"`
	Data      string `gorm:"type:text;not null"`
	PrevHash  string `gorm:"size:66;not null"`
	Hash      string `gorm:"size:66;not null"`
}

func (journalEntryModel) TableName() string { return "journal_entries" }

// snapshotRows splits snap into table rows. Rows are sorted by key.
func snapshotRows(snap *models.Snapshot) (roundStateModel, []commitmentModel, []tallyModel) {
	state := roundStateModel{
		ID:            roundStateID,
		Phase:         uint8(snap.Phase),
		TrustedSigner: snap.TrustedSigner.Hex(),
		Administrator: snap.Administrator.Hex(),
		UpdatedAt:     time.Now().UTC(),
	}

	commitments := make([]commitmentModel, 0, len(snap.Commitments))
	for voter, commitment := range snap.Commitments {
		commitments = append(commitments, commitmentModel{Voter: voter.Hex(), Commitment: commitment.Hex()})
	}
	sort.Slice(commitments, func(i, j int) bool { return commitments[i].Voter < commitments[j].Voter })

	tallies := make([]tallyModel, 0, len(snap.Tally))
	for c, n := range snap.Tally {
		tallies = append(tallies, tallyModel{Candidate: string(c), Votes: n})
	}
	sort.Slice(tallies, func(i, j int) bool { return tallies[i].Candidate < tallies[j].Candidate })

	return state, commitments, tallies
}

func snapshotFromRows(state roundStateModel, commitments []commitmentModel, tallies []tallyModel) *models.Snapshot {
	snap := &models.Snapshot{
		Phase:         models.Phase(state.Phase),
		Commitments:   make(map[common.Address]common.Hash, len(commitments)),
		Tally:         make(map[models.Candidate]uint64, len(tallies)),
		TrustedSigner: common.HexToAddress(state.TrustedSigner),
		Administrator: common.HexToAddress(state.Administrator),
	}
	for _, c := range commitments {
		snap.Commitments[common.HexToAddress(c.Voter)] = common.HexToHash(c.Commitment)
	}
	for _, t := range tallies {
		snap.Tally[models.Candidate(t.Candidate)] = t.Votes
	}
	return snap
}

func entryRow(entry *models.Entry) journalEntryModel {
	return journalEntryModel{
		ID:        entry.ID,
		Seq:       entry.Index,
		Timestamp: entry.Timestamp,
		Action:    string(entry.Action),
		Actor:     entry.Actor.Hex(),
		Data:      string(entry.Data),
		PrevHash:  entry.PrevHash.Hex(),
		Hash:      entry.Hash.Hex(),
	}
}

func (row journalEntryModel) entry() *models.Entry {
	return &models.Entry{
		ID:        row.ID,
		Index:     row.Seq,
		Timestamp: row.Timestamp,
		Action:    models.Action(row.Action),
		Actor:     common.HexToAddress(row.Actor),
		Data:      json.RawMessage(row.Data),
		PrevHash:  common.HexToHash(row.PrevHash),
		Hash:      common.HexToHash(row.Hash),
	}
}
