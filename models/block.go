package models

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"golang.org/x/crypto/sha3"
)

// Action names the kind of state change an Entry records.
type Action string

const (
	ActionCommit       Action = "commit"
	ActionReveal       Action = "reveal"
	ActionAdvancePhase Action = "advance_phase"
)

// Entry is one link of the round journal. Every accepted state change is
// appended as an Entry whose hash covers the previous one.
type Entry struct {
	ID        string          `json:"id"`
	Index     uint64          `json:"index"`
	Timestamp int64           `json:"timestamp"`
	Action    Action          `json:"action"`
	Actor     common.Address  `json:"actor"`
	Data      json.RawMessage `json:"data"`
	PrevHash  common.Hash     `json:"prev_hash"`
	Hash      common.Hash     `json:"hash"`
}

// NewEntry builds the entry that follows prev (nil for the first one).
func NewEntry(prev *Entry, action Action, actor common.Address, data json.RawMessage) *Entry {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	entry := &Entry{
		ID:        uuid.New().String(),
		Timestamp: time.Now().Unix(),
		Action:    action,
		Actor:     actor,
		Data:      data,
	}
	if prev != nil {
		entry.Index = prev.Index + 1
		entry.PrevHash = prev.Hash
		if entry.Timestamp < prev.Timestamp {
			entry.Timestamp = prev.Timestamp
		}
	}
	entry.Hash = entry.calculateHash()
	return entry
}

func (e *Entry) calculateHash() common.Hash {
	buffer := new(bytes.Buffer)
	binary.Write(buffer, binary.BigEndian, e.Index)
	binary.Write(buffer, binary.BigEndian, e.Timestamp)
	buffer.WriteString(e.ID)
	buffer.WriteString(string(e.Action))
	buffer.Write(e.Actor.Bytes())
	// Data is hashed in compact form so re-indenting stores don't break the chain.
	if err := json.Compact(buffer, e.Data); err != nil {
		buffer.Write(e.Data)
	}
	buffer.Write(e.PrevHash.Bytes())

	d := sha3.NewLegacyKeccak256()
	d.Write(buffer.Bytes())
	return common.BytesToHash(d.Sum(nil))
}

// Validate recomputes the entry hash.
func (e *Entry) Validate() bool {
	return e.calculateHash() == e.Hash
}

// ValidateChain validates the entire journal and reports the first broken link.
func ValidateChain(entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}

	if entries[0].Index != 0 || entries[0].PrevHash != (common.Hash{}) {
		return fmt.Errorf("entry 0 is not a chain root")
	}
	if !entries[0].Validate() {
		return fmt.Errorf("entry 0 has invalid hash %s", entries[0].Hash.Hex())
	}

	for i := 1; i < len(entries); i++ {
		current := entries[i]
		previous := entries[i-1]

		if !current.Validate() {
			return fmt.Errorf("entry %d has invalid hash %s", i, current.Hash.Hex())
		}
		if current.PrevHash != previous.Hash {
			return fmt.Errorf("entry %d has invalid previous hash link", i)
		}
		if current.Index != previous.Index+1 {
			return fmt.Errorf("entry %d has invalid index %d", i, current.Index)
		}
		if current.Timestamp < previous.Timestamp {
			return fmt.Errorf("entry %d has invalid timestamp", i)
		}
	}

	return nil
}
