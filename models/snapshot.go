package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Snapshot is the persisted state of a single round.
type Snapshot struct {
	Phase         Phase                          `json:"phase"`
	Commitments   map[common.Address]common.Hash `json:"commitments"`
	Tally         map[Candidate]uint64           `json:"tally"`
	TrustedSigner common.Address                 `json:"trusted_signer"`
	Administrator common.Address                 `json:"administrator"`
}

// Validate checks the invariants a restored snapshot must satisfy.
func (s *Snapshot) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("invalid phase %d", s.Phase)
	}
	if s.TrustedSigner == (common.Address{}) {
		return fmt.Errorf("missing trusted signer")
	}
	if s.Administrator == (common.Address{}) {
		return fmt.Errorf("missing administrator")
	}
	return nil
}
