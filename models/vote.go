package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Candidate identifies one of the options agreed upon when the round is set up.
type Candidate string

// CommitRequest is what a voter submits during the commit phase. Signature is
// the trusted signer's eligibility proof, Auth the voter's own signature over
// the request.
type CommitRequest struct {
	Voter      common.Address `json:"voter"`
	Commitment common.Hash    `json:"commitment"`
	Signature  hexutil.Bytes  `json:"signature"`
	Auth       hexutil.Bytes  `json:"auth"`
}

// RevealRequest opens a previously submitted commitment.
type RevealRequest struct {
	Voter     common.Address `json:"voter"`
	Candidate Candidate      `json:"candidate"`
	Salt      string         `json:"salt"`
	Auth      hexutil.Bytes  `json:"auth"`
}

// AdvanceRequest asks for the round to move to its next phase.
type AdvanceRequest struct {
	Caller common.Address `json:"caller"`
	Auth   hexutil.Bytes  `json:"auth"`
}
