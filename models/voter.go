package models

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// WhitelistEntry is one record of the whitelist fed to the offline signer.
type WhitelistEntry struct {
	Address common.Address `json:"address"`
}

// SignatureBook maps an eligible voter to the proof the trusted signer issued for it.
// On disk it is a JSON object {"0xAddress": "0xSignature"}.
type SignatureBook map[common.Address]hexutil.Bytes

// Lookup returns the proof issued for voter, if any.
func (b SignatureBook) Lookup(voter common.Address) ([]byte, bool) {
	sig, ok := b[voter]
	return sig, ok
}
