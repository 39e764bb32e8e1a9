package service

import (
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/log"
)

// WhitelistVerifier decides whether a voter may commit. Eligibility is proven
// per call by a signature of the trusted signer over the voter's address, so
// no whitelist is stored and nothing is cached.
type WhitelistVerifier struct {
	cryptoService *encryption.CryptoService
	trustedSigner common.Address
}

func NewWhitelistVerifier(cryptoService *encryption.CryptoService, trustedSigner common.Address) *WhitelistVerifier {
	return &WhitelistVerifier{
		cryptoService: cryptoService,
		trustedSigner: trustedSigner,
	}
}

// IsEligible recovers the signer of proof over voter's eligibility message and
// compares it with the trusted signer. A proof issued for another address
// recovers to an unrelated key and fails.
func (wv *WhitelistVerifier) IsEligible(voter common.Address, proof []byte) bool {
	signer, err := wv.cryptoService.RecoverEligibilitySigner(voter, proof)
	if err != nil {
		log.Debug("Eligibility proof rejected", zap.Stringer("voter", voter), zap.Error(err))
		return false
	}
	return signer == wv.trustedSigner
}

func (wv *WhitelistVerifier) TrustedSigner() common.Address {
	return wv.trustedSigner
}
