package service

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
)

func commitPayload(req models.CommitRequest) []byte {
	return req.Commitment.Bytes()
}

func revealPayload(req models.RevealRequest) []byte {
	return encryption.ComputeHash(string(req.Candidate), req.Salt).Bytes()
}

// authenticate checks that auth was produced by actor's key for action over
// payload at the actor's current nonce. Callers hold vs.mu.
func (vs *VotingService) authenticate(action models.Action, actor common.Address, payload, auth []byte) error {
	signer, err := vs.cryptoService.RecoverRequestSigner(string(action), actor, vs.nonces[actor], payload, auth)
	if err != nil {
		log.Debug("Request signature rejected", zap.Stringer("actor", actor), zap.Error(err))
		return ErrNotAuthenticated
	}
	if signer != actor {
		log.Debug("Request signed by another key", zap.Stringer("actor", actor), zap.Stringer("signer", signer))
		return ErrNotAuthenticated
	}
	return nil
}

// RequestSigner fills in the Auth field of requests on behalf of the owner of a key.
type RequestSigner struct {
	cryptoService *encryption.CryptoService
	key           *ecdsa.PrivateKey
}

func NewRequestSigner(key *ecdsa.PrivateKey) *RequestSigner {
	return &RequestSigner{
		cryptoService: encryption.NewCryptoService(),
		key:           key,
	}
}

// Address is the identity requests are signed for.
func (rs *RequestSigner) Address() common.Address {
	return rs.cryptoService.AddressOf(rs.key)
}

// SignCommit authorises req at nonce. req.Voter is set to the signer.
func (rs *RequestSigner) SignCommit(req *models.CommitRequest, nonce uint64) error {
	req.Voter = rs.Address()
	auth, err := rs.cryptoService.SignRequest(string(models.ActionCommit), nonce, commitPayload(*req), rs.key)
	if err != nil {
		return err
	}
	req.Auth = auth
	return nil
}

// SignReveal authorises req at nonce. req.Voter is set to the signer.
func (rs *RequestSigner) SignReveal(req *models.RevealRequest, nonce uint64) error {
	req.Voter = rs.Address()
	auth, err := rs.cryptoService.SignRequest(string(models.ActionReveal), nonce, revealPayload(*req), rs.key)
	if err != nil {
		return err
	}
	req.Auth = auth
	return nil
}

// SignAdvance authorises req at nonce. req.Caller is set to the signer.
func (rs *RequestSigner) SignAdvance(req *models.AdvanceRequest, nonce uint64) error {
	req.Caller = rs.Address()
	auth, err := rs.cryptoService.SignRequest(string(models.ActionAdvancePhase), nonce, nil, rs.key)
	if err != nil {
		return err
	}
	req.Auth = auth
	return nil
}
