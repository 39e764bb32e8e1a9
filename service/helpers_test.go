package service

import (
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/models"
)

// Well known development keys.
const (
	adminKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	voterKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

type testAccount struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func accountFromHex(t *testing.T, hex string) testAccount {
	t.Helper()
	key, err := crypto.HexToECDSA(hex)
	require.NoError(t, err)
	return testAccount{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func newAccount(t *testing.T) testAccount {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return testAccount{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// proofFor returns the eligibility proof signer issues for voter.
func proofFor(t *testing.T, signer testAccount, voter common.Address) []byte {
	t.Helper()
	sig, err := encryption.NewCryptoService().SignEligibility(voter, signer.key)
	require.NoError(t, err)
	return sig
}

func newTestEngine(t *testing.T, admin testAccount) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{
		TrustedSigner: admin.address,
		Administrator: admin.address,
		Candidates:    DefaultCandidates,
	})
	require.NoError(t, err)
	return e
}

func advanceTo(t *testing.T, e *Engine, admin testAccount, phase models.Phase) {
	t.Helper()
	for e.Phase() < phase {
		_, err := e.AdvancePhase(admin.address)
		require.NoError(t, err)
	}
}

func signedCommit(t *testing.T, vs *VotingService, voter, signer testAccount, candidate models.Candidate, salt string) models.CommitRequest {
	t.Helper()
	req := models.CommitRequest{
		Commitment: vs.ComputeHash(candidate, salt),
		Signature:  proofFor(t, signer, voter.address),
	}
	require.NoError(t, NewRequestSigner(voter.key).SignCommit(&req, vs.Nonce(voter.address)))
	return req
}

func signedReveal(t *testing.T, vs *VotingService, voter testAccount, candidate models.Candidate, salt string) models.RevealRequest {
	t.Helper()
	req := models.RevealRequest{Candidate: candidate, Salt: salt}
	require.NoError(t, NewRequestSigner(voter.key).SignReveal(&req, vs.Nonce(voter.address)))
	return req
}

func signedAdvance(t *testing.T, vs *VotingService, caller testAccount) models.AdvanceRequest {
	t.Helper()
	var req models.AdvanceRequest
	require.NoError(t, NewRequestSigner(caller.key).SignAdvance(&req, vs.Nonce(caller.address)))
	return req
}
