package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/models"
)

// DefaultCandidates is the candidate set used when none is configured.
var DefaultCandidates = []models.Candidate{"toto", "tata", "tutu"}

// EngineConfig fixes the identities and candidate set of a round.
type EngineConfig struct {
	TrustedSigner common.Address
	Administrator common.Address
	Candidates    []models.Candidate
}

func (cfg EngineConfig) validate() error {
	if cfg.TrustedSigner == (common.Address{}) {
		return errors.New("trusted signer is required")
	}
	if cfg.Administrator == (common.Address{}) {
		return errors.New("administrator is required")
	}
	if len(cfg.Candidates) == 0 {
		return errors.New("at least one candidate is required")
	}
	seen := make(map[models.Candidate]bool, len(cfg.Candidates))
	for _, c := range cfg.Candidates {
		if c == "" {
			return errors.New("empty candidate name")
		}
		if seen[c] {
			return fmt.Errorf("duplicate candidate %q", c)
		}
		seen[c] = true
	}
	return nil
}

// Engine is the commit-reveal state machine of one voting round. All methods
// are safe for concurrent use; mutations are applied in a single global order.
type Engine struct {
	mu sync.RWMutex

	phase       models.Phase
	commitments map[common.Address]common.Hash
	tally       map[models.Candidate]uint64

	candidates    []models.Candidate
	recognized    map[models.Candidate]bool
	administrator common.Address

	cryptoService *encryption.CryptoService
	verifier      *WhitelistVerifier
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	cryptoService := encryption.NewCryptoService()
	e := &Engine{
		phase:         models.PhaseCommit,
		commitments:   make(map[common.Address]common.Hash),
		tally:         make(map[models.Candidate]uint64),
		candidates:    append([]models.Candidate(nil), cfg.Candidates...),
		recognized:    make(map[models.Candidate]bool, len(cfg.Candidates)),
		administrator: cfg.Administrator,
		cryptoService: cryptoService,
		verifier:      NewWhitelistVerifier(cryptoService, cfg.TrustedSigner),
	}
	for _, c := range cfg.Candidates {
		e.recognized[c] = true
	}
	return e, nil
}

// RestoreEngine rebuilds an engine from a persisted snapshot. The snapshot must
// belong to the same signer and administrator as cfg.
func RestoreEngine(cfg EngineConfig, snap *models.Snapshot) (*Engine, error) {
	e, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	if snap.TrustedSigner != cfg.TrustedSigner {
		return nil, fmt.Errorf("snapshot trusted signer %s does not match configured %s", snap.TrustedSigner.Hex(), cfg.TrustedSigner.Hex())
	}
	if snap.Administrator != cfg.Administrator {
		return nil, fmt.Errorf("snapshot administrator %s does not match configured %s", snap.Administrator.Hex(), cfg.Administrator.Hex())
	}
	for c := range snap.Tally {
		if !e.recognized[c] {
			return nil, fmt.Errorf("snapshot tally holds unknown candidate %q", c)
		}
	}

	e.restore(snap)
	return e, nil
}

// restore replaces the round state with snap. The caller has validated it.
func (e *Engine) restore(snap *models.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.phase = snap.Phase
	e.commitments = make(map[common.Address]common.Hash, len(snap.Commitments))
	for voter, commitment := range snap.Commitments {
		e.commitments[voter] = commitment
	}
	e.tally = make(map[models.Candidate]uint64, len(snap.Tally))
	for c, n := range snap.Tally {
		e.tally[c] = n
	}
}

// AdvancePhase moves the round one step forward: commit, reveal, results.
func (e *Engine) AdvancePhase(caller common.Address) (models.Phase, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller != e.administrator {
		return e.phase, ErrNotAuthorized
	}
	next, ok := e.phase.Next()
	if !ok {
		return e.phase, ErrPhaseAlreadyTerminal
	}
	e.phase = next
	return e.phase, nil
}

// Commit records commitment for voter, replacing any earlier one. proof must be
// the trusted signer's signature over the voter's eligibility message.
func (e *Engine) Commit(voter common.Address, commitment common.Hash, proof []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != models.PhaseCommit {
		return ErrWrongPhase
	}
	if !e.verifier.IsEligible(voter, proof) {
		return ErrNotWhitelisted
	}
	e.commitments[voter] = commitment
	return nil
}

// Reveal opens voter's commitment. On success the vote is counted and the
// commitment is consumed, so it cannot be revealed twice.
func (e *Engine) Reveal(voter common.Address, candidate models.Candidate, salt string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != models.PhaseReveal {
		return ErrWrongPhase
	}
	commitment, ok := e.commitments[voter]
	if !ok || !e.IsCandidate(candidate) {
		return ErrCommitMismatch
	}
	if e.cryptoService.ComputeHash(string(candidate), salt) != commitment {
		return ErrCommitMismatch
	}

	e.tally[candidate]++
	delete(e.commitments, voter)
	return nil
}

// GetVotes returns the number of successful reveals for candidate once the
// round has reached its results phase.
func (e *Engine) GetVotes(candidate models.Candidate) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.phase != models.PhaseResults {
		return 0, ErrResultsNotReady
	}
	return e.tally[candidate], nil
}

// Results returns the count of every configured candidate.
func (e *Engine) Results() (map[models.Candidate]uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.phase != models.PhaseResults {
		return nil, ErrResultsNotReady
	}
	results := make(map[models.Candidate]uint64, len(e.candidates))
	for _, c := range e.candidates {
		results[c] = e.tally[c]
	}
	return results, nil
}

// ComputeHash is the commitment helper voters use before Commit.
func (e *Engine) ComputeHash(candidate models.Candidate, salt string) common.Hash {
	return e.cryptoService.ComputeHash(string(candidate), salt)
}

// VoteByUser returns voter's live commitment, or the zero hash if the voter has
// not committed or has already revealed.
func (e *Engine) VoteByUser(voter common.Address) common.Hash {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.commitments[voter]
}

// HasCommitment reports whether voter holds a live commitment.
func (e *Engine) HasCommitment(voter common.Address) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.commitments[voter]
	return ok
}

func (e *Engine) Phase() models.Phase {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.phase
}

func (e *Engine) Candidates() []models.Candidate {
	return append([]models.Candidate(nil), e.candidates...)
}

func (e *Engine) IsCandidate(candidate models.Candidate) bool {
	return e.recognized[candidate]
}

func (e *Engine) TrustedSigner() common.Address {
	return e.verifier.TrustedSigner()
}

func (e *Engine) Administrator() common.Address {
	return e.administrator
}

// Snapshot copies the round state in its persisted layout.
func (e *Engine) Snapshot() *models.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := &models.Snapshot{
		Phase:         e.phase,
		Commitments:   make(map[common.Address]common.Hash, len(e.commitments)),
		Tally:         make(map[models.Candidate]uint64, len(e.tally)),
		TrustedSigner: e.verifier.TrustedSigner(),
		Administrator: e.administrator,
	}
	for voter, commitment := range e.commitments {
		snap.Commitments[voter] = commitment
	}
	for c, n := range e.tally {
		snap.Tally[c] = n
	}
	return snap
}

// Committers lists the voters holding a live commitment, sorted by address.
func (e *Engine) Committers() []common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()

	voters := make([]common.Address, 0, len(e.commitments))
	for voter := range e.commitments {
		voters = append(voters, voter)
	}
	sort.Slice(voters, func(i, j int) bool {
		return voters[i].Cmp(voters[j]) < 0
	})
	return voters
}
