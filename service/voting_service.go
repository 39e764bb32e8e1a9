package service

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
	"commit-reveal-voting/storage"
)

// Config describes the round a VotingService runs.
type Config struct {
	// AdminKeyPath holds the administrator credentials; a key is generated
	// there on first start. Only used when Administrator is unset.
	AdminKeyPath string

	// Administrator may advance phases. Defaults to the admin key address.
	Administrator common.Address

	// TrustedSigner issues eligibility proofs. Defaults to the administrator.
	TrustedSigner common.Address

	Candidates []models.Candidate

	// Signatures optionally publishes the proofs the signer issued.
	Signatures models.SignatureBook
}

// VotingService runs the engine of one round, persisting every accepted
// change to its store and journal.
type VotingService struct {
	mu        sync.Mutex
	engine    *Engine
	store     storage.Store
	metrics   *MetricsCollector
	lastEntry *models.Entry
	nonces    map[common.Address]uint64
	adminKey  *ecdsa.PrivateKey
	book      models.SignatureBook

	cryptoService *encryption.CryptoService
}

type AdminCredentials struct {
	Address    string `json:"address"`
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

// StatusResponse summarises the round.
type StatusResponse struct {
	Phase              models.Phase       `json:"phase"`
	PhaseName          string             `json:"phase_name"`
	Candidates         []models.Candidate `json:"candidates"`
	TrustedSigner      common.Address     `json:"trusted_signer"`
	Administrator      common.Address     `json:"administrator"`
	PendingCommitments int                `json:"pending_commitments"`
	JournalLength      uint64             `json:"journal_length"`
}

func loadOrGenerateAdminKey(adminKeyPath string) (*ecdsa.PrivateKey, error) {
	// Try to load existing admin credentials
	if data, err := os.ReadFile(adminKeyPath); err == nil {
		var creds AdminCredentials
		if err := json.Unmarshal(data, &creds); err != nil {
			return nil, fmt.Errorf("failed to parse admin credentials: %w", err)
		}

		privateKey, err := encryption.ParsePrivateKey(creds.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to restore admin private key: %w", err)
		}

		return privateKey, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read admin credentials: %w", err)
	}

	// Generate new admin key if none exists
	privateKey, err := encryption.NewCryptoService().GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("failed to generate admin key: %w", err)
	}

	creds := AdminCredentials{
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey).Hex(),
		PublicKey:  hexutil.Encode(crypto.FromECDSAPub(&privateKey.PublicKey)),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(privateKey)),
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal admin credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(adminKeyPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := os.WriteFile(adminKeyPath, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to save admin credentials: %w", err)
	}

	log.Info("Generated administrator key", zap.String("address", creds.Address), zap.String("path", adminKeyPath))
	return privateKey, nil
}

// LoadAdminKey returns the administrator key stored at path, generating it on first use.
func LoadAdminKey(path string) (*ecdsa.PrivateKey, error) {
	return loadOrGenerateAdminKey(path)
}

func NewVotingService(ctx context.Context, cfg Config, store storage.Store) (*VotingService, error) {
	vs := &VotingService{
		store:         store,
		metrics:       NewMetricsCollector(),
		nonces:        make(map[common.Address]uint64),
		book:          cfg.Signatures,
		cryptoService: encryption.NewCryptoService(),
	}

	administrator := cfg.Administrator
	if administrator == (common.Address{}) {
		if cfg.AdminKeyPath == "" {
			return nil, errors.New("either an administrator address or an admin key path is required")
		}
		adminKey, err := loadOrGenerateAdminKey(cfg.AdminKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to setup admin key: %w", err)
		}
		vs.adminKey = adminKey
		administrator = crypto.PubkeyToAddress(adminKey.PublicKey)
	}

	trustedSigner := cfg.TrustedSigner
	if trustedSigner == (common.Address{}) {
		trustedSigner = administrator
	}

	candidates := cfg.Candidates
	if len(candidates) == 0 {
		candidates = DefaultCandidates
	}

	engineCfg := EngineConfig{
		TrustedSigner: trustedSigner,
		Administrator: administrator,
		Candidates:    candidates,
	}

	snap, err := store.LoadSnapshot(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		engine, err := NewEngine(engineCfg)
		if err != nil {
			return nil, err
		}
		if err := store.SaveSnapshot(ctx, engine.Snapshot()); err != nil {
			return nil, fmt.Errorf("failed to save initial snapshot: %w", err)
		}
		vs.engine = engine
		log.Info("Started new voting round",
			zap.Stringer("administrator", administrator),
			zap.Stringer("signer", trustedSigner),
			zap.Int("candidates", len(candidates)))
	case err != nil:
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	default:
		engine, err := RestoreEngine(engineCfg, snap)
		if err != nil {
			return nil, err
		}
		vs.engine = engine
		log.Info("Restored voting round", zap.Stringer("phase", snap.Phase), zap.Int("commitments", len(snap.Commitments)))
	}

	journal, err := store.LoadJournal(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal: %w", err)
	}
	if err := models.ValidateChain(journal); err != nil {
		return nil, fmt.Errorf("journal is corrupted: %w", err)
	}
	if len(journal) > 0 {
		vs.lastEntry = journal[len(journal)-1]
	}
	for _, entry := range journal {
		vs.nonces[entry.Actor]++
	}
	vs.metrics.RecordPhase(vs.engine.Phase())

	return vs, nil
}

// Commit records a voter's commitment.
func (vs *VotingService) Commit(ctx context.Context, req models.CommitRequest) error {
	data := struct {
		Commitment common.Hash `json:"commitment"`
	}{req.Commitment}

	err := vs.apply(ctx, OpCommit, models.ActionCommit, req.Voter, data, func() error {
		if err := vs.authenticate(models.ActionCommit, req.Voter, commitPayload(req), req.Auth); err != nil {
			return err
		}
		return vs.engine.Commit(req.Voter, req.Commitment, req.Signature)
	})
	if err != nil {
		log.Info("Commit rejected", zap.Stringer("voter", req.Voter), zap.Error(err))
		return err
	}
	log.Info("Vote committed", zap.Stringer("voter", req.Voter), zap.Stringer("commitment", req.Commitment))
	return nil
}

// Reveal opens a voter's commitment and counts the vote.
func (vs *VotingService) Reveal(ctx context.Context, req models.RevealRequest) error {
	data := struct {
		Candidate models.Candidate `json:"candidate"`
	}{req.Candidate}

	err := vs.apply(ctx, OpReveal, models.ActionReveal, req.Voter, data, func() error {
		if err := vs.authenticate(models.ActionReveal, req.Voter, revealPayload(req), req.Auth); err != nil {
			return err
		}
		return vs.engine.Reveal(req.Voter, req.Candidate, req.Salt)
	})
	if err != nil {
		log.Info("Reveal rejected", zap.Stringer("voter", req.Voter), zap.Error(err))
		return err
	}
	log.Info("Vote revealed", zap.Stringer("voter", req.Voter), zap.String("candidate", string(req.Candidate)))
	return nil
}

// AdvancePhase moves the round to its next phase on behalf of req.Caller.
func (vs *VotingService) AdvancePhase(ctx context.Context, req models.AdvanceRequest) (models.Phase, error) {
	var phase models.Phase
	err := vs.apply(ctx, OpAdvancePhase, models.ActionAdvancePhase, req.Caller, nil, func() error {
		if err := vs.authenticate(models.ActionAdvancePhase, req.Caller, nil, req.Auth); err != nil {
			return err
		}
		var err error
		phase, err = vs.engine.AdvancePhase(req.Caller)
		return err
	})
	if err != nil {
		log.Warn("Phase change rejected", zap.Stringer("caller", req.Caller), zap.Error(err))
		return vs.engine.Phase(), err
	}
	vs.metrics.RecordPhase(phase)
	log.Info("Phase advanced", zap.Stringer("phase", phase))
	return phase, nil
}

// apply runs mutate under the service lock and persists the result. When
// persisting fails the engine is rolled back, leaving the call unapplied.
// Persistence ignores cancellation of ctx: once the engine has changed, the
// store must be brought in line with it or rolled back.
func (vs *VotingService) apply(ctx context.Context, op Operation, action models.Action, actor common.Address, data interface{}, mutate func() error) error {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)

	vs.mu.Lock()
	defer vs.mu.Unlock()

	prev := vs.engine.Snapshot()
	if err := mutate(); err != nil {
		vs.metrics.Record(op, time.Since(start), err)
		return err
	}

	if action == models.ActionAdvancePhase {
		data = struct {
			Phase models.Phase `json:"phase"`
		}{vs.engine.Phase()}
	}

	if err := vs.persist(ctx, prev, action, actor, data); err != nil {
		vs.engine.restore(prev)
		vs.metrics.Record(op, time.Since(start), err)
		log.Error("Failed to persist round state", zap.String("operation", string(op)), zap.Error(err))
		return fmt.Errorf("failed to persist %s: %w", op, err)
	}

	vs.nonces[actor]++
	vs.metrics.Record(op, time.Since(start), nil)
	return nil
}

func (vs *VotingService) persist(ctx context.Context, prev *models.Snapshot, action models.Action, actor common.Address, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal journal data: %w", err)
	}
	entry := models.NewEntry(vs.lastEntry, action, actor, payload)
	snap := vs.engine.Snapshot()

	if cs, ok := vs.store.(storage.ChangeStore); ok {
		if err := cs.SaveChange(ctx, snap, entry); err != nil {
			return err
		}
		vs.lastEntry = entry
		return nil
	}

	if err := vs.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	if err := vs.store.AppendEntry(ctx, entry); err != nil {
		if rerr := vs.store.SaveSnapshot(ctx, prev); rerr != nil {
			log.Error("Failed to roll back snapshot", zap.Error(rerr))
		}
		return err
	}

	vs.lastEntry = entry
	return nil
}

// Nonce is the value actor's next request must be signed with: the number of
// changes the actor already had accepted.
func (vs *VotingService) Nonce(actor common.Address) uint64 {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return vs.nonces[actor]
}

// GetVotes returns the tally for candidate once results are open.
func (vs *VotingService) GetVotes(candidate models.Candidate) (uint64, error) {
	start := time.Now()
	votes, err := vs.engine.GetVotes(candidate)
	vs.metrics.Record(OpGetVotes, time.Since(start), err)
	return votes, err
}

func (vs *VotingService) Results() (map[models.Candidate]uint64, error) {
	return vs.engine.Results()
}

func (vs *VotingService) ComputeHash(candidate models.Candidate, salt string) common.Hash {
	return vs.engine.ComputeHash(candidate, salt)
}

func (vs *VotingService) VoteByUser(voter common.Address) common.Hash {
	return vs.engine.VoteByUser(voter)
}

func (vs *VotingService) Status() StatusResponse {
	vs.mu.Lock()
	var journalLength uint64
	if vs.lastEntry != nil {
		journalLength = vs.lastEntry.Index + 1
	}
	vs.mu.Unlock()

	phase := vs.engine.Phase()
	return StatusResponse{
		Phase:              phase,
		PhaseName:          phase.String(),
		Candidates:         vs.engine.Candidates(),
		TrustedSigner:      vs.engine.TrustedSigner(),
		Administrator:      vs.engine.Administrator(),
		PendingCommitments: len(vs.engine.Committers()),
		JournalLength:      journalLength,
	}
}

// LookupSignature returns the published eligibility proof of voter.
func (vs *VotingService) LookupSignature(voter common.Address) ([]byte, bool) {
	if vs.book == nil {
		return nil, false
	}
	return vs.book.Lookup(voter)
}

func (vs *VotingService) Journal(ctx context.Context) ([]*models.Entry, error) {
	return vs.store.LoadJournal(ctx)
}

// ValidateJournal re-checks every link of the stored journal.
func (vs *VotingService) ValidateJournal(ctx context.Context) error {
	entries, err := vs.store.LoadJournal(ctx)
	if err != nil {
		return err
	}
	return models.ValidateChain(entries)
}

func (vs *VotingService) Metrics() MetricsResponse {
	return vs.metrics.GetMetrics()
}

func (vs *VotingService) Engine() *Engine {
	return vs.engine
}

// AdminAddress is the address of the loaded admin key, if one was loaded.
func (vs *VotingService) AdminAddress() (common.Address, bool) {
	if vs.adminKey == nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(vs.adminKey.PublicKey), true
}

// ParseAddress accepts a 0x-prefixed 20 byte hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
