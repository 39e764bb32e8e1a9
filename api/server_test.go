package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/models"
	"commit-reveal-voting/service"
	"commit-reveal-voting/storage/mem"
)

const (
	adminKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	voterKeyHex = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"
)

type testEnv struct {
	handler http.Handler
	admin   *service.RequestSigner
	voter   *service.RequestSigner
	proof   []byte
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	adminKey, err := crypto.HexToECDSA(adminKeyHex)
	require.NoError(t, err)
	voterKey, err := crypto.HexToECDSA(voterKeyHex)
	require.NoError(t, err)

	env := &testEnv{
		admin: service.NewRequestSigner(adminKey),
		voter: service.NewRequestSigner(voterKey),
	}
	env.proof, err = encryption.NewCryptoService().SignEligibility(env.voter.Address(), adminKey)
	require.NoError(t, err)

	vs, err := service.NewVotingService(context.Background(), service.Config{
		Administrator: env.admin.Address(),
		Signatures:    models.SignatureBook{env.voter.Address(): env.proof},
	}, mem.NewMemStore())
	require.NoError(t, err)

	queue := service.NewQueueProcessor(vs, 8)
	queue.Start()
	t.Cleanup(queue.Stop)

	env.handler = NewServer(vs, queue).Handler()
	return env
}

func (env *testEnv) nonce(t *testing.T, address common.Address) uint64 {
	t.Helper()
	code, resp := env.do(t, http.MethodGet, "/api/nonce/"+address.Hex(), nil)
	require.Equal(t, http.StatusOK, code)
	return uint64(resp["nonce"].(float64))
}

func (env *testEnv) commitRequest(t *testing.T, signer *service.RequestSigner, proof []byte, candidate, salt string) models.CommitRequest {
	t.Helper()
	req := models.CommitRequest{
		Commitment: encryption.ComputeHash(candidate, salt),
		Signature:  proof,
	}
	require.NoError(t, signer.SignCommit(&req, env.nonce(t, signer.Address())))
	return req
}

func (env *testEnv) revealRequest(t *testing.T, signer *service.RequestSigner, candidate, salt string) models.RevealRequest {
	t.Helper()
	req := models.RevealRequest{Candidate: models.Candidate(candidate), Salt: salt}
	require.NoError(t, signer.SignReveal(&req, env.nonce(t, signer.Address())))
	return req
}

func (env *testEnv) advanceRequest(t *testing.T, signer *service.RequestSigner) models.AdvanceRequest {
	t.Helper()
	var req models.AdvanceRequest
	require.NoError(t, signer.SignAdvance(&req, env.nonce(t, signer.Address())))
	return req
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func TestVotingFlow(t *testing.T) {
	env := setup(t)
	voter := env.voter.Address()

	code, resp := env.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "commit", resp["phase_name"])

	code, resp = env.do(t, http.MethodGet, "/api/hash?candidate=toto&salt=s3cret", nil)
	require.Equal(t, http.StatusOK, code)
	commitment := resp["hash"].(string)
	assert.Equal(t, encryption.ComputeHash("toto", "s3cret").Hex(), commitment)

	code, resp = env.do(t, http.MethodGet, "/api/commitments/"+voter.Hex(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, resp["committed"])

	code, resp = env.do(t, http.MethodPost, "/api/commit", env.commitRequest(t, env.voter, env.proof, "toto", "s3cret"))
	require.Equal(t, http.StatusOK, code, resp)
	assert.Equal(t, uint64(1), env.nonce(t, voter))

	code, resp = env.do(t, http.MethodGet, "/api/commitments/"+voter.Hex(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, commitment, resp["commitment"])
	assert.Equal(t, true, resp["committed"])

	code, resp = env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.admin))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "reveal", resp["phase_name"])

	code, resp = env.do(t, http.MethodPost, "/api/reveal", env.revealRequest(t, env.voter, "toto", "s3cret"))
	require.Equal(t, http.StatusOK, code, resp)

	code, resp = env.do(t, http.MethodGet, "/api/votes/toto", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ResultsNotReady", resp["code"])
	assert.Equal(t, "Wait results period", resp["error"])

	code, _ = env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.admin))
	require.Equal(t, http.StatusOK, code)

	code, resp = env.do(t, http.MethodGet, "/api/votes/toto", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), resp["votes"])

	code, resp = env.do(t, http.MethodGet, "/api/results", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), resp["total_votes"])
	assert.Equal(t, map[string]interface{}{"toto": float64(1), "tata": float64(0), "tutu": float64(0)}, resp["results"])

	code, resp = env.do(t, http.MethodGet, "/api/ledger", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), resp["length"])

	code, resp = env.do(t, http.MethodGet, "/api/ledger/validate", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["is_valid"])

	code, resp = env.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, resp, "operations")
}

func TestErrorMapping(t *testing.T) {
	env := setup(t)

	code, resp := env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.voter))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "NotAuthorized", resp["code"])
	assert.Equal(t, "Ownable: caller is not the owner", resp["error"])

	code, resp = env.do(t, http.MethodPost, "/api/commit", env.commitRequest(t, env.voter, make([]byte, 65), "toto", "s"))
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "NotWhitelisted", resp["code"])

	code, resp = env.do(t, http.MethodPost, "/api/reveal", env.revealRequest(t, env.voter, "toto", "x"))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "WrongPhase", resp["code"])

	code, _ = env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.admin))
	require.Equal(t, http.StatusOK, code)

	code, resp = env.do(t, http.MethodPost, "/api/reveal", env.revealRequest(t, env.voter, "toto", "x"))
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "CommitMismatch", resp["code"])

	code, _ = env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.admin))
	require.Equal(t, http.StatusOK, code)
	code, resp = env.do(t, http.MethodPost, "/api/phase/advance", env.advanceRequest(t, env.admin))
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "PhaseAlreadyTerminal", resp["code"])
}

func TestSpoofedCallersAreRejected(t *testing.T) {
	env := setup(t)
	voter := env.voter.Address()
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	mallory := service.NewRequestSigner(otherKey)

	assertUnauthenticated := func(t *testing.T, path string, body interface{}) {
		t.Helper()
		code, resp := env.do(t, http.MethodPost, path, body)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "NotAuthenticated", resp["code"])
	}

	t.Run("advance naming the administrator", func(t *testing.T) {
		assertUnauthenticated(t, "/api/phase/advance", gin.H{"caller": env.admin.Address()})

		req := env.advanceRequest(t, mallory)
		req.Caller = env.admin.Address()
		assertUnauthenticated(t, "/api/phase/advance", req)

		code, resp := env.do(t, http.MethodGet, "/api/status", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "commit", resp["phase_name"])
	})

	code, _ := env.do(t, http.MethodPost, "/api/commit", env.commitRequest(t, env.voter, env.proof, "toto", "s"))
	require.Equal(t, http.StatusOK, code)
	want := encryption.ComputeHash("toto", "s").Hex()

	t.Run("commit over a voter with the published proof", func(t *testing.T) {
		code, resp := env.do(t, http.MethodGet, "/api/whitelist/"+voter.Hex(), nil)
		require.Equal(t, http.StatusOK, code)
		proof, err := hexutil.Decode(resp["signature"].(string))
		require.NoError(t, err)

		req := env.commitRequest(t, mallory, proof, "tata", "x")
		req.Voter = voter
		assertUnauthenticated(t, "/api/commit", req)

		assertUnauthenticated(t, "/api/commit", gin.H{
			"voter":      voter,
			"commitment": encryption.ComputeHash("tata", "x"),
			"signature":  hexutil.Encode(proof),
		})
	})

	t.Run("replayed commit", func(t *testing.T) {
		req := env.commitRequest(t, env.voter, env.proof, "tutu", "y")
		code, _ := env.do(t, http.MethodPost, "/api/commit", req)
		require.Equal(t, http.StatusOK, code)
		want = encryption.ComputeHash("tutu", "y").Hex()

		assertUnauthenticated(t, "/api/commit", req)
	})

	code, resp := env.do(t, http.MethodGet, "/api/commitments/"+voter.Hex(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, want, resp["commitment"])

	code, resp = env.do(t, http.MethodGet, "/api/ledger", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), resp["length"])
}

func TestBadRequests(t *testing.T) {
	env := setup(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"malformed commit", http.MethodPost, "/api/commit", "{", http.StatusBadRequest},
		{"bad voter", http.MethodPost, "/api/commit", `{"voter":"0x12"}`, http.StatusBadRequest},
		{"missing voter", http.MethodPost, "/api/reveal", `{"candidate":"toto","salt":"x"}`, http.StatusBadRequest},
		{"malformed advance", http.MethodPost, "/api/phase/advance", "[]", http.StatusBadRequest},
		{"missing caller", http.MethodPost, "/api/phase/advance", `{"auth":"0x"}`, http.StatusBadRequest},
		{"bad nonce lookup", http.MethodGet, "/api/nonce/nope", nil, http.StatusBadRequest},
		{"hash without salt", http.MethodGet, "/api/hash?candidate=toto", nil, http.StatusBadRequest},
		{"bad commitment lookup", http.MethodGet, "/api/commitments/nope", nil, http.StatusBadRequest},
		{"bad whitelist lookup", http.MethodGet, "/api/whitelist/nope", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestWhitelistLookup(t *testing.T) {
	env := setup(t)

	code, resp := env.do(t, http.MethodGet, "/api/whitelist/"+env.voter.Address().Hex(), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, hexutil.Encode(env.proof), resp["signature"])

	code, _ = env.do(t, http.MethodGet, "/api/whitelist/"+env.admin.Address().Hex(), nil)
	assert.Equal(t, http.StatusNotFound, code)
}
