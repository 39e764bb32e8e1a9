package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/models"
	"commit-reveal-voting/service"
)

var (
	requestKey        string
	requestNonce      uint64
	requestCommitment string
	requestProof      string
	requestCandidate  string
	requestSalt       string
)

var requestCmd = &cobra.Command{
	Use:   "request <commit|reveal|advance>",
	Short: "Print a signed request body for the voting API",
	Long: `request signs a commit, reveal or phase advance with --key and prints the
JSON body to POST. --nonce must be the value GET /api/nonce/<address> returns
for the signing address.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"commit", "reveal", "advance"},
	RunE:      runRequest,
}

func init() {
	requestCmd.Flags().StringVar(&requestKey, "key", "", "hex private key of the voter or administrator")
	requestCmd.Flags().Uint64Var(&requestNonce, "nonce", 0, "current nonce of the signing address")
	requestCmd.Flags().StringVar(&requestCommitment, "commitment", "", "commitment hash (commit)")
	requestCmd.Flags().StringVar(&requestProof, "proof", "", "eligibility proof from the signature book (commit)")
	requestCmd.Flags().StringVar(&requestCandidate, "candidate", "", "candidate (reveal)")
	requestCmd.Flags().StringVar(&requestSalt, "salt", "", "salt (reveal)")

	if err := requestCmd.MarkFlagRequired("key"); err != nil {
		panic(err)
	}
}

func runRequest(cmd *cobra.Command, args []string) error {
	key, err := encryption.ParsePrivateKey(requestKey)
	if err != nil {
		return err
	}
	signer := service.NewRequestSigner(key)

	var body interface{}
	switch args[0] {
	case "commit":
		proof, err := hexutil.Decode(requestProof)
		if err != nil {
			return fmt.Errorf("invalid proof: %w", err)
		}
		req := models.CommitRequest{Commitment: common.HexToHash(requestCommitment), Signature: proof}
		if err := signer.SignCommit(&req, requestNonce); err != nil {
			return err
		}
		body = req
	case "reveal":
		req := models.RevealRequest{Candidate: models.Candidate(requestCandidate), Salt: requestSalt}
		if err := signer.SignReveal(&req, requestNonce); err != nil {
			return err
		}
		body = req
	case "advance":
		var req models.AdvanceRequest
		if err := signer.SignAdvance(&req, requestNonce); err != nil {
			return err
		}
		body = req
	default:
		return fmt.Errorf("unknown request %q", args[0])
	}

	data, err := json.MarshalIndent(body, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
