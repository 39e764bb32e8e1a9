package cmd

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/log"
	"commit-reveal-voting/models"
	"commit-reveal-voting/service"
	"commit-reveal-voting/storage"
)

var (
	signKey       string
	signWhitelist string
	signOutput    string
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign eligibility proofs for a whitelist",
	Long: `sign reads a whitelist of the form [{"address": "0x..."}] and writes a
signature book {"0xAddress": "0xSignature"} holding one eligibility proof per
voter, signed by --key or by the administrator key.`,
	Args: cobra.NoArgs,
	RunE: runSign,
}

func init() {
	signCmd.Flags().StringVar(&signKey, "key", "", "hex private key of the trusted signer (default is the administrator key)")
	signCmd.Flags().StringVar(&signWhitelist, "whitelist", "whitelist.json", "whitelist to sign")
	signCmd.Flags().StringVarP(&signOutput, "output", "o", "signatures.json", "signature book to write")
}

func runSign(cmd *cobra.Command, args []string) error {
	key, err := signerKey()
	if err != nil {
		return err
	}

	entries, err := storage.LoadWhitelist(signWhitelist)
	if err != nil {
		return err
	}

	cs := encryption.NewCryptoService()
	book := make(models.SignatureBook, len(entries))
	for _, entry := range entries {
		sig, err := cs.SignEligibility(entry.Address, key)
		if err != nil {
			return fmt.Errorf("failed to sign for %s: %w", entry.Address.Hex(), err)
		}
		book[entry.Address] = sig
	}

	if err := storage.WriteSignatureBook(signOutput, book); err != nil {
		return err
	}

	log.Info("Wrote signature book",
		zap.String("path", signOutput),
		zap.Stringer("signer", cs.AddressOf(key)),
		zap.Int("voters", len(book)))
	return nil
}

func signerKey() (*ecdsa.PrivateKey, error) {
	if signKey != "" {
		return encryption.ParsePrivateKey(signKey)
	}
	return service.LoadAdminKey(adminKeyPath())
}
