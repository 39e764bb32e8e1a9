package cmd

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/spf13/cobra"

	"commit-reveal-voting/encryption"
	"commit-reveal-voting/service"
)

var addressKey string

var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print the address of the administrator key or of --key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			key *ecdsa.PrivateKey
			err error
		)
		if addressKey != "" {
			key, err = encryption.ParsePrivateKey(addressKey)
		} else {
			key, err = service.LoadAdminKey(adminKeyPath())
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), encryption.NewCryptoService().AddressOf(key).Hex())
		return nil
	},
}

func init() {
	addressCmd.Flags().StringVar(&addressKey, "key", "", "hex private key")
}
