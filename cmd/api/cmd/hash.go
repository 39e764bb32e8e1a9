package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"commit-reveal-voting/encryption"
)

var hashCmd = &cobra.Command{
	Use:   "hash <candidate> <salt>",
	Short: "Print the commitment for a candidate and salt",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), encryption.ComputeHash(args[0], args[1]).Hex())
		return nil
	},
}
