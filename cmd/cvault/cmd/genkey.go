package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gunjansamrit/GuardianVault01/internal/crypto"
)

var genkeyCmd = &cobra.Command{
	Use:   "genkey",
	Short: "Generate a master encryption key",
	Long: `Generate a random 256-bit master key, base64 encoded.

The key wraps every owner's vault key, so losing it makes all stored
items unreadable. Store it in a secrets manager and pass it to the
server as ENCRYPTION_KEY.

Examples:
  cvault genkey
  export ENCRYPTION_KEY=$(cvault genkey --quiet)`,
	RunE: runGenkey,
}

var genkeyQuiet bool

func init() {
	genkeyCmd.Flags().BoolVarP(&genkeyQuiet, "quiet", "q", false, "print only the key")
	rootCmd.AddCommand(genkeyCmd)
}

func runGenkey(_ *cobra.Command, _ []string) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer crypto.ZeroBytes(key)

	encoded := crypto.EncodeKey(key)

	if genkeyQuiet {
		fmt.Println(encoded)
		return nil
	}

	Success("Generated master encryption key")
	fmt.Println(encoded)
	Warning("Store this key securely. Items encrypted under it cannot be recovered without it.")
	return nil
}
