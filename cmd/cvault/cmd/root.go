// Package cmd provides the CLI commands for cvault.
package cmd

import (
	"github.com/spf13/cobra"
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "cvault",
	Short: "GuardianVault operator CLI",
	Long: `cvault is the operator tool for a GuardianVault deployment.

Commands:
  cvault genkey     Generate a master encryption key
  cvault migrate    Apply the database schema

Examples:
  cvault genkey
  DATABASE_URL=postgres://... cvault migrate`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
