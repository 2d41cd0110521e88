// Package main is the entry point for the GuardianVault operator CLI.
package main

import (
	"os"

	"github.com/gunjansamrit/GuardianVault01/cmd/cvault/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
