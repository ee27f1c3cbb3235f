package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Global flags.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "helios",
	Short: "Helios - multi-provider LLM gateway",
	Long: `Helios serves one OpenAI/Anthropic/Gemini compatible API surface over
many upstream LLM accounts.

It provides:
  - Wire format translation between client and provider dialects
  - Credential rotation with automatic OAuth refresh
  - Account and provider fallback on upstream failures
  - Usage recording, cost tracking, and request debug snapshots`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
}
