package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "nanny",
	Short: "A caregiver assistant that answers from your own reference material",
	Long: `nanny answers questions about babies and young children using the
documents you upload. With a language-model API key it writes grounded
answers; without one it replies from the most relevant passages.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	if os.Getenv("NO_COLOR") != "" {
		noColor = true
	}

	rootCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(askCmd, chatCmd)
	rootCmd.AddCommand(docsCmd, historyCmd)
	rootCmd.AddCommand(configCmd, keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
