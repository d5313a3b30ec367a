package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	apperrors "pricebench/internal/errors"
	"pricebench/internal/fetcher"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "pricebench",
	Short: "Compare sequential, parallel and deferred price lookups",
	Long: `pricebench asks a set of simulated price providers for a product price using
several concurrency strategies and reports how long each strategy took.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available retrieval strategies",
	Run: func(cmd *cobra.Command, args []string) {
		for _, s := range fetcher.Strategies() {
			fmt.Fprintln(cmd.OutOrStdout(), s)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pricebench version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pricebench version %s\n", version)
	},
}

func init() {
	rootCmd.SetVersionTemplate("pricebench version {{.Version}}\n")
	rootCmd.AddCommand(strategiesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee exitError
		if !errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "pricebench: %v\n", err)
		}
		os.Exit(exitCodeFor(err))
	}
}

// exitError carries a non-zero exit status out of a command.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func exitCodeFor(err error) int {
	var ee exitError
	var ce apperrors.ConfigError
	switch {
	case errors.As(err, &ee):
		return ee.code
	case errors.As(err, &ce):
		return apperrors.ExitErrorConfig
	default:
		return apperrors.ExitErrorGeneric
	}
}
