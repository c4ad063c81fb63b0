// Package main implements the legalsim CLI for running trade-secret trial
// simulations from the terminal.
//
// legalsim provides commands for:
//   - Monte Carlo runs over randomized trial variables
//   - A single trial with fixed variables, canonical or extended
//   - Case research, printed as evidence JSON
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Tests execute it with their own args.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "legalsim",
		Short: "Adversarial trade-secret trial simulation",
		Long: `legalsim researches a trade-secret case, lets prosecutor, defense and judge
agents argue it, and estimates outcome probabilities over many randomized trials.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	pf := rootCmd.PersistentFlags()
	pf.StringP("config", "c", "", "config file (yaml, toml or json)")
	pf.Bool("scripted", false, "use the offline scripted provider instead of a model")
	pf.String("store", "", "document store: mongo, postgres, memory or none (default none)")
	pf.String("models-config", "", "model routing file (default config/models.yaml)")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.Duration("trial-timeout", 0, "time limit per trial")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newTrialCmd())
	rootCmd.AddCommand(newResearchCmd())
	return rootCmd
}
