package main

import (
	"fmt"
	"math/rand/v2"

	"github.com/spf13/cobra"

	"legal_simulation/pkg/core/bootstrap"
	"legal_simulation/pkg/core/export"
	"legal_simulation/pkg/core/montecarlo"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Monte Carlo simulation of a case",
		Long: `Research the case once, run N trials with randomized variables and print
the outcome analysis. --fixed-strategies and --fixed-evidence keep the
corresponding variables at their flag values.`,
		RunE: runMonteCarlo,
	}
	addCaseFlags(cmd)
	addVariableFlags(cmd)
	cmd.Flags().IntP("simulations", "n", 10, "number of trials")
	cmd.Flags().Int("parallel", 0, "trials run at once (default from LEGALSIM_PARALLELISM)")
	cmd.Flags().Uint64("seed", 0, "random seed for reproducible runs (0 picks one)")
	cmd.Flags().Bool("fixed-strategies", false, "keep strategies and temperament fixed")
	cmd.Flags().Bool("fixed-evidence", false, "keep NDA, evidence strength and venue fixed")
	cmd.Flags().Bool("report", false, "archive the full report (LEGALSIM_REPORT_STORAGE, local when unset)")
	return cmd
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description, err := caseText(cmd)
	if err != nil {
		return err
	}
	base, err := variables(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	n, _ := f.GetInt("simulations")
	seed, _ := f.GetUint64("seed")
	jurisdiction, _ := f.GetString("jurisdiction")
	archive, _ := f.GetBool("report")
	opts := montecarlo.RandomizeOptions{}
	opts.FixedStrategies, _ = f.GetBool("fixed-strategies")
	opts.FixedEvidence, _ = f.GetBool("fixed-evidence")

	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close(ctx)

	engineOpts := []montecarlo.Option{montecarlo.WithBaseVariables(base)}
	if seed != 0 {
		engineOpts = append(engineOpts, montecarlo.WithRand(rand.New(rand.NewPCG(seed, seed))))
	}
	engine := e.engine(description, jurisdiction, engineOpts...)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Researching case (%s)...\n", jurisdiction)
	ev := engine.Research(ctx)
	fmt.Fprintf(out, "Found %d statutes and %d precedents\n", len(ev.Statutes), len(ev.Precedents))
	fmt.Fprintf(out, "Running %d simulations...\n\n", n)

	a, err := engine.Run(ctx, n, opts)
	if err != nil {
		return err
	}
	if err := montecarlo.FormatSummary(out, a); err != nil {
		return err
	}

	if archive {
		cfg := e.cfg
		if cfg.ReportStorage == "" || cfg.ReportStorage == string(export.StorageTypeNone) {
			cfg.ReportStorage = string(export.StorageTypeLocal)
		}
		reports, err := bootstrap.OpenReports(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open report storage: %w", err)
		}
		path, err := engine.SaveReport(ctx, reports)
		if err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		fmt.Fprintf(out, "\nReport saved to %s\n", path)
	}
	if id := engine.ID(); id != "" {
		fmt.Fprintf(out, "Monte Carlo ID: %s\n", id)
	}
	return nil
}
