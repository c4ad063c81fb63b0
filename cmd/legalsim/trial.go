package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"legal_simulation/pkg/core/montecarlo"
	"legal_simulation/pkg/core/trial"
)

func newTrialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial",
		Short: "Run one trial with fixed variables and print the transcript",
		RunE:  runTrial,
	}
	addCaseFlags(cmd)
	addVariableFlags(cmd)
	cmd.Flags().Bool("extended", false, "run the extended courtroom mode")
	cmd.Flags().Int("exchanges", 3, "rebuttal rounds in extended mode")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

func runTrial(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	description, err := caseText(cmd)
	if err != nil {
		return err
	}
	v, err := variables(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	jurisdiction, _ := f.GetString("jurisdiction")
	extended, _ := f.GetBool("extended")
	exchanges, _ := f.GetInt("exchanges")
	asJSON, _ := f.GetBool("json")
	if extended && exchanges < 1 {
		return fmt.Errorf("--exchanges must be at least 1")
	}

	e, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.Close(ctx)
	engine := e.engine(description, jurisdiction)
	out := cmd.OutOrStdout()

	if extended {
		rec, err := engine.RunExtended(ctx, v, trial.ExtendedOptions{Exchanges: exchanges, Procedural: true})
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(out, rec)
		}
		for _, m := range rec.Messages {
			printMessage(out, m.AgentName, m.Content)
		}
		printVerdict(out, rec.Verdict)
		return nil
	}

	res := engine.RunSingle(ctx, 1, v)
	if asJSON {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		doc := montecarlo.TrialDocument(engine.ID(), montecarlo.CaseID(engine.ID()), description, res)
		for _, m := range doc.ChatHistory {
			printMessage(out, m.AgentName, m.Content)
		}
		printVerdict(out, res.Verdict)
	}
	if res.Failed() {
		return fmt.Errorf("trial failed: %s", res.Metadata[montecarlo.MetaError])
	}
	return nil
}

func printMessage(w io.Writer, agent, content string) {
	fmt.Fprintf(w, "[%s]\n%s\n\n", strings.ToUpper(agent), strings.TrimSpace(content))
}

func printVerdict(w io.Writer, v trial.Verdict) {
	fmt.Fprintf(w, "Winner: %s (confidence %.1f%%)\n", v.Winner, v.ConfidenceScore*100)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
