package main

import (
	"github.com/spf13/cobra"
)

func newResearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Research a case and print the gathered evidence as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			description, err := caseText(cmd)
			if err != nil {
				return err
			}
			jurisdiction, _ := cmd.Flags().GetString("jurisdiction")

			e, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.Close(ctx)
			return printJSON(cmd.OutOrStdout(), e.research.GatherEvidence(ctx, description, jurisdiction))
		},
	}
	addCaseFlags(cmd)
	return cmd
}
