package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/openrepro/repro-audit/internal/model"
	"github.com/openrepro/repro-audit/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results <doi>",
	Short: "Print stored verdicts, runs, and summary for a manuscript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doi := args[0]

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		results, err := st.GetResults(ctx, doi)
		if err != nil {
			return err
		}
		runs, err := st.ListRuns(ctx, doi)
		if err != nil {
			return err
		}
		summary, err := st.GetSummary(ctx, doi)
		if err != nil && !eris.Is(err, store.ErrNotFound) {
			return err
		}

		out := struct {
			DOI     string                   `json:"doi"`
			Results []model.ComplianceResult `json:"results"`
			Runs    []store.RunRecord        `json:"runs,omitempty"`
			Summary *model.ComplianceSummary `json:"summary,omitempty"`
		}{doi, results, runs, summary}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}
