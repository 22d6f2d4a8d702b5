package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <doi>",
	Short: "Generate the compliance summary from stored verdicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		doi := args[0]

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		results, err := env.store.GetResults(ctx, doi)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return eris.Errorf("no stored verdicts for %s; run `repro-audit analyze` first", doi)
		}
		items, err := env.store.ListChecklist(ctx)
		if err != nil {
			return err
		}

		sum, err := env.newSummarizer().Summarize(ctx, doi, results, items)
		if err != nil {
			return err
		}
		if err := env.store.SaveSummary(ctx, sum); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}
