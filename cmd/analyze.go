package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openrepro/repro-audit/internal/analyzer"
)

var (
	analyzeFile      string
	analyzeChecklist string
	analyzeSummarize bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the full compliance analysis for one manuscript",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := os.ReadFile(analyzeFile)
		if err != nil {
			return eris.Wrap(err, "read manuscript file")
		}
		text := string(raw)

		items, err := loadChecklist(ctx, env.store, analyzeChecklist)
		if err != nil {
			return err
		}

		meta, err := env.newExtractor().Extract(ctx, text)
		if err != nil {
			return eris.Wrap(err, "extract metadata")
		}
		if meta.DOI == "" {
			return eris.New("manuscript has no DOI; cannot key results")
		}
		if err := env.store.SaveManuscript(ctx, meta); err != nil {
			return err
		}

		run, runErr := env.newAnalyzer().AnalyzeManuscript(ctx, meta, text, items)
		if err := env.store.SaveRun(ctx, run); err != nil {
			zap.L().Error("save run failed", zap.Error(err))
		}
		var batchErr *analyzer.BatchError
		if runErr != nil && eris.As(runErr, &batchErr) {
			return runErr
		}

		if analyzeSummarize && len(run.Results) > 0 {
			sum, err := env.newSummarizer().Summarize(ctx, meta.DOI, run.Results, items)
			if err != nil {
				return eris.Wrap(err, "summarize")
			}
			if err := env.store.SaveSummary(ctx, sum); err != nil {
				return err
			}
		}

		zap.L().Info("analysis complete",
			zap.String("doi", meta.DOI),
			zap.Int("results", len(run.Results)),
			zap.Int("errors", len(run.Errors)),
			zap.Duration("duration", run.Duration),
		)

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "manuscript text file (required)")
	analyzeCmd.Flags().StringVar(&analyzeChecklist, "checklist", "", "checklist file (default: stored checklist)")
	analyzeCmd.Flags().BoolVar(&analyzeSummarize, "summarize", false, "also generate and store the compliance summary")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}
