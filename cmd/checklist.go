package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openrepro/repro-audit/internal/checklist"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Manage the stored reporting checklist",
}

var checklistImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a checklist from a JSON, YAML, or XLSX file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := checklist.LoadFile(args[0])
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.SaveChecklist(ctx, items); err != nil {
			return err
		}
		zap.L().Info("checklist imported", zap.String("file", args[0]), zap.Int("items", len(items)))
		return nil
	},
}

var checklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored checklist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		items, err := st.ListChecklist(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	},
}

func init() {
	checklistCmd.AddCommand(checklistImportCmd)
	checklistCmd.AddCommand(checklistListCmd)
	rootCmd.AddCommand(checklistCmd)
}
