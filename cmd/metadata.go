package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	metadataFile string
	metadataSave bool
)

var metadataCmd = &cobra.Command{
	Use:   "metadata",
	Short: "Extract manuscript metadata without running the checklist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := os.ReadFile(metadataFile)
		if err != nil {
			return eris.Wrap(err, "read manuscript file")
		}

		meta, err := env.newExtractor().Extract(ctx, string(raw))
		if err != nil {
			return err
		}

		if metadataSave {
			if meta.DOI == "" {
				return eris.New("manuscript has no DOI; cannot store metadata")
			}
			if err := env.store.SaveManuscript(ctx, meta); err != nil {
				return err
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	},
}

func init() {
	metadataCmd.Flags().StringVar(&metadataFile, "file", "", "manuscript text file (required)")
	metadataCmd.Flags().BoolVar(&metadataSave, "save", false, "persist the extracted metadata")
	_ = metadataCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(metadataCmd)
}
