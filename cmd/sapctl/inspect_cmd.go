package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rpattn/sapingest/internal/ingestion"

	"github.com/spf13/cobra"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		sheet string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show the resolved columns and a parsed sample of a SAP export",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open --file: %w", err)
			}
			defer f.Close()

			// Inspect never touches the repositories.
			service := ingestion.NewService(nil, nil, nil, nil,
				ingestion.WithLayout(cfg.Layout),
				ingestion.WithLogger(logger),
			)
			result, err := service.Inspect(cmd.Context(), ingestion.InspectRequest{
				FileName:  filepath.Base(file),
				SheetName: sheet,
				Data:      f,
				Limit:     limit,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the .xlsx or .csv export (required)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: configured sheet or the first)")
	cmd.Flags().IntVar(&limit, "limit", 5, "Number of sample rows")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
