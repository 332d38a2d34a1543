package main

import (
	"fmt"
	"os"

	"github.com/rpattn/sapingest/internal/app"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type batchDetail struct {
	Batch  domain.ImportBatch         `json:"batch"`
	Errors []domain.IngestionLogEntry `json:"errors"`
}

func newBatchesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect recorded import batches",
	}
	cmd.AddCommand(newBatchesListCmd(opts))
	cmd.AddCommand(newBatchesShowCmd(opts))
	cmd.AddCommand(newBatchesRetryCmd(opts))
	cmd.AddCommand(newBatchesExportCmd(opts))
	return cmd
}

func newBatchesListCmd(opts *rootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			application, err := app.Open(cmd.Context(), cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			batches, err := application.Service.ListBatches(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), batches)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of batches")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of batches to skip")
	return cmd
}

func newBatchesShowCmd(opts *rootOptions) *cobra.Command {
	var errorLimit int
	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch with its row errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch id: %w", err)
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			application, err := app.Open(cmd.Context(), cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			batch, err := application.Service.GetBatch(cmd.Context(), id)
			if err != nil {
				return err
			}
			entries, err := application.Service.ListRowErrors(cmd.Context(), id, errorLimit, 0)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), batchDetail{Batch: batch, Errors: entries})
		},
	}
	cmd.Flags().IntVar(&errorLimit, "errors", 50, "Maximum number of row errors")
	return cmd
}

func newBatchesRetryCmd(opts *rootOptions) *cobra.Command {
	var row int
	cmd := &cobra.Command{
		Use:   "retry <batch-id>",
		Short: "Redistribute a failed row from its archived parse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch id: %w", err)
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			application, err := app.Open(cmd.Context(), cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			result, err := application.Service.Redistribute(cmd.Context(), id, row)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&row, "row", 0, "Spreadsheet row number to retry (required)")
	_ = cmd.MarkFlagRequired("row")
	return cmd
}

func newBatchesExportCmd(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <batch-id>",
		Short: "Write the failed rows of a batch as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch id: %w", err)
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			application, err := app.Open(cmd.Context(), cfg, logger, app.Options{})
			if err != nil {
				return err
			}
			defer application.Close()

			w := cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("failed to create --out: %w", err)
				}
				defer f.Close()
				w = f
			}
			_, err = application.Export.WriteFailedRows(cmd.Context(), id, w)
			return err
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Output file (default stdout)")
	return cmd
}
