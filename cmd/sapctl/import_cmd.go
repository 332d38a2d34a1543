package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rpattn/sapingest/internal/app"
	"github.com/rpattn/sapingest/internal/config"
	"github.com/rpattn/sapingest/internal/distribution"
	"github.com/rpattn/sapingest/internal/ingestion"
	"github.com/rpattn/sapingest/internal/repository/memrepo"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type importOutput struct {
	Command    string            `json:"command"`
	Mode       string            `json:"mode"`
	DurationMS int64             `json:"duration_ms"`
	Summary    ingestion.Summary `json:"summary"`
	// Entities counts the records a dry run would hold afterwards.
	Entities map[string]int `json:"entities,omitempty"`
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		file  string
		sheet string
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a SAP export (default dry-run against an in-memory store)",
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

			req := ingestion.Request{FileName: filepath.Base(file), SheetName: sheet, Data: f}
			start := time.Now()
			out := importOutput{Command: "import", Mode: "dry-run"}
			if apply {
				out.Mode = "apply"
				out.Summary, err = importApply(cmd.Context(), cfg, logger, req)
			} else {
				out.Summary, out.Entities, err = importDryRun(cmd.Context(), cfg, logger, req)
			}
			out.DurationMS = time.Since(start).Milliseconds()
			if err != nil {
				if out.Summary.BatchID != uuid.Nil {
					_ = writeJSON(cmd.OutOrStdout(), out)
				}
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if out.Summary.FailedRows > 0 {
				return &exitError{code: 2, err: fmt.Errorf("%d of %d rows failed", out.Summary.FailedRows, out.Summary.TotalRows)}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the .xlsx or .csv export (required)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read (default: configured sheet or the first)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Write to the configured database (default dry-run)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func importApply(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, req ingestion.Request) (ingestion.Summary, error) {
	application, err := app.Open(ctx, cfg, logger, app.Options{})
	if err != nil {
		return ingestion.Summary{}, err
	}
	defer application.Close()
	return application.Service.Ingest(ctx, req)
}

func importDryRun(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, req ingestion.Request) (ingestion.Summary, map[string]int, error) {
	store := memrepo.NewStore()
	distributor := distribution.NewDistributor(store, distribution.WithLogger(logger))
	service := ingestion.NewService(store.Batches(), store.Rows(), store.Logs(), distributor,
		ingestion.WithLayout(cfg.Layout),
		ingestion.WithLogger(logger),
	)

	summary, err := service.Ingest(ctx, req)
	entities := map[string]int{
		"contracts":           len(store.Contracts()),
		"shipments":           len(store.Shipments()),
		"trucking_operations": len(store.TruckingOperations()),
		"quality_surveys":     len(store.QualitySurveys()),
	}
	return summary, entities, err
}
