package domain

import (
	"time"

	"github.com/google/uuid"
)

// RowStage names the pipeline step in which a row error occurred.
type RowStage string

const (
	// RowStageBatch marks errors that are not tied to a single row.
	RowStageBatch        RowStage = "batch"
	RowStageArchive      RowStage = "archive"
	RowStageDistribution RowStage = "distribution"
)

// IngestionLogEntry captures row level issues that occur during ingestion.
type IngestionLogEntry struct {
	ID           int64     `json:"id"`
	BatchID      uuid.UUID `json:"batchId"`
	RowNumber    *int      `json:"rowNumber,omitempty"`
	Stage        RowStage  `json:"stage"`
	ErrorMessage string    `json:"errorMessage"`
	CreatedAt    time.Time `json:"createdAt"`
}
