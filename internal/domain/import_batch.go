package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when a batch is moved to a state it cannot reach.
var ErrInvalidTransition = errors.New("invalid batch status transition")

// BatchStatus enumerates the lifecycle of an import batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusPending:    {BatchStatusProcessing, BatchStatusFailed},
	BatchStatusProcessing: {BatchStatusCompleted, BatchStatusFailed},
}

// IsTerminal reports whether no further transitions are possible.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// ImportBatch is one spreadsheet ingestion run.
type ImportBatch struct {
	ID            uuid.UUID   `json:"id"`
	FileName      string      `json:"fileName"`
	SheetName     string      `json:"sheetName"`
	Status        BatchStatus `json:"status"`
	TotalRows     int         `json:"totalRows"`
	ProcessedRows int         `json:"processedRows"`
	FailedRows    int         `json:"failedRows"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	StartedAt     time.Time   `json:"startedAt"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// NewImportBatch creates a pending batch for the given source.
func NewImportBatch(fileName, sheetName string, now time.Time) ImportBatch {
	return ImportBatch{
		ID:        uuid.New(),
		FileName:  fileName,
		SheetName: sheetName,
		Status:    BatchStatusPending,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Transition moves the batch to the next status. Transitions are monotonic.
func (b *ImportBatch) Transition(to BatchStatus, now time.Time) error {
	for _, allowed := range batchTransitions[b.Status] {
		if allowed == to {
			b.Status = to
			b.UpdatedAt = now
			if to.IsTerminal() {
				completed := now
				b.CompletedAt = &completed
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
}

// Fail moves the batch to failed and records the reason.
func (b *ImportBatch) Fail(reason error, now time.Time) error {
	if err := b.Transition(BatchStatusFailed, now); err != nil {
		return err
	}
	if reason != nil {
		b.ErrorMessage = reason.Error()
	}
	return nil
}

// RecordRow updates the counters after a row has been attempted.
func (b *ImportBatch) RecordRow(failed bool, now time.Time) {
	if failed {
		b.FailedRows++
	} else {
		b.ProcessedRows++
	}
	b.UpdatedAt = now
}

// Attempted returns the number of rows that have been processed or failed.
func (b ImportBatch) Attempted() int {
	return b.ProcessedRows + b.FailedRows
}
