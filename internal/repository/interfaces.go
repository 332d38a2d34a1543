package repository

import (
	"context"
	"errors"

	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a lookup by identifier or key matches nothing.
var ErrNotFound = errors.New("not found")

// ImportBatchRepository persists batch lifecycle data.
type ImportBatchRepository interface {
	Create(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ImportBatch, error)
	List(ctx context.Context, limit int, offset int) ([]domain.ImportBatch, error)
	// Save writes status, counters and timestamps of an existing batch.
	Save(ctx context.Context, batch domain.ImportBatch) error
}

// RowStatus is the outcome recorded against an archived row.
type RowStatus string

const (
	RowStatusPending   RowStatus = "pending"
	RowStatusProcessed RowStatus = "processed"
	RowStatusFailed    RowStatus = "failed"
)

// ImportRowRepository archives raw and parsed rows of a batch.
type ImportRowRepository interface {
	// Archive stores the verbatim row and its parsed view. Re-archiving the
	// same batch row is a no-op for the raw table.
	Archive(ctx context.Context, batchID uuid.UUID, record domain.ParsedRecord) error
	MarkResult(ctx context.Context, batchID uuid.UUID, rowNumber int, status RowStatus, errorMessage string) error
	GetParsed(ctx context.Context, batchID uuid.UUID, rowNumber int) (domain.ParsedRecord, RowStatus, error)
	// ListByStatus pages through archived rows with the given outcome in row order.
	ListByStatus(ctx context.Context, batchID uuid.UUID, status RowStatus, limit int, offset int) ([]ArchivedRow, error)
}

// ArchivedRow is a parsed row together with its recorded outcome.
type ArchivedRow struct {
	Record       domain.ParsedRecord
	Status       RowStatus
	ErrorMessage string
}

// IngestionLogRepository stores ingestion errors for observability.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, batchID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error)
}

// ContractRepository upserts contracts by natural key.
type ContractRepository interface {
	GetByKey(ctx context.Context, key string) (domain.Contract, error)
	FindByReference(ctx context.Context, ref domain.ContractReference) (domain.Contract, error)
	Upsert(ctx context.Context, contract domain.Contract) (domain.UpsertResult, error)
	// Rekey replaces the natural key of a contract that was keyed by its PO number.
	Rekey(ctx context.Context, id uuid.UUID, newKey string, contractNumber string) error
}

// ShipmentRepository upserts shipments by STO number.
type ShipmentRepository interface {
	GetBySTO(ctx context.Context, stoNumber string) (domain.Shipment, error)
	Upsert(ctx context.Context, shipment domain.Shipment) (domain.UpsertResult, error)
	// LinkContract attaches unlinked shipments referencing the contract.
	LinkContract(ctx context.Context, contract domain.Contract) (int64, error)
}

// TruckingOperationRepository upserts trucking operations by trip id.
type TruckingOperationRepository interface {
	Upsert(ctx context.Context, op domain.TruckingOperation) (domain.UpsertResult, error)
	LinkContract(ctx context.Context, contract domain.Contract) (int64, error)
}

// QualitySurveyRepository upserts quality surveys by survey key.
type QualitySurveyRepository interface {
	Upsert(ctx context.Context, survey domain.QualitySurvey) (domain.UpsertResult, error)
	LinkContract(ctx context.Context, contract domain.Contract) (int64, error)
}

// Repositories groups the normalized-table repositories bound to one transaction.
type Repositories struct {
	Contracts ContractRepository
	Shipments ShipmentRepository
	Trucking  TruckingOperationRepository
	Surveys   QualitySurveyRepository
}

// UnitOfWork runs fn inside one transaction: committed when fn returns nil,
// rolled back otherwise. The connection is released on every path.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
