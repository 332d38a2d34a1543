package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const importBatchColumns = `id, file_name, sheet_name, status, total_rows, processed_rows, failed_rows,
	error_message, started_at, completed_at, created_at, updated_at`

type importBatchRepository struct {
	q db.DBTX
}

// NewImportBatchRepository wires a batch repository backed by pgx.
func NewImportBatchRepository(q db.DBTX) ImportBatchRepository {
	return &importBatchRepository{q: q}
}

func (r *importBatchRepository) Create(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO import_batches (id, file_name, sheet_name, status, total_rows, processed_rows,
		                             failed_rows, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+importBatchColumns,
		batch.ID,
		batch.FileName,
		batch.SheetName,
		string(batch.Status),
		batch.TotalRows,
		batch.ProcessedRows,
		batch.FailedRows,
		textArg(batch.ErrorMessage),
		batch.StartedAt,
		batch.CompletedAt,
	)
	created, err := scanImportBatch(row)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to create import batch: %w", err)
	}
	return created, nil
}

func (r *importBatchRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ImportBatch, error) {
	row := r.q.QueryRow(ctx, `SELECT `+importBatchColumns+` FROM import_batches WHERE id = $1`, id)
	batch, err := scanImportBatch(row)
	if err != nil {
		return domain.ImportBatch{}, wrapNotFound(err, fmt.Sprintf("import batch %s", id))
	}
	return batch, nil
}

func (r *importBatchRepository) List(ctx context.Context, limit int, offset int) ([]domain.ImportBatch, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+importBatchColumns+` FROM import_batches ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches: %w", err)
	}
	defer rows.Close()

	batches := []domain.ImportBatch{}
	for rows.Next() {
		batch, scanErr := scanImportBatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan import batch: %w", scanErr)
		}
		batches = append(batches, batch)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import batches: %w", rowsErr)
	}
	return batches, nil
}

func (r *importBatchRepository) Save(ctx context.Context, batch domain.ImportBatch) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE import_batches
		 SET status = $2, total_rows = $3, processed_rows = $4, failed_rows = $5,
		     error_message = $6, completed_at = $7, updated_at = $8
		 WHERE id = $1`,
		batch.ID,
		string(batch.Status),
		batch.TotalRows,
		batch.ProcessedRows,
		batch.FailedRows,
		textArg(batch.ErrorMessage),
		batch.CompletedAt,
		batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save import batch %s: %w", batch.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("import batch %s: %w", batch.ID, ErrNotFound)
	}
	return nil
}

func scanImportBatch(row pgx.Row) (domain.ImportBatch, error) {
	var batch domain.ImportBatch
	var status string
	var errorMessage pgtype.Text
	var completedAt pgtype.Timestamptz
	err := row.Scan(
		&batch.ID, &batch.FileName, &batch.SheetName, &status, &batch.TotalRows, &batch.ProcessedRows,
		&batch.FailedRows, &errorMessage, &batch.StartedAt, &completedAt, &batch.CreatedAt, &batch.UpdatedAt,
	)
	if err != nil {
		return domain.ImportBatch{}, err
	}
	batch.Status = domain.BatchStatus(status)
	batch.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		completed := completedAt.Time
		batch.CompletedAt = &completed
	}
	return batch, nil
}
