package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type importRowRepository struct {
	q db.DBTX
}

// NewImportRowRepository wires the raw/parsed row archive backed by pgx.
func NewImportRowRepository(q db.DBTX) ImportRowRepository {
	return &importRowRepository{q: q}
}

func (r *importRowRepository) Archive(ctx context.Context, batchID uuid.UUID, record domain.ParsedRecord) error {
	raw, err := json.Marshal(record.Raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw row %d: %w", record.RowNumber, err)
	}
	contract, err := json.Marshal(record.Contract)
	if err != nil {
		return fmt.Errorf("failed to marshal contract of row %d: %w", record.RowNumber, err)
	}
	shipment, err := json.Marshal(record.Shipment)
	if err != nil {
		return fmt.Errorf("failed to marshal shipment of row %d: %w", record.RowNumber, err)
	}
	trucking, err := json.Marshal(record.Trucking)
	if err != nil {
		return fmt.Errorf("failed to marshal trucking of row %d: %w", record.RowNumber, err)
	}
	quality, err := json.Marshal(record.Quality)
	if err != nil {
		return fmt.Errorf("failed to marshal quality of row %d: %w", record.RowNumber, err)
	}

	if _, err := r.q.Exec(ctx,
		`INSERT INTO import_raw_rows (batch_id, row_number, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (batch_id, row_number) DO NOTHING`,
		batchID, record.RowNumber, raw,
	); err != nil {
		return fmt.Errorf("failed to archive raw row %d: %w", record.RowNumber, err)
	}

	if _, err := r.q.Exec(ctx,
		`INSERT INTO import_parsed_rows (batch_id, row_number, contract, shipment, trucking, quality, raw, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (batch_id, row_number) DO UPDATE
		 SET contract = EXCLUDED.contract, shipment = EXCLUDED.shipment, trucking = EXCLUDED.trucking,
		     quality = EXCLUDED.quality, raw = EXCLUDED.raw, status = EXCLUDED.status,
		     error_message = NULL, updated_at = now()`,
		batchID, record.RowNumber, contract, shipment, trucking, quality, raw, string(RowStatusPending),
	); err != nil {
		return fmt.Errorf("failed to archive parsed row %d: %w", record.RowNumber, err)
	}
	return nil
}

func (r *importRowRepository) MarkResult(ctx context.Context, batchID uuid.UUID, rowNumber int, status RowStatus, errorMessage string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE import_parsed_rows SET status = $3, error_message = $4, updated_at = now()
		 WHERE batch_id = $1 AND row_number = $2`,
		batchID, rowNumber, string(status), textArg(errorMessage),
	)
	if err != nil {
		return fmt.Errorf("failed to mark row %d: %w", rowNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("parsed row %d of batch %s: %w", rowNumber, batchID, ErrNotFound)
	}
	return nil
}

func (r *importRowRepository) GetParsed(ctx context.Context, batchID uuid.UUID, rowNumber int) (domain.ParsedRecord, RowStatus, error) {
	row, err := scanArchivedRow(r.q.QueryRow(ctx,
		`SELECT `+parsedRowColumns+`
		 FROM import_parsed_rows WHERE batch_id = $1 AND row_number = $2`,
		batchID, rowNumber,
	))
	if err != nil {
		return domain.ParsedRecord{}, "", wrapNotFound(err, fmt.Sprintf("parsed row %d", rowNumber))
	}
	return row.Record, row.Status, nil
}

func (r *importRowRepository) ListByStatus(ctx context.Context, batchID uuid.UUID, status RowStatus, limit int, offset int) ([]ArchivedRow, error) {
	if limit <= 0 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.q.Query(ctx,
		`SELECT `+parsedRowColumns+`
		 FROM import_parsed_rows WHERE batch_id = $1 AND status = $2
		 ORDER BY row_number
		 LIMIT $3 OFFSET $4`,
		batchID, string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s rows: %w", status, err)
	}
	defer rows.Close()

	result := []ArchivedRow{}
	for rows.Next() {
		row, err := scanArchivedRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", status, err)
	}
	return result, nil
}

const parsedRowColumns = `row_number, contract, shipment, trucking, quality, raw, status, error_message`

func scanArchivedRow(row pgx.Row) (ArchivedRow, error) {
	var contract, shipment, trucking, quality, raw []byte
	var status string
	var errorMessage pgtype.Text
	var record domain.ParsedRecord
	if err := row.Scan(&record.RowNumber, &contract, &shipment, &trucking, &quality, &raw, &status, &errorMessage); err != nil {
		return ArchivedRow{}, err
	}

	for _, part := range []struct {
		data   []byte
		target any
	}{
		{contract, &record.Contract},
		{shipment, &record.Shipment},
		{trucking, &record.Trucking},
		{quality, &record.Quality},
		{raw, &record.Raw},
	} {
		if err := json.Unmarshal(part.data, part.target); err != nil {
			return ArchivedRow{}, fmt.Errorf("failed to decode parsed row %d: %w", record.RowNumber, err)
		}
	}
	return ArchivedRow{Record: record, Status: RowStatus(status), ErrorMessage: errorMessage.String}, nil
}
