package memrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
)

// Batches returns the import batch repository of the store.
func (s *Store) Batches() repository.ImportBatchRepository { return &batchRepo{s} }

// Rows returns the row archive repository of the store.
func (s *Store) Rows() repository.ImportRowRepository { return &rowRepo{s} }

// Logs returns the row error log repository of the store.
func (s *Store) Logs() repository.IngestionLogRepository { return &logRepo{s} }

type batchRepo struct{ s *Store }

func (r *batchRepo) Create(_ context.Context, batch domain.ImportBatch) (domain.ImportBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.batches[batch.ID]; exists {
		return domain.ImportBatch{}, fmt.Errorf("import batch %s already exists", batch.ID)
	}
	now := r.s.now()
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = now
	}
	if batch.UpdatedAt.IsZero() {
		batch.UpdatedAt = now
	}
	r.s.batches[batch.ID] = batch
	return batch, nil
}

func (r *batchRepo) GetByID(_ context.Context, id uuid.UUID) (domain.ImportBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	batch, ok := r.s.batches[id]
	if !ok {
		return domain.ImportBatch{}, fmt.Errorf("import batch %s: %w", id, repository.ErrNotFound)
	}
	return batch, nil
}

func (r *batchRepo) List(_ context.Context, limit int, offset int) ([]domain.ImportBatch, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	all := make([]domain.ImportBatch, 0, len(r.s.batches))
	for _, b := range r.s.batches {
		all = append(all, b)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []domain.ImportBatch{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *batchRepo) Save(_ context.Context, batch domain.ImportBatch) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.batches[batch.ID]; !ok {
		return fmt.Errorf("import batch %s: %w", batch.ID, repository.ErrNotFound)
	}
	r.s.batches[batch.ID] = batch
	return nil
}

type rowRepo struct{ s *Store }

func (r *rowRepo) Archive(_ context.Context, batchID uuid.UUID, record domain.ParsedRecord) error {
	copied, err := copyRecord(record)
	if err != nil {
		return fmt.Errorf("failed to archive row %d: %w", record.RowNumber, err)
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := rowKey{batchID, record.RowNumber}
	if _, exists := r.s.raw[key]; !exists {
		r.s.raw[key] = copied.Raw
	}
	r.s.parsed[key] = parsedRow{record: copied, status: repository.RowStatusPending}
	return nil
}

func (r *rowRepo) MarkResult(_ context.Context, batchID uuid.UUID, rowNumber int, status repository.RowStatus, errorMessage string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := rowKey{batchID, rowNumber}
	row, ok := r.s.parsed[key]
	if !ok {
		return fmt.Errorf("parsed row %d of batch %s: %w", rowNumber, batchID, repository.ErrNotFound)
	}
	row.status = status
	row.errorMessage = errorMessage
	r.s.parsed[key] = row
	return nil
}

func (r *rowRepo) GetParsed(_ context.Context, batchID uuid.UUID, rowNumber int) (domain.ParsedRecord, repository.RowStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	row, ok := r.s.parsed[rowKey{batchID, rowNumber}]
	if !ok {
		return domain.ParsedRecord{}, "", fmt.Errorf("parsed row %d: %w", rowNumber, repository.ErrNotFound)
	}
	return row.record, row.status, nil
}

func (r *rowRepo) ListByStatus(_ context.Context, batchID uuid.UUID, status repository.RowStatus, limit int, offset int) ([]repository.ArchivedRow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if limit <= 0 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}

	matching := []repository.ArchivedRow{}
	for key, row := range r.s.parsed {
		if key.batch == batchID && row.status == status {
			matching = append(matching, repository.ArchivedRow{Record: row.record, Status: row.status, ErrorMessage: row.errorMessage})
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].Record.RowNumber < matching[j].Record.RowNumber })

	if offset >= len(matching) {
		return []repository.ArchivedRow{}, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}

// copyRecord detaches the archived record from the caller's maps and slices,
// the same way the jsonb round trip does in postgres.
func copyRecord(record domain.ParsedRecord) (domain.ParsedRecord, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return domain.ParsedRecord{}, err
	}
	var out domain.ParsedRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return domain.ParsedRecord{}, err
	}
	return out, nil
}

type logRepo struct{ s *Store }

func (r *logRepo) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.logSeq++
	entry.ID = r.s.logSeq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.s.now()
	}
	r.s.logs = append(r.s.logs, entry)
	return nil
}

func (r *logRepo) List(_ context.Context, batchID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	matching := []domain.IngestionLogEntry{}
	for _, entry := range r.s.logs {
		if entry.BatchID == batchID {
			matching = append(matching, entry)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		a, b := matching[i].RowNumber, matching[j].RowNumber
		switch {
		case a == nil && b == nil:
			return matching[i].ID < matching[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		case *a != *b:
			return *a < *b
		}
		return matching[i].ID < matching[j].ID
	})

	if offset >= len(matching) {
		return []domain.IngestionLogEntry{}, nil
	}
	end := offset + limit
	if end > len(matching) {
		end = len(matching)
	}
	return matching[offset:end], nil
}
