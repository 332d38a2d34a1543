package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/logging"
	"github.com/rpattn/sapingest/internal/repository"
	"github.com/rpattn/sapingest/internal/repository/memrepo"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBatch(t *testing.T, store *memrepo.Store) domain.ImportBatch {
	t.Helper()
	ctx := context.Background()
	batch, err := store.Batches().Create(ctx, domain.NewImportBatch("ZMM Export (March).xlsx", "Sheet1", time.Now()))
	require.NoError(t, err)

	rows := []struct {
		raw    domain.RawRow
		status repository.RowStatus
		msg    string
	}{
		{domain.RawRow{"Contract No": "CT-1", "Moisture": "0.1"}, repository.RowStatusProcessed, ""},
		{domain.RawRow{"Contract No": "CT-2", "Moisture": "150", "Column_10": "b", "Column_2": "a"}, repository.RowStatusFailed, "field 'moisture' must be at most 100, got 150"},
		{domain.RawRow{"Contract No": "CT-3, \"B\""}, repository.RowStatusFailed, "deadlock detected"},
	}
	for i, row := range rows {
		number := i + 2
		require.NoError(t, store.Rows().Archive(ctx, batch.ID, domain.ParsedRecord{RowNumber: number, Raw: row.raw}))
		require.NoError(t, store.Rows().MarkResult(ctx, batch.ID, number, row.status, row.msg))
	}
	return batch
}

func TestWriteFailedRows(t *testing.T) {
	store := memrepo.NewStore()
	batch := seedBatch(t, store)
	service := NewService(store.Batches(), store.Rows(), WithPageSize(1), WithLogger(logging.Discard()))

	var buf bytes.Buffer
	result, err := service.WriteFailedRows(context.Background(), batch.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, result.RowsExported)
	assert.Equal(t, int64(buf.Len()), result.BytesWritten)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Row", "Error", "Contract No", "Moisture", "Column_2", "Column_10"},
		{"3", "field 'moisture' must be at most 100, got 150", "CT-2", "150", "a", "b"},
		{"4", "deadlock detected", "CT-3, \"B\"", "", "", ""},
	}, records)
}

func TestWriteFailedRowsWithoutFailures(t *testing.T) {
	store := memrepo.NewStore()
	batch, err := store.Batches().Create(context.Background(), domain.NewImportBatch("a.csv", "a", time.Now()))
	require.NoError(t, err)

	var buf bytes.Buffer
	result, err := NewService(store.Batches(), store.Rows()).WriteFailedRows(context.Background(), batch.ID, &buf)
	require.NoError(t, err)
	assert.Zero(t, result.RowsExported)
	assert.Equal(t, "Row,Error\n", buf.String())
}

func TestWriteFailedRowsUnknownBatch(t *testing.T) {
	store := memrepo.NewStore()
	_, err := NewService(store.Batches(), store.Rows()).WriteFailedRows(context.Background(), uuid.New(), &bytes.Buffer{})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestFileName(t *testing.T) {
	batch := domain.ImportBatch{ID: uuid.MustParse("0f1e2d3c-0000-4000-8000-000000000000"), FileName: "ZMM Export (March).xlsx"}
	assert.Equal(t, "zmm-export--march-failed-rows-0f1e2d3c.csv", FileName(batch))

	batch.FileName = "???"
	assert.Equal(t, "import-failed-rows-0f1e2d3c.csv", FileName(batch))
}

func TestHandlerDownload(t *testing.T) {
	store := memrepo.NewStore()
	batch := seedBatch(t, store)
	handler := NewHTTPHandler(NewService(store.Batches(), store.Rows(), WithLogger(logging.Discard())), logging.Discard())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+batch.ID.String()+"/failed-rows", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "failed-rows")
	assert.Contains(t, rec.Body.String(), "deadlock detected")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+uuid.NewString()+"/failed-rows", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
