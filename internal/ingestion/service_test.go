package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/sapingest/internal/distribution"
	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/grid"
	"github.com/rpattn/sapingest/internal/lock"
	"github.com/rpattn/sapingest/internal/logging"
	"github.com/rpattn/sapingest/internal/metrics"
	"github.com/rpattn/sapingest/internal/repository"
	"github.com/rpattn/sapingest/internal/repository/memrepo"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type fixture struct {
	store   *memrepo.Store
	service *Service
}

func newFixture(t *testing.T, opts ...Option) fixture {
	t.Helper()
	store := memrepo.NewStore()
	logger := logging.Discard()
	distributor := distribution.NewDistributor(store, distribution.WithLogger(logger))
	base := []Option{
		WithLogger(logger),
		WithMetrics(metrics.NewIngestion(prometheus.NewRegistry())),
		WithClock(func() time.Time { return time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC) }),
	}
	service := NewService(store.Batches(), store.Rows(), store.Logs(), distributor, append(base, opts...)...)
	return fixture{store: store, service: service}
}

func csvRequest(lines ...string) Request {
	return Request{FileName: "export.csv", Data: strings.NewReader(strings.Join(lines, "\n"))}
}

func TestIngestKeepsBlankHeaderColumn(t *testing.T) {
	f := newFixture(t)

	summary, err := f.service.Ingest(context.Background(), csvRequest("Group,,Product", "A,X,Widget"))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, summary.Status)
	assert.Equal(t, 1, summary.TotalRows)
	assert.Equal(t, 1, summary.ProcessedRows)
	assert.Zero(t, summary.FailedRows)

	raw, ok := f.store.RawRow(summary.BatchID, 2)
	require.True(t, ok)
	assert.Equal(t, domain.RawRow{"Group": "A", "Column_1": "X", "Product": "Widget"}, raw)

	// No contract number or PO: nothing is written and nothing fails.
	assert.Empty(t, f.store.Contracts())
}

func TestIngestDistributesRows(t *testing.T) {
	f := newFixture(t)

	summary, err := f.service.Ingest(context.Background(), csvRequest(
		"Contract No,PO No,STO,Product,Qty,Vessel,Trip No,Loaded Qty",
		`CT-1,4500001,STO-1,CPO,"1,000",MT Star,T-1,30.5`,
		"CT-1,4500001,STO-1,CPO,,MT Star,T-2,29",
	))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ProcessedRows)
	assert.Equal(t, 2, summary.Changes[string(domain.EntityContract)])
	assert.Equal(t, 2, summary.Changes[string(domain.EntityTruckingOperation)])

	require.Len(t, f.store.Contracts(), 1)
	require.Len(t, f.store.Shipments(), 1)
	require.Len(t, f.store.TruckingOperations(), 2)
	contract := f.store.Contracts()[0]
	assert.Equal(t, "1000", contract.Quantity.Decimal.String())

	batch, err := f.service.GetBatch(context.Background(), summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, batch.Status)
	assert.Equal(t, 2, batch.ProcessedRows)
	require.NotNil(t, batch.CompletedAt)
	assert.Equal(t, "export", batch.SheetName)
}

func TestIngestContinuesAfterFailedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.service.Ingest(ctx, csvRequest(
		"Contract No,STO,Survey Location,Moisture",
		"CT-1,STO-1,Dumai,0.2",
		"CT-2,STO-2,Dumai,150",
		"CT-3,STO-3,Dumai,0.1",
	))
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, summary.Status)
	assert.Equal(t, 3, summary.TotalRows)
	assert.Equal(t, 2, summary.ProcessedRows)
	assert.Equal(t, 1, summary.FailedRows)
	require.Len(t, summary.Errors, 1)
	assert.Equal(t, 3, summary.Errors[0].RowNumber)
	assert.Equal(t, domain.RowStageDistribution, summary.Errors[0].Stage)
	assert.Contains(t, summary.Errors[0].Message, "moisture")

	keys := []string{}
	for _, c := range f.store.Contracts() {
		keys = append(keys, c.ContractKey)
	}
	assert.Equal(t, []string{"CT-1", "CT-3"}, keys, "the failed row must be rolled back and later rows attempted")

	_, status, err := f.store.Rows().GetParsed(ctx, summary.BatchID, 3)
	require.NoError(t, err)
	assert.Equal(t, repository.RowStatusFailed, status)
	assert.Equal(t, []int{2, 3, 4}, f.store.ArchivedRows(summary.BatchID), "failed rows stay archived")

	logs, err := f.service.ListRowErrors(ctx, summary.BatchID, 0, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].RowNumber)
	assert.Equal(t, 3, *logs[0].RowNumber)
}

func TestIngestSkipsBlankRows(t *testing.T) {
	f := newFixture(t)

	summary, err := f.service.Ingest(context.Background(), csvRequest(
		"Contract No,Product",
		"CT-1,CPO",
		",",
		" , ",
		"CT-2,PKO",
	))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalRows)
	assert.Equal(t, 2, summary.ProcessedRows)
	assert.Equal(t, 2, summary.BlankRows)
	assert.Equal(t, []int{2, 5}, f.store.ArchivedRows(summary.BatchID))
}

func TestIngestIsIdempotentAcrossBatches(t *testing.T) {
	f := newFixture(t)
	lines := []string{"Contract No,STO,Vessel", "CT-1,STO-1,MT Star", "CT-2,STO-2,MT Moon"}

	first, err := f.service.Ingest(context.Background(), csvRequest(lines...))
	require.NoError(t, err)
	second, err := f.service.Ingest(context.Background(), csvRequest(lines...))
	require.NoError(t, err)

	assert.NotEqual(t, first.BatchID, second.BatchID)
	assert.Zero(t, second.FailedRows)
	assert.Len(t, f.store.Contracts(), 2)
	assert.Len(t, f.store.Shipments(), 2)
}

func TestIngestConfigurationErrorsFailTheBatch(t *testing.T) {
	workbook := excelize.NewFile()
	require.NoError(t, workbook.SetSheetRow("Sheet1", "A1", &[]any{"Contract No"}))
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	cases := []struct {
		name string
		req  Request
		want error
	}{
		{"missing sheet", Request{FileName: "sap.xlsx", SheetName: "ZMM_EXPORT", Data: strings.NewReader(buf.String())}, grid.ErrSheetNotFound},
		{"unsupported format", Request{FileName: "sap.pdf", Data: strings.NewReader("%PDF")}, grid.ErrUnsupportedFormat},
		{"empty upload", Request{FileName: "sap.csv", Data: strings.NewReader("")}, ErrEmptyUpload},
		{"header row out of range", Request{FileName: "sap.csv", Data: strings.NewReader("a,b"), Layout: &Layout{HeaderRow: 4, FirstDataRow: 5}}, ErrHeaderRowOutOfRange},
		{"invalid layout", Request{FileName: "sap.csv", Data: strings.NewReader("a,b"), Layout: &Layout{HeaderRow: 1, FirstDataRow: 1}}, ErrInvalidLayout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			summary, err := f.service.Ingest(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, domain.BatchStatusFailed, summary.Status)

			batch, getErr := f.service.GetBatch(context.Background(), summary.BatchID)
			require.NoError(t, getErr)
			assert.Equal(t, domain.BatchStatusFailed, batch.Status)
			assert.NotEmpty(t, batch.ErrorMessage)
			assert.Zero(t, batch.Attempted())
		})
	}
}

func TestIngestReadsExcelWithLayout(t *testing.T) {
	workbook := excelize.NewFile()
	_, err := workbook.NewSheet("ZMM")
	require.NoError(t, err)
	rows := [][]any{
		{"Contract", "", "Logistics"},
		{"Contract No", "", "STO"},
		{"CT-9", "note", "STO-9"},
	}
	for i, row := range rows {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, cellErr)
		require.NoError(t, workbook.SetSheetRow("ZMM", cell, &row))
	}
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	f := newFixture(t, WithLayout(Layout{SheetName: "ZMM", HeaderRow: 1, LegendRows: []int{0}, FirstDataRow: 2}))
	summary, err := f.service.Ingest(context.Background(), Request{FileName: "zmm.xlsx", Data: strings.NewReader(buf.String())})
	require.NoError(t, err)
	assert.Equal(t, "ZMM", summary.SheetName)
	assert.Equal(t, 1, summary.ProcessedRows)

	raw, ok := f.store.RawRow(summary.BatchID, 3)
	require.True(t, ok)
	assert.Equal(t, "note", raw["Column_1"])
	require.Len(t, f.store.Shipments(), 1)
	require.NotNil(t, f.store.Shipments()[0].ContractID)
}

func TestIngestKeepsExcelColumnsUnderTrailingBlankHeaders(t *testing.T) {
	workbook := excelize.NewFile()
	rows := [][]any{
		{"Contract No", "Product"},
		{"CT-1", "Widget", "X"},
	}
	for i, row := range rows {
		cell, cellErr := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, cellErr)
		require.NoError(t, workbook.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := workbook.WriteToBuffer()
	require.NoError(t, err)

	f := newFixture(t)
	summary, err := f.service.Ingest(context.Background(), Request{FileName: "export.xlsx", Data: strings.NewReader(buf.String())})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ProcessedRows)

	raw, ok := f.store.RawRow(summary.BatchID, 2)
	require.True(t, ok)
	assert.Equal(t, domain.RawRow{"Contract No": "CT-1", "Product": "Widget", "Column_2": "X"}, raw)
}

type cancellingDistributor struct {
	inner  RowDistributor
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingDistributor) Distribute(ctx context.Context, batchID uuid.UUID, record domain.ParsedRecord) (distribution.Result, error) {
	c.calls++
	result, err := c.inner.Distribute(ctx, batchID, record)
	c.cancel()
	return result, err
}

func TestIngestStopsBetweenRowsWhenCancelled(t *testing.T) {
	store := memrepo.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	distributor := &cancellingDistributor{inner: distribution.NewDistributor(store, distribution.WithLogger(logging.Discard())), cancel: cancel}
	service := NewService(store.Batches(), store.Rows(), store.Logs(), distributor, WithLogger(logging.Discard()))

	summary, err := service.Ingest(ctx, csvRequest("Contract No", "CT-1", "CT-2", "CT-3"))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, distributor.calls)
	assert.Equal(t, domain.BatchStatusFailed, summary.Status)

	batch, err := service.GetBatch(context.Background(), summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusFailed, batch.Status)
	assert.Equal(t, 1, batch.ProcessedRows)
	assert.Equal(t, 3, batch.TotalRows)
	assert.Len(t, store.Contracts(), 1, "committed rows stay committed")
}

type busyLocker struct{}

func (busyLocker) Obtain(context.Context, string) (lock.Lease, error) {
	return nil, lock.ErrNotObtained
}

func TestIngestRefusesConcurrentBatch(t *testing.T) {
	f := newFixture(t, WithLocker(busyLocker{}))

	_, err := f.service.Ingest(context.Background(), csvRequest("Contract No", "CT-1"))
	require.ErrorIs(t, err, lock.ErrNotObtained)

	batches, err := f.service.ListBatches(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestIngestRejectsMissingInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Ingest(context.Background(), Request{Data: strings.NewReader("a")})
	assert.Error(t, err)
	_, err = f.service.Ingest(context.Background(), Request{FileName: "a.csv"})
	assert.Error(t, err)
}

func TestRedistributeFailedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.InjectFault(memrepo.Fault{Kind: domain.EntityContract, Key: "CT-2", Err: errors.New("deadlock detected")})

	summary, err := f.service.Ingest(ctx, csvRequest("Contract No", "CT-1", "CT-2"))
	require.NoError(t, err)
	require.Equal(t, 1, summary.FailedRows)

	_, err = f.service.Redistribute(ctx, summary.BatchID, 2)
	assert.ErrorIs(t, err, ErrRowNotFailed)

	result, err := f.service.Redistribute(ctx, summary.BatchID, 3)
	require.NoError(t, err)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, "CT-2", result.Changes[0].Key)

	batch, err := f.service.GetBatch(ctx, summary.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 2, batch.ProcessedRows)
	assert.Zero(t, batch.FailedRows)

	_, status, err := f.store.Rows().GetParsed(ctx, summary.BatchID, 3)
	require.NoError(t, err)
	assert.Equal(t, repository.RowStatusProcessed, status)
}

func TestInspectDoesNotWrite(t *testing.T) {
	f := newFixture(t)

	result, err := f.service.Inspect(context.Background(), InspectRequest{
		FileName: "export.csv",
		Data:     strings.NewReader("Contract No,,Trip No\nCT-1,x,T-1\n,,\nCT-2,y,T-2\nCT-3,z,T-3"),
		Limit:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"export"}, result.Sheets)
	assert.Len(t, result.Fields, 3)
	assert.Equal(t, []string{"Contract No", "Trip No"}, result.BoundFields)
	assert.Equal(t, 3, result.DataRows)
	assert.Equal(t, 1, result.BlankRows)
	require.Len(t, result.Sample, 2)
	assert.Equal(t, 4, result.Sample[1].RowNumber)

	batches, err := f.service.ListBatches(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Empty(t, batches)
}
