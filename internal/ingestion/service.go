package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/sapingest/internal/distribution"
	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/grid"
	"github.com/rpattn/sapingest/internal/lock"
	"github.com/rpattn/sapingest/internal/metrics"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// batchLockKey is shared by every import so that batches never overlap.
const batchLockKey = "imports"

var (
	// ErrEmptyUpload is returned when the request carries no bytes.
	ErrEmptyUpload = errors.New("file is empty")
	// ErrRowNotFailed is returned when redistributing a row that already succeeded.
	ErrRowNotFailed = errors.New("row has not failed")
)

// RowDistributor writes one parsed row into the normalized tables.
type RowDistributor interface {
	Distribute(ctx context.Context, batchID uuid.UUID, record domain.ParsedRecord) (distribution.Result, error)
}

// Service drives import batches: it reads the grid, parses every data row,
// archives it and hands it to the distributor.
type Service struct {
	batches     repository.ImportBatchRepository
	rows        repository.ImportRowRepository
	logs        repository.IngestionLogRepository
	distributor RowDistributor

	layout  Layout
	logger  logrus.FieldLogger
	locker  lock.Locker
	metrics *metrics.Ingestion
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLayout sets the default grid layout used when a request carries none.
func WithLayout(layout Layout) Option {
	return func(s *Service) { s.layout = layout }
}

// WithLogger sets the service logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLocker serialises batches through locker.
func WithLocker(locker lock.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Ingestion) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new ingestion service.
func NewService(
	batches repository.ImportBatchRepository,
	rows repository.ImportRowRepository,
	logs repository.IngestionLogRepository,
	distributor RowDistributor,
	opts ...Option,
) *Service {
	s := &Service{
		batches:     batches,
		rows:        rows,
		logs:        logs,
		distributor: distributor,
		layout:      DefaultLayout(),
		logger:      logrus.StandardLogger(),
		locker:      lock.Noop{},
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes the ingestion input.
type Request struct {
	FileName  string
	SheetName string
	Data      io.Reader
	// Layout overrides the service layout for this request.
	Layout *Layout
}

// RowError captures one failed row.
type RowError struct {
	RowNumber int             `json:"rowNumber"`
	Stage     domain.RowStage `json:"stage"`
	Message   string          `json:"message"`
}

// Summary returns ingestion level metrics.
type Summary struct {
	BatchID       uuid.UUID          `json:"batchId"`
	Status        domain.BatchStatus `json:"status"`
	SheetName     string             `json:"sheetName"`
	TotalRows     int                `json:"totalRows"`
	ProcessedRows int                `json:"processedRows"`
	FailedRows    int                `json:"failedRows"`
	BlankRows     int                `json:"blankRows"`
	Changes       map[string]int     `json:"changes"`
	Errors        []RowError         `json:"errors"`
}

func newSummary() Summary {
	return Summary{
		Changes: map[string]int{},
		Errors:  []RowError{},
	}
}

// Ingest runs one import batch. Configuration errors fail the batch and are
// returned; row failures are recorded in the summary and the batch completes.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := newSummary()

	if strings.TrimSpace(req.FileName) == "" {
		return summary, errors.New("file name is required")
	}
	if req.Data == nil {
		return summary, errors.New("data reader is required")
	}

	layout := s.layout
	if req.Layout != nil {
		layout = *req.Layout
	}
	if sheet := strings.TrimSpace(req.SheetName); sheet != "" {
		layout.SheetName = sheet
	}

	lease, err := s.locker.Obtain(ctx, batchLockKey)
	if err != nil {
		return summary, fmt.Errorf("another import is running: %w", err)
	}
	defer func() {
		if releaseErr := lease.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			s.logger.WithError(releaseErr).Warn("failed to release import lock")
		}
	}()

	batch, err := s.batches.Create(ctx, domain.NewImportBatch(req.FileName, layout.SheetName, s.now()))
	if err != nil {
		return summary, fmt.Errorf("failed to create import batch: %w", err)
	}
	summary.BatchID = batch.ID
	summary.Status = batch.Status
	logger := s.logger.WithFields(logrus.Fields{"batch_id": batch.ID, "file": req.FileName})

	loaded, err := loadGrid(req.FileName, req.Data, layout)
	if err != nil {
		return s.abort(ctx, logger, &batch, summary, err)
	}
	sheet, g := loaded.sheet, loaded.grid
	batch.SheetName = sheet
	summary.SheetName = sheet

	directory, err := ResolveFieldDirectory(g, layout)
	if err != nil {
		return s.abort(ctx, logger, &batch, summary, err)
	}
	parser := NewRowParser(directory)

	for idx := layout.FirstDataRow; idx < len(g); idx++ {
		if !grid.IsBlankRow(g[idx]) {
			batch.TotalRows++
		}
	}
	summary.TotalRows = batch.TotalRows

	if err := batch.Transition(domain.BatchStatusProcessing, s.now()); err != nil {
		return summary, err
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		return s.abort(ctx, logger, &batch, summary, fmt.Errorf("failed to start batch: %w", err))
	}
	summary.Status = batch.Status
	logger.WithFields(logrus.Fields{
		"sheet":   sheet,
		"columns": directory.Len(),
		"rows":    batch.TotalRows,
	}).Info("import batch processing")

	for idx := layout.FirstDataRow; idx < len(g); idx++ {
		if err := ctx.Err(); err != nil {
			return s.abort(ctx, logger, &batch, summary, fmt.Errorf("import cancelled after %d rows: %w", batch.Attempted(), err))
		}

		row := g[idx]
		if grid.IsBlankRow(row) {
			summary.BlankRows++
			s.metrics.Row(metrics.RowBlank)
			continue
		}

		// Row numbers are 1-based like the spreadsheet itself.
		record := parser.Parse(idx+1, row)
		s.processRow(ctx, logger, &batch, &summary, record)

		if err := s.batches.Save(ctx, batch); err != nil {
			logger.WithError(err).WithField("row", record.RowNumber).Warn("failed to persist batch progress")
		}
	}

	if err := batch.Transition(domain.BatchStatusCompleted, s.now()); err != nil {
		return summary, err
	}
	if err := s.batches.Save(ctx, batch); err != nil {
		return summary, fmt.Errorf("failed to complete batch: %w", err)
	}
	s.metrics.Batch(string(batch.Status))
	summary.Status = batch.Status

	logger.WithFields(logrus.Fields{
		"processed": batch.ProcessedRows,
		"failed":    batch.FailedRows,
		"blank":     summary.BlankRows,
	}).Info("import batch completed")
	return summary, nil
}

type loadedGrid struct {
	sheets []string
	sheet  string
	grid   grid.Grid
}

func loadGrid(fileName string, data io.Reader, layout Layout) (loadedGrid, error) {
	if err := layout.Validate(); err != nil {
		return loadedGrid{}, err
	}

	payload, err := io.ReadAll(data)
	if err != nil {
		return loadedGrid{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return loadedGrid{}, ErrEmptyUpload
	}

	source, err := grid.Open(fileName, payload, grid.Options{RawCellValues: layout.RawCellValues})
	if err != nil {
		return loadedGrid{}, err
	}
	defer source.Close()

	loaded := loadedGrid{sheets: source.Sheets(), sheet: layout.SheetName}
	if loaded.sheet == "" && len(loaded.sheets) > 0 {
		loaded.sheet = loaded.sheets[0]
	}
	loaded.grid, err = source.ReadSheet(loaded.sheet)
	if err != nil {
		return loadedGrid{}, err
	}
	return loaded, nil
}

func (s *Service) processRow(ctx context.Context, logger logrus.FieldLogger, batch *domain.ImportBatch, summary *Summary, record domain.ParsedRecord) {
	if err := s.rows.Archive(ctx, batch.ID, record); err != nil {
		s.failRow(ctx, logger, batch, summary, record.RowNumber, domain.RowStageArchive, err)
		return
	}

	started := time.Now()
	result, err := s.distributor.Distribute(ctx, batch.ID, record)
	if err != nil {
		s.metrics.ObserveRow(metrics.RowFailed, time.Since(started))
		s.failRow(ctx, logger, batch, summary, record.RowNumber, domain.RowStageDistribution, err)
		if markErr := s.rows.MarkResult(ctx, batch.ID, record.RowNumber, repository.RowStatusFailed, err.Error()); markErr != nil {
			logger.WithError(markErr).WithField("row", record.RowNumber).Warn("failed to mark row result")
		}
		return
	}
	s.metrics.ObserveRow(metrics.RowProcessed, time.Since(started))

	batch.RecordRow(false, s.now())
	summary.ProcessedRows = batch.ProcessedRows
	s.metrics.Row(metrics.RowProcessed)
	for _, change := range result.Changes {
		summary.Changes[string(change.Kind)]++
		s.metrics.Change(string(change.Kind), string(change.Action))
	}

	if err := s.rows.MarkResult(ctx, batch.ID, record.RowNumber, repository.RowStatusProcessed, ""); err != nil {
		logger.WithError(err).WithField("row", record.RowNumber).Warn("failed to mark row result")
	}
}

func (s *Service) failRow(ctx context.Context, logger logrus.FieldLogger, batch *domain.ImportBatch, summary *Summary, rowNumber int, stage domain.RowStage, err error) {
	batch.RecordRow(true, s.now())
	summary.FailedRows = batch.FailedRows
	summary.Errors = append(summary.Errors, RowError{RowNumber: rowNumber, Stage: stage, Message: err.Error()})
	s.metrics.Row(metrics.RowFailed)

	logger.WithFields(logrus.Fields{
		"row":   rowNumber,
		"stage": stage,
	}).WithError(err).Warn("row failed")
	s.logRowError(ctx, batch.ID, &rowNumber, stage, err)
}

// abort fails the batch after a configuration or infrastructure error.
func (s *Service) abort(ctx context.Context, logger logrus.FieldLogger, batch *domain.ImportBatch, summary Summary, cause error) (Summary, error) {
	// The batch record must reach a terminal state even when ctx is done.
	persistCtx := context.WithoutCancel(ctx)

	if err := batch.Fail(cause, s.now()); err != nil {
		return summary, errors.Join(cause, err)
	}
	if err := s.batches.Save(persistCtx, *batch); err != nil {
		logger.WithError(err).Error("failed to persist failed batch")
	}
	s.metrics.Batch(string(batch.Status))
	s.logRowError(persistCtx, batch.ID, nil, domain.RowStageBatch, cause)

	summary.Status = batch.Status
	summary.ProcessedRows = batch.ProcessedRows
	summary.FailedRows = batch.FailedRows
	logger.WithError(cause).Error("import batch failed")
	return summary, cause
}

func (s *Service) logRowError(ctx context.Context, batchID uuid.UUID, rowNumber *int, stage domain.RowStage, err error) {
	if s.logs == nil || err == nil {
		return
	}
	entry := domain.IngestionLogEntry{
		BatchID:      batchID,
		RowNumber:    rowNumber,
		Stage:        stage,
		ErrorMessage: err.Error(),
		CreatedAt:    s.now(),
	}
	if recordErr := s.logs.Record(ctx, entry); recordErr != nil {
		s.logger.WithError(recordErr).WithField("batch_id", batchID).Warn("failed to record ingestion log")
	}
}

// GetBatch loads one batch.
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (domain.ImportBatch, error) {
	return s.batches.GetByID(ctx, id)
}

// ListBatches returns batches, newest first.
func (s *Service) ListBatches(ctx context.Context, limit, offset int) ([]domain.ImportBatch, error) {
	return s.batches.List(ctx, limit, offset)
}

// ListRowErrors returns the recorded errors of a batch.
func (s *Service) ListRowErrors(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]domain.IngestionLogEntry, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.logs.List(ctx, batchID, limit, offset)
}

// Redistribute replays the archived parsed row of a failed row, for example
// after the conflicting data has been corrected. On success the batch
// counters move the row from failed to processed.
func (s *Service) Redistribute(ctx context.Context, batchID uuid.UUID, rowNumber int) (distribution.Result, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return distribution.Result{}, err
	}
	if !batch.Status.IsTerminal() {
		return distribution.Result{}, fmt.Errorf("batch %s is still %s", batchID, batch.Status)
	}

	record, status, err := s.rows.GetParsed(ctx, batchID, rowNumber)
	if err != nil {
		return distribution.Result{}, err
	}
	if status != repository.RowStatusFailed {
		return distribution.Result{}, fmt.Errorf("row %d is %s: %w", rowNumber, status, ErrRowNotFailed)
	}

	result, err := s.distributor.Distribute(ctx, batchID, record)
	if err != nil {
		s.logRowError(ctx, batchID, &rowNumber, domain.RowStageDistribution, err)
		return distribution.Result{}, err
	}

	if err := s.rows.MarkResult(ctx, batchID, rowNumber, repository.RowStatusProcessed, ""); err != nil {
		return result, err
	}
	if batch.FailedRows > 0 {
		batch.FailedRows--
		batch.ProcessedRows++
		batch.UpdatedAt = s.now()
		if err := s.batches.Save(ctx, batch); err != nil {
			return result, err
		}
	}
	s.logger.WithFields(logrus.Fields{"batch_id": batchID, "row": rowNumber}).Info("row redistributed")
	return result, nil
}
