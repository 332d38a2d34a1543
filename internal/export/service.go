// Package export streams the failed rows of an import batch back out as CSV
// so they can be corrected and uploaded again.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Leading columns of every export; the remaining columns are the original
// sheet columns.
const (
	ColumnRow   = "Row"
	ColumnError = "Error"
)

// Service exports archived rows of a batch.
type Service struct {
	batches  repository.ImportBatchRepository
	rows     repository.ImportRowRepository
	pageSize int
	logger   logrus.FieldLogger
}

// Option configures the export service.
type Option func(*Service)

// WithPageSize sets how many archived rows are fetched per query.
func WithPageSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.pageSize = size
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates the export service.
func NewService(batches repository.ImportBatchRepository, rows repository.ImportRowRepository, opts ...Option) *Service {
	s := &Service{
		batches:  batches,
		rows:     rows,
		pageSize: 500,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result reports what an export wrote.
type Result struct {
	Batch        domain.ImportBatch
	RowsExported int
	BytesWritten int64
}

// WriteFailedRows writes every failed row of the batch to w as CSV: the row
// number, the recorded error and the raw cells under their resolved names.
func (s *Service) WriteFailedRows(ctx context.Context, batchID uuid.UUID, w io.Writer) (Result, error) {
	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		return Result{}, err
	}

	failed, err := s.collect(ctx, batchID, repository.RowStatusFailed)
	if err != nil {
		return Result{Batch: batch}, err
	}

	buffered := bufio.NewWriterSize(w, 64<<10)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	columns := rawColumns(failed)
	headers := append([]string{ColumnRow, ColumnError}, columns...)
	if err := csvWriter.Write(headers); err != nil {
		return Result{Batch: batch}, fmt.Errorf("write header: %w", err)
	}

	values := make([]string, len(headers))
	for _, row := range failed {
		values[0] = fmt.Sprint(row.Record.RowNumber)
		values[1] = truncateError(row.ErrorMessage)
		for i, column := range columns {
			values[i+2] = row.Record.Raw[column]
		}
		if err := csvWriter.Write(values); err != nil {
			return Result{Batch: batch}, fmt.Errorf("write row %d: %w", row.Record.RowNumber, err)
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return Result{Batch: batch}, fmt.Errorf("final flush: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return Result{Batch: batch}, fmt.Errorf("final buffered flush: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"rows":     len(failed),
		"bytes":    counter.count,
	}).Info("failed rows exported")
	return Result{Batch: batch, RowsExported: len(failed), BytesWritten: counter.count}, nil
}

func (s *Service) collect(ctx context.Context, batchID uuid.UUID, status repository.RowStatus) ([]repository.ArchivedRow, error) {
	var all []repository.ArchivedRow
	for offset := 0; ; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := s.rows.ListByStatus(ctx, batchID, status, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list %s rows: %w", status, err)
		}
		all = append(all, page...)
		if len(page) < s.pageSize {
			return all, nil
		}
	}
}

// rawColumns orders the raw column names. The archive keeps rows as maps, so
// the sheet order is approximated: named columns sorted, then placeholder
// columns by index.
func rawColumns(rows []repository.ArchivedRow) []string {
	seen := map[string]struct{}{}
	for _, row := range rows {
		for name := range row.Record.Raw {
			seen[name] = struct{}{}
		}
	}

	columns := make([]string, 0, len(seen))
	for name := range seen {
		columns = append(columns, name)
	}
	sort.Slice(columns, func(i, j int) bool {
		pi, ni := placeholderIndex(columns[i])
		pj, nj := placeholderIndex(columns[j])
		if pi != pj {
			return !pi
		}
		if pi && ni != nj {
			return ni < nj
		}
		return columns[i] < columns[j]
	})
	return columns
}

func placeholderIndex(name string) (bool, int) {
	rest, ok := strings.CutPrefix(name, "Column_")
	if !ok {
		return false, 0
	}
	var index int
	if _, err := fmt.Sscanf(rest, "%d", &index); err != nil {
		return false, 0
	}
	return true, index
}

// FileName suggests a download name for the failed rows of batch.
func FileName(batch domain.ImportBatch) string {
	base := strings.TrimSuffix(batch.FileName, fileExt(batch.FileName))
	return fmt.Sprintf("%s-failed-rows-%s.csv", sanitizeFileComponent(base), batch.ID.String()[:8])
}

func fileExt(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		return name[idx:]
	}
	return ""
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "import"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func truncateError(msg string) string {
	const maxLen = 512
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
