package ingestion

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/grid"
)

// InspectRequest describes a read-only look at a spreadsheet.
type InspectRequest struct {
	FileName  string
	SheetName string
	Data      io.Reader
	Layout    *Layout
	// Limit caps the number of sample rows; 0 means 10.
	Limit int
}

// InspectResult reports how a sheet would be read without writing anything.
type InspectResult struct {
	Sheets      []string              `json:"sheets"`
	Sheet       string                `json:"sheet"`
	Fields      []FieldMeta           `json:"fields"`
	Groups      []FieldGroup          `json:"groups"`
	BoundFields []string              `json:"boundFields"`
	DataRows    int                   `json:"dataRows"`
	BlankRows   int                   `json:"blankRows"`
	Sample      []domain.ParsedRecord `json:"sample"`
}

// Inspect resolves the field directory of a sheet and parses a sample of
// its data rows.
func (s *Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return InspectResult{}, errors.New("file name is required")
	}
	if req.Data == nil {
		return InspectResult{}, errors.New("data reader is required")
	}
	if err := ctx.Err(); err != nil {
		return InspectResult{}, err
	}

	layout := s.layout
	if req.Layout != nil {
		layout = *req.Layout
	}
	if sheet := strings.TrimSpace(req.SheetName); sheet != "" {
		layout.SheetName = sheet
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}

	loaded, err := loadGrid(req.FileName, req.Data, layout)
	if err != nil {
		return InspectResult{}, err
	}
	directory, err := ResolveFieldDirectory(loaded.grid, layout)
	if err != nil {
		return InspectResult{}, err
	}
	parser := NewRowParser(directory)

	result := InspectResult{
		Sheets:      loaded.sheets,
		Sheet:       loaded.sheet,
		Fields:      directory.Fields,
		Groups:      directory.Groups(),
		BoundFields: parser.BoundFields(),
		Sample:      []domain.ParsedRecord{},
	}
	for idx := layout.FirstDataRow; idx < len(loaded.grid); idx++ {
		row := loaded.grid[idx]
		if grid.IsBlankRow(row) {
			result.BlankRows++
			continue
		}
		result.DataRows++
		if len(result.Sample) < limit {
			result.Sample = append(result.Sample, parser.Parse(idx+1, row))
		}
	}
	return result, nil
}
