package ingestion

import (
	"errors"
	"fmt"
)

// ErrInvalidLayout is returned when the configured grid layout is inconsistent.
var ErrInvalidLayout = errors.New("invalid grid layout")

// Layout locates the header, legend and data rows inside a sheet. Row
// indices are 0-based.
type Layout struct {
	SheetName     string `mapstructure:"sheet" json:"sheet"`
	HeaderRow     int    `mapstructure:"header_row" json:"headerRow"`
	LegendRows    []int  `mapstructure:"legend_rows" json:"legendRows,omitempty"`
	FirstDataRow  int    `mapstructure:"first_data_row" json:"firstDataRow"`
	RawCellValues bool   `mapstructure:"raw_cell_values" json:"rawCellValues"`
}

// DefaultLayout is a plain sheet with headers in the first row.
func DefaultLayout() Layout {
	return Layout{HeaderRow: 0, FirstDataRow: 1}
}

// Validate checks the row offsets against each other.
func (l Layout) Validate() error {
	if l.HeaderRow < 0 {
		return fmt.Errorf("%w: header row %d is negative", ErrInvalidLayout, l.HeaderRow)
	}
	if l.FirstDataRow <= l.HeaderRow {
		return fmt.Errorf("%w: first data row %d must come after header row %d", ErrInvalidLayout, l.FirstDataRow, l.HeaderRow)
	}

	seen := make(map[int]struct{}, len(l.LegendRows))
	for _, row := range l.LegendRows {
		if row < 0 || row >= l.FirstDataRow {
			return fmt.Errorf("%w: legend row %d must lie before the first data row %d", ErrInvalidLayout, row, l.FirstDataRow)
		}
		if row == l.HeaderRow {
			return fmt.Errorf("%w: legend row %d is the header row", ErrInvalidLayout, row)
		}
		if _, dup := seen[row]; dup {
			return fmt.Errorf("%w: legend row %d listed twice", ErrInvalidLayout, row)
		}
		seen[row] = struct{}{}
	}
	return nil
}
