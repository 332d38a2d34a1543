// Package grid decodes spreadsheet uploads into rows of text cells.
package grid

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrSheetNotFound is returned when the requested sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")
)

// Grid is a sheet as row-major text cells. An empty string is an empty cell.
type Grid [][]string

// Row returns the row at index, or nil when out of range.
func (g Grid) Row(index int) []string {
	if index < 0 || index >= len(g) {
		return nil
	}
	return g[index]
}

// Width returns the length of the widest row. Spreadsheet readers drop
// trailing empty cells, so rows of one sheet can differ in length.
func (g Grid) Width() int {
	width := 0
	for _, row := range g {
		width = max(width, len(row))
	}
	return width
}

// IsBlankRow reports whether every cell of the row is empty or whitespace.
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Options tune how cells are decoded.
type Options struct {
	// RawCellValues skips number formats so dates arrive as spreadsheet serials.
	RawCellValues bool
}

// Source supplies named sheets of a decoded workbook.
type Source interface {
	Sheets() []string
	ReadSheet(name string) (Grid, error)
	Close() error
}

// Open picks a decoder based on the file extension.
func Open(fileName string, payload []byte, opts Options) (Source, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return openCSV(fileName, payload)
	case ".xlsx", ".xlsm":
		return openExcel(payload, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}
