package grid

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

type excelSource struct {
	file *excelize.File
	opts Options
}

func openExcel(payload []byte, opts Options) (*excelSource, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	if len(f.GetSheetList()) == 0 {
		_ = f.Close()
		return nil, errors.New("excel file has no sheets")
	}
	return &excelSource{file: f, opts: opts}, nil
}

func (s *excelSource) Sheets() []string {
	return s.file.GetSheetList()
}

// ReadSheet reads the named sheet; an empty name selects the first sheet.
func (s *excelSource) ReadSheet(name string) (Grid, error) {
	if name == "" {
		name = s.file.GetSheetList()[0]
	}
	index, err := s.file.GetSheetIndex(name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet %q: %w", name, err)
	}
	if index < 0 {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}

	rows, err := s.file.GetRows(name, excelize.Options{RawCellValue: s.opts.RawCellValues})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return Grid(rows), nil
}

func (s *excelSource) Close() error {
	return s.file.Close()
}
