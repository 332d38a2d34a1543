package grid

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// csvSource exposes a CSV file as a workbook with a single sheet named after the file.
type csvSource struct {
	name string
	rows Grid
}

func openCSV(fileName string, payload []byte) (*csvSource, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1
	csvReader.LazyQuotes = true

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	base := filepath.Base(fileName)
	return &csvSource{
		name: strings.TrimSuffix(base, filepath.Ext(base)),
		rows: Grid(records),
	}, nil
}

func (s *csvSource) Sheets() []string {
	return []string{s.name}
}

func (s *csvSource) ReadSheet(name string) (Grid, error) {
	if name != "" && name != s.name {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return s.rows, nil
}

func (s *csvSource) Close() error {
	return nil
}
