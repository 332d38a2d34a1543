package grid

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestOpenExcelReadsNamedSheet(t *testing.T) {
	payload := buildWorkbook(t, "SAP Export", [][]any{
		{"Group", "", "Product"},
		{"A", "X", "Widget"},
	})

	src, err := Open("export.xlsx", payload, Options{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.Contains(t, src.Sheets(), "SAP Export")

	g, err := src.ReadSheet("SAP Export")
	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.Equal(t, []string{"Group", "", "Product"}, g[0])
	assert.Equal(t, []string{"A", "X", "Widget"}, g[1])
}

func TestOpenExcelMissingSheet(t *testing.T) {
	payload := buildWorkbook(t, "Sheet1", [][]any{{"a"}})

	src, err := Open("export.xlsx", payload, Options{})
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	_, err = src.ReadSheet("Nope")
	assert.True(t, errors.Is(err, ErrSheetNotFound), "got %v", err)
}

func TestOpenCSVStripsByteOrderMark(t *testing.T) {
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Contract No,PO No\nC-1,\n")...)

	src, err := Open("contracts.csv", payload, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"contracts"}, src.Sheets())

	g, err := src.ReadSheet("")
	require.NoError(t, err)
	require.Len(t, g, 2)
	assert.Equal(t, "Contract No", g[0][0])
	assert.Equal(t, []string{"C-1", ""}, g[1])

	_, err = src.ReadSheet("other")
	assert.True(t, errors.Is(err, ErrSheetNotFound))
}

func TestOpenRejectsUnknownExtension(t *testing.T) {
	_, err := Open("notes.txt", []byte("x"), Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestIsBlankRow(t *testing.T) {
	assert.True(t, IsBlankRow(nil))
	assert.True(t, IsBlankRow([]string{"", "  ", "\t"}))
	assert.False(t, IsBlankRow([]string{"", "x"}))
}

func TestGridWidthUsesWidestRow(t *testing.T) {
	assert.Equal(t, 0, Grid{}.Width())
	assert.Equal(t, 3, Grid{{"A", "B"}, {"1", "2", "3"}, {}}.Width())
}
