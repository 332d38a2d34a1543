package ingestion

import (
	"strconv"
	"strings"

	"github.com/rpattn/sapingest/internal/domain"
)

type boundColumn struct {
	index   int
	entry   int
	binding *fieldBinding
}

// RowParser turns data rows into parsed records for a fixed field directory.
type RowParser struct {
	directory    FieldDirectory
	columns      []boundColumn
	truckEntries int
}

// NewRowParser binds the well-known fields to the columns of the directory.
func NewRowParser(directory FieldDirectory) *RowParser {
	p := &RowParser{directory: directory}
	for _, field := range directory.Fields {
		if field.Header == "" {
			continue
		}
		binding, ok := lookupBinding(field.Header)
		if !ok {
			continue
		}
		if binding.repeats() {
			entry := field.Occurrence - 1
			p.columns = append(p.columns, boundColumn{index: field.Index, entry: entry, binding: binding})
			if entry+1 > p.truckEntries {
				p.truckEntries = entry + 1
			}
			continue
		}
		if field.Occurrence == 1 {
			p.columns = append(p.columns, boundColumn{index: field.Index, binding: binding})
		}
	}
	return p
}

// Directory returns the directory the parser was built for.
func (p *RowParser) Directory() FieldDirectory {
	return p.directory
}

// Parse builds the parsed record for one data row. Cells past the end of the
// row or the directory are ignored.
func (p *RowParser) Parse(rowNumber int, row []string) domain.ParsedRecord {
	width := min(len(row), p.directory.Len())

	raw := make(domain.RawRow, width)
	for idx := 0; idx < width; idx++ {
		raw[p.directory.Fields[idx].Name] = row[idx]
	}

	record := domain.ParsedRecord{
		RowNumber: rowNumber,
		Raw:       raw,
	}
	trucking := make([]domain.TruckingFields, p.truckEntries)
	filled := make(map[string]bool)

	for _, col := range p.columns {
		if col.index >= width {
			continue
		}
		value := strings.TrimSpace(row[col.index])
		if value == "" {
			continue
		}

		// The first non-empty column wins when several aliases of one field are present.
		slot := string(col.binding.key)
		if col.binding.repeats() {
			slot += "#" + strconv.Itoa(col.entry)
		}
		if filled[slot] {
			continue
		}
		filled[slot] = true

		if col.binding.contract != nil {
			col.binding.contract(&record.Contract, value)
		}
		if col.binding.shipment != nil {
			col.binding.shipment(&record.Shipment, value)
		}
		if col.binding.quality != nil {
			col.binding.quality(&record.Quality, value)
		}
		if col.binding.trucking != nil {
			col.binding.trucking(&trucking[col.entry], value)
		}
	}

	record.Trucking = make([]domain.TruckingFields, 0, len(trucking))
	for _, entry := range trucking {
		if !entry.IsEmpty() {
			record.Trucking = append(record.Trucking, entry)
		}
	}

	return record
}

// BoundFields returns the directory names of columns feeding a well-known
// field, in column order.
func (p *RowParser) BoundFields() []string {
	names := make([]string, 0, len(p.columns))
	for _, col := range p.columns {
		names = append(names, p.directory.Name(col.index))
	}
	return names
}
