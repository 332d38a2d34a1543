package ingestion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/sapingest/internal/grid"
)

// ErrHeaderRowOutOfRange is returned when the configured header row is not in the grid.
var ErrHeaderRowOutOfRange = errors.New("header row out of range")

// FieldMeta describes one column of the sheet.
type FieldMeta struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	// Header is the trimmed header text; empty for placeholder columns.
	Header string `json:"header,omitempty"`
	// Occurrence counts repeats of the same header text, starting at 1.
	Occurrence int    `json:"occurrence,omitempty"`
	Group      string `json:"group,omitempty"`
}

// FieldDirectory maps every column index of the header row to a unique name.
type FieldDirectory struct {
	Fields []FieldMeta `json:"fields"`
}

// Len returns the number of columns covered.
func (d FieldDirectory) Len() int {
	return len(d.Fields)
}

// Name returns the canonical name of the column at index.
func (d FieldDirectory) Name(index int) string {
	if index < 0 || index >= len(d.Fields) {
		return ""
	}
	return d.Fields[index].Name
}

// FieldGroup lists the fields classified under one legend value.
type FieldGroup struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Groups returns fields grouped by legend classification in column order.
func (d FieldDirectory) Groups() []FieldGroup {
	var groups []FieldGroup
	positions := make(map[string]int)
	for _, field := range d.Fields {
		pos, ok := positions[field.Group]
		if !ok {
			pos = len(groups)
			positions[field.Group] = pos
			groups = append(groups, FieldGroup{Name: field.Group})
		}
		groups[pos].Fields = append(groups[pos].Fields, field.Name)
	}
	return groups
}

// PlaceholderName is the name given to a column with a blank header.
func PlaceholderName(index int) string {
	return fmt.Sprintf("Column_%d", index)
}

// ResolveFieldDirectory names every column of the configured header row.
// Blank header cells get a placeholder so that positions stay aligned with
// the data rows. The header row is widened to the widest row of the grid, so
// blank trailing header cells dropped by the reader still get a placeholder.
func ResolveFieldDirectory(g grid.Grid, layout Layout) (FieldDirectory, error) {
	if layout.HeaderRow < 0 || layout.HeaderRow >= len(g) {
		return FieldDirectory{}, fmt.Errorf("%w: row %d of %d", ErrHeaderRowOutOfRange, layout.HeaderRow, len(g))
	}

	headerRow := g[layout.HeaderRow]
	if width := g.Width(); width > len(headerRow) {
		padded := make([]string, width)
		copy(padded, headerRow)
		headerRow = padded
	}
	fields := make([]FieldMeta, len(headerRow))
	used := make(map[string]struct{}, len(headerRow))
	occurrences := make(map[string]int, len(headerRow))

	for idx, cell := range headerRow {
		header := collapseSpaces(cell)
		meta := FieldMeta{Index: idx, Header: header}

		var name string
		if header == "" {
			name = PlaceholderName(idx)
		} else {
			occurrences[header]++
			meta.Occurrence = occurrences[header]
			name = header
			if meta.Occurrence > 1 {
				name = fmt.Sprintf("%s_%d", header, meta.Occurrence)
			}
		}
		meta.Name = uniqueName(name, used)
		fields[idx] = meta
	}

	for _, legendRow := range layout.LegendRows {
		applyLegend(fields, g.Row(legendRow))
	}

	return FieldDirectory{Fields: fields}, nil
}

func uniqueName(name string, used map[string]struct{}) string {
	candidate := name
	for n := 2; ; n++ {
		if _, taken := used[candidate]; !taken {
			break
		}
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	used[candidate] = struct{}{}
	return candidate
}

// applyLegend classifies columns by a legend row. Blank legend cells belong to
// the group started by the nearest non-blank cell on their left.
func applyLegend(fields []FieldMeta, legend []string) {
	var current string
	for idx := range fields {
		if idx < len(legend) {
			if value := collapseSpaces(legend[idx]); value != "" {
				current = value
			}
		}
		if current == "" {
			continue
		}
		if fields[idx].Group == "" {
			fields[idx].Group = current
		} else {
			fields[idx].Group += " / " + current
		}
	}
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
