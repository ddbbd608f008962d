package ingest

import "strings"

// Table is the raw upload: ordered headers and rows of cells aligned with them.
type Table struct {
	Headers []string
	Rows    []Row
}

type Row struct {
	// Line is the 1-based line of the row in the source file.
	Line  int
	Cells []any
}

func (r Row) Cell(i int) any {
	if i < 0 || i >= len(r.Cells) {
		return nil
	}
	return r.Cells[i]
}

func (r Row) blank() bool {
	for _, c := range r.Cells {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		return false
	}
	return true
}

// NewTable builds a table from spreadsheet rows using rows[headerRow] as
// the header line. Rows above the header are ignored.
func NewTable(rows [][]string, headerRow int) Table {
	if headerRow < 0 || headerRow >= len(rows) {
		return Table{}
	}
	headers := make([]string, len(rows[headerRow]))
	for i, h := range rows[headerRow] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	t := Table{Headers: headers}
	for i := headerRow + 1; i < len(rows); i++ {
		cells := make([]any, len(rows[i]))
		for j, v := range rows[i] {
			cells[j] = v
		}
		row := Row{Line: i + 1, Cells: cells}
		if row.blank() {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TableFromMaps builds a table from header-keyed rows. Line numbers start
// at 2, as if headers occupied the first line.
func TableFromMaps(headers []string, rows []map[string]any) Table {
	t := Table{Headers: append([]string(nil), headers...)}
	for i, m := range rows {
		cells := make([]any, len(headers))
		for j, h := range headers {
			cells[j] = m[h]
		}
		t.Rows = append(t.Rows, Row{Line: i + 2, Cells: cells})
	}
	return t
}
