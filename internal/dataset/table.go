package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is a raw header + rows view of one CSV file or one worksheet.
type Table struct {
	Name   string     `json:"name"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns the index of the named column or -1. Headers are compared
// trimmed and normalized, so "ph " and a decomposed Hangul header still match.
func (t *Table) Column(name string) int {
	want := canonical(name)
	for i, h := range t.Header {
		if canonical(h) == want {
			return i
		}
	}
	return -1
}

// Cell returns row[col] or "" when the row is short.
func (t *Table) Cell(row, col int) string {
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

func (t *Table) require(names ...string) ([]int, error) {
	idx := make([]int, len(names))
	for i, n := range names {
		idx[i] = t.Column(n)
		if idx[i] < 0 {
			return nil, fmt.Errorf("%w %q in %s", ErrMissingColumn, n, t.Name)
		}
	}
	return idx, nil
}

// ReadCSV parses a comma separated table. A leading UTF-8 byte order mark,
// which spreadsheet tools like to add on export, is dropped.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(transform.NewReader(r, unicode.UTF8BOM.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Name: name}, nil
		}
		return nil, fmt.Errorf("read header %s: %w", name, err)
	}
	t := &Table{Name: name, Header: header}
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if blank(rec) {
			continue
		}
		t.Rows = append(t.Rows, padRow(rec, len(header)))
	}
	return t, nil
}

// ReadWorkbook parses every sheet of an xlsx workbook, in tab order. The first
// non-empty row of a sheet is its header.
func ReadWorkbook(name string, r io.Reader) ([]*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx %s: %w", name, err)
	}
	defer f.Close()

	var out []*Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q of %s: %w", sheet, name, err)
		}
		t := &Table{Name: sheet}
		for _, row := range rows {
			if blank(row) {
				continue
			}
			if t.Header == nil {
				t.Header = row
				continue
			}
			t.Rows = append(t.Rows, padRow(row, len(t.Header)))
		}
		out = append(out, t)
	}
	return out, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func padRow(row []string, n int) []string {
	if len(row) >= n {
		return row
	}
	tmp := make([]string, n)
	copy(tmp, row)
	return tmp
}

// Concat stacks tables under the union of their headers, in first-seen column
// order, and prepends a tag column holding each row's source table name.
func Concat(tag string, tables ...*Table) *Table {
	out := &Table{Name: tag, Header: []string{tag}}
	pos := map[string]int{}
	for _, t := range tables {
		for _, h := range t.Header {
			key := canonical(h)
			if _, ok := pos[key]; !ok {
				pos[key] = len(out.Header)
				out.Header = append(out.Header, h)
			}
		}
	}
	for _, t := range tables {
		for _, r := range t.Rows {
			row := make([]string, len(out.Header))
			row[0] = t.Name
			for i, h := range t.Header {
				if i < len(r) {
					row[pos[canonical(h)]] = r[i]
				}
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// appendTable stacks src below dst under the union of both headers.
func appendTable(dst, src *Table) *Table {
	m := Concat("", dst, src)
	out := &Table{Name: dst.Name, Header: m.Header[1:]}
	for _, r := range m.Rows {
		out.Rows = append(out.Rows, r[1:])
	}
	return out
}

// Tagged returns the environment tables named by school, for Concat.
func (e *Environment) Tagged() []*Table {
	out := make([]*Table, 0, len(e.Schools))
	for _, s := range e.Schools {
		t := *e.Tables[s]
		t.Name = s
		out = append(out, &t)
	}
	return out
}

// Tagged returns the growth sheets named by school, for Concat.
func (g *Growth) Tagged() []*Table {
	out := make([]*Table, 0, len(g.Sheets))
	for _, s := range g.Sheets {
		t := *g.Tables[s]
		t.Name = s
		out = append(out, &t)
	}
	return out
}
