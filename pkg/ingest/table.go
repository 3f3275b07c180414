package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is one header-plus-rows grid read from a workbook sheet or a
// delimited file.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string

	// Date1904 is set for workbooks using the 1904 date system.
	Date1904 bool
}

// columnIndex maps trimmed header names to column positions. The first
// occurrence of a duplicated name wins.
func (t *Table) columnIndex() map[string]int {
	idx := make(map[string]int, len(t.Header))

	for i, h := range t.Header {
		h = strings.TrimSpace(h)
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}

	return idx
}

// missing returns the required columns absent from idx, in required order.
func missing(idx map[string]int, required []string) []string {
	var out []string

	for _, col := range required {
		if _, ok := idx[col]; !ok {
			out = append(out, col)
		}
	}

	return out
}

// cell returns row[i] or "" when the row is shorter than the header.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}

	return row[i]
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}

	return true
}

// IsWorkbook reports whether path has a spreadsheet extension.
func IsWorkbook(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return true
	}

	return false
}

// IsDelimited reports whether path has a delimited-text extension.
func IsDelimited(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return true
	}

	return false
}

// ReadWorkbook reads every sheet of an xlsx workbook, in workbook order.
// Cells are read raw so date cells come back as Excel serial numbers
// regardless of the display format.
func ReadWorkbook(path string) ([]Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening workbook %s: %v", ErrSourceUnreadable, path, err)
	}
	defer func() { _ = f.Close() }()

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	sheets := f.GetSheetList()
	tables := make([]Table, 0, len(sheets))

	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: reading sheet %q of %s: %v",
				ErrSourceUnreadable, sheet, path, err)
		}

		t := Table{Name: sheet, Date1904: date1904}

		if len(rows) > 0 {
			t.Header = rows[0]
			t.Rows = rows[1:]
		}

		tables = append(tables, t)
	}

	return tables, nil
}

// ReadCSV reads a comma separated file with a header row. A UTF-8 byte order
// mark on the header and rows of uneven width are tolerated.
func ReadCSV(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("%w: opening %s: %v", ErrSourceUnreadable, path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	t := Table{Name: filepath.Base(path)}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return t, nil
		}

		return Table{}, fmt.Errorf("%w: reading header of %s: %v", ErrSourceUnreadable, path, err)
	}

	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t.Header = header

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return Table{}, fmt.Errorf("%w: reading %s: %v", ErrSourceUnreadable, path, err)
		}

		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
