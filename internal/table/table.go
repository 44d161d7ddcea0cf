// Package table reads brand/holding input sheets and writes verification
// results as CSV or XLSX, chosen by file extension.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/brand-verifier/internal/model"
)

// Input column names.
const (
	ColHolding     = "Holding Name"
	ColMainHolding = "Main Holding Name"
	ColBrand       = "Brand Name"
)

// Format is a supported file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// FormatOf returns the format implied by the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("table: unsupported file extension %q (want .csv or .xlsx)", filepath.Ext(path))
	}
}

// Table is a header row plus data rows.
type Table struct {
	Header []string
	Rows   [][]string

	index map[string]int
}

// New builds a table, trimming header names. Rows with non-empty cells past
// the header get unnamed columns ("Column N") so those cells are written back.
func New(header []string, rows [][]string) *Table {
	width := len(header)
	for _, row := range rows {
		width = max(width, usedWidth(row))
	}
	if width > len(header) {
		zap.L().Warn("table: rows wider than header, adding unnamed columns",
			zap.Int("header", len(header)),
			zap.Int("width", width),
		)
	}

	t := &Table{Header: make([]string, width), Rows: rows, index: make(map[string]int, width)}
	for i := range width {
		h := fmt.Sprintf("Column %d", i+1)
		if i < len(header) {
			h = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
		}
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	return t
}

// usedWidth is the length of row without trailing empty cells.
func usedWidth(row []string) int {
	n := len(row)
	for n > 0 && strings.TrimSpace(row[n-1]) == "" {
		n--
	}
	return n
}

// Has reports whether the table has column col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Value returns the cell of row in column col, or "" when either is absent.
func (t *Table) Value(row []string, col string) string {
	i, ok := t.index[col]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// HoldingColumn returns the column holding names are read from.
func (t *Table) HoldingColumn() (string, error) {
	switch {
	case t.Has(ColHolding):
		return ColHolding, nil
	case t.Has(ColMainHolding):
		return ColMainHolding, nil
	default:
		return "", eris.Errorf("table: missing column %q or %q", ColHolding, ColMainHolding)
	}
}

// Requests converts every data row into a verification request. Rows with
// blank names are kept so each row gets an output record.
func (t *Table) Requests() ([]model.VerificationRequest, error) {
	holdingCol, err := t.HoldingColumn()
	if err != nil {
		return nil, err
	}
	if !t.Has(ColBrand) {
		return nil, eris.Errorf("table: missing column %q", ColBrand)
	}

	reqs := make([]model.VerificationRequest, len(t.Rows))
	for i, row := range t.Rows {
		ctx := make(map[string]string)
		for _, col := range model.ContextColumns {
			if v := t.Value(row, col); v != "" {
				ctx[col] = v
			}
		}
		reqs[i] = model.NewRequest(i, t.Value(row, holdingCol), t.Value(row, ColBrand), ctx)
	}
	return reqs, nil
}

// Read loads a CSV or XLSX file.
func Read(path string) (*Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// ReadCSV parses CSV data whose first record is the header.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "table: read csv")
	}
	if len(records) == 0 {
		return nil, eris.New("table: csv has no header row")
	}
	return New(records[0], records[1:]), nil
}

// ReadXLSX reads the first sheet of an XLSX file.
func ReadXLSX(path string) (*Table, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("table: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("table: xlsx has no header row")
	}

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, rowToStrings(row))
	}
	return New(rowToStrings(sheet.Rows[0]), rows), nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
