package table

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "Sheet1"

// Sink receives output rows one at a time. After Append returns, the file
// on disk holds the header and every row appended so far.
type Sink interface {
	Append(row []string) error
	Close() error
}

// NewSink creates (or truncates) path and writes the header.
func NewSink(path string, header []string) (Sink, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if format == FormatXLSX {
		s := &xlsxSink{path: path, header: header}
		return s, s.save()
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrap(err, "table: create csv")
	}
	s := &csvSink{f: f, w: csv.NewWriter(f)}
	if err := s.Append(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// Write writes a complete table to path in one go.
func Write(path string, header []string, rows [][]string) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		s := &xlsxSink{path: path, header: header, rows: rows}
		return s.save()
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "table: create csv")
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "table: write csv header")
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "table: write csv rows")
	}
	return eris.Wrap(f.Close(), "table: close csv")
}

type csvSink struct {
	f *os.File
	w *csv.Writer
}

func (s *csvSink) Append(row []string) error {
	if err := s.w.Write(row); err != nil {
		return eris.Wrap(err, "table: write csv row")
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return eris.Wrap(err, "table: flush csv")
	}
	return nil
}

func (s *csvSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return eris.Wrap(err, "table: flush csv")
	}
	return eris.Wrap(s.f.Close(), "table: close csv")
}

// xlsxSink rewrites the whole workbook on every append.
type xlsxSink struct {
	path   string
	header []string
	rows   [][]string
}

func (s *xlsxSink) Append(row []string) error {
	s.rows = append(s.rows, row)
	return s.save()
}

func (s *xlsxSink) Close() error {
	return nil
}

func (s *xlsxSink) save() error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "table: add sheet")
	}
	addRow(sheet, s.header)
	for _, r := range s.rows {
		addRow(sheet, r)
	}
	if err := f.Save(s.path); err != nil {
		return eris.Wrapf(err, "table: save %s", s.path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
