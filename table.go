package copyhash

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"
)

const utf8BOM = "\ufeff"

// rowReader yields table rows; Read returns io.EOF after the last one.
type rowReader interface {
	Read() ([]string, error)
	Close() error
}

// rowWriter receives table rows. Flush makes the rows written so far
// durable where the format allows it; Close flushes and releases the file.
type rowWriter interface {
	Write(row []string) error
	Flush() error
	Close() error
}

type csvRows struct {
	r      *csv.Reader
	closer io.Closer
}

func newCSVRows(r io.Reader, closer io.Closer) *csvRows {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	return &csvRows{r: cr, closer: closer}
}

func (c *csvRows) Read() ([]string, error) { return c.r.Read() }

func (c *csvRows) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// xlsxRows reads the first worksheet of a workbook.
type xlsxRows struct {
	f    *excelize.File
	rows *excelize.Rows
}

func openXLSXRows(path string) (*xlsxRows, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, newError(ErrSchema, "workbook %s has no sheets", path)
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return &xlsxRows{f: f, rows: rows}, nil
}

func (x *xlsxRows) Read() ([]string, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return x.rows.Columns()
}

func (x *xlsxRows) Close() error {
	return errors.Join(x.rows.Close(), x.f.Close())
}

// openTable opens a .csv or .xlsx file for reading.
func openTable(path string) (rowReader, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return newCSVRows(f, f), nil
	case ".xlsx":
		return openXLSXRows(path)
	default:
		return nil, newError(ErrUnsupportedFormat, "%q (want .csv or .xlsx)", ext)
	}
}

// readHeader consumes the header row and requires it to equal want, in order.
func readHeader(r rowReader, want []string) ([]string, error) {
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, newError(ErrSchema, "table has no header, expected %v", want)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if !slices.Equal(header, want) {
		return nil, newError(ErrSchema, "header does not match expected fields, expected, in order %v, got %v", want, header)
	}
	return header, nil
}

// rowMap keys cells by header. Missing trailing cells read as empty; extra
// non-empty cells are an error.
func rowMap(header, cells []string) (map[string]string, error) {
	m := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(cells) {
			m[h] = cells[i]
		} else {
			m[h] = ""
		}
	}
	if len(cells) > len(header) {
		for _, extra := range cells[len(header):] {
			if extra != "" {
				return m, newError(ErrValidation, "row has %d cells, header has %d", len(cells), len(header))
			}
		}
	}
	return m, nil
}

type csvWriter struct {
	w      *csv.Writer
	closer io.Closer
}

func (c *csvWriter) Write(row []string) error { return c.w.Write(row) }

func (c *csvWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		err = errors.Join(err, c.closer.Close())
	}
	return err
}

type xlsxWriter struct {
	f     *excelize.File
	sheet string
	path  string
	next  int
}

func (x *xlsxWriter) Write(row []string) error {
	x.next++
	cell, err := excelize.CoordinatesToCellName(1, x.next)
	if err != nil {
		return err
	}
	return x.f.SetSheetRow(x.sheet, cell, &row)
}

// Flush is a no-op: a workbook is only valid once saved whole by Close.
func (x *xlsxWriter) Flush() error { return nil }

func (x *xlsxWriter) Close() error {
	return errors.Join(x.f.SaveAs(x.path), x.f.Close())
}

// checkTableExt rejects paths that are neither .csv nor .xlsx.
func checkTableExt(path string) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv", ".xlsx":
		return nil
	default:
		return newError(ErrUnsupportedFormat, "%q (want .csv or .xlsx)", ext)
	}
}

// createTable creates (or truncates) a .csv or .xlsx file for writing.
func createTable(path string) (rowWriter, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", path, err)
		}
		return &csvWriter{w: csv.NewWriter(f), closer: f}, nil
	case ".xlsx":
		f := excelize.NewFile()
		return &xlsxWriter{f: f, sheet: f.GetSheetName(0), path: path}, nil
	default:
		return nil, newError(ErrUnsupportedFormat, "%q (want .csv or .xlsx)", ext)
	}
}

// writeTable writes header and rows, then closes w.
func writeTable(w rowWriter, header []string, rows [][]string) error {
	err := w.Write(header)
	for _, row := range rows {
		if err != nil {
			break
		}
		err = w.Write(row)
	}
	return errors.Join(err, w.Close())
}
