package spreadsheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidWorkbook = errors.New("file không phải workbook Excel hợp lệ")

// Sheet is one worksheet read as raw cell text. Header is the detected header
// row and Rows the data rows below it.
type Sheet struct {
	Name    string
	Header  []string
	Rows    [][]string
	Columns Columns
	// HeaderRow is the 1-based sheet row of the header, used in warnings.
	HeaderRow int
}

// readSheets opens an XLSX stream and locates the header of every sheet.
// Cells are read raw so numbers keep their precision and dates arrive as
// Excel serials.
func readSheets(r io.Reader, m *Matcher) ([]Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		idx, cols := m.Locate(rows)
		if idx < 0 {
			sheets = append(sheets, Sheet{Name: name, Columns: Columns{}})
			continue
		}
		sheets = append(sheets, Sheet{
			Name:      name,
			Header:    rows[idx],
			Rows:      rows[idx+1:],
			Columns:   cols,
			HeaderRow: idx + 1,
		})
	}
	return sheets, nil
}

// WriteTable writes one sheet with a bold header row followed by rows.
func WriteTable(w io.Writer, sheet string, headers []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", r+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
