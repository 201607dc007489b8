// internal/output/excel.go
package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// DefaultExcelSheetName names the worksheet holding the records
const DefaultExcelSheetName = "Receipts"

// ExcelWriter writes records into a single .xlsx worksheet
type ExcelWriter struct {
	file      *excelize.File
	path      string
	sheetName string
	row       int
}

// NewExcelWriter creates a writer that saves to path on Close
func NewExcelWriter(path string) (*ExcelWriter, error) {
	if path == "" {
		return nil, fmt.Errorf("file path is required for Excel output")
	}

	file := excelize.NewFile()
	if err := file.SetSheetName(file.GetSheetName(0), DefaultExcelSheetName); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to name worksheet: %w", err)
	}

	w := &ExcelWriter{
		file:      file,
		path:      path,
		sheetName: DefaultExcelSheetName,
		row:       1,
	}
	if err := w.writeHeaders(); err != nil {
		file.Close()
		return nil, err
	}
	return w, nil
}

func (w *ExcelWriter) writeHeaders() error {
	headers := make([]interface{}, len(Columns))
	for i, column := range Columns {
		headers[i] = column
	}
	if err := w.file.SetSheetRow(w.sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 12},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E0E0E0"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	lastCell, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	if err := w.file.SetCellStyle(w.sheetName, "A1", lastCell, style); err != nil {
		return err
	}

	w.row = 2
	return nil
}

// Write appends records as rows. Values stay text so "150,00" is kept as written.
func (w *ExcelWriter) Write(records []Record) error {
	for _, record := range records {
		cell, err := excelize.CoordinatesToCellName(1, w.row)
		if err != nil {
			return err
		}
		values := record.Strings()
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		// duration_ms is numeric
		row[9] = record.DurationMS
		if err := w.file.SetSheetRow(w.sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", w.row, err)
		}
		w.row++
	}
	return nil
}

// Close applies the filter and frozen header, then saves the workbook
func (w *ExcelWriter) Close() error {
	defer w.file.Close()

	lastCell, err := excelize.CoordinatesToCellName(len(Columns), w.row-1)
	if err != nil {
		return err
	}
	if err := w.file.AutoFilter(w.sheetName, "A1:"+lastCell, nil); err != nil {
		return fmt.Errorf("failed to apply auto filter: %w", err)
	}
	if err := w.file.SetPanes(w.sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	return w.file.SaveAs(w.path)
}

// GetType returns the output type
func (w *ExcelWriter) GetType() string {
	return string(FormatExcel)
}
