package audit

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length, in characters.
const maxSheetName = 31

// ExcelizeWriter implements ExcelWriter using excelize library.
type ExcelizeWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
	headerStyle  int
}

// NewExcelizeWriter creates a new Excel writer.
func NewExcelizeWriter() ExcelWriter {
	f := excelize.NewFile()
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
	})
	if err != nil {
		style = 0
	}
	return &ExcelizeWriter{file: f, headerStyle: style}
}

func sheetName(name string) string {
	if utf8.RuneCountInString(name) <= maxSheetName {
		return name
	}
	return string([]rune(name)[:maxSheetName])
}

// AddSheet starts a new sheet. The first call renames the default sheet.
func (w *ExcelizeWriter) AddSheet(name string) error {
	name = sheetName(name)
	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes a bold header row and freezes it.
func (w *ExcelizeWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}
	if len(columns) == 0 {
		return nil
	}

	start, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(w.currentSheet, start, &header); err != nil {
		return err
	}

	if w.headerStyle != 0 {
		end, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, start, end, w.headerStyle)
	}
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      w.currentRow,
		TopLeftCell: fmt.Sprintf("A%d", w.currentRow+1),
		ActivePane:  "bottomLeft",
	})

	w.currentRow++
	return nil
}

// WriteRow writes a data row to current sheet.
func (w *ExcelizeWriter) WriteRow(row []interface{}) error {
	if w.currentSheet == "" {
		return fmt.Errorf("no active sheet")
	}

	cell, err := excelize.CoordinatesToCellName(1, w.currentRow)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.currentSheet, cell, &row); err != nil {
		return err
	}

	w.currentRow++
	return nil
}

// Save writes the Excel file to the writer.
func (w *ExcelizeWriter) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// SaveToFile writes the Excel file to disk.
func (w *ExcelizeWriter) SaveToFile(path string) error {
	return w.file.SaveAs(path)
}

// Close releases resources.
func (w *ExcelizeWriter) Close() error {
	return w.file.Close()
}
