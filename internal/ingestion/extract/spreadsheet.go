package extract

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractXLSX yields one unit per sheet: the sheet name followed by every
// row's cells in row order. Empty cells are kept so columns stay aligned.
func extractXLSX(path string) ([]Unit, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("xlsx open: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	units := make([]Unit, 0, len(sheets))
	for i, sheet := range sheets {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("xlsx sheet %q: %w", sheet, err)
		}

		width := 0
		for _, row := range rows {
			if len(row) > width {
				width = len(row)
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Sheet Name: %s\nData:\n", sheet)
		for _, row := range rows {
			cells := make([]string, width)
			copy(cells, row)
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
		units = append(units, Unit{Text: b.String(), Index: i})
	}
	return units, nil
}
