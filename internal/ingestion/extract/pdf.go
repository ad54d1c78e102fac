package extract

import (
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// extractPDF yields one unit per page, in page order.
func extractPDF(path string) ([]Unit, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdf open: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	units := make([]Unit, 0, total)
	for i := 1; i <= total; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			units = append(units, Unit{Text: "", Index: i - 1})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the document.
			text = ""
		}
		units = append(units, Unit{Text: text, Index: i - 1})
	}
	return units, nil
}
