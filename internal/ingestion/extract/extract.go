package extract

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/mentorium/backend/internal/platform/apierr"
)

// DocumentType is computed once from the file extension; every later
// decision dispatches on it instead of re-checking string suffixes.
type DocumentType int

const (
	TypeUnsupported DocumentType = iota
	TypePdf
	TypeSlideDeck
	TypeWordDoc
	TypeSpreadsheet
)

func (t DocumentType) String() string {
	switch t {
	case TypePdf:
		return "pdf"
	case TypeSlideDeck:
		return "slide_deck"
	case TypeWordDoc:
		return "word_doc"
	case TypeSpreadsheet:
		return "spreadsheet"
	default:
		return "unsupported"
	}
}

func DetectDocumentType(filename string) DocumentType {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return TypePdf
	case ".pptx":
		return TypeSlideDeck
	case ".docx":
		return TypeWordDoc
	case ".xlsx":
		return TypeSpreadsheet
	default:
		return TypeUnsupported
	}
}

// Unit is one extracted text unit: a page, slide, paragraph or sheet.
// Empty units are kept so unit indexes stay aligned with the source.
type Unit struct {
	Text  string
	Index int
}

// Extract converts a staged file into ordered text units.
func Extract(path string, docType DocumentType) ([]Unit, error) {
	switch docType {
	case TypePdf:
		return extractPDF(path)
	case TypeSlideDeck:
		return extractPPTX(path)
	case TypeWordDoc:
		return extractDOCX(path)
	case TypeSpreadsheet:
		return extractXLSX(path)
	default:
		return nil, apierr.New(http.StatusUnsupportedMediaType, apierr.CodeUnsupportedFormat,
			fmt.Errorf("unsupported document type for %s", filepath.Base(path)))
	}
}
