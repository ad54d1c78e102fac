package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DOCX and PPTX are zip containers of XML parts; both extractors walk the
// token stream instead of building a DOM, same as the rest of the pipeline
// treats documents: order in, order out.

var slideNameRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// extractPPTX yields one unit per slide. A slide's text is the newline-join
// of its shapes' text, in shape order; shape-less slides yield "".
func extractPPTX(path string) ([]Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("pptx open: %w", err)
	}
	defer zr.Close()

	type slideFile struct {
		num  int
		file *zip.File
	}
	slides := make([]slideFile, 0, 16)
	for _, f := range zr.File {
		m := slideNameRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: n, file: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	units := make([]Unit, 0, len(slides))
	for i, s := range slides {
		raw, err := readZipFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("pptx slide %d: %w", s.num, err)
		}
		shapes, err := collectGroupedText(raw, "sp", "t")
		if err != nil {
			return nil, fmt.Errorf("pptx slide %d: %w", s.num, err)
		}
		units = append(units, Unit{Text: strings.Join(shapes, "\n"), Index: i})
	}
	return units, nil
}

// extractDOCX yields one unit per paragraph, in document order. Empty
// paragraphs stay as empty-string units.
func extractDOCX(path string) ([]Unit, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("docx open: %w", err)
	}
	defer zr.Close()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, fmt.Errorf("docx missing word/document.xml")
	}

	raw, err := readZipFile(doc)
	if err != nil {
		return nil, fmt.Errorf("docx body: %w", err)
	}
	paragraphs, err := collectGroupedText(raw, "p", "t")
	if err != nil {
		return nil, fmt.Errorf("docx body: %w", err)
	}

	units := make([]Unit, 0, len(paragraphs))
	for i, p := range paragraphs {
		units = append(units, Unit{Text: p, Index: i})
	}
	return units, nil
}

// collectGroupedText walks the XML token stream and gathers the chardata of
// every <textTag> element, grouped by enclosing <groupTag> element. Runs
// inside one group are concatenated without separators, matching how Office
// splits a sentence across runs.
func collectGroupedText(raw []byte, groupTag, textTag string) ([]string, error) {
	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	groups := []string{}
	depth := 0
	var current strings.Builder

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case groupTag:
				depth++
				if depth == 1 {
					current.Reset()
				}
			case textTag:
				if depth > 0 {
					var v string
					if err := dec.DecodeElement(&v, &el); err != nil {
						return nil, err
					}
					current.WriteString(v)
				}
			}
		case xml.EndElement:
			if el.Name.Local == groupTag && depth > 0 {
				depth--
				if depth == 0 {
					groups = append(groups, current.String())
				}
			}
		}
	}
	return groups, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
