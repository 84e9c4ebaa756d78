// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts text from PDF files page by page.
type PDF struct{}

// NewPDF creates a new PDF extractor
func NewPDF() *PDF {
	return &PDF{}
}

// Extract returns the text of every readable page joined by blank lines,
// together with the document's page count. Pages that cannot be decoded
// are skipped.
func (p *PDF) Extract(data []byte) (text string, pageCount int, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, pageCount, err = "", 0, fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	pageCount = reader.NumPage()
	var content strings.Builder
	for i := 1; i <= pageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(pageText)
	}

	return content.String(), pageCount, nil
}
