// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/solenko/tutord/internal/domain"
)

// PDFText extracts the concatenated plain text of every page in the PDF.
// A document whose pages yield no text (scanned images, empty files) is an
// empty-document failure, not a success with an empty string.
func PDFText(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", domain.Wrap(domain.CodeEmptyDocument, "file is not a readable PDF", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not sink the document.
			continue
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}

	out := sb.String()
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("%w: no text on any page", domain.ErrEmptyDocument)
	}
	return out, nil
}
