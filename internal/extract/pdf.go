// Package extract pulls plain text out of PDF documents.
package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/cloo-solutions/pdfrag/internal/domain"
)

// PageSeparator joins the text of consecutive pages.
const PageSeparator = "\n\n"

// PDFFile reads the PDF at path and returns its text along with the raw bytes.
func PDFFile(path string) (string, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("read %s: %w", path, err)
	}
	text, err := PDFText(data)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", path, err)
	}
	return text, data, nil
}

// PDFText returns the plain text of every non-blank page, joined by blank lines.
func PDFText(data []byte) (string, error) {
	pages, err := pageTexts(data)
	if err != nil {
		return "", err
	}
	return JoinPages(pages), nil
}

// JoinPages drops whitespace-only pages and joins the rest with PageSeparator.
func JoinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, PageSeparator)
}

func pageTexts(data []byte) (pages []string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = invalidPDF(fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, invalidPDF(err)
	}

	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, invalidPDF(fmt.Errorf("page %d: %w", i, err))
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func invalidPDF(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "document is not a readable PDF", err)
}
