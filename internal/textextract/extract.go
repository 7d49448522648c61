// Package textextract pulls plain text out of uploaded contract files.
package textextract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// SupportedExtensions lists the upload formats ingestion accepts.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// Extract reads filePath and returns its text content, dispatching on the
// file extension. Unknown extensions are read as plain text.
func Extract(filePath string) (string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return extractPDF(filePath)
	case ".html", ".htm":
		return extractHTML(filePath)
	default:
		return extractPlain(filePath)
	}
}

func extractPlain(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

func extractPDF(filePath string) (string, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single unreadable page should not sink the document
			continue
		}
		if text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n"), nil
}

func extractHTML(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open html: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	var b strings.Builder
	doc.Find("p, h1, h2, h3, h4, h5, h6, li, td, div").Each(func(_ int, s *goquery.Selection) {
		// only take leaf-ish nodes to avoid duplicating nested text
		if s.Children().Length() > 0 && !s.Is("p, li, td, h1, h2, h3, h4, h5, h6") {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})

	if b.Len() == 0 {
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.TrimSpace(b.String()), nil
}
