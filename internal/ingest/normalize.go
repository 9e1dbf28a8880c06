package ingest

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// NormalizeHTML runs the page through Readability to isolate the main
// article before converting to Markdown, falling back to converting the raw
// HTML when Readability finds nothing extractable. Grounded on the
// teacher's internal/tools/web.Fetcher (go-shiori/go-readability +
// JohannesKaufmann/html-to-markdown/v2 pairing).
func NormalizeHTML(html, pageURL string) (title, markdown string, err error) {
	// A nil or empty base is fine when the content has no relative links to
	// resolve, which is the common ingestion case (already-fetched text).
	base, _ := url.Parse(pageURL)
	article, rerr := readability.FromReader(strings.NewReader(html), base)
	source := html
	if rerr == nil && strings.TrimSpace(article.Content) != "" {
		source = article.Content
		title = article.Title
	}

	md, err := htmltomarkdown.ConvertString(source)
	if err != nil {
		return "", "", fmt.Errorf("ingest: convert html to markdown: %w", err)
	}
	return title, md, nil
}

// NormalizePDF extracts ordered page text, grounded on the teacher's
// PDFParser (ledongthuc/pdf, per-page text with layout-preserving extraction
// left to the page content stream's natural reading order).
func NormalizePDF(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("ingest: open pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(strings.TrimSpace(text))
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}

// NormalizeXLSX renders each sheet as a Markdown-style pipe table, grounded
// on the teacher's XLSXParser (xuri/excelize/v2, one section per sheet).
func NormalizeXLSX(r io.Reader) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", fmt.Errorf("ingest: open xlsx: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&b, "## %s\n\n", sheet)
		for _, row := range rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}
