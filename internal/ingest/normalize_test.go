package ingest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNormalizeHTMLConvertsToMarkdown(t *testing.T) {
	title, markdown, err := NormalizeHTML(`<html><head><title>Memo</title></head><body><p>Hello world</p></body></html>`, "")
	require.NoError(t, err)
	assert.Contains(t, markdown, "Hello world")
	_ = title
}

func TestNormalizeXLSXRendersSheetsAsTables(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Role"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Alice"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "Engineer"))

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	out, err := NormalizeXLSX(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Contains(t, out, "Sheet1")
	assert.Contains(t, out, "| Alice | Engineer |")
}

func TestNormalizeDispatchesByContentType(t *testing.T) {
	in := DocumentInput{ContentType: ContentHTML, RawContent: []byte(`<p>body text</p>`)}
	require.NoError(t, normalize(&in))
	assert.Contains(t, in.ContentText, "body text")
}

func TestNormalizeLeavesPlainTextUntouched(t *testing.T) {
	in := DocumentInput{ContentType: ContentText, ContentText: "already text"}
	require.NoError(t, normalize(&in))
	assert.Equal(t, "already text", in.ContentText)
}

func TestNormalizeRejectsUnknownContentType(t *testing.T) {
	in := DocumentInput{ContentType: "json"}
	assert.Error(t, normalize(&in))
}
