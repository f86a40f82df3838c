// Package extract pulls readable text out of resume documents.
package extract

import (
	"bytes"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"

	"github.com/kailas-cloud/jobrag/internal/domain"
)

// Supported MIME types.
const (
	MIMEPlain = "text/plain"
	MIMEPDF   = "application/pdf"
	MIMEDocx  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var extensionTypes = map[string]string{
	".txt":  MIMEPlain,
	".md":   MIMEPlain,
	".pdf":  MIMEPDF,
	".docx": MIMEDocx,
}

// DetectMIME resolves the document type from the declared type, the file name and
// finally the content itself.
func DetectMIME(declared, name string, data []byte) string {
	if mt := normalizeMIME(declared); mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}
	return normalizeMIME(http.DetectContentType(data))
}

func normalizeMIME(mt string) string {
	mt, _, _ = strings.Cut(mt, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// Text extracts all readable text, pages in order, joined by newlines and trimmed.
// An empty result with a nil error means the document holds no text.
func Text(mime string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch mime {
	case MIMEPlain:
		text = string(data)
	case MIMEPDF:
		text, err = pdfText(data)
	case MIMEDocx:
		text, err = docxText(data)
	default:
		return "", fmt.Errorf("unsupported file type %q: %w", mime, domain.ErrUnreadableDocument)
	}
	if err != nil {
		return "", err
	}
	// Stored chunks go through JSON, which would rewrite invalid bytes after embedding.
	return strings.TrimSpace(strings.ToValidUTF8(text, "\uFFFD")), nil
}

func pdfText(data []byte) (text string, err error) {
	// The pdf reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser: %v: %w", r, domain.ErrUnreadableDocument)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("read pdf: %v: %w", err, domain.ErrUnreadableDocument)
	}

	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		// A page that fails to decode contributes nothing; the rest of the document still counts.
		t, perr := page.GetPlainText(nil)
		if perr != nil {
			continue
		}
		pages = append(pages, t)
	}
	return strings.Join(pages, "\n"), nil
}

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br/>|<w:tab/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

func docxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("parse docx: %v: %w", err, domain.ErrUnreadableDocument)
	}
	defer doc.Close()

	// GetContent returns the document.xml body; keep paragraph breaks, drop markup.
	content := docxParagraphEnd.ReplaceAllString(doc.Editable().GetContent(), "\n")
	content = xmlTag.ReplaceAllString(content, "")
	return html.UnescapeString(content), nil
}
