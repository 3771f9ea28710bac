// Package ocr turns an uploaded form into text the extraction model reads.
package ocr

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupportedType is returned for files that are not PDF or JPEG/PNG.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrOCR wraps failures of the OCR backend.
	ErrOCR = errors.New("ocr failed")
)

// Document is an uploaded file.
type Document struct {
	Name     string
	MimeType string
	Data     []byte
}

// Result is the OCR output for the first page of a document.
type Result struct {
	Lines    []string
	Markdown string
}

// Engine runs OCR on a document.
type Engine interface {
	Analyze(ctx context.Context, doc Document) (*Result, error)
}

var mimeByExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// DetectMimeType picks the MIME type from the file extension and falls back
// to sniffing the content. Only PDF, JPEG and PNG are accepted.
func DetectMimeType(name string, data []byte) (string, error) {
	if mt, ok := mimeByExt[strings.ToLower(filepath.Ext(name))]; ok {
		return mt, nil
	}
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	for _, mt := range mimeByExt {
		if mt == sniffed {
			return mt, nil
		}
	}
	return "", ErrUnsupportedType
}

// Format renders a result in the layout the extraction prompt expects: the
// raw lines, a page break marker, then the markdown rendering.
func Format(r *Result) string {
	var b strings.Builder
	b.WriteString("# Text File #\n")
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("\\pagebreak\n")
	b.WriteString("# MarkDown File #\n")
	b.WriteString(r.Markdown)
	return b.String()
}
