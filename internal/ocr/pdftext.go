package ocr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFText reads the embedded text layer of digital PDFs. It does no real
// OCR, so scanned forms and images are rejected.
type PDFText struct{}

func (PDFText) Analyze(ctx context.Context, doc Document) (res *Result, err error) {
	if doc.MimeType != "application/pdf" {
		return nil, fmt.Errorf("%w: %s needs an OCR provider", ErrUnsupportedType, doc.MimeType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: malformed PDF: %v", ErrOCR, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, fmt.Errorf("%w: open PDF reader: %v", ErrOCR, err)
	}
	if reader.NumPage() < 1 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrOCR)
	}

	rows, err := reader.Page(1).GetTextByRow()
	if err != nil {
		return nil, fmt.Errorf("%w: extract text: %v", ErrOCR, err)
	}

	out := &Result{}
	for _, row := range rows {
		var b strings.Builder
		for _, word := range row.Content {
			b.WriteString(word.S)
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			out.Lines = append(out.Lines, line)
		}
	}
	if len(out.Lines) == 0 {
		return nil, fmt.Errorf("%w: PDF has no text layer", ErrOCR)
	}
	out.Markdown = strings.Join(out.Lines, "\n\n")
	return out, nil
}
