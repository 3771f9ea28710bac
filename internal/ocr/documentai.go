package ocr

import (
	"context"
	"fmt"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"github.com/healthdesk/benefits-assistant/internal/logger"
)

const (
	checkedBox   = "☒"
	uncheckedBox = "☐"
)

// DocumentAI runs OCR through a Google Document AI form processor.
type DocumentAI struct {
	client    *documentai.DocumentProcessorClient
	processor string
	log       *logger.Logger
}

func NewDocumentAI(ctx context.Context, projectID, location, processorID string, log *logger.Logger, opts ...option.ClientOption) (*DocumentAI, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	opts = append([]option.ClientOption{option.WithEndpoint(endpoint)}, opts...)
	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}
	log.Info("Document AI initialized", "endpoint", endpoint)
	return &DocumentAI{
		client:    client,
		processor: fmt.Sprintf("projects/%s/locations/%s/processors/%s", projectID, location, processorID),
		log:       log,
	}, nil
}

func (d *DocumentAI) Close() error {
	return d.client.Close()
}

// Analyze processes only the first page of the document.
func (d *DocumentAI) Analyze(ctx context.Context, doc Document) (*Result, error) {
	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: doc.MimeType,
			},
		},
		ProcessOptions: &documentaipb.ProcessOptions{
			PageRange: &documentaipb.ProcessOptions_FromStart{FromStart: 1},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: documentai ProcessDocument: %v", ErrOCR, err)
	}
	if resp == nil || resp.Document == nil {
		return nil, fmt.Errorf("%w: empty document in response", ErrOCR)
	}
	result := buildResult(resp.Document)
	d.log.Debug("document analyzed", "name", doc.Name, "lines", len(result.Lines))
	return result, nil
}

func buildResult(doc *documentaipb.Document) *Result {
	text := []rune(doc.Text)
	out := &Result{}
	if len(doc.Pages) == 0 {
		for _, line := range strings.Split(doc.Text, "\n") {
			if l := strings.TrimSpace(line); l != "" {
				out.Lines = append(out.Lines, l)
			}
		}
		out.Markdown = strings.Join(out.Lines, "\n\n")
		return out
	}
	page := doc.Pages[0]

	for _, line := range page.Lines {
		if line == nil || line.Layout == nil {
			continue
		}
		if t := strings.TrimSpace(textFromAnchor(text, line.Layout.TextAnchor)); t != "" {
			out.Lines = append(out.Lines, t)
		}
	}

	var md strings.Builder
	for _, para := range page.Paragraphs {
		if para == nil || para.Layout == nil {
			continue
		}
		if t := strings.TrimSpace(textFromAnchor(text, para.Layout.TextAnchor)); t != "" {
			md.WriteString(t)
			md.WriteString("\n\n")
		}
	}
	for _, table := range page.Tables {
		if t := tableToMarkdown(text, table); t != "" {
			md.WriteString(t)
			md.WriteString("\n")
		}
	}
	for _, ff := range page.FormFields {
		if line := formFieldLine(text, ff); line != "" {
			md.WriteString(line)
			md.WriteString("\n")
		}
	}
	out.Markdown = strings.TrimSpace(md.String())
	return out
}

func formFieldLine(text []rune, ff *documentaipb.Document_Page_FormField) string {
	if ff == nil {
		return ""
	}
	var name, value string
	if ff.FieldName != nil {
		name = cleanText(textFromAnchor(text, ff.FieldName.TextAnchor))
	}
	switch ff.ValueType {
	case "filled_checkbox":
		value = checkedBox
	case "unfilled_checkbox":
		value = uncheckedBox
	default:
		if ff.FieldValue != nil {
			value = cleanText(textFromAnchor(text, ff.FieldValue.TextAnchor))
		}
	}
	if name == "" && value == "" {
		return ""
	}
	if value == checkedBox || value == uncheckedBox {
		return fmt.Sprintf("%s %s", value, name)
	}
	return fmt.Sprintf("%s: %s", name, value)
}

// textFromAnchor slices the document text. Offsets count code points.
func textFromAnchor(text []rune, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(text) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start, end := int(seg.StartIndex), int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(text) {
			end = len(text)
		}
		if start >= end {
			continue
		}
		b.WriteString(string(text[start:end]))
	}
	return b.String()
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func tableToMarkdown(text []rune, t *documentaipb.Document_Page_Table) string {
	if t == nil {
		return ""
	}
	var rows [][]string
	for _, r := range t.HeaderRows {
		rows = append(rows, rowCells(text, r))
	}
	headerRows := len(rows)
	for _, r := range t.BodyRows {
		rows = append(rows, rowCells(text, r))
	}
	if len(rows) == 0 {
		return ""
	}
	if headerRows == 0 {
		headerRows = 1
	}

	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	if cols == 0 {
		return ""
	}

	var b strings.Builder
	for i, r := range rows {
		for len(r) < cols {
			r = append(r, "")
		}
		b.WriteString("| ")
		b.WriteString(strings.Join(r, " | "))
		b.WriteString(" |\n")
		if i == headerRows-1 {
			b.WriteString("|")
			b.WriteString(strings.Repeat(" --- |", cols))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func rowCells(text []rune, r *documentaipb.Document_Page_Table_TableRow) []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.Cells))
	for _, c := range r.Cells {
		if c == nil || c.Layout == nil {
			out = append(out, "")
			continue
		}
		out = append(out, strings.ReplaceAll(cleanText(textFromAnchor(text, c.Layout.TextAnchor)), "|", "\\|"))
	}
	return out
}
