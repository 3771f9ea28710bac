package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/xeipuuv/gojsonschema"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
)

const (
	DefaultTimeout = 30 * time.Second

	convertTemperature = 0
	convertMaxTokens   = 2048
)

const systemPrompt = `You are an expert document extraction system for National Insurance Institute (ביטוח לאומי) work-injury forms.
Extract the fields below from the OCR output and return them in the JSON layout given.
The OCR output has two parts: the raw text lines, then a markdown rendering after "\pagebreak" in which checkboxes appear as ☒ (marked) and ☐ (unmarked).
Dates in the form are written as DDMMYYYY under the labels "שנה חודש יום"; split them into day, month and year.
If you are not sure about a value leave it empty. Never guess.

Example input (abridged):
# Text File #
תאריך מילוי הטופס
14032024
שם משפחה
שם פרטי
ת. ז.
אברהם
לוי
034567891
טלפון נייד
6521234567
סוג העבודה
נהג משאית
\pagebreak
# MarkDown File #
☒ זכר
☐ נקבה
☒ ת. דרכים בעבודה
☐ במפעל
☒ מכבי

Example output (abridged):
{"lastName": "לוי", "firstName": "אברהם", "idNumber": "034567891", "gender": "זכר",
 "mobilePhone": "0521234567", "jobType": "נהג משאית", "accidentLocation": "ת. דרכים בעבודה",
 "formFillingDate": {"day": "14", "month": "03", "year": "2024"},
 "medicalInstitutionFields": {"healthFundMember": "מכבי", "natureOfAccident": "", "medicalDiagnoses": ""}}
`

// Converter turns OCR text into a Document with one model call.
type Converter struct {
	llm     llm.Client
	log     *logger.Logger
	timeout time.Duration
	schema  *gojsonschema.Schema
	prompt  string
}

func NewConverter(client llm.Client, timeout time.Duration, log *logger.Logger) (*Converter, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(validationSchema(documentFields)))
	if err != nil {
		return nil, fmt.Errorf("failed to compile document schema: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Converter{
		llm:     client,
		log:     log,
		timeout: timeout,
		schema:  schema,
		prompt:  systemPrompt + "\n" + formatInstructions(documentFields),
	}, nil
}

// Convert extracts a Document from ocrText. Failures are *ExtractionError.
func (c *Converter) Convert(ctx context.Context, ocrText string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	reply, err := c.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: c.prompt},
			{Role: llm.RoleUser, Content: ocrText},
		},
		Temperature: convertTemperature,
		MaxTokens:   convertMaxTokens,
		JSON:        true,
		Schema:      responseSchema(documentFields),
	})
	if err != nil {
		msg := "model call failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("model call timed out after %s", c.timeout)
		}
		c.log.Error("form conversion failed", "error", err)
		return nil, newError(ErrModelUnavailable, msg, err)
	}

	doc, err := c.decode(reply)
	if err != nil {
		c.log.Warn("form conversion rejected", "error", err)
		return nil, err
	}
	c.log.Info("form converted", "duration", time.Since(start))
	return doc, nil
}

func (c *Converter) decode(reply string) (*Document, error) {
	dec := json.NewDecoder(strings.NewReader(llm.StripCodeFence(reply)))
	dec.UseNumber()
	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil {
		return nil, newError(ErrInvalidResponse, "reply is not a JSON object", err)
	}
	normalize(obj, documentFields)

	result, err := c.schema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil {
		return nil, newError(ErrInvalidResponse, "reply could not be validated", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, newError(ErrSchemaViolation, strings.Join(problems, "; "), nil)
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, newError(ErrInvalidResponse, "re-encode reply", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, newError(ErrInvalidResponse, "decode document", err)
	}

	if doc.IDNumber != "" && !allDigits(doc.IDNumber) {
		return nil, newError(ErrInvalidIDNumber, "idNumber must contain only digits", nil)
	}
	return &doc, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
