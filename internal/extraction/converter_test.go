package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/llm/llmtest"
	"github.com/healthdesk/benefits-assistant/internal/logger"
)

const modelReply = "```json\n" + `{
  "lastName": " כהן ", "firstName": "דנה", "idNumber": 123456782, "gender": "נקבה",
  "dateOfBirth": {"day": "02", "month": "02", "year": "1995"},
  "address": {"street": "הרמבם", "houseNumber": "16", "entrance": null, "apartment": "12",
    "city": "אבן יהודה", "postalCode": "312422", "poBox": ""},
  "landlinePhone": null, "mobilePhone": "0502474947", "jobType": "מלצרות",
  "dateOfInjury": {"day": "16", "month": "04", "year": "2022"}, "timeOfInjury": "19:00",
  "accidentLocation": "תאונה בדרך ללא רכב", "accidentAddress": "הורדים 8, תל אביב",
  "accidentDescription": "החלקתי על רצפה רטובה", "injuredBodyPart": "יד שמאל", "signature": "",
  "formFillingDate": {"day": "25", "month": "01", "year": "2023"},
  "formReceiptDateAtClinic": null,
  "medicalInstitutionFields": {"healthFundMember": "מאוחדת", "natureOfAccident": "", "medicalDiagnoses": ""}
}` + "\n```"

func newConverter(t *testing.T, client llm.Client) *Converter {
	t.Helper()
	c, err := NewConverter(client, time.Second, logger.NewTest(t))
	require.NoError(t, err)
	return c
}

func TestConvert(t *testing.T) {
	client := new(llmtest.MockClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == llm.RoleSystem &&
			strings.Contains(req.Messages[0].Content, "- address.postalCode: Postal code") &&
			req.Messages[1].Content == "# Text File #\nכהן" &&
			req.JSON && req.Schema != nil && req.Temperature == 0
	})).Return(modelReply, nil)

	doc, err := newConverter(t, client).Convert(context.Background(), "# Text File #\nכהן")
	require.NoError(t, err)
	assert.Equal(t, "כהן", doc.LastName)
	assert.Equal(t, "123456782", doc.IDNumber)
	assert.Equal(t, "", doc.Address.Entrance)
	assert.Equal(t, "", doc.LandlinePhone)
	assert.Equal(t, DateData{}, doc.FormReceiptDateAtClinic)
	assert.Equal(t, "מאוחדת", doc.MedicalInstitutionFields.HealthFundMember)
	client.AssertExpectations(t)
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		code  ErrorCode
	}{
		{name: "model failure", err: errors.New("quota exceeded"), code: ErrModelUnavailable},
		{name: "timeout", err: context.DeadlineExceeded, code: ErrModelUnavailable},
		{name: "not json", reply: "I could not read the form", code: ErrInvalidResponse},
		{name: "missing key", reply: `{"lastName": "כהן"}`, code: ErrSchemaViolation},
		{name: "bad id", reply: strings.Replace(modelReply, "123456782", `"12345678X"`, 1), code: ErrInvalidIDNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(llmtest.MockClient)
			client.On("Complete", mock.Anything, mock.Anything).Return(tt.reply, tt.err)

			doc, err := newConverter(t, client).Convert(context.Background(), "text")
			assert.Nil(t, doc)
			var extractionErr *ExtractionError
			require.ErrorAs(t, err, &extractionErr)
			assert.Equal(t, tt.code, extractionErr.Code)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestFieldTableMatchesDocument(t *testing.T) {
	b, err := json.Marshal(Document{})
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &doc))
	assert.Equal(t, emptyObject(documentFields), doc)
}

func TestResponseSchema(t *testing.T) {
	s := responseSchema(documentFields)
	assert.Equal(t, genai.TypeObject, s.Type)
	assert.Len(t, s.Required, len(documentFields))
	assert.Equal(t, genai.TypeString, s.Properties["idNumber"].Type)

	addr := s.Properties["address"]
	require.NotNil(t, addr)
	assert.Equal(t, genai.TypeObject, addr.Type)
	assert.Contains(t, addr.Required, "poBox")
}

func TestFormatInstructions(t *testing.T) {
	got := formatInstructions(documentFields)
	assert.Contains(t, got, "- mobilePhone: ")
	assert.Contains(t, got, "- medicalInstitutionFields.healthFundMember: ")
	assert.Contains(t, got, "'תאונה בדרך ללא רכב'")
	assert.Contains(t, got, `"day": ""`)
}

func TestDocumentEncode(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&Document{LastName: "כהן", AccidentAddress: "<רחוב>"}).Encode(&buf))
	assert.Contains(t, buf.String(), `  "lastName": "כהן",`)
	assert.Contains(t, buf.String(), `"accidentAddress": "<רחוב>"`)
}
