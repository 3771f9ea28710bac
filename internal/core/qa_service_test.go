package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/healthdesk/benefits-assistant/internal/benefits"
	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/llm/llmtest"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

func testTable() *benefits.Table {
	return benefits.NewTable(map[string]map[string]benefits.ServiceMap{
		"מכבי": {
			"זהב": {"בדיקת ראייה": "חינם", "טיפולי שורש": "50% הנחה <עד 3>"},
		},
	})
}

func intPtr(n int) *int { return &n }

func testProfile() store.Profile {
	return store.Profile{
		FirstName:      "Dana",
		LastName:       "Levi",
		IDNumber:       "123456789",
		Gender:         "Female",
		Age:            intPtr(34),
		HMOName:        "Maccabi",
		HMOCardNumber:  "987654321",
		MembershipTier: "Gold",
	}
}

func TestAnswerUsesBenefitSlice(t *testing.T) {
	client := new(llmtest.MockClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		if len(req.Messages) != 2 || req.Temperature != 0 || req.MaxTokens != 500 || req.JSON {
			return false
		}
		prompt := req.Messages[1].Content
		return req.Messages[0].Role == llm.RoleSystem &&
			strings.Contains(prompt, "- Name: Dana Levi") &&
			strings.Contains(prompt, `"בדיקת ראייה": "חינם"`) &&
			strings.Contains(prompt, "<עד 3>") &&
			strings.Contains(prompt, "User Question: Is an eye exam covered?") &&
			strings.HasSuffix(prompt, "Answer:")
	})).Return("  Yes, it is free.  ", nil).Once()

	qa := NewQAService(testTable(), client, logger.NewTest(t))
	got := qa.Answer(context.Background(), testProfile(), "Is an eye exam covered?")

	assert.Equal(t, "Yes, it is free.", got)
	client.AssertExpectations(t)
}

func TestAnswerWithoutDataSkipsModel(t *testing.T) {
	client := new(llmtest.MockClient)
	qa := NewQAService(testTable(), client, logger.Nop())

	p := testProfile()
	p.MembershipTier = "Bronze"
	got := qa.Answer(context.Background(), p, "anything")

	assert.Equal(t, noDataAnswer, got)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestAnswerModelError(t *testing.T) {
	client := new(llmtest.MockClient)
	client.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	qa := NewQAService(testTable(), client, logger.Nop())
	got := qa.Answer(context.Background(), testProfile(), "q")

	assert.Equal(t, answerErrorPrefix+"quota exceeded", got)
}

func TestRelevantServices(t *testing.T) {
	qa := NewQAService(testTable(), nil, logger.Nop())
	assert.Len(t, qa.RelevantServices(testProfile()), 2)

	p := testProfile()
	p.HMOName = "כללית"
	assert.Empty(t, qa.RelevantServices(p))
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, LanguageHebrew, NormalizeLanguage(" Hebrew "))
	assert.Equal(t, LanguageHebrew, NormalizeLanguage("he"))
	assert.Equal(t, LanguageEnglish, NormalizeLanguage("french"))
	assert.Equal(t, LanguageEnglish, NormalizeLanguage(""))

	assert.Equal(t, WelcomeMessage("english"), WelcomeMessage("klingon"))
	assert.True(t, strings.HasSuffix(WelcomeMessage("english"), "What's your first name?"))
	assert.Contains(t, CollectionPrompt("hebrew"), ConfirmationPhrase("hebrew"))
	assert.Contains(t, CollectionPrompt("english"), ConfirmationPhrase("english"))
}
