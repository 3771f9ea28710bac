package core

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/llm/llmtest"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

func newChatService(t *testing.T, client llm.Client) (*ChatService, store.SessionStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	log := logger.NewTest(t)
	collector, err := NewInfoCollector(client, log)
	require.NoError(t, err)
	return NewChatService(st, collector, NewQAService(testTable(), client, log), log), st
}

func isExtraction(req llm.Request) bool { return req.JSON }

func TestChatSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	client := new(llmtest.MockClient)
	svc, _ := newChatService(t, client)

	sess, welcome, err := svc.StartSession(ctx, "english")
	require.NoError(t, err)
	assert.Equal(t, WelcomeMessage("english"), welcome.Content)
	assert.Equal(t, store.ModeCollecting, sess.Mode)

	// Ordinary collection turn: history holds the welcome only, the new user
	// turn is passed separately and not duplicated.
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return !req.JSON && len(req.Messages) == 3 && req.Messages[2].Content == "Dana"
	})).Return("What's your last name?", nil).Once()

	reply, err := svc.PostMessage(ctx, sess.ID, "Dana")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Equal(t, "What's your last name?", reply.Messages[0].Content)
	assert.Equal(t, store.ModeCollecting, reply.Mode)

	// Confirmation plus a successful extraction moves the session on.
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return !req.JSON && len(req.Messages) == 5
	})).Return("Thank you for confirming all the details collected successfully.", nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		// system + welcome + 2 earlier turns + user + confirmation + request
		return isExtraction(req) && len(req.Messages) == 7
	})).Return(fullProfileJSON, nil).Once()

	reply, err = svc.PostMessage(ctx, sess.ID, "Yes, all correct")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 2)
	assert.Equal(t, ConfirmedMessage("english"), reply.Messages[1].Content)
	assert.Equal(t, store.ModeAnswering, reply.Mode)
	require.NotNil(t, reply.Profile)
	assert.Equal(t, "Maccabi", reply.Profile.HMOName)

	// Answering mode goes through the QA service.
	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.MaxTokens == answerMaxTokens
	})).Return("Eye exams are free for you.", nil).Once()

	reply, err = svc.PostMessage(ctx, sess.ID, "Is an eye exam covered?")
	require.NoError(t, err)
	assert.Equal(t, "Eye exams are free for you.", reply.Messages[0].Content)

	got, turns, err := svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModeAnswering, got.Mode)
	assert.Len(t, turns, 8)

	require.NoError(t, svc.ResetSession(ctx, sess.ID))
	_, _, err = svc.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
	client.AssertExpectations(t)
}

func TestChatConfirmationWithoutProfileStaysCollecting(t *testing.T) {
	ctx := context.Background()
	client := new(llmtest.MockClient)
	svc, st := newChatService(t, client)

	sess, _, err := svc.StartSession(ctx, "hebrew")
	require.NoError(t, err)

	client.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool { return !req.JSON })).
		Return("כל הפרטים נרשמו בהצלחה!", nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(isExtraction)).
		Return(`{"first_name": "דנה"}`, nil).Once()

	reply, err := svc.PostMessage(ctx, sess.ID, "כן")
	require.NoError(t, err)
	assert.Equal(t, store.ModeCollecting, reply.Mode)
	assert.Nil(t, reply.Profile)
	assert.Len(t, reply.Messages, 1)

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ModeCollecting, got.Mode)
	assert.Nil(t, got.Profile)
}

func TestChatAnsweringWithoutProfile(t *testing.T) {
	ctx := context.Background()
	client := new(llmtest.MockClient)
	svc, st := newChatService(t, client)

	sess, _, err := svc.StartSession(ctx, "english")
	require.NoError(t, err)
	sess.Mode = store.ModeAnswering
	require.NoError(t, st.UpdateSession(ctx, sess))

	reply, err := svc.PostMessage(ctx, sess.ID, "question")
	require.NoError(t, err)
	assert.Equal(t, "Please complete the information collection first.", reply.Messages[0].Content)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestChatUnknownSession(t *testing.T) {
	svc, _ := newChatService(t, new(llmtest.MockClient))
	_, err := svc.PostMessage(context.Background(), "missing", "hi")
	assert.True(t, errors.Is(err, store.ErrSessionNotFound))
}
