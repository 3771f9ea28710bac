package core

import (
	"context"
	"fmt"

	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/metrics"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

var collectionRequiredMessages = map[string]string{
	LanguageEnglish: "Please complete the information collection first.",
	LanguageHebrew:  "אנא השלם תחילה את איסוף הפרטים.",
}

// Reply is the outcome of one user message in a session.
type Reply struct {
	Messages []store.Turn   `json:"messages"`
	Mode     store.Mode     `json:"mode"`
	Profile  *store.Profile `json:"profile,omitempty"`
}

// ChatService keeps per-session state on the server. A session collects
// member details until the model reports them confirmed and a profile can
// be extracted, then answers benefit questions.
type ChatService struct {
	store     store.SessionStore
	collector *InfoCollector
	qa        *QAService
	log       *logger.Logger
}

func NewChatService(st store.SessionStore, collector *InfoCollector, qa *QAService, log *logger.Logger) *ChatService {
	return &ChatService{
		store:     st,
		collector: collector,
		qa:        qa,
		log:       log,
	}
}

// StartSession creates a session in the given language and stores the
// welcome message as its first turn.
func (s *ChatService) StartSession(ctx context.Context, lang string) (*store.Session, *store.Turn, error) {
	lang = NormalizeLanguage(lang)
	sess, err := s.store.CreateSession(ctx, lang)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	welcome, err := s.store.AppendTurn(ctx, sess.ID, llm.RoleAssistant, WelcomeMessage(lang))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store welcome message: %w", err)
	}
	s.log.Info("session started", "session_id", sess.ID, "language", lang)
	return sess, welcome, nil
}

func (s *ChatService) GetSession(ctx context.Context, id string) (*store.Session, []store.Turn, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	turns, err := s.store.ListTurns(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get turns for session: %w", err)
	}
	return sess, turns, nil
}

// ResetSession drops the session and everything collected in it. Picking a
// new language starts over with a fresh session.
func (s *ChatService) ResetSession(ctx context.Context, id string) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.log.Info("session reset", "session_id", id)
	return nil
}

func (s *ChatService) PostMessage(ctx context.Context, id, content string) (*Reply, error) {
	sess, turns, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	history := toMessages(turns)

	if _, err := s.store.AppendTurn(ctx, id, llm.RoleUser, content); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	reply := &Reply{Mode: sess.Mode}
	switch sess.Mode {
	case store.ModeAnswering:
		answer := collectionRequiredMessages[NormalizeLanguage(sess.Language)]
		if sess.Profile != nil {
			answer = s.qa.Answer(ctx, *sess.Profile, content)
		}
		if err := s.appendReply(ctx, reply, id, answer); err != nil {
			return nil, err
		}
		reply.Profile = sess.Profile
		return reply, nil

	default:
		res := s.collector.Advance(ctx, history, content, sess.Language)
		if err := s.appendReply(ctx, reply, id, res.Content); err != nil {
			return nil, err
		}
		if !res.IsValidated {
			return reply, nil
		}

		full := append(history,
			llm.Message{Role: llm.RoleUser, Content: content},
			llm.Message{Role: llm.RoleAssistant, Content: res.Content},
		)
		profile, ok := s.collector.Extract(ctx, full, sess.Language)
		if !ok {
			metrics.ExtractionFailures.Inc()
			s.log.Warn("confirmation seen but profile extraction failed, staying in collection",
				"session_id", id)
			return reply, nil
		}

		sess.Mode = store.ModeAnswering
		sess.Profile = &profile
		if err := s.store.UpdateSession(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
		if err := s.appendReply(ctx, reply, id, ConfirmedMessage(sess.Language)); err != nil {
			return nil, err
		}
		reply.Mode = store.ModeAnswering
		reply.Profile = sess.Profile
		s.log.Info("profile confirmed", "session_id", id, "hmo", profile.HMOName, "tier", profile.MembershipTier)
		return reply, nil
	}
}

func (s *ChatService) appendReply(ctx context.Context, reply *Reply, sessionID, content string) error {
	turn, err := s.store.AppendTurn(ctx, sessionID, llm.RoleAssistant, content)
	if err != nil {
		return fmt.Errorf("failed to store assistant message: %w", err)
	}
	reply.Messages = append(reply.Messages, *turn)
	return nil
}

func toMessages(turns []store.Turn) []llm.Message {
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
