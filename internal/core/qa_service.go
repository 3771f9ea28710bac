package core

import (
	"context"
	"strings"

	"github.com/healthdesk/benefits-assistant/internal/benefits"
	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

const (
	answerTemperature = 0
	answerMaxTokens   = 500
)

// QAService answers benefit questions for a known member.
type QAService struct {
	table *benefits.Table
	llm   llm.Client
	log   *logger.Logger
}

func NewQAService(table *benefits.Table, client llm.Client, log *logger.Logger) *QAService {
	return &QAService{table: table, llm: client, log: log}
}

// RelevantServices returns the benefit slice for the member's HMO and tier.
func (s *QAService) RelevantServices(p store.Profile) benefits.ServiceMap {
	return s.table.Select(p.HMOName, p.MembershipTier)
}

// Answer never fails: missing data and model errors become apology text.
// Without benefit data for the member no model call is made.
func (s *QAService) Answer(ctx context.Context, p store.Profile, question string) string {
	services := s.RelevantServices(p)
	if len(services) == 0 {
		s.log.Info("no benefit data for member", "hmo", p.HMOName, "tier", p.MembershipTier)
		return noDataAnswer
	}

	prompt, err := buildAnswerPrompt(p, question, services)
	if err != nil {
		s.log.Error("failed to build answer prompt", "error", err)
		return answerErrorPrefix + err.Error()
	}

	reply, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	})
	if err != nil {
		s.log.Error("answer generation failed", "error", err)
		return answerErrorPrefix + err.Error()
	}
	return strings.TrimSpace(reply)
}
