package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/healthdesk/benefits-assistant/internal/auth"
	"github.com/healthdesk/benefits-assistant/internal/core"
	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
	collector   *core.InfoCollector
	qa          *core.QAService
	tokens      *auth.TokenIssuer
	log         *logger.Logger
}

func NewAPIHandler(cs *core.ChatService, collector *core.InfoCollector, qa *core.QAService, tokens *auth.TokenIssuer, log *logger.Logger) *APIHandler {
	return &APIHandler{
		chatService: cs,
		collector:   collector,
		qa:          qa,
		tokens:      tokens,
		log:         log,
	}
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Medical Services Chatbot API is running"})
}

func (h *APIHandler) WelcomeMessageHandler(w http.ResponseWriter, r *http.Request) {
	lang := chi.URLParam(r, "language")
	writeJSON(w, http.StatusOK, map[string]string{"message": core.WelcomeMessage(lang)})
}

type ProcessInputRequest struct {
	UserInput   string        `json:"user_input"`
	ChatHistory []llm.Message `json:"chat_history"`
	Language    string        `json:"language"`
}

func (h *APIHandler) ProcessInputHandler(w http.ResponseWriter, r *http.Request) {
	var req ProcessInputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.collector.Advance(r.Context(), req.ChatHistory, req.UserInput, req.Language))
}

type ExtractUserInfoRequest struct {
	ChatHistory []llm.Message `json:"chat_history"`
	Language    string        `json:"language"`
}

func (h *APIHandler) ExtractUserInfoHandler(w http.ResponseWriter, r *http.Request) {
	var req ExtractUserInfoRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	profile, ok := h.collector.Extract(r.Context(), req.ChatHistory, req.Language)
	if !ok {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type GetAnswerRequest struct {
	UserInfo store.Profile `json:"user_info"`
	Question string        `json:"question"`
}

func (h *APIHandler) GetAnswerHandler(w http.ResponseWriter, r *http.Request) {
	var req GetAnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	answer := h.qa.Answer(r.Context(), req.UserInfo, req.Question)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

type CreateSessionRequest struct {
	Language string `json:"language"`
}

type CreateSessionResponse struct {
	SessionID string     `json:"session_id"`
	Token     string     `json:"token"`
	Language  string     `json:"language"`
	Mode      store.Mode `json:"mode"`
	Message   string     `json:"message"`
}

func (h *APIHandler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	sess, welcome, err := h.chatService.StartSession(r.Context(), req.Language)
	if err != nil {
		h.log.Error("failed to start session", "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating session: "+err.Error())
		return
	}
	token, err := h.tokens.Generate(sess.ID)
	if err != nil {
		h.log.Error("failed to sign session token", "session_id", sess.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Error creating session: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: sess.ID,
		Token:     token,
		Language:  sess.Language,
		Mode:      sess.Mode,
		Message:   welcome.Content,
	})
}

type SessionDetailsResponse struct {
	Session *store.Session `json:"session"`
	Turns   []store.Turn   `json:"turns"`
}

func (h *APIHandler) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, turns, err := h.chatService.GetSession(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if turns == nil {
		turns = []store.Turn{}
	}
	writeJSON(w, http.StatusOK, SessionDetailsResponse{Session: sess, Turns: turns})
}

type PostMessageRequest struct {
	Content string `json:"content"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req PostMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Message content cannot be empty")
		return
	}

	reply, err := h.chatService.PostMessage(r.Context(), SessionIDFromContext(r.Context()), req.Content)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *APIHandler) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.ResetSession(r.Context(), SessionIDFromContext(r.Context())); err != nil {
		h.sessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) sessionError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	h.log.Error("session request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}
