package store

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists chat sessions and their turns.
type SessionStore interface {
	CreateSession(ctx context.Context, language string) (*Session, error)
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, s *Session) error
	DeleteSession(ctx context.Context, id string) error
	AppendTurn(ctx context.Context, sessionID, role, content string) (*Turn, error)
	ListTurns(ctx context.Context, sessionID string) ([]Turn, error)
	Close() error
}
