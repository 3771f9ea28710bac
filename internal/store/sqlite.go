package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS sessions (
        id TEXT PRIMARY KEY, -- UUID
        language TEXT NOT NULL,
        mode TEXT NOT NULL CHECK (mode IN ('collecting', 'answering')),
        profile_json TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS turns (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('system', 'user', 'assistant')),
        content TEXT NOT NULL,
        seq INTEGER NOT NULL,
        timestamp DATETIME NOT NULL,
        FOREIGN KEY (session_id) REFERENCES sessions (id)
    );

    CREATE INDEX IF NOT EXISTS idx_turns_session ON turns (session_id, seq);
    `
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateSession(ctx context.Context, language string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Language:  language,
		Mode:      ModeCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (id, language, mode, profile_json, created_at, updated_at) VALUES (?, ?, ?, NULL, ?, ?)",
		sess.ID, sess.Language, string(sess.Mode), sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, error) {
	var sess Session
	var mode string
	var profileJSON sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT id, language, mode, profile_json, created_at, updated_at FROM sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.Language, &mode, &profileJSON, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.Mode = Mode(mode)
	if profileJSON.Valid && profileJSON.String != "" {
		var p Profile
		if err := json.Unmarshal([]byte(profileJSON.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode stored profile: %w", err)
		}
		sess.Profile = &p
	}
	return &sess, nil
}

func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *Session) error {
	var profileJSON sql.NullString
	if sess.Profile != nil {
		b, err := json.Marshal(sess.Profile)
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		profileJSON = sql.NullString{String: string(b), Valid: true}
	}
	sess.UpdatedAt = time.Now().UTC()

	stmt, err := s.db.PrepareContext(ctx, "UPDATE sessions SET language = ?, mode = ?, profile_json = ?, updated_at = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare session update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.ExecContext(ctx, sess.Language, string(sess.Mode), profileJSON, sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("failed to execute session update: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM turns WHERE session_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrSessionNotFound
	}
	return tx.Commit()
}

func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, role, content string) (*Turn, error) {
	turn := &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}

	stmt, err := s.db.PrepareContext(ctx, `INSERT INTO turns (id, session_id, role, content, seq, timestamp)
        SELECT ?, ?, ?, ?, COALESCE(MAX(seq), 0) + 1, ? FROM turns WHERE session_id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, turn.ID, turn.SessionID, turn.Role, turn.Content, turn.Timestamp, turn.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute turn insert: %w", err)
	}
	return turn, nil
}

func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, session_id, role, content, timestamp FROM turns WHERE session_id = ? ORDER BY seq ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Role, &t.Content, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}
	return turns, nil
}
