package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix    = "medchat:session:"
	maxUpdateAttempts = 3
)

// RedisStore keeps sessions in Redis so several API replicas can share them.
// A session is a hash plus a list of JSON-encoded turns, both expiring after
// ttl of inactivity.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, opts *redis.Options, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func sessionKey(id string) string { return redisKeyPrefix + id }
func turnsKey(id string) string   { return redisKeyPrefix + id + ":turns" }

func (s *RedisStore) CreateSession(ctx context.Context, language string) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Language:  language,
		Mode:      ModeCollecting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) write(ctx context.Context, sess *Session) error {
	fields, err := sessionFields(sess)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(sess.ID), fields)
	s.touch(ctx, pipe, sess.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func sessionFields(sess *Session) (map[string]interface{}, error) {
	fields := map[string]interface{}{
		"language":   sess.Language,
		"mode":       string(sess.Mode),
		"profile":    "",
		"created_at": sess.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": sess.UpdatedAt.Format(time.RFC3339Nano),
	}
	if sess.Profile != nil {
		b, err := json.Marshal(sess.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to encode profile: %w", err)
		}
		fields["profile"] = string(b)
	}
	return fields, nil
}

func (s *RedisStore) touch(ctx context.Context, pipe redis.Pipeliner, id string) {
	if s.ttl <= 0 {
		return
	}
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	pipe.Expire(ctx, turnsKey(id), s.ttl)
}

func (s *RedisStore) GetSession(ctx context.Context, id string) (*Session, error) {
	vals, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(vals) == 0 {
		return nil, ErrSessionNotFound
	}

	sess := &Session{
		ID:       id,
		Language: vals["language"],
		Mode:     Mode(vals["mode"]),
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, vals["created_at"])
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, vals["updated_at"])
	if raw := vals["profile"]; raw != "" {
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to decode stored profile: %w", err)
		}
		sess.Profile = &p
	}
	return sess, nil
}

// UpdateSession overwrites an existing session. The existence check and the
// write run under WATCH, so a concurrent delete is never undone.
func (s *RedisStore) UpdateSession(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.ID)
	update := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if n == 0 {
			return ErrSessionNotFound
		}
		sess.UpdatedAt = time.Now().UTC()
		fields, err := sessionFields(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fields)
			s.touch(ctx, pipe, sess.ID)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, update, key)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		case errors.Is(err, ErrSessionNotFound):
			return ErrSessionNotFound
		default:
			return fmt.Errorf("failed to execute session update: %w", err)
		}
	}
	return fmt.Errorf("failed to execute session update: %w", redis.TxFailedErr)
}

func (s *RedisStore) DeleteSession(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, sessionKey(id), turnsKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) AppendTurn(ctx context.Context, sessionID, role, content string) (*Turn, error) {
	turn := &Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	b, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("failed to encode turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, turnsKey(sessionID), b)
	s.touch(ctx, pipe, sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to execute turn insert: %w", err)
	}
	return turn, nil
}

func (s *RedisStore) ListTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	raw, err := s.client.LRange(ctx, turnsKey(sessionID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("failed to decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
