package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func newSQLite(t *testing.T) SessionStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newRedis(t *testing.T) SessionStore {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionStores(t *testing.T) {
	backends := map[string]func(*testing.T) SessionStore{
		"sqlite": newSQLite,
		"redis":  newRedis,
	}
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			sess, err := s.CreateSession(ctx, "hebrew")
			require.NoError(t, err)
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, ModeCollecting, sess.Mode)

			got, err := s.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "hebrew", got.Language)
			assert.Nil(t, got.Profile)

			turns, err := s.ListTurns(ctx, sess.ID)
			require.NoError(t, err)
			assert.Empty(t, turns)

			_, err = s.AppendTurn(ctx, sess.ID, "assistant", "שלום")
			require.NoError(t, err)
			_, err = s.AppendTurn(ctx, sess.ID, "user", "דנה")
			require.NoError(t, err)
			turns, err = s.ListTurns(ctx, sess.ID)
			require.NoError(t, err)
			require.Len(t, turns, 2)
			assert.Equal(t, "assistant", turns[0].Role)
			assert.Equal(t, "דנה", turns[1].Content)

			got.Mode = ModeAnswering
			got.Profile = &Profile{FirstName: "Dana", Age: intPtr(34), HMOName: "מכבי", MembershipTier: "זהב"}
			require.NoError(t, s.UpdateSession(ctx, got))

			got, err = s.GetSession(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, ModeAnswering, got.Mode)
			require.NotNil(t, got.Profile)
			assert.Equal(t, intPtr(34), got.Profile.Age)

			require.NoError(t, s.DeleteSession(ctx, sess.ID))
			_, err = s.GetSession(ctx, sess.ID)
			assert.ErrorIs(t, err, ErrSessionNotFound)
			assert.ErrorIs(t, s.DeleteSession(ctx, sess.ID), ErrSessionNotFound)
			assert.ErrorIs(t, s.UpdateSession(ctx, got), ErrSessionNotFound)
		})
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Minute)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "english")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	_, err = s.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// deleteAfterExists deletes key through another client right after the first
// EXISTS, landing a delete between an update's check and its write.
type deleteAfterExists struct {
	other *redis.Client
	key   string
	once  sync.Once
}

func (h *deleteAfterExists) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *deleteAfterExists) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (h *deleteAfterExists) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if cmd.Name() == "exists" {
			h.once.Do(func() { h.other.Del(ctx, h.key) })
		}
		return err
	}
}

func TestRedisUpdateDoesNotResurrectDeletedSession(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), &redis.Options{Addr: mr.Addr()}, time.Hour)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	sess, err := s.CreateSession(ctx, "english")
	require.NoError(t, err)

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer other.Close()
	s.client.AddHook(&deleteAfterExists{other: other, key: sessionKey(sess.ID)})

	sess.Mode = ModeAnswering
	assert.ErrorIs(t, s.UpdateSession(ctx, sess), ErrSessionNotFound)
	assert.False(t, mr.Exists(sessionKey(sess.ID)))
}

func TestProfileUnmarshal(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{
		"first_name": " Dana ", "last_name": "Levi", "id_number": 123456789,
		"gender": "female", "age": "34", "hmo_name": "Maccabi",
		"hmo_card_number": "987654321", "membership_tier": "Gold"
	}`), &p))
	assert.Equal(t, "Dana", p.FirstName)
	assert.Equal(t, "123456789", p.IDNumber)
	assert.Equal(t, intPtr(34), p.Age)
	assert.Empty(t, p.Validate())

	require.NoError(t, json.Unmarshal([]byte(`{"age": 41, "first_name": null}`), &p))
	assert.Equal(t, intPtr(41), p.Age)
	assert.Equal(t, "", p.FirstName)

	assert.Error(t, json.Unmarshal([]byte(`{"first_name": {"x": 1}}`), &p))
}

func TestProfileAge(t *testing.T) {
	cases := map[string]struct {
		raw  string
		want *int
	}{
		"integer":        {raw: `34`, want: intPtr(34)},
		"numeric string": {raw: `" 34 "`, want: intPtr(34)},
		"whole float":    {raw: `34.0`, want: intPtr(34)},
		"fraction":       {raw: `34.9`},
		"words":          {raw: `"34 years"`},
		"null":           {raw: `null`},
		"empty":          {raw: `""`},
		"overflow":       {raw: `"1e30"`},
		"big integer":    {raw: `99999999999999999999`},
		"not a number":   {raw: `"NaN"`},
		"infinity":       {raw: `"Inf"`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var p Profile
			require.NoError(t, json.Unmarshal([]byte(`{"first_name": "Dana", "age": `+tc.raw+`}`), &p))
			assert.Equal(t, tc.want, p.Age)
			assert.Equal(t, "Dana", p.FirstName)
		})
	}
}

func TestProfileValidate(t *testing.T) {
	p := Profile{
		FirstName: "Dana1", LastName: "Levi", IDNumber: "12345",
		Gender: "", Age: intPtr(130), HMOName: "Leumit",
		HMOCardNumber: "987654321", MembershipTier: "Platinum",
	}
	problems := p.Validate()
	assert.Contains(t, problems, "first_name must contain letters only")
	assert.Contains(t, problems, "id_number must be exactly 9 digits")
	assert.Contains(t, problems, "age must be between 0 and 120")
	assert.Contains(t, problems, "hmo_name must be Maccabi, Meuhedet or Clalit")
	assert.Contains(t, problems, "membership_tier must be Gold, Silver or Bronze")
	assert.Contains(t, problems, "gender is required")
	assert.NotContains(t, problems, "hmo_card_number must be exactly 9 digits")

	p.Age = nil
	assert.Contains(t, p.Validate(), "age must be a whole number")
}
