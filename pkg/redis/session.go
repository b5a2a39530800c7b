package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// ErrNoSession means the token is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Session is what a token resolves to.
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
}

// SessionStore keeps admin sessions as Redis hashes with a TTL.
type SessionStore struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewSessionStore(rdb *rd.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{rdb: rdb, ttl: ttl}
}

// Create issues a new random token for username.
func (s *SessionStore) Create(ctx context.Context, username string) (Session, error) {
	sess := Session{
		Token:     uuid.New().String(),
		Username:  username,
		CreatedAt: time.Now(),
	}
	key := SessionKey(sess.Token)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"username", sess.Username,
		"created_at", sess.CreatedAt.Format(time.RFC3339),
	)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Lookup resolves token. ErrNoSession when it does not exist.
func (s *SessionStore) Lookup(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrNoSession
	}
	m, err := s.rdb.HGetAll(ctx, SessionKey(token)).Result()
	if err != nil {
		return Session{}, err
	}
	if len(m) == 0 || m["username"] == "" {
		return Session{}, ErrNoSession
	}
	created, _ := time.Parse(time.RFC3339, m["created_at"])
	return Session{Token: token, Username: m["username"], CreatedAt: created}, nil
}

// Delete ends the session; deleting an unknown token is not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.rdb.Del(ctx, SessionKey(token)).Err()
}
