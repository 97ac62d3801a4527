package session

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
	DefaultPrefix   = "onb:sess"
	DefaultLifetime = 7 * 24 * time.Hour
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID    string
	State State

	previousID string
	persisted  bool
	destroyed  bool
}

// Rotate assigns a fresh id. The old record is removed on the next save.
func (s *Session) Rotate() {
	if s.persisted && s.previousID == "" {
		s.previousID = s.ID
	}
	s.ID = newID()
}

// Destroy marks the session for removal; its state is reset immediately.
func (s *Session) Destroy() {
	s.State = State{}
	s.destroyed = true
}

func (s *Session) Destroyed() bool { return s.destroyed }

func newID() string { return uuid.NewString() }

type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultLifetime
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string { return s.prefix + ":" + id }

func (s *RedisStore) New() *Session { return &Session{ID: newID()} }

func (s *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &Session{ID: id, State: st, persisted: true}, nil
}

// Save writes the state with a fresh TTL and drops the record left behind by
// a rotation.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if sess.destroyed {
		return s.Delete(ctx, sess)
	}
	raw, err := json.Marshal(sess.State)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	pipe := s.rdb.TxPipeline()
	if sess.previousID != "" {
		pipe.Del(ctx, s.key(sess.previousID))
	}
	pipe.Set(ctx, s.key(sess.ID), raw, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	sess.previousID = ""
	sess.persisted = true
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sess *Session) error {
	keys := []string{s.key(sess.ID)}
	if sess.previousID != "" {
		keys = append(keys, s.key(sess.previousID))
	}
	if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	sess.persisted = false
	return nil
}
