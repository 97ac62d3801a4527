package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// Manager binds the Redis store to the signed cookie.
type Manager struct {
	Store *RedisStore
	Codec *CookieCodec
}

func NewManager(store *RedisStore, codec *CookieCodec) *Manager {
	return &Manager{Store: store, Codec: codec}
}

// Load returns the session named by the request cookie, or a fresh one when
// the cookie is missing, tampered with or points at an expired record.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.Codec.Name())
	if err != nil {
		return m.Store.New(), nil
	}
	id, err := m.Codec.Decode(c.Value)
	if err != nil {
		slog.Default().DebugContext(r.Context(), "discarding session cookie", "error", err)
		return m.Store.New(), nil
	}
	sess, err := m.Store.Load(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return m.Store.New(), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Commit persists sess and sets or clears the cookie. It must run before the
// response body is written. Anonymous sessions that were never stored are skipped.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess.destroyed {
		if err := m.Store.Delete(ctx, sess); err != nil {
			return err
		}
		http.SetCookie(w, m.Codec.Expired())
		return nil
	}
	if !sess.persisted && sess.State.IsZero() {
		return nil
	}
	if err := m.Store.Save(ctx, sess); err != nil {
		return err
	}
	cookie, err := m.Codec.Cookie(sess.ID)
	if err != nil {
		return err
	}
	http.SetCookie(w, cookie)
	return nil
}
