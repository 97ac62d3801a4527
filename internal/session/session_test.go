package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func newTestCodec(t *testing.T, secret string) *CookieCodec {
	t.Helper()
	codec, err := NewCookieCodec(CookieConfig{Secret: []byte(secret), Issuer: "onboarding", Lifetime: time.Hour})
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	return codec
}

func TestStateTransitions(t *testing.T) {
	var st State
	if !st.IsZero() || st.Authenticated() {
		t.Fatalf("zero state expected")
	}

	alice := uuid.New()
	st.BeginRegistration(alice, "alice@example.com")
	if id, ok := st.PendingRegistration(); !ok || id != alice {
		t.Fatalf("expected pending registration for alice")
	}
	st.MarkOTPVerified()
	if _, ok := st.PendingRegistration(); ok {
		t.Fatalf("verified registration must not expose a pending user")
	}
	if !st.OTPVerified() || st.Registration.Email != "" {
		t.Fatalf("otp_verified must purge the identity: %+v", st.Registration)
	}

	st.MarkResetOTPVerified()
	if st.Reset.Stage != ResetNone {
		t.Fatalf("reset cannot skip otp_sent")
	}
	st.BeginReset(alice, "alice@example.com")
	st.MarkResetOTPVerified()
	if id, ok := st.ResetUser(); !ok || id != alice || st.Reset.Stage != ResetOTPVerified {
		t.Fatalf("unexpected reset state %+v", st.Reset)
	}
	st.CompleteReset()
	if _, ok := st.ResetUser(); ok {
		t.Fatalf("completed reset must not expose a user")
	}
	if !st.ConsumeResetCompleted() || st.ConsumeResetCompleted() {
		t.Fatalf("completed marker must be consumed exactly once")
	}

	st.SignIn(alice)
	st.PurgeFlows()
	if !st.Authenticated() || st.Registration != (Registration{}) || st.Reset != (Reset{}) {
		t.Fatalf("unexpected state after purge: %+v", st)
	}
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisStore(rdb, "test", time.Hour)
	ctx := context.Background()

	sess := store.New()
	sess.State.BeginRegistration(uuid.New(), "alice@example.com")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	if ttl := mr.TTL("test:" + sess.ID); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	loaded, err := store.Load(ctx, sess.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.State != sess.State {
		t.Fatalf("state mismatch: %+v vs %+v", loaded.State, sess.State)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Load(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestRedisStoreRotateRemovesOldRecord(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewRedisStore(rdb, "test", time.Hour)
	ctx := context.Background()

	sess := store.New()
	sess.State.BeginRegistration(uuid.New(), "alice@example.com")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}
	old := sess.ID

	sess.Rotate()
	sess.State.SignIn(uuid.New())
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save rotated: %v", err)
	}
	if sess.ID == old {
		t.Fatalf("rotate must change the id")
	}
	if mr.Exists("test:" + old) {
		t.Fatalf("old session record must be removed")
	}
	if !mr.Exists("test:" + sess.ID) {
		t.Fatalf("new session record missing")
	}
}

func TestCookieCodec(t *testing.T) {
	codec := newTestCodec(t, "super-secret-key")

	token, err := codec.Encode("sess-1")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	id, err := codec.Decode(token)
	if err != nil || id != "sess-1" {
		t.Fatalf("decode: %q %v", id, err)
	}

	other := newTestCodec(t, "another-secret")
	if _, err := other.Decode(token); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("foreign signature must be rejected, got %v", err)
	}
	if _, err := codec.Decode(token + "x"); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("tampered token must be rejected, got %v", err)
	}

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sid": "sess-1", "exp": time.Now().Add(time.Hour).Unix()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := codec.Decode(unsigned); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("alg none must be rejected, got %v", err)
	}

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sid": "sess-1",
		"iss": "onboarding",
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("super-secret-key"))
	if err != nil {
		t.Fatalf("sign expired: %v", err)
	}
	if _, err := codec.Decode(expired); !errors.Is(err, ErrInvalidCookie) {
		t.Fatalf("expired token must be rejected, got %v", err)
	}
}

func TestNewCookieCodecRequiresSecret(t *testing.T) {
	if _, err := NewCookieCodec(CookieConfig{}); err == nil {
		t.Fatalf("expected error without secret")
	}
}

func TestManagerCommitAndLoad(t *testing.T) {
	_, rdb := newTestRedis(t)
	m := NewManager(NewRedisStore(rdb, "test", time.Hour), newTestCodec(t, "super-secret-key"))

	// Anonymous, untouched sessions are not stored.
	sess, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	rec := httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookie for an empty session")
	}

	user := uuid.New()
	sess.State.SignIn(user)
	rec = httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec, sess); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || !cookies[0].HttpOnly {
		t.Fatalf("expected one http-only cookie, got %+v", cookies)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := m.Load(req)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.ID != sess.ID || loaded.State.UserID != user {
		t.Fatalf("unexpected reloaded session %+v", loaded)
	}

	loaded.Destroy()
	rec = httptest.NewRecorder()
	if err := m.Commit(context.Background(), rec, loaded); err != nil {
		t.Fatalf("commit destroy: %v", err)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", c)
	}
	if _, err := m.Store.Load(context.Background(), loaded.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("destroyed session must be gone, got %v", err)
	}
}

func TestManagerIgnoresTamperedCookie(t *testing.T) {
	_, rdb := newTestRedis(t)
	m := NewManager(NewRedisStore(rdb, "test", time.Hour), newTestCodec(t, "super-secret-key"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: DefaultCookieName, Value: "not-a-token"})
	sess, err := m.Load(req)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !sess.State.IsZero() || sess.persisted {
		t.Fatalf("expected a fresh session")
	}
}
