package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Resend) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewResend(client, cfg)
}

func TestResendCooldown(t *testing.T) {
	mr, l := newTestLimiter(t, Config{Cooldown: 30 * time.Second})
	ctx := context.Background()

	if err := l.Allow(ctx, "u1", "registration"); err != nil {
		t.Fatalf("first send must pass: %v", err)
	}
	err := l.Allow(ctx, "u1", "registration")
	if !errors.Is(err, ErrTooSoon) {
		t.Fatalf("expected ErrTooSoon, got %v", err)
	}
	var le *LimitError
	if !errors.As(err, &le) || le.RetryAfter <= 0 || le.RetryAfter > 30*time.Second {
		t.Fatalf("unexpected retry-after: %+v", le)
	}

	if err := l.Allow(ctx, "u1", "password_reset"); err != nil {
		t.Fatalf("other purposes are independent: %v", err)
	}
	if err := l.Allow(ctx, "u2", "registration"); err != nil {
		t.Fatalf("other users are independent: %v", err)
	}

	mr.FastForward(31 * time.Second)
	if err := l.Allow(ctx, "u1", "registration"); err != nil {
		t.Fatalf("send after cooldown must pass: %v", err)
	}
}

func TestResendBlocksAfterWindowBudget(t *testing.T) {
	mr, l := newTestLimiter(t, Config{Cooldown: time.Second, Window: time.Minute, MaxInWindow: 2})
	ctx := context.Background()

	for i := range 2 {
		if err := l.Allow(ctx, "u1", "registration"); err != nil {
			t.Fatalf("send %d must pass: %v", i, err)
		}
		mr.FastForward(2 * time.Second)
	}
	if err := l.Allow(ctx, "u1", "registration"); !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	mr.FastForward(2 * time.Second)
	if err := l.Allow(ctx, "u1", "registration"); !errors.Is(err, ErrBlocked) {
		t.Fatalf("block must persist, got %v", err)
	}

	if err := l.Reset(ctx, "u1", "registration"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := l.Allow(ctx, "u1", "registration"); err != nil {
		t.Fatalf("send after reset must pass: %v", err)
	}
}

// failTTL fails TTL lookups on one key and passes everything else through.
type failTTL struct{ key string }

func (failTTL) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h failTTL) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if args := cmd.Args(); cmd.Name() == "ttl" && len(args) > 1 && args[1] == h.key {
			err := errors.New("ttl unavailable")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (failTTL) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestResendSurfacesCooldownLookupError(t *testing.T) {
	_, l := newTestLimiter(t, Config{Cooldown: 30 * time.Second})
	ctx := context.Background()

	if err := l.Allow(ctx, "u1", "registration"); err != nil {
		t.Fatalf("first send must pass: %v", err)
	}
	l.rdb.AddHook(failTTL{key: l.key("last", "u1", "registration")})

	err := l.Allow(ctx, "u1", "registration")
	var le *LimitError
	if err == nil || errors.As(err, &le) {
		t.Fatalf("expected a plain redis error, got %v", err)
	}
}
