package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrTooSoon = errors.New("please wait before requesting another OTP")
	ErrBlocked = errors.New("too many OTP requests; try again later")
)

// LimitError carries how long the caller has to wait.
type LimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%v (retry in %ds)", e.Err, int(e.RetryAfter.Seconds()))
}

func (e *LimitError) Unwrap() error { return e.Err }

type Config struct {
	Cooldown    time.Duration // minimum gap between two sends
	Window      time.Duration // counting window
	MaxInWindow int           // sends allowed per window before blocking
	Prefix      string
}

// Resend throttles OTP resends per user and purpose.
type Resend struct {
	rdb *redis.Client
	cfg Config
}

func NewResend(rdb *redis.Client, cfg Config) *Resend {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.MaxInWindow <= 0 {
		cfg.MaxInWindow = 5
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "onb:otp"
	}
	return &Resend{rdb: rdb, cfg: cfg}
}

func (l *Resend) key(kind, subject, purpose string) string {
	return fmt.Sprintf("%s:%s:%s:%s", l.cfg.Prefix, kind, subject, purpose)
}

// Allow records a send attempt or returns a *LimitError wrapping ErrTooSoon
// or ErrBlocked.
func (l *Resend) Allow(ctx context.Context, subject, purpose string) error {
	blockKey := l.key("block", subject, purpose)
	lastKey := l.key("last", subject, purpose)
	countKey := l.key("count", subject, purpose)

	if ttl, err := l.rdb.TTL(ctx, blockKey).Result(); err != nil {
		return err
	} else if ttl > 0 {
		return &LimitError{Err: ErrBlocked, RetryAfter: ttl}
	}

	ok, err := l.rdb.SetNX(ctx, lastKey, "1", l.cfg.Cooldown).Result()
	if err != nil {
		return err
	}
	if !ok {
		ttl, err := l.rdb.TTL(ctx, lastKey).Result()
		if err != nil {
			return err
		}
		if ttl <= 0 {
			ttl = l.cfg.Cooldown
		}
		return &LimitError{Err: ErrTooSoon, RetryAfter: ttl}
	}

	cnt, err := l.rdb.Incr(ctx, countKey).Result()
	if err != nil {
		return err
	}
	if cnt == 1 {
		if err := l.rdb.Expire(ctx, countKey, l.cfg.Window).Err(); err != nil {
			return err
		}
	}
	if int(cnt) > l.cfg.MaxInWindow {
		block := l.cfg.Window * 3
		if err := l.rdb.Set(ctx, blockKey, "1", block).Err(); err != nil {
			return err
		}
		return &LimitError{Err: ErrBlocked, RetryAfter: block}
	}
	return nil
}

// Reset forgets all counters for subject and purpose.
func (l *Resend) Reset(ctx context.Context, subject, purpose string) error {
	return l.rdb.Del(ctx,
		l.key("block", subject, purpose),
		l.key("last", subject, purpose),
		l.key("count", subject, purpose),
	).Err()
}
