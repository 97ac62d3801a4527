package impl

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"onboarding/internal/domain"
	"onboarding/internal/events"
	"onboarding/internal/observability/metrics"
	"onboarding/internal/service"
	"onboarding/internal/store"

	"github.com/google/uuid"
)

const DefaultOTPExpiry = 10 * time.Minute

type OTPServiceImpl struct {
	Store    dataStore
	Notifier service.Notifier
	Events   events.Publisher

	expiry   time.Duration
	now      func() time.Time
	generate func() (string, error)
}

func NewOTPServiceImpl(st *store.Store, notifier service.Notifier, pub events.Publisher, expiry time.Duration) *OTPServiceImpl {
	return newOTPService(gormStoreAdapter{store: st}, notifier, pub, expiry)
}

func newOTPService(ds dataStore, notifier service.Notifier, pub events.Publisher, expiry time.Duration) *OTPServiceImpl {
	if expiry <= 0 {
		expiry = DefaultOTPExpiry
	}
	if pub == nil {
		pub = events.Nop{}
	}
	return &OTPServiceImpl{
		Store:    ds,
		Notifier: notifier,
		Events:   pub,
		expiry:   expiry,
		now:      func() time.Time { return time.Now().UTC() },
		generate: GenerateOTP,
	}
}

// Issue replaces any pending challenge with a fresh code and mails it. A
// dispatch failure is reported through sent, not err.
func (s *OTPServiceImpl) Issue(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) (string, bool, error) {
	user, err := s.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return "", false, mapUserErr(err)
	}
	code, err := s.save(ctx, s.Store.Users(), user.ID)
	if err != nil {
		return "", false, err
	}
	return code, s.dispatch(ctx, user, code, purpose), nil
}

func (s *OTPServiceImpl) Resend(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) (bool, error) {
	_, sent, err := s.Issue(ctx, userID, purpose)
	return sent, err
}

// VerifyRegistration consumes the code and marks the account verified.
func (s *OTPServiceImpl) VerifyRegistration(ctx context.Context, userID domain.UserID, code string) (bool, error) {
	ok, err := s.verify(ctx, userID, code, domain.PurposeRegistration, func(users userStore) (bool, error) {
		return users.ConsumeOTPAndVerify(ctx, userID, code)
	})
	if ok {
		s.publish(ctx, events.UserVerified{UserID: userID.String(), At: s.now()})
	}
	return ok, err
}

// VerifyPasswordReset consumes the code without touching is_verified.
func (s *OTPServiceImpl) VerifyPasswordReset(ctx context.Context, userID domain.UserID, code string) (bool, error) {
	return s.verify(ctx, userID, code, domain.PurposePasswordReset, func(users userStore) (bool, error) {
		return users.ConsumeOTP(ctx, userID, code)
	})
}

func (s *OTPServiceImpl) verify(ctx context.Context, userID domain.UserID, code string, purpose domain.OTPPurpose, consume func(userStore) (bool, error)) (bool, error) {
	result := "success"
	defer func() {
		metrics.OTPVerificationsTotal.WithLabelValues(string(purpose), result).Inc()
	}()

	if !ValidOTPFormat(code) {
		result = "malformed"
		return false, nil
	}

	user, err := s.Store.Users().GetByID(ctx, userID)
	if errors.Is(err, store.ErrRecordNotFound) {
		result = "no_user"
		return false, nil
	}
	if err != nil {
		result = "error"
		return false, err
	}

	if !user.HasPendingOTP() {
		result = "no_challenge"
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(*user.OTPCode), []byte(code)) != 1 {
		result = "mismatch"
		return false, nil
	}
	if s.now().After(*user.OTPExpiresAt) {
		result = "expired"
		return false, nil
	}

	ok, err := consume(s.Store.Users())
	if err != nil {
		result = "error"
		return false, err
	}
	if !ok {
		// Another request consumed or replaced the code in between.
		result = "conflict"
		return false, nil
	}
	return true, nil
}

// save writes a new challenge through users, which may be a transaction.
func (s *OTPServiceImpl) save(ctx context.Context, users userStore, userID uuid.UUID) (string, error) {
	code, err := s.generate()
	if err != nil {
		return "", err
	}
	now := s.now()
	if err := users.SaveOTP(ctx, userID, code, now, now.Add(s.expiry)); err != nil {
		return "", mapUserErr(err)
	}
	return code, nil
}

func (s *OTPServiceImpl) dispatch(ctx context.Context, user *domain.User, code string, purpose domain.OTPPurpose) bool {
	err := s.Notifier.Send(ctx, user.Email, purpose.MessageKind(), map[string]any{
		"Code":          code,
		"Username":      user.Username,
		"ExpiryMinutes": int(s.expiry / time.Minute),
		"Purpose":       string(purpose),
	})
	if err != nil {
		slog.Default().WarnContext(ctx, "otp dispatch failed",
			"user_id", user.ID.String(),
			"purpose", string(purpose),
			"error", err,
		)
		metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "send_failed").Inc()
		return false
	}
	metrics.OTPIssuedTotal.WithLabelValues(string(purpose), "sent").Inc()
	return true
}

func (s *OTPServiceImpl) publish(ctx context.Context, ev events.Event) {
	if err := s.Events.Publish(ctx, ev); err != nil {
		slog.Default().WarnContext(ctx, "event publish failed", "type", ev.EventType(), "error", err)
	}
}
