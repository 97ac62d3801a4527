// Package flow is the onboarding state machine. Each method re-derives where
// the visitor stands from the session and the stored user, then either
// renders the requested step or redirects to the step they belong on.
package flow

import (
	"context"
	"errors"
	"log/slog"

	"onboarding/internal/domain"
	"onboarding/internal/dto"
	"onboarding/internal/limiter"
	"onboarding/internal/service"
	"onboarding/internal/session"
)

// Limiter throttles OTP resends per user and purpose.
type Limiter interface {
	Allow(ctx context.Context, subject, purpose string) error
	Reset(ctx context.Context, subject, purpose string) error
}

type Controller struct {
	Auth    service.AuthService
	OTP     service.OTPService
	Limiter Limiter
	Log     *slog.Logger
}

func New(auth service.AuthService, otp service.OTPService, lim Limiter, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	return &Controller{Auth: auth, OTP: otp, Limiter: lim, Log: log}
}

// viewer loads the signed-in user. A session pointing at a deleted user is
// signed out.
func (c *Controller) viewer(ctx context.Context, sess *session.Session) (*domain.User, error) {
	if !sess.State.Authenticated() {
		return nil, nil
	}
	u, err := c.Auth.GetUser(ctx, sess.State.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		sess.State.SignOut()
		return nil, nil
	}
	return u, err
}

func signIn(sess *session.Session, userID domain.UserID) {
	sess.Rotate()
	sess.State.SignIn(userID)
}

// allowResend applies the limiter, if any.
func (c *Controller) allowResend(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) (ResendOutcome, bool) {
	if c.Limiter == nil {
		return ResendOutcome{}, true
	}
	err := c.Limiter.Allow(ctx, userID.String(), string(purpose))
	if err == nil {
		return ResendOutcome{}, true
	}
	var le *limiter.LimitError
	if errors.As(err, &le) {
		return ResendOutcome{Status: ResendTooSoon, Message: le.Err.Error(), RetryAfter: le.RetryAfter}, false
	}
	// Fail open when the limiter backend is unavailable.
	c.Log.WarnContext(ctx, "resend limiter unavailable", "error", err)
	return ResendOutcome{}, true
}

// clearResendLimit forgets the resend history once a code has been verified.
func (c *Controller) clearResendLimit(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) {
	if c.Limiter == nil {
		return
	}
	if err := c.Limiter.Reset(ctx, userID.String(), string(purpose)); err != nil {
		c.Log.WarnContext(ctx, "resend limiter reset failed", "user_id", userID.String(), "error", err)
	}
}

func (c *Controller) resend(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) ResendOutcome {
	if out, ok := c.allowResend(ctx, userID, purpose); !ok {
		return out
	}
	sent, err := c.OTP.Resend(ctx, userID, purpose)
	if errors.Is(err, domain.ErrUserNotFound) {
		return ResendOutcome{Status: ResendNoPending, Message: msgSessionExpired}
	}
	if err != nil {
		c.Log.ErrorContext(ctx, "otp resend failed", "user_id", userID.String(), "error", err)
		return ResendOutcome{Status: ResendFailed, Message: msgResendFailed}
	}
	if !sent {
		return ResendOutcome{Status: ResendFailed, Message: msgResendFailed}
	}
	return ResendOutcome{Status: ResendSent, Message: msgResendSent}
}

func userView(u *domain.User) dto.UserView {
	return dto.UserView{
		ID:               u.ID.String(),
		Username:         u.Username,
		Email:            u.Email,
		Phone:            u.Phone,
		AppNameID:        u.AppNameID,
		IsVerified:       u.IsVerified,
		ProfileCompleted: u.ProfileCompleted,
		BusinessName:     u.BusinessName,
	}
}

const (
	msgGeneric           = "Something went wrong. Please try again."
	msgSessionExpired    = "Session expired. Please start again."
	msgResendSent        = "A new OTP has been sent to your email."
	msgResendFailed      = "Failed to send OTP. Please try again."
	msgOTPFormat         = "Please enter the 6-digit code."
	msgOTPInvalid        = "Invalid or expired OTP. Please try again."
	msgUnknownUser       = "No account found with that email or username."
	msgWrongPassword     = "Incorrect password."
	msgVerifyEmail       = "Please verify your email to continue. We sent you a new code."
	msgVerifyEmailRecent = "Please verify your email to continue. Use the code we sent you recently."
	msgLoginOK           = "Login successful!"
	msgCompleteProfile   = "Please complete your profile to continue."
	msgRegistered        = "Registration successful! Please check your email for the OTP code."
	msgRegisteredNoMail  = "Registration successful, but we could not send the code. Use resend to try again."
	msgUserExists        = "User with this email or username already exists."
	msgVerified          = "Email verified successfully! Please complete your profile."
	msgProfileDone       = "Profile completed successfully!"
	msgProfileFailed     = "Error saving profile. Please try again."
	msgUsernameTaken     = "That username is already taken."
	msgResetSent         = "A 6-digit OTP has been sent to your email address."
	msgResetNoMail       = "We could not send the code. Use resend to try again."
	msgNoAccount         = "No account found with that email address."
	msgResetVerified     = "OTP verified successfully! Please enter your new password."
	msgResetMismatch     = "Passwords do not match"
	msgResetFailed       = "Password reset failed. Please try again."
	msgResetDone         = "Password reset successful! Please log in with your new password."
	msgPasswordMismatch  = "Passwords do not match. Please try again."
	msgLoggedOut         = "You have been logged out."
)
