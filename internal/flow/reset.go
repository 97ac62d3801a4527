package flow

import (
	"context"
	"errors"

	"onboarding/internal/domain"
	"onboarding/internal/dto"
	"onboarding/internal/session"
)

func (c *Controller) resetRequestGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	switch {
	case u != nil:
		return redirect(StepDashboard), true, nil
	case sess.State.ResetCompleted():
		return resetSucceeded(), true, nil
	case sess.State.Reset.Stage == session.ResetOTPSent:
		return redirect(StepResetVerifyOTP), true, nil
	case sess.State.Reset.Stage == session.ResetOTPVerified:
		return redirect(StepResetNewPassword), true, nil
	}
	return Outcome{}, false, nil
}

func (c *Controller) ResetPasswordPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.resetRequestGate(ctx, sess); done || err != nil {
		return out, err
	}
	return render(StepResetPassword), nil
}

// ResetPassword starts the forgot-password flow for an existing account.
func (c *Controller) ResetPassword(ctx context.Context, sess *session.Session, r dto.ResetRequest) (Outcome, error) {
	if out, done, err := c.resetRequestGate(ctx, sess); done || err != nil {
		return out, err
	}
	email := trim(r.Email)
	if !validEmail(email) {
		return invalid(StepResetPassword, fieldErrors{"email": "Please enter a valid email address."}), nil
	}

	user, sent, err := c.Auth.RequestPasswordReset(ctx, email)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return invalid(StepResetPassword, fieldErrors{"email": msgNoAccount}), nil
	case err != nil:
		c.Log.ErrorContext(ctx, "password reset request failed", "error", err)
		return formError(StepResetPassword, msgGeneric), nil
	}

	sess.State.ClearRegistration()
	sess.State.BeginReset(user.ID, user.Email)
	if !sent {
		return redirect(StepResetVerifyOTP).withNotice(msgResetNoMail), nil
	}
	return redirect(StepResetVerifyOTP).withNotice(msgResetSent), nil
}

func (c *Controller) resetVerifyGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	switch {
	case u != nil:
		return redirect(StepDashboard), true, nil
	case sess.State.ResetCompleted():
		return resetSucceeded(), true, nil
	case sess.State.Reset.Stage == session.ResetOTPVerified:
		return redirect(StepResetNewPassword), true, nil
	}
	if _, ok := sess.State.ResetUser(); !ok {
		return redirect(StepResetPassword), true, nil
	}
	return Outcome{}, false, nil
}

func (c *Controller) ResetVerifyOTPPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.resetVerifyGate(ctx, sess); done || err != nil {
		return out, err
	}
	return render(StepResetVerifyOTP).withData("email", sess.State.Reset.Email), nil
}

func (c *Controller) ResetVerifyOTP(ctx context.Context, sess *session.Session, r dto.OTPRequest) (Outcome, error) {
	if out, done, err := c.resetVerifyGate(ctx, sess); done || err != nil {
		return out, err
	}
	userID, _ := sess.State.ResetUser()
	page := func(errs map[string]string) Outcome {
		return invalid(StepResetVerifyOTP, errs).withData("email", sess.State.Reset.Email)
	}

	if !validOTP(r.Code) {
		return page(fieldErrors{"otp": msgOTPFormat}), nil
	}
	ok, err := c.OTP.VerifyPasswordReset(ctx, userID, r.Code)
	if err != nil {
		c.Log.ErrorContext(ctx, "reset otp verification failed", "user_id", userID.String(), "error", err)
		return page(fieldErrors{FormField: msgGeneric}), nil
	}
	if !ok {
		return page(fieldErrors{"otp": msgOTPInvalid}), nil
	}

	c.clearResendLimit(ctx, userID, domain.PurposePasswordReset)
	sess.State.MarkResetOTPVerified()
	return redirect(StepResetNewPassword).withNotice(msgResetVerified), nil
}

// ResetResendOTP reissues the reset code until it has been verified.
func (c *Controller) ResetResendOTP(ctx context.Context, sess *session.Session) ResendOutcome {
	userID, ok := sess.State.ResetUser()
	if !ok || sess.State.Reset.Stage != session.ResetOTPSent {
		return ResendOutcome{Status: ResendNoPending, Message: msgSessionExpired}
	}
	out := c.resend(ctx, userID, domain.PurposePasswordReset)
	if out.Status == ResendNoPending {
		sess.State.Reset = session.Reset{}
	}
	return out
}

func (c *Controller) resetNewPasswordGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	switch {
	case u != nil:
		return redirect(StepDashboard), true, nil
	case sess.State.ResetCompleted():
		return resetSucceeded(), true, nil
	case sess.State.Reset.Stage == session.ResetOTPSent:
		return redirect(StepResetVerifyOTP), true, nil
	}
	if _, ok := sess.State.ResetUser(); !ok {
		return redirect(StepResetPassword), true, nil
	}
	return Outcome{}, false, nil
}

func (c *Controller) ResetNewPasswordPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.resetNewPasswordGate(ctx, sess); done || err != nil {
		return out, err
	}
	return render(StepResetNewPassword), nil
}

// ResetNewPassword stores the new password. Validation failures keep the
// flow at this step.
func (c *Controller) ResetNewPassword(ctx context.Context, sess *session.Session, r dto.NewPasswordRequest) (Outcome, error) {
	if out, done, err := c.resetNewPasswordGate(ctx, sess); done || err != nil {
		return out, err
	}
	userID, _ := sess.State.ResetUser()

	errs := fieldErrors{}
	checkPassword(errs, "password", "confirm_password", r.Password, r.ConfirmPassword, msgResetMismatch)
	if !errs.empty() {
		return invalid(StepResetNewPassword, errs), nil
	}

	err := c.Auth.ResetPassword(ctx, userID, r.Password)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		sess.State.Reset = session.Reset{}
		return redirect(StepResetPassword).withNotice(msgSessionExpired), nil
	case err != nil:
		c.Log.ErrorContext(ctx, "password reset failed", "user_id", userID.String(), "error", err)
		return formError(StepResetNewPassword, msgResetFailed), nil
	}

	// The login page announces the completed reset.
	sess.State.CompleteReset()
	return resetSucceeded(), nil
}

// resetSucceeded sends the visitor to login flagged for the success notice.
func resetSucceeded() Outcome {
	out := redirect(StepLogin)
	out.Query = map[string]string{"reset": "success"}
	return out
}
