package flow

import (
	"context"
	"errors"

	"onboarding/internal/domain"
	"onboarding/internal/dto"
	"onboarding/internal/session"
)

// loginGate routes visitors who should not see the login form.
func (c *Controller) loginGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	if u != nil {
		if !u.ProfileCompleted {
			return redirect(StepCompleteProfile), true, nil
		}
		return redirect(StepDashboard), true, nil
	}
	if _, ok := sess.State.PendingRegistration(); ok {
		return redirect(StepVerifyOTP), true, nil
	}
	if sess.State.OTPVerified() {
		// Verified registration without a signed-in user: nothing left to resume.
		sess.State.ClearRegistration()
	}
	return Outcome{}, false, nil
}

// LoginPage renders the login form. A just-completed password reset is
// announced once and then forgotten.
func (c *Controller) LoginPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.loginGate(ctx, sess); done || err != nil {
		return out, err
	}
	out := render(StepLogin)
	if sess.State.ConsumeResetCompleted() {
		out = out.withNotice(msgResetDone)
	}
	return out, nil
}

func (c *Controller) Login(ctx context.Context, sess *session.Session, r dto.LoginRequest) (Outcome, error) {
	if out, done, err := c.loginGate(ctx, sess); done || err != nil {
		return out, err
	}
	// A login attempt supersedes a pending reset-success notice.
	sess.State.ConsumeResetCompleted()

	identifier := trim(r.Identifier)
	errs := fieldErrors{}
	if identifier == "" {
		errs.add("identifier", "Email or username is required.")
	}
	if r.Password == "" {
		errs.add("password", "Password is required.")
	}
	if !errs.empty() {
		return invalid(StepLogin, errs), nil
	}

	user, err := c.Auth.Authenticate(ctx, identifier, r.Password)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return invalid(StepLogin, fieldErrors{"identifier": msgUnknownUser}), nil
	case errors.Is(err, domain.ErrInvalidPassword):
		return invalid(StepLogin, fieldErrors{"password": msgWrongPassword}), nil
	case errors.Is(err, domain.ErrNotVerified):
		// Resume the registration as if the user had just signed up.
		sess.State.PurgeFlows()
		sess.State.BeginRegistration(user.ID, user.Email)
		if _, ok := c.allowResend(ctx, user.ID, domain.PurposeRegistration); !ok {
			return redirect(StepVerifyOTP).withNotice(msgVerifyEmailRecent), nil
		}
		if _, sent, err := c.OTP.Issue(ctx, user.ID, domain.PurposeRegistration); err != nil || !sent {
			c.Log.WarnContext(ctx, "otp reissue on unverified login failed", "user_id", user.ID.String(), "error", err)
		}
		return redirect(StepVerifyOTP).withNotice(msgVerifyEmail), nil
	case err != nil:
		c.Log.ErrorContext(ctx, "authenticate failed", "error", err)
		return formError(StepLogin, msgGeneric), nil
	}

	sess.State.PurgeFlows()
	signIn(sess, user.ID)
	if !user.ProfileCompleted {
		return redirect(StepCompleteProfile).withNotice(msgCompleteProfile), nil
	}
	return redirect(StepDashboard).withNotice(msgLoginOK), nil
}

func (c *Controller) registerGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	if u != nil {
		return redirect(StepDashboard), true, nil
	}
	if _, ok := sess.State.PendingRegistration(); ok {
		return redirect(StepVerifyOTP), true, nil
	}
	return Outcome{}, false, nil
}

func (c *Controller) RegisterPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.registerGate(ctx, sess); done || err != nil {
		return out, err
	}
	return render(StepRegister), nil
}

func (c *Controller) Register(ctx context.Context, sess *session.Session, r dto.RegisterRequest) (Outcome, error) {
	if out, done, err := c.registerGate(ctx, sess); done || err != nil {
		return out, err
	}

	req := dto.RegisterRequest{
		Username:        trim(r.Username),
		Email:           trim(r.Email),
		Phone:           trim(r.Phone),
		Password:        r.Password,
		ConfirmPassword: r.ConfirmPassword,
	}
	errs := fieldErrors{}
	switch {
	case req.Username == "":
		errs.add("fullName", "Name is required.")
	case len(req.Username) > maxUsernameLength:
		errs.add("fullName", "Name is too long.")
	}
	if !validEmail(req.Email) {
		errs.add("email", "Please enter a valid email address.")
	}
	checkLength(errs, "phone", req.Phone, maxPhoneLength)
	checkPassword(errs, "password", "confirmPassword", req.Password, req.ConfirmPassword, msgPasswordMismatch)
	if !errs.empty() {
		return invalid(StepRegister, errs), nil
	}

	res, err := c.Auth.Register(ctx, req)
	switch {
	case errors.Is(err, domain.ErrUserExists):
		return formError(StepRegister, msgUserExists), nil
	case err != nil:
		c.Log.ErrorContext(ctx, "registration failed", "error", err)
		return formError(StepRegister, msgGeneric), nil
	}

	sess.State.PurgeFlows()
	sess.State.BeginRegistration(res.User.ID, res.User.Email)
	if !res.OTPSent {
		return redirect(StepVerifyOTP).withNotice(msgRegisteredNoMail), nil
	}
	return redirect(StepVerifyOTP).withNotice(msgRegistered), nil
}

func (c *Controller) verifyGate(ctx context.Context, sess *session.Session) (Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, false, err
	}
	if u != nil && u.ProfileCompleted {
		return redirect(StepDashboard), true, nil
	}
	if sess.State.OTPVerified() {
		return redirect(StepCompleteProfile), true, nil
	}
	if _, ok := sess.State.PendingRegistration(); !ok {
		return redirect(StepRegister), true, nil
	}
	return Outcome{}, false, nil
}

func (c *Controller) VerifyOTPPage(ctx context.Context, sess *session.Session) (Outcome, error) {
	if out, done, err := c.verifyGate(ctx, sess); done || err != nil {
		return out, err
	}
	return render(StepVerifyOTP).withData("email", sess.State.Registration.Email), nil
}

func (c *Controller) VerifyOTP(ctx context.Context, sess *session.Session, r dto.OTPRequest) (Outcome, error) {
	if out, done, err := c.verifyGate(ctx, sess); done || err != nil {
		return out, err
	}
	userID, _ := sess.State.PendingRegistration()
	page := func(errs map[string]string) Outcome {
		return invalid(StepVerifyOTP, errs).withData("email", sess.State.Registration.Email)
	}

	if !validOTP(r.Code) {
		return page(fieldErrors{"otp": msgOTPFormat}), nil
	}
	ok, err := c.OTP.VerifyRegistration(ctx, userID, r.Code)
	if err != nil {
		c.Log.ErrorContext(ctx, "otp verification failed", "user_id", userID.String(), "error", err)
		return page(fieldErrors{FormField: msgGeneric}), nil
	}
	if !ok {
		return page(fieldErrors{"otp": msgOTPInvalid}), nil
	}

	c.clearResendLimit(ctx, userID, domain.PurposeRegistration)
	sess.State.MarkOTPVerified()
	signIn(sess, userID)
	return redirect(StepCompleteProfile).withNotice(msgVerified), nil
}

// ResendOTP issues a fresh registration code for the pending user.
func (c *Controller) ResendOTP(ctx context.Context, sess *session.Session) ResendOutcome {
	userID, ok := sess.State.PendingRegistration()
	if !ok {
		return ResendOutcome{Status: ResendNoPending, Message: msgSessionExpired}
	}
	out := c.resend(ctx, userID, domain.PurposeRegistration)
	if out.Status == ResendNoPending {
		sess.State.ClearRegistration()
	}
	return out
}

func (c *Controller) profileGate(ctx context.Context, sess *session.Session) (*domain.User, Outcome, bool, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return nil, Outcome{}, false, err
	}
	if u == nil {
		return nil, redirect(StepLogin), true, nil
	}
	if u.ProfileCompleted {
		return nil, redirect(StepDashboard), true, nil
	}
	return u, Outcome{}, false, nil
}

func (c *Controller) CompleteProfilePage(ctx context.Context, sess *session.Session) (Outcome, error) {
	u, out, done, err := c.profileGate(ctx, sess)
	if done || err != nil {
		return out, err
	}
	return render(StepCompleteProfile).withData("user", userView(u)), nil
}

func (c *Controller) CompleteProfile(ctx context.Context, sess *session.Session, r dto.ProfileRequest) (Outcome, error) {
	u, out, done, err := c.profileGate(ctx, sess)
	if done || err != nil {
		return out, err
	}
	page := func(errs map[string]string) Outcome {
		return invalid(StepCompleteProfile, errs).withData("user", userView(u))
	}

	errs := fieldErrors{}
	if len(trim(r.Username)) > maxUsernameLength {
		errs.add("fullName", "Name is too long.")
	}
	if w := trim(r.WebsiteURL); w != "" && !validWebsite(w) {
		errs.add("websiteUrl", "Please enter a valid website URL.")
	}
	for _, f := range []struct {
		field string
		value string
		max   int
	}{
		{"phone", r.Phone, maxPhoneLength},
		{"businessName", r.BusinessName, maxNameLength},
		{"businessCategory", r.BusinessCategory, maxCategoryLength},
		{"websiteUrl", r.WebsiteURL, maxWebsiteLength},
		{"country", r.Country, maxPlaceLength},
		{"state", r.State, maxPlaceLength},
		{"city", r.City, maxPlaceLength},
		{"pincode", r.Pincode, maxPincodeLength},
		{"timezone", r.Timezone, maxTimezoneLength},
		{"preferredLanguage", r.PreferredLanguage, maxLanguageLength},
		{"notificationPreference", r.NotificationPreference, maxChannelLength},
	} {
		checkLength(errs, f.field, trim(f.value), f.max)
	}
	if !errs.empty() {
		return page(errs), nil
	}

	_, err = c.Auth.CompleteProfile(ctx, u.ID, r)
	switch {
	case errors.Is(err, domain.ErrProfileAlreadyCompleted):
		return redirect(StepDashboard), nil
	case errors.Is(err, domain.ErrUserExists):
		return page(fieldErrors{"fullName": msgUsernameTaken}), nil
	case errors.Is(err, domain.ErrUserNotFound):
		sess.State.SignOut()
		return redirect(StepLogin), nil
	case err != nil:
		c.Log.ErrorContext(ctx, "profile completion failed", "user_id", u.ID.String(), "error", err)
		return page(fieldErrors{FormField: msgProfileFailed}), nil
	}

	sess.State.ClearRegistration()
	return redirect(StepDashboard).withNotice(msgProfileDone), nil
}

// Root sends visitors to wherever their session puts them.
func (c *Controller) Root(ctx context.Context, sess *session.Session) (Outcome, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	if u == nil {
		return redirect(StepLogin), nil
	}
	return redirect(StepDashboard), nil
}

// Dashboard admits only verified users with a completed profile.
func (c *Controller) Dashboard(ctx context.Context, sess *session.Session) (Outcome, error) {
	u, err := c.viewer(ctx, sess)
	if err != nil {
		return Outcome{}, err
	}
	if u == nil {
		return redirect(StepLogin), nil
	}
	if !u.IsVerified {
		sess.State.SignOut()
		sess.State.PurgeFlows()
		sess.State.BeginRegistration(u.ID, u.Email)
		return redirect(StepVerifyOTP).withNotice("Please verify your email to access this page."), nil
	}
	if !u.ProfileCompleted {
		return redirect(StepCompleteProfile).withNotice("Please complete your profile to access this page."), nil
	}
	return render(StepDashboard).withData("user", userView(u)), nil
}

func (c *Controller) Logout(ctx context.Context, sess *session.Session) Outcome {
	sess.Destroy()
	return redirect(StepLogin).withNotice(msgLoggedOut)
}
