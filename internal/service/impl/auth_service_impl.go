package impl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"onboarding/internal/domain"
	"onboarding/internal/dto"
	"onboarding/internal/events"
	"onboarding/internal/observability/metrics"
	"onboarding/internal/service"
	"onboarding/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultTimezone               = "utc"
	defaultPreferredLanguage      = "en"
	defaultNotificationPreference = "email"
)

type AuthServiceImpl struct {
	Store           dataStore
	PasswordService service.PasswordService
	OTP             *OTPServiceImpl
	Events          events.Publisher

	newTenantID func() (string, error)
}

func NewAuthServiceImpl(st *store.Store, passwordService service.PasswordService, otp *OTPServiceImpl, pub events.Publisher) *AuthServiceImpl {
	return newAuthService(gormStoreAdapter{store: st}, passwordService, otp, pub)
}

func newAuthService(ds dataStore, passwordService service.PasswordService, otp *OTPServiceImpl, pub events.Publisher) *AuthServiceImpl {
	if pub == nil {
		pub = events.Nop{}
	}
	return &AuthServiceImpl{
		Store:           ds,
		PasswordService: passwordService,
		OTP:             otp,
		Events:          pub,
		newTenantID:     GenerateTenantID,
	}
}

// Authenticate checks existence, then the password, then verification. A
// legacy or outdated hash is upgraded on a successful match.
func (a *AuthServiceImpl) Authenticate(ctx context.Context, identifier, password string) (*domain.User, error) {
	if identifier == "" || password == "" {
		return nil, ErrEmptyCredential
	}

	var user *domain.User
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		u, err := tx.Users().FindByIdentifier(ctx, identifier)
		if err != nil {
			return mapUserErr(err)
		}

		cred, err := tx.Credentials().GetPasswordByUserID(ctx, u.ID)
		if errors.Is(err, store.ErrRecordNotFound) {
			return domain.ErrInvalidPassword
		}
		if err != nil {
			return err
		}

		rehashNeeded, ok := a.PasswordService.Verify(password, cred)
		if !ok {
			return domain.ErrInvalidPassword
		}

		if rehashNeeded {
			newHash, newSalt, newParamsJSON, algo, ver, err := a.PasswordService.Hash(password)
			if err != nil {
				return err
			}
			upgraded := &domain.PasswordCredential{
				UserID:      u.ID,
				Algo:        algo,
				Hash:        newHash,
				Salt:        newSalt,
				ParamsJSON:  newParamsJSON,
				PasswordVer: ver,
				CreatedAt:   cred.CreatedAt,
			}
			if err := tx.Credentials().UpsertPassword(ctx, upgraded); err != nil {
				return err
			}
		}
		user = u
		return nil
	})

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		metrics.AuthLoginsTotal.WithLabelValues("not_found").Inc()
		return nil, err
	case errors.Is(err, domain.ErrInvalidPassword):
		metrics.AuthLoginsTotal.WithLabelValues("invalid_password").Inc()
		return nil, err
	case err != nil:
		metrics.AuthLoginsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if !user.IsVerified {
		metrics.AuthLoginsTotal.WithLabelValues("not_verified").Inc()
		return user, domain.ErrNotVerified
	}
	metrics.AuthLoginsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// Register creates the user, its password credential and the first
// registration challenge in one transaction, then mails the code.
func (a *AuthServiceImpl) Register(ctx context.Context, r dto.RegisterRequest) (*service.RegisterResult, error) {
	switch {
	case r.Username == "":
		return nil, ErrEmptyUsername
	case r.Email == "":
		return nil, ErrEmptyEmail
	case r.Password == "":
		return nil, ErrEmptyPassword
	case len(r.Password) < MinPasswordLength:
		return nil, ErrPasswordLength
	}

	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(r.Password)
	if err != nil {
		return nil, err
	}

	var (
		user *domain.User
		code string
	)
	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		existing, err := tx.Users().FindByEmailOrUsername(ctx, r.Email, r.Username)
		if err == nil && existing != nil {
			return domain.ErrUserExists
		}
		if err != nil && !errors.Is(err, store.ErrRecordNotFound) {
			return err
		}

		appID, err := allocateTenantID(ctx, tx.Users(), a.newTenantID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		u := &domain.User{
			ID:        uuid.New(),
			Username:  r.Username,
			Email:     r.Email,
			Phone:     r.Phone,
			AppNameID: appID,
			Profile: domain.Profile{
				Timezone:               defaultTimezone,
				PreferredLanguage:      defaultPreferredLanguage,
				NotificationPreference: defaultNotificationPreference,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Users().Create(ctx, u); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrUserExists
			}
			return err
		}

		cred := &domain.PasswordCredential{
			ID:          uuid.New(),
			UserID:      u.ID,
			Algo:        algo,
			Hash:        hash,
			Salt:        salt,
			ParamsJSON:  paramsJSON,
			PasswordVer: ver,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
			return err
		}

		c, err := a.OTP.save(ctx, tx.Users(), u.ID)
		if err != nil {
			return err
		}
		user, code = u, c
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrUserExists) {
			result = "conflict"
		}
		metrics.AuthRegistrationsTotal.WithLabelValues(result).Inc()
		return nil, err
	}
	metrics.AuthRegistrationsTotal.WithLabelValues("success").Inc()

	sent := a.OTP.dispatch(ctx, user, code, domain.PurposeRegistration)
	a.publish(ctx, events.UserRegistered{
		UserID:    user.ID.String(),
		Email:     user.Email,
		AppNameID: user.AppNameID,
		At:        user.CreatedAt,
	})

	return &service.RegisterResult{User: user, OTPSent: sent}, nil
}

func (a *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) (*domain.User, bool, error) {
	if email == "" {
		return nil, false, ErrEmptyEmail
	}
	user, err := a.Store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, false, mapUserErr(err)
	}
	_, sent, err := a.OTP.Issue(ctx, user.ID, domain.PurposePasswordReset)
	if err != nil {
		return nil, false, err
	}
	return user, sent, nil
}

// ResetPassword stores the new hash and drops any outstanding challenge.
func (a *AuthServiceImpl) ResetPassword(ctx context.Context, userID domain.UserID, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordLength
	}
	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(newPassword)
	if err != nil {
		return err
	}

	err = a.Store.WithTx(ctx, func(tx storeTx) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return mapUserErr(err)
		}
		cred := &domain.PasswordCredential{
			UserID:      userID,
			Algo:        algo,
			Hash:        hash,
			Salt:        salt,
			ParamsJSON:  paramsJSON,
			PasswordVer: ver,
		}
		if err := tx.Credentials().UpsertPassword(ctx, cred); err != nil {
			return err
		}
		return tx.Users().ClearOTP(ctx, userID)
	})
	if err != nil {
		return err
	}
	a.publish(ctx, events.PasswordReset{UserID: userID.String(), At: time.Now().UTC()})
	return nil
}

// CompleteProfile flips profile_completed exactly once. Empty username or
// phone keep the values given at registration.
func (a *AuthServiceImpl) CompleteProfile(ctx context.Context, userID domain.UserID, r dto.ProfileRequest) (*domain.User, error) {
	var out *domain.User
	err := a.Store.WithTx(ctx, func(tx storeTx) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return mapUserErr(err)
		}
		if u.ProfileCompleted {
			return domain.ErrProfileAlreadyCompleted
		}

		username := strings.TrimSpace(r.Username)
		if username == "" {
			username = u.Username
		}
		phone := strings.TrimSpace(r.Phone)
		if phone == "" {
			phone = u.Phone
		}
		if username != u.Username {
			taken, err := tx.Users().UsernameTaken(ctx, username, u.ID)
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrUserExists
			}
		}

		ok, err := tx.Users().SaveProfile(ctx, u.ID, username, phone, profileFrom(r))
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrProfileAlreadyCompleted
		}

		out, err = tx.Users().GetByID(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.publish(ctx, events.ProfileCompleted{UserID: userID.String(), At: time.Now().UTC()})
	return out, nil
}

func (a *AuthServiceImpl) GetUser(ctx context.Context, userID domain.UserID) (*domain.User, error) {
	u, err := a.Store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return u, nil
}

func profileFrom(r dto.ProfileRequest) domain.Profile {
	p := domain.Profile{
		BusinessName:           strings.TrimSpace(r.BusinessName),
		BusinessCategory:       strings.TrimSpace(r.BusinessCategory),
		WebsiteURL:             strings.TrimSpace(r.WebsiteURL),
		Country:                strings.TrimSpace(r.Country),
		State:                  strings.TrimSpace(r.State),
		City:                   strings.TrimSpace(r.City),
		Pincode:                strings.TrimSpace(r.Pincode),
		Timezone:               strings.TrimSpace(r.Timezone),
		PreferredLanguage:      strings.TrimSpace(r.PreferredLanguage),
		NotificationPreference: strings.TrimSpace(r.NotificationPreference),
	}
	if p.Timezone == "" {
		p.Timezone = defaultTimezone
	}
	if p.PreferredLanguage == "" {
		p.PreferredLanguage = defaultPreferredLanguage
	}
	if p.NotificationPreference == "" {
		p.NotificationPreference = defaultNotificationPreference
	}
	return p
}

func (a *AuthServiceImpl) publish(ctx context.Context, ev events.Event) {
	if err := a.Events.Publish(ctx, ev); err != nil {
		slog.Default().WarnContext(ctx, "event publish failed", "type", ev.EventType(), "error", err)
	}
}
