package service

import (
	"context"

	"onboarding/internal/domain"
	"onboarding/internal/dto"
)

type RegisterResult struct {
	User    *domain.User
	OTPSent bool
}

type AuthService interface {
	// Authenticate returns the user alongside domain.ErrNotVerified when the
	// password matched but the email was never confirmed.
	Authenticate(ctx context.Context, identifier, password string) (*domain.User, error)
	Register(ctx context.Context, r dto.RegisterRequest) (*RegisterResult, error)
	RequestPasswordReset(ctx context.Context, email string) (*domain.User, bool, error)
	ResetPassword(ctx context.Context, userID domain.UserID, newPassword string) error
	CompleteProfile(ctx context.Context, userID domain.UserID, r dto.ProfileRequest) (*domain.User, error)
	GetUser(ctx context.Context, userID domain.UserID) (*domain.User, error)
}
