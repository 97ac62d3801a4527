package service

import (
	"context"

	"onboarding/internal/domain"
)

type OTPService interface {
	Issue(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) (code string, sent bool, err error)
	VerifyRegistration(ctx context.Context, userID domain.UserID, code string) (bool, error)
	VerifyPasswordReset(ctx context.Context, userID domain.UserID, code string) (bool, error)
	Resend(ctx context.Context, userID domain.UserID, purpose domain.OTPPurpose) (bool, error)
}
