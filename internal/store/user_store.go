package store

import (
	"context"
	"time"

	"onboarding/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStore struct{ db *gorm.DB }

func (s *Store) Users() *UserStore { return &UserStore{db: s.DB} }

func (u *UserStore) Create(ctx context.Context, usr *domain.User) error {
	if usr.ID == uuid.Nil {
		usr.ID = uuid.New()
	}
	return u.db.WithContext(ctx).Create(usr).Error
}

func (u *UserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (u *UserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := u.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByEmailOrUsername returns the first user whose email or username matches.
// Registration uses it as a single collision query.
func (u *UserStore) FindByEmailOrUsername(ctx context.Context, email, username string) (*domain.User, error) {
	var user domain.User
	err := u.db.WithContext(ctx).
		Where("email = ? OR username = ?", email, username).
		Order("created_at").
		First(&user).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// FindByIdentifier resolves a login identifier that may be either an email or a username.
func (u *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	return u.FindByEmailOrUsername(ctx, identifier, identifier)
}

func (u *UserStore) ExistsByTenantID(ctx context.Context, appNameID string) (bool, error) {
	var n int64
	err := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("app_name_id = ?", appNameID).
		Count(&n).Error
	return n > 0, err
}

// UsernameTaken reports whether another user already holds username.
func (u *UserStore) UsernameTaken(ctx context.Context, username string, except uuid.UUID) (bool, error) {
	var n int64
	err := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("username = ? AND id <> ?", username, except).
		Count(&n).Error
	return n > 0, err
}

// SaveOTP overwrites any pending challenge for the user.
func (u *UserStore) SaveOTP(ctx context.Context, userID uuid.UUID, code string, createdAt, expiresAt time.Time) error {
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"otp_code":       code,
			"otp_created_at": createdAt,
			"otp_expires_at": expiresAt,
			"updated_at":     time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ConsumeOTP clears the challenge only if it still holds code. The boolean is
// false when another request consumed or replaced the code first.
func (u *UserStore) ConsumeOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND otp_code = ?", userID, code).
		Updates(clearedOTP())
	return tx.RowsAffected == 1, tx.Error
}

// ConsumeOTPAndVerify is ConsumeOTP plus flipping is_verified in the same statement.
func (u *UserStore) ConsumeOTPAndVerify(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	fields := clearedOTP()
	fields["is_verified"] = true
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND otp_code = ?", userID, code).
		Updates(fields)
	return tx.RowsAffected == 1, tx.Error
}

// ClearOTP drops any outstanding challenge regardless of its value.
func (u *UserStore) ClearOTP(ctx context.Context, userID uuid.UUID) error {
	return u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(clearedOTP()).Error
}

// SaveProfile stores the profile step and marks it completed. It only applies
// while profile_completed is still false, so the flag flips exactly once.
func (u *UserStore) SaveProfile(ctx context.Context, userID uuid.UUID, username, phone string, p domain.Profile) (bool, error) {
	tx := u.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND profile_completed = ?", userID, false).
		Updates(map[string]any{
			"username":                username,
			"phone":                   phone,
			"business_name":           p.BusinessName,
			"business_category":       p.BusinessCategory,
			"website_url":             p.WebsiteURL,
			"country":                 p.Country,
			"state":                   p.State,
			"city":                    p.City,
			"pincode":                 p.Pincode,
			"timezone":                p.Timezone,
			"preferred_language":      p.PreferredLanguage,
			"notification_preference": p.NotificationPreference,
			"profile_completed":       true,
			"updated_at":              time.Now().UTC(),
		})
	return tx.RowsAffected == 1, tx.Error
}

func clearedOTP() map[string]any {
	return map[string]any{
		"otp_code":       nil,
		"otp_created_at": nil,
		"otp_expires_at": nil,
		"updated_at":     time.Now().UTC(),
	}
}
