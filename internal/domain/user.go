package domain

import "time"

type User struct {
	ID               UserID `gorm:"type:uuid;primaryKey" db:"id" json:"id"`
	Username         string `gorm:"type:varchar(80);not null;uniqueIndex:ux_users_username" db:"username" json:"username"`
	Email            string `gorm:"type:varchar(120);not null;uniqueIndex:ux_users_email" db:"email" json:"email"`
	Phone            string `gorm:"type:varchar(20)" db:"phone" json:"phone"`
	IsVerified       bool   `gorm:"not null;default:false" db:"is_verified" json:"isVerified"`
	ProfileCompleted bool   `gorm:"not null;default:false" db:"profile_completed" json:"profileCompleted"`

	// Tenant id, generated once at registration.
	AppNameID string `gorm:"column:app_name_id;type:varchar(6);not null;uniqueIndex:ux_users_app_name_id" db:"app_name_id" json:"appNameId"`

	OTPCode      *string    `gorm:"column:otp_code;type:varchar(6)" db:"otp_code" json:"-"`
	OTPCreatedAt *time.Time `gorm:"column:otp_created_at" db:"otp_created_at" json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at" db:"otp_expires_at" json:"-"`

	Profile

	CreatedAt time.Time `gorm:"not null" db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" db:"updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Profile holds the attributes collected by the profile-completion step.
type Profile struct {
	BusinessName     string `gorm:"type:varchar(255)" db:"business_name" json:"businessName"`
	BusinessCategory string `gorm:"type:varchar(100)" db:"business_category" json:"businessCategory"`
	WebsiteURL       string `gorm:"column:website_url;type:varchar(500)" db:"website_url" json:"websiteUrl"`

	Country string `gorm:"type:varchar(100)" db:"country" json:"country"`
	State   string `gorm:"type:varchar(100)" db:"state" json:"state"`
	City    string `gorm:"type:varchar(100)" db:"city" json:"city"`
	Pincode string `gorm:"type:varchar(20)" db:"pincode" json:"pincode"`

	Timezone               string `gorm:"type:varchar(50);default:'utc'" db:"timezone" json:"timezone"`
	PreferredLanguage      string `gorm:"type:varchar(10);default:'en'" db:"preferred_language" json:"preferredLanguage"`
	NotificationPreference string `gorm:"type:varchar(50);default:'email'" db:"notification_preference" json:"notificationPreference"`
}

// HasPendingOTP reports whether a challenge is outstanding, expired or not.
func (u *User) HasPendingOTP() bool {
	return u.OTPCode != nil && u.OTPExpiresAt != nil
}
