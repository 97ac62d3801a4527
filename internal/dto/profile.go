package dto

type ProfileRequest struct {
	Username string `json:"fullName" form:"fullName"`
	Phone    string `json:"phone" form:"phone"`

	BusinessName     string `json:"businessName" form:"businessName"`
	BusinessCategory string `json:"businessCategory" form:"businessCategory"`
	WebsiteURL       string `json:"websiteUrl" form:"websiteUrl"`

	Country string `json:"country" form:"country"`
	State   string `json:"state" form:"state"`
	City    string `json:"city" form:"city"`
	Pincode string `json:"pincode" form:"pincode"`

	Timezone               string `json:"timezone" form:"timezone"`
	PreferredLanguage      string `json:"preferredLanguage" form:"preferredLanguage"`
	NotificationPreference string `json:"notificationPreference" form:"notificationPreference"`
}

// UserView is the user summary exposed to the front end.
type UserView struct {
	ID               string `json:"id"`
	Username         string `json:"username"`
	Email            string `json:"email"`
	Phone            string `json:"phone,omitempty"`
	AppNameID        string `json:"appNameId"`
	IsVerified       bool   `json:"isVerified"`
	ProfileCompleted bool   `json:"profileCompleted"`
	BusinessName     string `json:"businessName,omitempty"`
}
