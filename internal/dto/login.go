package dto

type LoginRequest struct {
	Identifier string `json:"loginIdentifier" form:"loginIdentifier"`
	Password   string `json:"password" form:"password"`
}

type ResetRequest struct {
	Email string `json:"email" form:"email"`
}

type NewPasswordRequest struct {
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}
