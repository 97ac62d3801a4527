package dto

type RegisterRequest struct {
	Username        string `json:"fullName" form:"fullName"`
	Email           string `json:"email" form:"email"`
	Phone           string `json:"phone" form:"phone"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

type OTPRequest struct {
	Code string `json:"otp" form:"otp"`
}

// ResendResponse is the JSON body of the resend endpoints.
type ResendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
