package domain

// OTPPurpose names the flow a challenge was issued for. It selects the
// message template and the metrics label; it is not persisted.
type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "registration"
	PurposeLogin         OTPPurpose = "login"
	PurposePasswordReset OTPPurpose = "password_reset"
)

// MessageKind is the notification template a message is rendered with.
type MessageKind string

const (
	MessageRegistrationOTP  MessageKind = "registration_otp"
	MessageLoginOTP         MessageKind = "login_otp"
	MessagePasswordResetOTP MessageKind = "password_reset_otp"
)

func (p OTPPurpose) MessageKind() MessageKind {
	switch p {
	case PurposeLogin:
		return MessageLoginOTP
	case PurposePasswordReset:
		return MessagePasswordResetOTP
	default:
		return MessageRegistrationOTP
	}
}
