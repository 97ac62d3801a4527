package session

import "github.com/google/uuid"

type RegistrationStage string

const (
	RegistrationNone        RegistrationStage = ""
	RegistrationPendingOTP  RegistrationStage = "pending_otp"
	RegistrationOTPVerified RegistrationStage = "otp_verified"
)

type ResetStage string

const (
	ResetNone        ResetStage = ""
	ResetOTPSent     ResetStage = "otp_sent"
	ResetOTPVerified ResetStage = "otp_verified"
	ResetCompleted   ResetStage = "completed"
)

// Registration tracks a sign-up that has not finished email verification.
// UserID and Email are only set while Stage is pending_otp.
type Registration struct {
	Stage  RegistrationStage `json:"stage,omitempty"`
	UserID uuid.UUID         `json:"userId"`
	Email  string            `json:"email,omitempty"`
}

// Reset tracks the forgot-password flow. UserID and Email are set while
// Stage is otp_sent or otp_verified.
type Reset struct {
	Stage  ResetStage `json:"stage,omitempty"`
	UserID uuid.UUID  `json:"userId"`
	Email  string     `json:"email,omitempty"`
}

// State is everything the flow keeps between requests.
type State struct {
	UserID       uuid.UUID    `json:"userId"`
	Registration Registration `json:"registration"`
	Reset        Reset        `json:"reset"`
	// Flash is shown on the next rendered page, then cleared.
	Flash string `json:"flash,omitempty"`
}

func (s *State) Authenticated() bool { return s.UserID != uuid.Nil }

func (s *State) IsZero() bool {
	return s.UserID == uuid.Nil && s.Registration == (Registration{}) && s.Reset == (Reset{}) && s.Flash == ""
}

// TakeFlash returns and clears the pending notice.
func (s *State) TakeFlash() string {
	f := s.Flash
	s.Flash = ""
	return f
}

func (s *State) SignIn(userID uuid.UUID) { s.UserID = userID }

func (s *State) SignOut() { s.UserID = uuid.Nil }

// PurgeFlows drops all registration and reset progress.
func (s *State) PurgeFlows() {
	s.Registration = Registration{}
	s.Reset = Reset{}
}

func (s *State) BeginRegistration(userID uuid.UUID, email string) {
	s.Registration = Registration{Stage: RegistrationPendingOTP, UserID: userID, Email: email}
}

// PendingRegistration returns the user awaiting registration OTP entry.
func (s *State) PendingRegistration() (uuid.UUID, bool) {
	r := s.Registration
	if r.Stage != RegistrationPendingOTP || r.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return r.UserID, true
}

// MarkOTPVerified advances registration and forgets the pending identity.
func (s *State) MarkOTPVerified() {
	s.Registration = Registration{Stage: RegistrationOTPVerified}
}

func (s *State) OTPVerified() bool { return s.Registration.Stage == RegistrationOTPVerified }

func (s *State) ClearRegistration() { s.Registration = Registration{} }

func (s *State) BeginReset(userID uuid.UUID, email string) {
	s.Reset = Reset{Stage: ResetOTPSent, UserID: userID, Email: email}
}

// ResetUser returns the user a password reset is in progress for.
func (s *State) ResetUser() (uuid.UUID, bool) {
	r := s.Reset
	if (r.Stage != ResetOTPSent && r.Stage != ResetOTPVerified) || r.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return r.UserID, true
}

func (s *State) MarkResetOTPVerified() {
	if s.Reset.Stage == ResetOTPSent {
		s.Reset.Stage = ResetOTPVerified
	}
}

// CompleteReset leaves only the one-shot completed marker.
func (s *State) CompleteReset() { s.Reset = Reset{Stage: ResetCompleted} }

func (s *State) ResetCompleted() bool { return s.Reset.Stage == ResetCompleted }

// ConsumeResetCompleted reports and clears the completed marker.
func (s *State) ConsumeResetCompleted() bool {
	if s.Reset.Stage != ResetCompleted {
		return false
	}
	s.Reset = Reset{}
	return true
}
