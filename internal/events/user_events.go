package events

import "time"

type UserRegistered struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	AppNameID string    `json:"appNameId"`
	At        time.Time `json:"at"`
}

func (e UserRegistered) EventType() string { return "user.registered" }
func (e UserRegistered) Key() string       { return e.UserID }

type UserVerified struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

func (e UserVerified) EventType() string { return "user.verified" }
func (e UserVerified) Key() string       { return e.UserID }

type ProfileCompleted struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

func (e ProfileCompleted) EventType() string { return "user.profile_completed" }
func (e ProfileCompleted) Key() string       { return e.UserID }

type PasswordReset struct {
	UserID string    `json:"userId"`
	At     time.Time `json:"at"`
}

func (e PasswordReset) EventType() string { return "user.password_reset" }
func (e PasswordReset) Key() string       { return e.UserID }
