package flow

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Limits mirror the users table column widths.
const (
	minPasswordLength = 6
	maxUsernameLength = 80
	maxEmailLength    = 120
	maxPhoneLength    = 20
	maxNameLength     = 255
	maxCategoryLength = 100
	maxWebsiteLength  = 500
	maxPlaceLength    = 100
	maxPincodeLength  = 20
	maxTimezoneLength = 50
	maxLanguageLength = 10
	maxChannelLength  = 50
)

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) empty() bool { return len(f) == 0 }

func validEmail(s string) bool {
	if s == "" || len(s) > maxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func validWebsite(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func checkPassword(errs fieldErrors, field, confirmField, password, confirm, mismatch string) {
	switch {
	case password == "":
		errs.add(field, "Password is required.")
	case len(password) < minPasswordLength:
		errs.add(field, "Password must be at least 6 characters.")
	case password != confirm:
		errs.add(confirmField, mismatch)
	}
}

// checkLength flags value when it exceeds max characters.
func checkLength(errs fieldErrors, field, value string, max int) {
	if utf8.RuneCountInString(value) > max {
		errs.add(field, fmt.Sprintf("Must be at most %d characters.", max))
	}
}

func trim(s string) string { return strings.TrimSpace(s) }

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

func validOTP(s string) bool { return otpPattern.MatchString(s) }
