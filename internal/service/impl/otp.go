package impl

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

const otpDigits = 6

var (
	otpPattern = regexp.MustCompile(`^[0-9]{6}$`)
	otpSpace   = big.NewInt(1_000_000)
)

// GenerateOTP returns a uniformly random six digit code, leading zeros kept.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func ValidOTPFormat(code string) bool {
	return otpPattern.MatchString(code)
}
