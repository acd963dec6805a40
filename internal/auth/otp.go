package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/bagly/claim-intake/internal/domain"
)

var otpSpan = big.NewInt(domain.OTPMax - domain.OTPMin + 1)

// GenerateOTP returns a uniformly random code in [100000, 999999].
// crypto/rand.Int rejects out-of-range draws, so there is no modulo bias.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", fmt.Errorf("generate OTP: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+domain.OTPMin), nil
}
