package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain error conditions.
// Use errors.Is() for matching - never compare error strings.
var (
	// ID validation errors
	ErrEmptyID   = errors.New("ID cannot be empty")
	ErrInvalidID = errors.New("invalid ID format")

	// Resource errors
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCPF         = errors.New("invalid CPF")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidPhoneNumber = errors.New("invalid phone number")

	// Account errors
	ErrAccountNotFound = errors.New("CPF not found")
	ErrEmailInUse      = errors.New("email already registered")

	// OTP errors
	ErrInvalidOTP  = errors.New("invalid or expired code")
	ErrOTPConsumed = errors.New("code already used")

	// Abuse prevention
	ErrRateLimited       = errors.New("too many code requests, try again later")
	ErrResendRateLimited = errors.New("too many resend requests, try again later")
	ErrAccountLocked     = errors.New("account temporarily blocked after too many attempts")
	ErrTooManyAttempts   = errors.New("too many failed attempts, account blocked")
	ErrIPRateLimited     = errors.New("too many requests")

	// Operational errors
	ErrUnavailable    = errors.New("service temporarily unavailable")
	ErrDeliveryFailed = errors.New("could not deliver verification code")

	// Configuration errors
	ErrConfigRequired = errors.New("required configuration key missing")
)

// InvalidCodeError is returned when a verification attempt does not match any
// eligible code. Remaining is the number of attempts left before lockout.
type InvalidCodeError struct {
	Remaining int
}

func (e *InvalidCodeError) Error() string {
	if e.Remaining == 1 {
		return fmt.Sprintf("%s: 1 attempt remaining", ErrInvalidOTP)
	}
	return fmt.Sprintf("%s: %d attempts remaining", ErrInvalidOTP, e.Remaining)
}

// Unwrap lets errors.Is(err, ErrInvalidOTP) match.
func (e *InvalidCodeError) Unwrap() error {
	return ErrInvalidOTP
}

// ValidationError describes a rejected request field. Message is safe to
// show to the client.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// RemainingAttempts extracts the remaining attempt count from err.
// The second return value is false when err is not an InvalidCodeError.
func RemainingAttempts(err error) (int, bool) {
	var ice *InvalidCodeError
	if errors.As(err, &ice) {
		return ice.Remaining, true
	}
	return 0, false
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry without client-side changes.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrResendRateLimited) ||
		errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrTooManyAttempts) ||
		errors.Is(err, ErrIPRateLimited) ||
		errors.Is(err, ErrDeliveryFailed)
}

// clientErrors enumerates all domain errors that represent client-side issues.
var clientErrors = []error{
	ErrInvalidInput,
	ErrInvalidCPF,
	ErrInvalidEmail,
	ErrInvalidPhoneNumber,
	ErrNotFound,
	ErrAccountNotFound,
	ErrAlreadyExists,
	ErrEmailInUse,
	ErrUnauthorized,
	ErrEmptyID,
	ErrInvalidID,
	ErrInvalidOTP,
	ErrOTPConsumed,
}

// IsClientError returns true if the error represents a client-side issue
// that will not succeed on retry without client-side changes.
func IsClientError(err error) bool {
	for _, target := range clientErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsNotFound returns true if the error represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccountNotFound)
}
