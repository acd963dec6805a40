package domain

import "fmt"

// PhoneNumber is a Brazilian phone number held as 10 or 11 digits
// (area code plus subscriber number, no country prefix).
type PhoneNumber struct {
	value string
}

// NewPhoneNumber strips formatting from raw and validates the digit count.
// A leading +55 country code is accepted and removed.
func NewPhoneNumber(raw string) (PhoneNumber, error) {
	d := NormalizeCPF(raw)
	if len(d) == 13 && d[:2] == "55" {
		d = d[2:]
	}
	if d == "" {
		return PhoneNumber{}, fmt.Errorf("phone number cannot be empty: %w", ErrInvalidPhoneNumber)
	}
	if len(d) < 10 || len(d) > 11 {
		return PhoneNumber{}, fmt.Errorf("phone number must have 10 or 11 digits, got %d: %w", len(d), ErrInvalidPhoneNumber)
	}
	if d[0] == '0' {
		return PhoneNumber{}, fmt.Errorf("area code cannot start with 0: %w", ErrInvalidPhoneNumber)
	}
	return PhoneNumber{value: d}, nil
}

// MustPhoneNumber creates a PhoneNumber, panicking on invalid input. Use only in tests.
func MustPhoneNumber(raw string) PhoneNumber {
	p, err := NewPhoneNumber(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p PhoneNumber) String() string { return p.value }
func (p PhoneNumber) IsZero() bool   { return p.value == "" }
