package domain

import (
	"fmt"
	"log/slog"
	"strings"
)

// CPF is a Brazilian taxpayer number held as exactly 11 ASCII digits.
type CPF struct {
	value string
}

// NormalizeCPF strips every non-digit character from raw.
func NormalizeCPF(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ValidCPF reports whether raw, after normalization, is a CPF whose two
// check digits are correct. Sequences of one repeated digit are rejected.
func ValidCPF(raw string) bool {
	d := NormalizeCPF(raw)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return checkDigit(d[:9], 10) == d[9] && checkDigit(d[:10], 11) == d[10]
}

// checkDigit computes a CPF verifier over digits with weights counting
// down from weight to 2.
func checkDigit(digits string, weight int) byte {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (weight - i)
	}
	r := (sum * 10) % 11
	if r == 10 {
		r = 0
	}
	return byte('0' + r)
}

// NewCPF normalizes raw and validates its checksum.
func NewCPF(raw string) (CPF, error) {
	d := NormalizeCPF(raw)
	if !ValidCPF(d) {
		return CPF{}, fmt.Errorf("cpf %q: %w", MaskCPF(d), ErrInvalidCPF)
	}
	return CPF{value: d}, nil
}

// ParseCPFDigits normalizes raw and checks only that 11 digits remain.
// Verification uses this looser form; the checksum was enforced at issuance.
func ParseCPFDigits(raw string) (CPF, error) {
	d := NormalizeCPF(raw)
	if len(d) != 11 {
		return CPF{}, fmt.Errorf("cpf must have 11 digits: %w", ErrInvalidCPF)
	}
	return CPF{value: d}, nil
}

// MustCPF creates a CPF, panicking on invalid input. Use only in tests.
func MustCPF(raw string) CPF {
	c, err := NewCPF(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CPF) String() string { return c.value }
func (c CPF) IsZero() bool   { return c.value == "" }

// LogValue keeps the full number out of logs.
func (c CPF) LogValue() slog.Value { return slog.StringValue(MaskCPF(c.value)) }

// MaskCPF hides all but the last two digits: *********25.
func MaskCPF(digits string) string {
	if len(digits) <= 2 {
		return digits
	}
	return strings.Repeat("*", len(digits)-2) + digits[len(digits)-2:]
}

var _ slog.LogValuer = CPF{}
