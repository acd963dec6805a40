package domain

import (
	"net/mail"
	"strings"
)

// NormalizeEmail trims surrounding whitespace and lowercases the address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidEmail reports whether raw parses as a single bare address.
func ValidEmail(raw string) bool {
	if raw == "" || len(raw) > MaxEmailLength {
		return false
	}
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}

// MaskEmail keeps up to the first three characters of the local part and
// replaces the rest with "***". Only the segment between the first and second
// "@" survives as the domain. Input without a usable "@" is returned as is.
func MaskEmail(email string) string {
	local, rest, ok := strings.Cut(email, "@")
	domainPart, _, _ := strings.Cut(rest, "@")
	if !ok || local == "" || domainPart == "" {
		return email
	}
	keep := min(3, len(local))
	return local[:keep] + "***@" + domainPart
}
