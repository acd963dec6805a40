package domain

import "log/slog"

const redacted = "[REDACTED]"

// SecretString wraps configuration values that must never reach logs:
// database DSNs, SMTP passwords, PEM signing keys. Both fmt and slog
// render it as a placeholder.
type SecretString string

func (s SecretString) String() string { return redacted }

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Expose returns the underlying value. Call it only at the point of use.
func (s SecretString) Expose() string {
	return string(s)
}

// IsEmpty returns true if the secret is empty.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}

var _ slog.LogValuer = SecretString("")
