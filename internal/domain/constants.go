package domain

import "time"

// Compiled defaults for the OTP policy. Each can be overridden via configuration.
const (
	OTPValidityDuration   = 10 * time.Minute // How long an issued code remains eligible
	MaxOTPVerifyAttempts  = 5                // Failed verifications before lockout
	OTPAttemptWindow      = 30 * time.Minute // TTL of the failed-attempt counter
	OTPLockoutDuration    = 30 * time.Minute // Lockout flag TTL
	OTPRequestLimit       = 3                // Issuance (and resend) requests per window
	OTPRequestWindow      = 15 * time.Minute // Issuance (and resend) counter TTL
	SessionTokenLifetime  = 7 * 24 * time.Hour
	DefaultCounterPrefix  = "otp"
	DefaultIPRequestLimit = 100 // Requests per client IP per minute, all routes

	// OTP code shape.
	OTPLength = 6
	OTPMin    = 100000
	OTPMax    = 999999

	// Timeout contracts
	PostgresTimeout = 5 * time.Second
	DynamoDBTimeout = 5 * time.Second
	RedisTimeout    = 2 * time.Second
	SMTPTimeout     = 10 * time.Second

	// Graceful shutdown
	GracefulShutdownTimeout = 30 * time.Second
	ShutdownDrainDelay      = 2 * time.Second
	ShutdownHTTPTimeout     = 15 * time.Second
	ShutdownOTELTimeout     = 5 * time.Second

	// Profile field limits
	MinNameLength  = 3
	MaxNameLength  = 100
	MaxEmailLength = 255
)

// CounterKind identifies an independent counter namespace for one account.
type CounterKind string

const (
	CounterIssuance CounterKind = "ratelimit"
	CounterResend   CounterKind = "resend"
	CounterAttempts CounterKind = "attempts"
	CounterLockout  CounterKind = "block"
)

// CounterKey builds the store key for a counter: prefix:kind:cpf.
func CounterKey(prefix string, kind CounterKind, cpf CPF) string {
	return prefix + ":" + string(kind) + ":" + cpf.String()
}
