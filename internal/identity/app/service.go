// Package app holds the identity flows: OTP issuance, resend, verification
// and the authenticated profile operations. It depends only on the store
// and sender interfaces declared here.
package app

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/domain"
)

var tracer = otel.Tracer("identity/app")

var (
	otpIssuedTotal        metric.Int64Counter
	otpVerificationsTotal metric.Int64Counter
	rateLimitsTotal       metric.Int64Counter
	lockoutsTotal         metric.Int64Counter
	accountsCreatedTotal  metric.Int64Counter
	tokensMintedTotal     metric.Int64Counter
)

func init() {
	m := otel.Meter("identity/app")

	otpIssuedTotal, _ = m.Int64Counter("identity_otp_issued_total",
		metric.WithDescription("Total OTP issuance attempts by flow and status"))
	otpVerificationsTotal, _ = m.Int64Counter("identity_otp_verifications_total",
		metric.WithDescription("Total OTP verifications by result"))
	rateLimitsTotal, _ = m.Int64Counter("identity_rate_limits_total",
		metric.WithDescription("Total requests rejected by a per-CPF limit"))
	lockoutsTotal, _ = m.Int64Counter("identity_lockouts_total",
		metric.WithDescription("Total lockouts set after repeated failures"))
	accountsCreatedTotal, _ = m.Int64Counter("identity_accounts_created_total",
		metric.WithDescription("Total accounts created on first issuance"))
	tokensMintedTotal, _ = m.Int64Counter("identity_tokens_minted_total",
		metric.WithDescription("Total session tokens minted"))
}

// Account is a claimant identified by CPF. Name and Phone stay empty until
// the claimant fills in the profile.
type Account struct {
	ID        domain.AccountID
	CPF       domain.CPF
	Email     string
	Name      string
	Phone     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OTPRecord is one issued code. Several may be outstanding per account.
type OTPRecord struct {
	ID        string
	AccountID domain.AccountID
	Code      string
	CreatedAt time.Time
	ExpiresAt time.Time
	Consumed  bool
}

// ProfileUpdate carries the profile fields to change. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Name  *string
	Phone *string
	Email *string
}

// AccountStore persists claimant accounts.
type AccountStore interface {
	// FindByCPF returns domain.ErrNotFound when no account owns cpf.
	FindByCPF(ctx context.Context, cpf domain.CPF) (*Account, error)
	GetByID(ctx context.Context, id domain.AccountID) (*Account, error)
	// Create returns domain.ErrAlreadyExists when the CPF is taken and
	// domain.ErrEmailInUse when the email belongs to another account.
	Create(ctx context.Context, account Account) error
	UpdateProfile(ctx context.Context, id domain.AccountID, update ProfileUpdate, now time.Time) (*Account, error)
}

// OTPStore persists issued codes.
type OTPStore interface {
	Create(ctx context.Context, record OTPRecord) error
	// FindActive returns the newest unconsumed record for accountID whose
	// code equals code and whose expiry is after now, or domain.ErrNotFound.
	FindActive(ctx context.Context, accountID domain.AccountID, code string, now time.Time) (*OTPRecord, error)
	// Consume flips the consumed flag only if it is still false; otherwise
	// it returns domain.ErrOTPConsumed.
	Consume(ctx context.Context, record OTPRecord) error
}

// CounterStore is an integer key-value store with per-key expiry.
// Increment creates the key at 1 when absent and (re)sets its ttl.
type CounterStore interface {
	Get(ctx context.Context, key string) (int64, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Policy holds the OTP abuse-prevention thresholds.
type Policy struct {
	Validity      time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
	Lockout       time.Duration
	RequestLimit  int
	RequestWindow time.Duration
	CounterPrefix string
}

// DefaultPolicy returns the compiled-in thresholds.
func DefaultPolicy() Policy {
	return Policy{
		Validity:      domain.OTPValidityDuration,
		MaxAttempts:   domain.MaxOTPVerifyAttempts,
		AttemptWindow: domain.OTPAttemptWindow,
		Lockout:       domain.OTPLockoutDuration,
		RequestLimit:  domain.OTPRequestLimit,
		RequestWindow: domain.OTPRequestWindow,
		CounterPrefix: domain.DefaultCounterPrefix,
	}
}

func (p Policy) key(kind domain.CounterKind, cpf domain.CPF) string {
	return domain.CounterKey(p.CounterPrefix, kind, cpf)
}

// RequestOTPResult is returned by RequestOTP. When RequiresEmail is set no
// code was issued and nothing was stored.
type RequestOTPResult struct {
	RequiresEmail bool
	MaskedEmail   string
	ExpiresAt     time.Time
}

// VerifyOTPResult is returned by VerifyOTP on success.
type VerifyOTPResult struct {
	Token     string
	ExpiresAt time.Time
	Account   Account
}

// ServiceConfig holds the dependencies for Service.
type ServiceConfig struct {
	Accounts AccountStore
	OTPs     OTPStore
	Counters CounterStore
	Email    auth.EmailSender
	Minter   *auth.Minter
	Clock    domain.Clock
	Policy   Policy
	Logger   *slog.Logger
}

// Service orchestrates the identity flows.
type Service struct {
	accounts AccountStore
	otps     OTPStore
	counters CounterStore
	email    auth.EmailSender
	minter   *auth.Minter
	clock    domain.Clock
	policy   Policy
	logger   *slog.Logger
}

// NewService creates a Service. A zero Policy is replaced by DefaultPolicy.
func NewService(cfg ServiceConfig) *Service {
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if policy.CounterPrefix == "" {
		policy.CounterPrefix = domain.DefaultCounterPrefix
	}
	clock := cfg.Clock
	if clock == nil {
		clock = domain.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: cfg.Accounts,
		otps:     cfg.OTPs,
		counters: cfg.Counters,
		email:    cfg.Email,
		minter:   cfg.Minter,
		clock:    clock,
		policy:   policy,
		logger:   logger,
	}
}
