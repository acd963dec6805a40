package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/observability"
)

// VerifyOTP checks code against the account's outstanding codes and mints a
// session token on a match. Misses are counted; reaching the attempt limit
// sets a time-based lockout that rejects every verification until it expires.
func (s *Service) VerifyOTP(ctx context.Context, rawCPF, code string) (*VerifyOTPResult, error) {
	ctx, span := tracer.Start(ctx, "identity.verify_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	cpf, err := domain.ParseCPFDigits(rawCPF)
	if err != nil {
		return nil, spanError(span, err)
	}
	if len(code) != domain.OTPLength {
		return nil, spanError(span, &domain.ValidationError{Field: "code", Message: "Código deve ter 6 dígitos"})
	}

	if err := s.checkLockout(ctx, cpf); err != nil {
		return nil, spanError(span, err)
	}

	account, err := s.accounts.FindByCPF(ctx, cpf)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, spanError(span, domain.ErrAccountNotFound)
		}
		return nil, spanError(span, fmt.Errorf("find account: %w", err))
	}

	now := s.clock.Now().UTC()
	record, err := s.otps.FindActive(ctx, account.ID, code, now)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, spanError(span, fmt.Errorf("find OTP: %w", err))
		}
		logger.InfoContext(ctx, "identity.otp_failed", "account_id", account.ID.String())
		return nil, spanError(span, s.recordFailure(ctx, cpf))
	}

	if err := s.otps.Consume(ctx, *record); err != nil {
		if !errors.Is(err, domain.ErrOTPConsumed) {
			return nil, spanError(span, fmt.Errorf("consume OTP: %w", err))
		}
		// Lost the race to a concurrent verification of the same code.
		logger.InfoContext(ctx, "identity.otp_failed", "account_id", account.ID.String(), "reason", "consumed")
		return nil, spanError(span, s.recordFailure(ctx, cpf))
	}

	if err := s.counters.Delete(ctx, s.policy.key(domain.CounterAttempts, cpf)); err != nil {
		logger.WarnContext(ctx, "failed to clear attempt counter", "error", err, "account_id", account.ID.String())
	}

	minted, err := s.minter.MintAccessToken(account.ID.String())
	if err != nil {
		return nil, spanError(span, fmt.Errorf("mint session token: %w", err))
	}

	otpVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "success")))
	tokensMintedTotal.Add(ctx, 1)
	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	logger.InfoContext(ctx, "identity.otp_verified", "account_id", account.ID.String(), "jti", minted.JTI)

	return &VerifyOTPResult{
		Token:     minted.Token,
		ExpiresAt: minted.ExpiresAt,
		Account:   *account,
	}, nil
}

// checkLockout fails with ErrAccountLocked while the lockout flag exists.
// Read failures deny.
func (s *Service) checkLockout(ctx context.Context, cpf domain.CPF) error {
	flag, err := s.counters.Get(ctx, s.policy.key(domain.CounterLockout, cpf))
	if err != nil {
		return fmt.Errorf("check lockout: %w", errors.Join(err, domain.ErrUnavailable))
	}
	if flag > 0 {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_type", "lockout")))
		otpVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "locked")))
		return domain.ErrAccountLocked
	}
	return nil
}

// recordFailure counts a miss and returns the error the caller should see:
// ErrTooManyAttempts once the limit is reached, otherwise an
// InvalidCodeError carrying the attempts left.
func (s *Service) recordFailure(ctx context.Context, cpf domain.CPF) error {
	attempts, err := s.counters.Increment(ctx, s.policy.key(domain.CounterAttempts, cpf), s.policy.AttemptWindow)
	if err != nil {
		return fmt.Errorf("count failed attempt: %w", err)
	}

	if attempts >= int64(s.policy.MaxAttempts) {
		if err := s.counters.Set(ctx, s.policy.key(domain.CounterLockout, cpf), 1, s.policy.Lockout); err != nil {
			return fmt.Errorf("set lockout: %w", err)
		}
		lockoutsTotal.Add(ctx, 1)
		otpVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "blocked")))
		observability.WithTraceID(ctx, s.logger).WarnContext(ctx, "identity.lockout_set",
			"cpf", cpf, "attempts", attempts)
		return domain.ErrTooManyAttempts
	}

	otpVerificationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "invalid")))
	return &domain.InvalidCodeError{Remaining: s.policy.MaxAttempts - int(attempts)}
}
