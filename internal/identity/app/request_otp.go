package app

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/observability"
)

// RequestOTP issues a code for the account owning rawCPF, creating the
// account when it does not exist and rawEmail is supplied. An unknown CPF
// without an email yields RequiresEmail and mutates nothing.
func (s *Service) RequestOTP(ctx context.Context, rawCPF, rawEmail string) (*RequestOTPResult, error) {
	ctx, span := tracer.Start(ctx, "identity.request_otp")
	defer span.End()

	logger := observability.WithTraceID(ctx, s.logger)

	cpf, err := domain.NewCPF(rawCPF)
	if err != nil {
		return nil, spanError(span, err)
	}
	email := domain.NormalizeEmail(rawEmail)
	if email != "" && !domain.ValidEmail(email) {
		return nil, spanError(span, fmt.Errorf("email: %w", domain.ErrInvalidEmail))
	}

	limitKey := s.policy.key(domain.CounterIssuance, cpf)
	if err := s.checkRequestLimit(ctx, limitKey, "issuance", domain.ErrRateLimited); err != nil {
		return nil, spanError(span, err)
	}

	account, err := s.accounts.FindByCPF(ctx, cpf)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if email == "" {
			otpIssuedTotal.Add(ctx, 1, metric.WithAttributes(
				attribute.String("flow", "request"),
				attribute.String("status", "requires_email"),
			))
			return &RequestOTPResult{RequiresEmail: true}, nil
		}
		account, err = s.createAccount(ctx, cpf, email)
		if err != nil {
			return nil, spanError(span, err)
		}
	case err != nil:
		return nil, spanError(span, fmt.Errorf("find account: %w", err))
	}

	result, err := s.issue(ctx, account, limitKey, "request")
	if err != nil {
		return nil, spanError(span, err)
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	logger.InfoContext(ctx, "identity.otp_requested", "account_id", account.ID.String())

	return result, nil
}

// createAccount registers cpf with email. A concurrent registration of the
// same CPF is resolved by re-reading the winner's account.
func (s *Service) createAccount(ctx context.Context, cpf domain.CPF, email string) (*Account, error) {
	now := s.clock.Now().UTC()
	account := Account{
		ID:        domain.GenerateAccountID(),
		CPF:       cpf,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			existing, findErr := s.accounts.FindByCPF(ctx, cpf)
			if findErr != nil {
				return nil, fmt.Errorf("find account after race: %w", findErr)
			}
			return existing, nil
		}
		if errors.Is(err, domain.ErrEmailInUse) {
			return nil, err
		}
		return nil, fmt.Errorf("create account: %w", err)
	}

	accountsCreatedTotal.Add(ctx, 1)
	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "identity.account_created",
		"account_id", account.ID.String(), "cpf", cpf)

	return &account, nil
}

// checkRequestLimit rejects with limited when the counter at key already
// reached the request limit. Counter read failures deny.
func (s *Service) checkRequestLimit(ctx context.Context, key, limitType string, limited error) error {
	count, err := s.counters.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("check %s limit: %w", limitType, errors.Join(err, domain.ErrUnavailable))
	}
	if count >= int64(s.policy.RequestLimit) {
		rateLimitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("limit_type", limitType)))
		return limited
	}
	return nil
}

// issue generates and stores a code for account, mails it to the stored
// address, then counts the request against limitKey. The counter is not
// touched when delivery fails.
func (s *Service) issue(ctx context.Context, account *Account, limitKey, flow string) (*RequestOTPResult, error) {
	code, err := auth.GenerateOTP()
	if err != nil {
		return nil, fmt.Errorf("generate OTP: %w", err)
	}

	now := s.clock.Now().UTC()
	record := OTPRecord{
		ID:        domain.NewRecordID(),
		AccountID: account.ID,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.policy.Validity),
	}
	if err := s.otps.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store OTP: %w", err)
	}

	if err := s.email.SendOTP(ctx, account.Email, code); err != nil {
		otpIssuedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("flow", flow),
			attribute.String("status", "delivery_failed"),
		))
		observability.WithTraceID(ctx, s.logger).ErrorContext(ctx, "failed to send OTP email",
			"error", err, "account_id", account.ID.String())
		return nil, fmt.Errorf("send OTP: %w", errors.Join(err, domain.ErrDeliveryFailed))
	}

	if _, err := s.counters.Increment(ctx, limitKey, s.policy.RequestWindow); err != nil {
		return nil, fmt.Errorf("count %s request: %w", flow, err)
	}

	otpIssuedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("status", "success"),
	))

	return &RequestOTPResult{
		MaskedEmail: domain.MaskEmail(account.Email),
		ExpiresAt:   record.ExpiresAt,
	}, nil
}

// spanError records err on span and returns it unchanged.
func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
