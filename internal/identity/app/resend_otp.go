package app

import (
	"context"
	"fmt"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/observability"
)

// ResendOTP issues a fresh code for an existing account under the resend
// counter, which is independent of the issuance counter.
func (s *Service) ResendOTP(ctx context.Context, rawCPF string) (*RequestOTPResult, error) {
	ctx, span := tracer.Start(ctx, "identity.resend_otp")
	defer span.End()

	cpf, err := domain.NewCPF(rawCPF)
	if err != nil {
		return nil, spanError(span, err)
	}

	limitKey := s.policy.key(domain.CounterResend, cpf)
	if err := s.checkRequestLimit(ctx, limitKey, "resend", domain.ErrResendRateLimited); err != nil {
		return nil, spanError(span, err)
	}

	account, err := s.accounts.FindByCPF(ctx, cpf)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, spanError(span, domain.ErrAccountNotFound)
		}
		return nil, spanError(span, fmt.Errorf("find account: %w", err))
	}

	result, err := s.issue(ctx, account, limitKey, "resend")
	if err != nil {
		return nil, spanError(span, err)
	}

	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "identity.otp_resent",
		"account_id", account.ID.String())

	return result, nil
}
