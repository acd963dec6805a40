package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bagly/claim-intake/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrUnavailable", domain.ErrUnavailable, true},
		{"ErrRateLimited", domain.ErrRateLimited, true},
		{"ErrResendRateLimited", domain.ErrResendRateLimited, true},
		{"ErrAccountLocked", domain.ErrAccountLocked, true},
		{"ErrTooManyAttempts", domain.ErrTooManyAttempts, true},
		{"ErrDeliveryFailed", domain.ErrDeliveryFailed, true},
		{"ErrNotFound", domain.ErrNotFound, false},
		{"ErrInvalidOTP", domain.ErrInvalidOTP, false},
		{"wrapped ErrUnavailable", fmt.Errorf("context: %w", domain.ErrUnavailable), true},
		{"random error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.IsRetryable(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"ErrInvalidInput", domain.ErrInvalidInput, true},
		{"ErrInvalidCPF", domain.ErrInvalidCPF, true},
		{"ErrInvalidEmail", domain.ErrInvalidEmail, true},
		{"ErrAccountNotFound", domain.ErrAccountNotFound, true},
		{"ErrEmailInUse", domain.ErrEmailInUse, true},
		{"ErrAlreadyExists", domain.ErrAlreadyExists, true},
		{"ErrOTPConsumed", domain.ErrOTPConsumed, true},
		{"ErrUnauthorized", domain.ErrUnauthorized, true},
		{"invalid code error", &domain.InvalidCodeError{Remaining: 2}, true},
		{"validation error", &domain.ValidationError{Field: "cpf", Message: "CPF inválido"}, true},
		{"ErrUnavailable", domain.ErrUnavailable, false},
		{"ErrRateLimited", domain.ErrRateLimited, false},
		{"wrapped ErrNotFound", fmt.Errorf("context: %w", domain.ErrNotFound), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.IsClientError(tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, domain.IsNotFound(domain.ErrNotFound))
	assert.True(t, domain.IsNotFound(fmt.Errorf("lookup: %w", domain.ErrAccountNotFound)))
	assert.False(t, domain.IsNotFound(domain.ErrInvalidOTP))
	assert.False(t, domain.IsNotFound(nil))
}

func TestInvalidCodeError(t *testing.T) {
	t.Run("unwraps to ErrInvalidOTP", func(t *testing.T) {
		err := fmt.Errorf("verify: %w", &domain.InvalidCodeError{Remaining: 3})

		assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	})

	t.Run("message carries remaining attempts", func(t *testing.T) {
		assert.Equal(t, "invalid or expired code: 3 attempts remaining",
			(&domain.InvalidCodeError{Remaining: 3}).Error())
		assert.Equal(t, "invalid or expired code: 1 attempt remaining",
			(&domain.InvalidCodeError{Remaining: 1}).Error())
	})

	t.Run("RemainingAttempts extracts count through wrapping", func(t *testing.T) {
		n, ok := domain.RemainingAttempts(fmt.Errorf("x: %w", &domain.InvalidCodeError{Remaining: 4}))

		assert.True(t, ok)
		assert.Equal(t, 4, n)
	})

	t.Run("RemainingAttempts is false for other errors", func(t *testing.T) {
		_, ok := domain.RemainingAttempts(domain.ErrInvalidOTP)

		assert.False(t, ok)
	})
}

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("decode: %w", &domain.ValidationError{Field: "code", Message: "Código deve ter 6 dígitos"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, "decode: code: Código deve ter 6 dígitos", err.Error())
}
