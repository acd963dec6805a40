package port

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/identity/app"
)

func TestAuthHandler_RequestOTP(t *testing.T) {
	t.Run("success returns masked email", func(t *testing.T) {
		h := newHarness(t, &stubService{
			requestOTPFn: func(_ context.Context, rawCPF, rawEmail string) (*app.RequestOTPResult, error) {
				assert.Equal(t, "529.982.247-25", rawCPF)
				assert.Equal(t, "usuario@email.com", rawEmail)
				return &app.RequestOTPResult{MaskedEmail: "usu***@email.com", ExpiresAt: fixedTime.Add(10 * time.Minute)}, nil
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/request-otp", `{"cpf":"529.982.247-25","email":"usuario@email.com"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Código enviado com sucesso","email":"usu***@email.com"}`, rec.Body.String())
	})

	t.Run("unknown cpf without email asks for one", func(t *testing.T) {
		h := newHarness(t, &stubService{
			requestOTPFn: func(_ context.Context, _, rawEmail string) (*app.RequestOTPResult, error) {
				assert.Empty(t, rawEmail)
				return &app.RequestOTPResult{RequiresEmail: true}, nil
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/request-otp", `{"cpf":"52998224725"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"CPF não cadastrado","requiresEmail":true}`, rec.Body.String())
	})

	t.Run("missing cpf: 400 before the service", func(t *testing.T) {
		h := newHarness(t, &stubService{})

		rec := h.do(t, http.MethodPost, "/auth/request-otp", `{"email":"usuario@email.com"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"CPF deve conter 11 dígitos"}`, rec.Body.String())
	})

	t.Run("malformed JSON: 400", func(t *testing.T) {
		h := newHarness(t, &stubService{})

		rec := h.do(t, http.MethodPost, "/auth/request-otp", `{"cpf":`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "JSON inválido", decodeBody(t, rec)["error"])
	})

	errCases := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"invalid cpf", fmt.Errorf("request otp: %w", domain.ErrInvalidCPF), http.StatusBadRequest, "CPF inválido"},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests, "Muitas tentativas. Aguarde 15 minutos."},
		{"email in use", domain.ErrEmailInUse, http.StatusConflict, "E-mail já cadastrado"},
		{"delivery failed", errors.Join(errors.New("dial tcp"), domain.ErrDeliveryFailed), http.StatusBadGateway, "Não foi possível enviar o código. Tente novamente."},
		{"unexpected error hides detail", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &stubService{
				requestOTPFn: func(context.Context, string, string) (*app.RequestOTPResult, error) {
					return nil, tt.err
				},
			})

			rec := h.do(t, http.MethodPost, "/auth/request-otp", `{"cpf":"52998224725"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["error"])
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))
		})
	}
}

func TestAuthHandler_VerifyOTP(t *testing.T) {
	t.Run("success returns token and user with null profile fields", func(t *testing.T) {
		h := newHarness(t, &stubService{
			verifyOTPFn: func(_ context.Context, rawCPF, code string) (*app.VerifyOTPResult, error) {
				assert.Equal(t, "52998224725", rawCPF)
				assert.Equal(t, "123456", code)
				return &app.VerifyOTPResult{Token: "signed.jwt.token", Account: *testAccount()}, nil
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/verify-otp", `{"cpf":"52998224725","code":"123456"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"token": "signed.jwt.token",
			"user": {"id": "`+testAccountID+`", "cpf": "52998224725", "email": "usuario@email.com", "name": null, "phone": null}
		}`, rec.Body.String())
	})

	t.Run("missing code: 400 with code message", func(t *testing.T) {
		h := newHarness(t, &stubService{})

		rec := h.do(t, http.MethodPost, "/auth/verify-otp", `{"cpf":"52998224725"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Código deve ter 6 dígitos", decodeBody(t, rec)["error"])
	})

	t.Run("wrong code carries remaining attempts", func(t *testing.T) {
		h := newHarness(t, &stubService{
			verifyOTPFn: func(context.Context, string, string) (*app.VerifyOTPResult, error) {
				return nil, fmt.Errorf("verify otp: %w", &domain.InvalidCodeError{Remaining: 3})
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/verify-otp", `{"cpf":"52998224725","code":"000000"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Código inválido ou expirado. 3 tentativas restantes.","remainingAttempts":3}`, rec.Body.String())
	})

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
		wantRetry  string
	}{
		{"locked", domain.ErrAccountLocked, http.StatusTooManyRequests, "Conta bloqueada temporariamente. Tente novamente em 30 minutos.", "1800"},
		{"lockout triggered", domain.ErrTooManyAttempts, http.StatusTooManyRequests, "Muitas tentativas incorretas. Conta bloqueada por 30 minutos.", "1800"},
		{"unknown cpf", domain.ErrAccountNotFound, http.StatusNotFound, "CPF não encontrado.", ""},
		{"counter store down", errors.Join(errors.New("redis: dial"), domain.ErrUnavailable), http.StatusServiceUnavailable, "Serviço temporariamente indisponível", "60"},
		{"unexpected failure", errors.New("boom"), http.StatusInternalServerError, "internal error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &stubService{
				verifyOTPFn: func(context.Context, string, string) (*app.VerifyOTPResult, error) {
					return nil, tt.err
				},
			})

			rec := h.do(t, http.MethodPost, "/auth/verify-otp", `{"cpf":"52998224725","code":"123456"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody(t, rec)["error"])
			assert.Equal(t, tt.wantRetry, rec.Header().Get("Retry-After"))
		})
	}
}

func TestAuthHandler_ResendOTP(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t, &stubService{
			resendOTPFn: func(_ context.Context, rawCPF string) (*app.RequestOTPResult, error) {
				assert.Equal(t, "52998224725", rawCPF)
				return &app.RequestOTPResult{MaskedEmail: "usu***@email.com"}, nil
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Código reenviado com sucesso"}`, rec.Body.String())
	})

	t.Run("resend limit", func(t *testing.T) {
		h := newHarness(t, &stubService{
			resendOTPFn: func(context.Context, string) (*app.RequestOTPResult, error) {
				return nil, domain.ErrResendRateLimited
			},
		})

		rec := h.do(t, http.MethodPost, "/auth/resend-otp", `{"cpf":"52998224725"}`)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "Muitos reenvios. Aguarde 15 minutos.", decodeBody(t, rec)["error"])
		assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	})
}

func TestMount_CORSPreflight(t *testing.T) {
	h := newHarness(t, &stubService{})

	rec := h.do(t, http.MethodOptions, "/auth/request-otp", "",
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", http.MethodPost,
	)

	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
