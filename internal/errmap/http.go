// Package errmap translates domain errors into HTTP responses.
package errmap

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bagly/claim-intake/internal/domain"
)

// HTTPError is the client-facing form of an error. Code is for logs and
// metrics; the body carries only Message and, for wrong codes, the
// remaining attempt count.
type HTTPError struct {
	StatusCode        int    `json:"-"`
	Code              string `json:"-"`
	Message           string `json:"error"`
	RemainingAttempts int    `json:"remainingAttempts,omitempty"`
}

func (e HTTPError) Error() string {
	return e.Message
}

type httpMapping struct {
	err        error
	statusCode int
	code       string
	message    string
}

// httpMappings is ordered: first match wins (via errors.Is). Specific
// sentinels come before the broad ones they might also match.
var httpMappings = []httpMapping{
	// Verification
	{domain.ErrInvalidOTP, http.StatusBadRequest, "INVALID_CODE", "Código inválido ou expirado."},
	{domain.ErrOTPConsumed, http.StatusBadRequest, "INVALID_CODE", "Código inválido ou expirado."},

	// Validation errors (400)
	{domain.ErrInvalidCPF, http.StatusBadRequest, "INVALID_ARGUMENT", "CPF inválido"},
	{domain.ErrInvalidEmail, http.StatusBadRequest, "INVALID_ARGUMENT", "E-mail inválido"},
	{domain.ErrInvalidPhoneNumber, http.StatusBadRequest, "INVALID_ARGUMENT", "Telefone inválido"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "INVALID_ARGUMENT", "Dados inválidos"},
	{domain.ErrEmptyID, http.StatusBadRequest, "INVALID_ARGUMENT", "Dados inválidos"},
	{domain.ErrInvalidID, http.StatusBadRequest, "INVALID_ARGUMENT", "Dados inválidos"},

	// Resource errors
	{domain.ErrAccountNotFound, http.StatusNotFound, "NOT_FOUND", "CPF não encontrado."},
	{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", "Usuário não encontrado"},
	{domain.ErrEmailInUse, http.StatusConflict, "ALREADY_EXISTS", "E-mail já cadastrado"},
	{domain.ErrAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "Registro já existente"},

	{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized"},

	// Abuse prevention (429)
	{domain.ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED", "Muitas tentativas. Aguarde 15 minutos."},
	{domain.ErrResendRateLimited, http.StatusTooManyRequests, "RESEND_RATE_LIMITED", "Muitos reenvios. Aguarde 15 minutos."},
	{domain.ErrTooManyAttempts, http.StatusTooManyRequests, "LOCKED", "Muitas tentativas incorretas. Conta bloqueada por 30 minutos."},
	{domain.ErrAccountLocked, http.StatusTooManyRequests, "LOCKED", "Conta bloqueada temporariamente. Tente novamente em 30 minutos."},
	{domain.ErrIPRateLimited, http.StatusTooManyRequests, "IP_RATE_LIMITED", "too many requests"},

	// Availability
	{domain.ErrDeliveryFailed, http.StatusBadGateway, "DELIVERY_FAILED", "Não foi possível enviar o código. Tente novamente."},
	{domain.ErrUnavailable, http.StatusServiceUnavailable, "UNAVAILABLE", "Serviço temporariamente indisponível"},
}

// ToHTTPError converts a domain error to an HTTP error.
func ToHTTPError(err error) HTTPError {
	if err == nil {
		return HTTPError{StatusCode: http.StatusOK}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return HTTPError{StatusCode: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: ve.Message}
	}

	if remaining, ok := domain.RemainingAttempts(err); ok {
		return HTTPError{
			StatusCode:        http.StatusBadRequest,
			Code:              "INVALID_CODE",
			Message:           fmt.Sprintf("Código inválido ou expirado. %d tentativas restantes.", remaining),
			RemainingAttempts: remaining,
		}
	}

	for _, m := range httpMappings {
		if errors.Is(err, m.err) {
			return HTTPError{StatusCode: m.statusCode, Code: m.code, Message: m.message}
		}
	}
	// Never expose internal error details to clients
	return HTTPError{StatusCode: http.StatusInternalServerError, Code: "INTERNAL", Message: "internal error"}
}
