package port

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bagly/claim-intake/internal/identity/app"
)

// authService is the narrow, consumer-defined view of *app.Service the
// OTP routes need.
type authService interface {
	RequestOTP(ctx context.Context, rawCPF, rawEmail string) (*app.RequestOTPResult, error)
	ResendOTP(ctx context.Context, rawCPF string) (*app.RequestOTPResult, error)
	VerifyOTP(ctx context.Context, rawCPF, code string) (*app.VerifyOTPResult, error)
}

// AuthHandler serves POST /auth/request-otp, /auth/verify-otp and
// /auth/resend-otp.
type AuthHandler struct {
	svc      authService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler backed by svc.
func NewAuthHandler(svc authService, v *validator.Validate, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, validate: v, logger: logger}
}

type requestOTPRequest struct {
	CPF   string `json:"cpf" validate:"required,max=32"`
	Email string `json:"email" validate:"omitempty,max=255"`
}

type verifyOTPRequest struct {
	CPF  string `json:"cpf" validate:"required,max=32"`
	Code string `json:"code" validate:"required"`
}

type resendOTPRequest struct {
	CPF string `json:"cpf" validate:"required,max=32"`
}

type requestOTPResponse struct {
	Message       string `json:"message"`
	Email         string `json:"email,omitempty"`
	RequiresEmail bool   `json:"requiresEmail,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type authUser struct {
	ID    string  `json:"id"`
	CPF   string  `json:"cpf"`
	Email string  `json:"email"`
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

type verifyOTPResponse struct {
	Token string   `json:"token"`
	User  authUser `json:"user"`
}

// RequestOTP issues a code, creating the account on first contact when an
// email is supplied.
func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.RequestOTP(r.Context(), req.CPF, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if result.RequiresEmail {
		writeJSON(w, http.StatusOK, requestOTPResponse{Message: "CPF não cadastrado", RequiresEmail: true})
		return
	}
	writeJSON(w, http.StatusOK, requestOTPResponse{Message: "Código enviado com sucesso", Email: result.MaskedEmail})
}

// VerifyOTP exchanges a valid code for a session token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.svc.VerifyOTP(r.Context(), req.CPF, req.Code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	a := result.Account
	writeJSON(w, http.StatusOK, verifyOTPResponse{
		Token: result.Token,
		User: authUser{
			ID:    a.ID.String(),
			CPF:   a.CPF.String(),
			Email: a.Email,
			Name:  nullable(a.Name),
			Phone: nullable(a.Phone),
		},
	})
}

// ResendOTP issues a fresh code to an existing account.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req resendOTPRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if _, err := h.svc.ResendOTP(r.Context(), req.CPF); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Código reenviado com sucesso"})
}
