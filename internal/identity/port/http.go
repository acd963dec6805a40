// Package port exposes the identity service over JSON HTTP: the three OTP
// routes, the authenticated profile routes and the middleware around them.
package port

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/errmap"
	"github.com/bagly/claim-intake/internal/observability"
)

// maxBodyBytes caps request bodies; every route takes a handful of short fields.
const maxBodyBytes = 16 << 10

// fieldMessages overrides the generic validator message for fields whose
// wording the web client shows verbatim.
var fieldMessages = map[string]string{
	"cpf":   "CPF deve conter 11 dígitos",
	"code":  "Código deve ter 6 dígitos",
	"email": "E-mail inválido",
}

// NewValidator returns a validator that reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Failures come back
// as *domain.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ValidationError{Field: "body", Message: "Corpo da requisição vazio"}
		}
		return &domain.ValidationError{Field: "body", Message: "JSON inválido"}
	}
	if err := v.Struct(dst); err != nil {
		return translateValidation(err)
	}
	return nil
}

func translateValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate request: %w", err)
	}
	fe := verrs[0]
	field := fe.Field()
	if msg, ok := fieldMessages[field]; ok {
		return &domain.ValidationError{Field: field, Message: msg}
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("Campo %s é obrigatório", field)
	case "min":
		msg = fmt.Sprintf("Campo %s deve ter no mínimo %s caracteres", field, fe.Param())
	case "max":
		msg = fmt.Sprintf("Campo %s deve ter no máximo %s caracteres", field, fe.Param())
	default:
		msg = fmt.Sprintf("Campo %s inválido", field)
	}
	return &domain.ValidationError{Field: field, Message: msg}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err through errmap and writes the client body. Server-side
// failures are logged with the full error; the client only sees the mapped
// message. Retryable errors carry Retry-After unless a caller already set it.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	httpErr := errmap.ToHTTPError(err)
	log := observability.WithTraceID(r.Context(), logger)

	switch {
	case domain.IsClientError(err):
		log.DebugContext(r.Context(), "request rejected",
			slog.String("route", r.URL.Path),
			slog.String("code", httpErr.Code),
		)
	case domain.IsRetryable(err):
		log.WarnContext(r.Context(), "request throttled or unavailable",
			slog.String("route", r.URL.Path),
			slog.String("code", httpErr.Code),
			slog.String("error", err.Error()),
		)
	default:
		log.ErrorContext(r.Context(), "request failed",
			slog.String("route", r.URL.Path),
			slog.String("code", httpErr.Code),
			slog.String("error", err.Error()),
		)
	}

	if domain.IsRetryable(err) && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter(err).Seconds())))
	}

	writeJSON(w, httpErr.StatusCode, httpErr)
}

// retryAfter is the wait quoted to clients for a retryable error. The
// windows are the compiled defaults, matching the pt-BR messages.
func retryAfter(err error) time.Duration {
	switch {
	case errors.Is(err, domain.ErrRateLimited), errors.Is(err, domain.ErrResendRateLimited):
		return domain.OTPRequestWindow
	case errors.Is(err, domain.ErrAccountLocked), errors.Is(err, domain.ErrTooManyAttempts):
		return domain.OTPLockoutDuration
	default:
		return time.Minute
	}
}

// nullable renders an unset profile field as JSON null.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
