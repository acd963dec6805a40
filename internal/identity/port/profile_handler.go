package port

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/identity/app"
)

type profileService interface {
	GetProfile(ctx context.Context, rawAccountID string) (*app.Account, error)
	UpdateProfile(ctx context.Context, rawAccountID string, update app.ProfileUpdate) (*app.Account, error)
}

// ProfileHandler serves GET and PUT /users/me. It must sit behind
// RequireAuth.
type ProfileHandler struct {
	svc      profileService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewProfileHandler creates a ProfileHandler backed by svc.
func NewProfileHandler(svc profileService, v *validator.Validate, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, validate: v, logger: logger}
}

type updateProfileRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=200"`
	Phone *string `json:"phone" validate:"omitempty,max=32"`
	Email *string `json:"email" validate:"omitempty,max=255"`
}

type profileResponse struct {
	ID        string    `json:"id"`
	CPF       string    `json:"cpf"`
	Email     string    `json:"email"`
	Name      *string   `json:"name"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

func toProfileResponse(a *app.Account) profileResponse {
	return profileResponse{
		ID:        a.ID.String(),
		CPF:       a.CPF.String(),
		Email:     a.Email,
		Name:      nullable(a.Name),
		Phone:     nullable(a.Phone),
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	account, err := h.svc.GetProfile(r.Context(), accountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(account))
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	var req updateProfileRequest
	if err := decodeJSON(w, r, h.validate, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.svc.UpdateProfile(r.Context(), accountID, app.ProfileUpdate{
		Name:  req.Name,
		Phone: req.Phone,
		Email: req.Email,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileResponse(account))
}
