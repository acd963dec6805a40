package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/observability"
)

// GetProfile returns the account identified by a session token subject.
func (s *Service) GetProfile(ctx context.Context, rawAccountID string) (*Account, error) {
	ctx, span := tracer.Start(ctx, "identity.get_profile")
	defer span.End()

	id, err := domain.NewAccountID(rawAccountID)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("session subject: %w", domain.ErrUnauthorized))
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("get account: %w", err))
	}
	return account, nil
}

// UpdateProfile validates and applies the non-nil fields of update. Emails
// are normalized and phone numbers are stored as bare digits.
func (s *Service) UpdateProfile(ctx context.Context, rawAccountID string, update ProfileUpdate) (*Account, error) {
	ctx, span := tracer.Start(ctx, "identity.update_profile")
	defer span.End()

	id, err := domain.NewAccountID(rawAccountID)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("session subject: %w", domain.ErrUnauthorized))
	}

	normalized, err := normalizeProfileUpdate(update)
	if err != nil {
		return nil, spanError(span, err)
	}

	account, err := s.accounts.UpdateProfile(ctx, id, normalized, s.clock.Now().UTC())
	if err != nil {
		return nil, spanError(span, fmt.Errorf("update account: %w", err))
	}

	observability.WithTraceID(ctx, s.logger).InfoContext(ctx, "identity.profile_updated",
		"account_id", id.String())

	return account, nil
}

func normalizeProfileUpdate(update ProfileUpdate) (ProfileUpdate, error) {
	var out ProfileUpdate

	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if n := utf8.RuneCountInString(name); n < domain.MinNameLength || n > domain.MaxNameLength {
			return ProfileUpdate{}, &domain.ValidationError{
				Field:   "name",
				Message: fmt.Sprintf("Nome deve ter entre %d e %d caracteres", domain.MinNameLength, domain.MaxNameLength),
			}
		}
		out.Name = &name
	}

	if update.Phone != nil {
		phone, err := domain.NewPhoneNumber(*update.Phone)
		if err != nil {
			return ProfileUpdate{}, err
		}
		digits := phone.String()
		out.Phone = &digits
	}

	if update.Email != nil {
		email := domain.NormalizeEmail(*update.Email)
		if !domain.ValidEmail(email) {
			return ProfileUpdate{}, fmt.Errorf("email: %w", domain.ErrInvalidEmail)
		}
		out.Email = &email
	}

	return out, nil
}
