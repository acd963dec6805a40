// Package domain holds the value objects, sentinel errors and policy
// defaults shared by every layer of the claim intake service. It imports
// nothing from the rest of the module.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// AccountID identifies a registered claimant.
// Always valid in memory - use NewAccountID to construct.
type AccountID struct {
	value string
}

// NewAccountID creates an AccountID from a raw string, validating it is a valid UUID.
func NewAccountID(raw string) (AccountID, error) {
	if raw == "" {
		return AccountID{}, ErrEmptyID
	}
	if _, err := uuid.Parse(raw); err != nil {
		return AccountID{}, fmt.Errorf("invalid account ID %q: %w", raw, ErrInvalidID)
	}
	return AccountID{value: raw}, nil
}

// MustAccountID creates an AccountID, panicking on invalid input. Use only in tests.
func MustAccountID(raw string) AccountID {
	id, err := NewAccountID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// GenerateAccountID creates a new random AccountID.
func GenerateAccountID() AccountID {
	return AccountID{value: uuid.NewString()}
}

func (id AccountID) String() string { return id.value }
func (id AccountID) IsZero() bool   { return id.value == "" }

// NewRecordID returns a fresh identifier for a stored OTP record.
func NewRecordID() string {
	return uuid.NewString()
}
