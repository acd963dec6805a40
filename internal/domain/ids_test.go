package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/domain"
)

func TestAccountID(t *testing.T) {
	validUUID := "550e8400-e29b-41d4-a716-446655440000"

	t.Run("valid UUID", func(t *testing.T) {
		id, err := domain.NewAccountID(validUUID)
		require.NoError(t, err)
		assert.Equal(t, validUUID, id.String())
		assert.False(t, id.IsZero())
	})

	t.Run("empty string returns error", func(t *testing.T) {
		_, err := domain.NewAccountID("")
		assert.ErrorIs(t, err, domain.ErrEmptyID)
	})

	t.Run("invalid format returns error", func(t *testing.T) {
		_, err := domain.NewAccountID("not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})

	t.Run("zero value is zero", func(t *testing.T) {
		var id domain.AccountID
		assert.True(t, id.IsZero())
		assert.Empty(t, id.String())
	})

	t.Run("generated IDs parse back", func(t *testing.T) {
		id := domain.GenerateAccountID()
		_, err := domain.NewAccountID(id.String())
		require.NoError(t, err)
		assert.NotEqual(t, id, domain.GenerateAccountID())
	})

	t.Run("MustAccountID panics on invalid", func(t *testing.T) {
		assert.Panics(t, func() { domain.MustAccountID("invalid") })
	})
}

func TestNewRecordID(t *testing.T) {
	a, b := domain.NewRecordID(), domain.NewRecordID()

	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}
