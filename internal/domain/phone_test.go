package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/domain"
)

func TestPhoneNumber(t *testing.T) {
	t.Run("valid numbers", func(t *testing.T) {
		tests := []struct {
			raw  string
			want string
		}{
			{"11987654321", "11987654321"},
			{"(11) 98765-4321", "11987654321"},
			{"+55 11 98765-4321", "11987654321"},
			{"1133224455", "1133224455"},
		}
		for _, tt := range tests {
			p, err := domain.NewPhoneNumber(tt.raw)
			require.NoError(t, err, "expected %q to be valid", tt.raw)
			assert.Equal(t, tt.want, p.String())
			assert.False(t, p.IsZero())
		}
	})

	t.Run("empty string returns error", func(t *testing.T) {
		_, err := domain.NewPhoneNumber("")
		assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := domain.NewPhoneNumber("119876543")
		assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := domain.NewPhoneNumber("119876543210")
		assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
	})

	t.Run("area code starting with zero", func(t *testing.T) {
		_, err := domain.NewPhoneNumber("0198765432")
		assert.ErrorIs(t, err, domain.ErrInvalidPhoneNumber)
	})

	t.Run("MustPhoneNumber panics on invalid", func(t *testing.T) {
		assert.Panics(t, func() { domain.MustPhoneNumber("abc") })
	})
}
