package dynamo_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/awsconf"
	"github.com/bagly/claim-intake/internal/dynamo"
)

func TestNewClient(t *testing.T) {
	cfg := awsconf.Config{Region: "sa-east-1", Endpoint: "http://localhost:4566"}
	awsCfg, err := awsconf.Load(context.Background(), cfg)
	require.NoError(t, err)

	client := dynamo.NewClient(awsCfg, cfg.BaseEndpoint())

	require.NotNil(t, client)
	require.NotNil(t, client.DB)
}

func TestIsConditionalCheckFailed(t *testing.T) {
	assert.True(t, dynamo.IsConditionalCheckFailed(dynamo.ErrConditionalCheckFailed()))
	assert.True(t, dynamo.IsConditionalCheckFailed(fmt.Errorf("put: %w", dynamo.ErrConditionalCheckFailed())))
	assert.False(t, dynamo.IsConditionalCheckFailed(errors.New("throttled")))
}

func TestIsTransactionCanceledException(t *testing.T) {
	t.Run("returns reasons per item", func(t *testing.T) {
		reasons, ok := dynamo.IsTransactionCanceledException(
			dynamo.ErrTransactionCanceled("", "ConditionalCheckFailed"))

		require.True(t, ok)
		assert.Equal(t, []string{"", "ConditionalCheckFailed"}, reasons)
	})

	t.Run("other errors", func(t *testing.T) {
		_, ok := dynamo.IsTransactionCanceledException(errors.New("boom"))
		assert.False(t, ok)
	})
}
