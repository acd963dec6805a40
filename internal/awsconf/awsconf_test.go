package awsconf_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bagly/claim-intake/internal/awsconf"
)

func TestLoad(t *testing.T) {
	t.Run("localstack endpoint uses static credentials", func(t *testing.T) {
		cfg := awsconf.Config{Region: "sa-east-1", Endpoint: "http://localhost:4566", Timeout: 5 * time.Second}

		awsCfg, err := awsconf.Load(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, "sa-east-1", awsCfg.Region)

		creds, err := awsCfg.Credentials.Retrieve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test", creds.AccessKeyID)
	})

	t.Run("default endpoint", func(t *testing.T) {
		awsCfg, err := awsconf.Load(context.Background(), awsconf.Config{Region: "us-east-1"})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", awsCfg.Region)
	})
}

func TestBaseEndpoint(t *testing.T) {
	assert.Nil(t, awsconf.Config{}.BaseEndpoint())

	ep := awsconf.Config{Endpoint: "http://localhost:4566"}.BaseEndpoint()
	require.NotNil(t, ep)
	assert.Equal(t, "http://localhost:4566", *ep)
}
