// Package awsconf loads the shared AWS SDK configuration used by the
// DynamoDB, Secrets Manager and SSM clients.
package awsconf

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// Config holds the AWS connection parameters.
type Config struct {
	Region string

	// Endpoint points every client at LocalStack (e.g. "http://localhost:4566").
	// When set, static test credentials replace the default chain.
	Endpoint string

	// Timeout bounds each HTTP round trip to AWS.
	Timeout time.Duration
}

// Load resolves region, credentials and HTTP client for all AWS clients.
func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.Endpoint != "" {
		opts = append(opts,
			awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider("test", "test", ""),
			),
		)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Timeout > 0 {
		awsCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return awsCfg, nil
}

// BaseEndpoint returns the override to set on a service client's Options,
// or nil to keep the default resolver.
func (c Config) BaseEndpoint() *string {
	if c.Endpoint == "" {
		return nil
	}
	endpoint := c.Endpoint
	return &endpoint
}
