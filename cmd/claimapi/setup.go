package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/awsconf"
	"github.com/bagly/claim-intake/internal/config"
	"github.com/bagly/claim-intake/internal/domain"
	"github.com/bagly/claim-intake/internal/dynamo"
	"github.com/bagly/claim-intake/internal/identity/adapter"
	"github.com/bagly/claim-intake/internal/identity/app"
	"github.com/bagly/claim-intake/internal/identity/port"
	"github.com/bagly/claim-intake/internal/postgres"
	"github.com/bagly/claim-intake/internal/redis"
	"github.com/bagly/claim-intake/internal/server"
)

// stores bundles the persistence backend chosen by store.backend.
type stores struct {
	accounts app.AccountStore
	otps     app.OTPStore
	close    func()
}

// setup is the composition root. It creates infrastructure clients and
// adapters, the identity service and its HTTP routes.
func setup(ctx context.Context, deps server.SetupDeps) (func(context.Context) error, error) {
	cfg := deps.Config
	logger := deps.Logger
	clock := domain.RealClock{}

	awsCfg, err := loadAWS(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 1. Counter store. Every flow reads a counter first, so Redis must be up.
	redisClient := redis.NewClient(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password.Expose(),
		DB:       cfg.Redis.DB,
		Timeout:  cfg.Redis.Timeout,
	})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
	defer cancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("claimapi setup: ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	// 2. Account and OTP stores.
	st, err := createStores(ctx, cfg, awsCfg, logger)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}

	// 3. Signing keys and email transport.
	keyStore, err := createKeyStore(ctx, cfg, awsCfg, clock, logger)
	if err != nil {
		st.close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("claimapi setup: create key store: %w", err)
	}
	emailSender := createEmailSender(cfg, logger)

	// 4. Identity core.
	minter := auth.NewMinter(auth.MinterConfig{
		KeyStore: keyStore,
		TTL:      cfg.Token.Lifetime,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Clock:    clock,
	})
	tokens := auth.NewValidator(auth.ValidatorConfig{
		KeyStore: keyStore,
		Issuer:   cfg.Token.Issuer,
		Audience: cfg.Token.Audience,
		Clock:    clock,
	})

	svc := app.NewService(app.ServiceConfig{
		Accounts: st.accounts,
		OTPs:     st.otps,
		Counters: adapter.NewCounterStore(redisClient.RDB),
		Email:    emailSender,
		Minter:   minter,
		Clock:    clock,
		Policy: app.Policy{
			Validity:      cfg.OTP.Validity,
			MaxAttempts:   cfg.OTP.Attempts,
			AttemptWindow: cfg.OTP.AttemptWindow,
			Lockout:       cfg.OTP.Lockout,
			RequestLimit:  cfg.OTP.Requests,
			RequestWindow: cfg.OTP.Window,
			CounterPrefix: cfg.Redis.Prefix,
		},
		Logger: logger,
	})

	// 5. Routes. HTTP_RATELIMIT=0 turns the per-IP limiter off.
	var limiter *port.IPRateLimiter
	if cfg.HTTP.RateLimit > 0 {
		limiter = port.NewIPRateLimiter(cfg.HTTP.RateLimit, clock)
	}
	v := port.NewValidator()
	port.Mount(deps.Router, port.RouterConfig{
		Auth:       port.NewAuthHandler(svc, v, logger),
		Profile:    port.NewProfileHandler(svc, v, logger),
		Tokens:     tokens,
		Limiter:    limiter,
		Origin:     cfg.HTTP.Origin,
		Logger:     logger,
		TrustProxy: cfg.HTTP.TrustProxy,
	})

	logger.Info("claimapi ready",
		slog.String("store", cfg.Store.Backend),
		slog.String("key_source", cfg.Token.KeySource),
		slog.Bool("smtp", cfg.SMTP.Enabled()),
	)

	return func(context.Context) error {
		st.close()
		return redisClient.Close()
	}, nil
}

// loadAWS resolves the shared AWS config only when a component needs it.
func loadAWS(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if cfg.Store.Backend != config.BackendDynamoDB && cfg.Token.KeySource != config.KeySourceAWS {
		return aws.Config{}, nil
	}
	awsCfg, err := awsconf.Load(ctx, awsconf.Config{
		Region:   cfg.AWS.Region,
		Endpoint: cfg.AWS.Endpoint,
		Timeout:  cfg.DynamoDB.Timeout,
	})
	if err != nil {
		return aws.Config{}, fmt.Errorf("claimapi setup: %w", err)
	}
	return awsCfg, nil
}

func createStores(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store.Backend {
	case config.BackendDynamoDB:
		endpoint := cfg.DynamoDB.Endpoint
		if endpoint == "" {
			endpoint = cfg.AWS.Endpoint
		}
		client := dynamo.NewClient(awsCfg, awsconf.Config{Endpoint: endpoint}.BaseEndpoint())
		logger.Info("using dynamodb store",
			slog.String("accounts_table", cfg.DynamoDB.Accounts),
			slog.String("otp_table", cfg.DynamoDB.OTPs),
		)
		return &stores{
			accounts: adapter.NewDynamoAccountStore(client.DB, cfg.DynamoDB.Accounts),
			otps:     adapter.NewDynamoOTPStore(client.DB, cfg.DynamoDB.OTPs),
			close:    func() {},
		}, nil

	default:
		dsn := cfg.Postgres.DSN.Expose()
		if dsn == "" {
			return nil, fmt.Errorf("claimapi setup: %w: postgres.dsn", domain.ErrConfigRequired)
		}
		if cfg.Postgres.Migrate {
			if err := postgres.Migrate(dsn); err != nil {
				return nil, fmt.Errorf("claimapi setup: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		pool, err := postgres.NewPool(ctx, postgres.Config{DSN: dsn, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("claimapi setup: %w", err)
		}
		return &stores{
			accounts: adapter.NewPostgresAccountStore(pool),
			otps:     adapter.NewPostgresOTPStore(pool),
			close:    pool.Close,
		}, nil
	}
}

// createKeyStore returns the signing key source named by token.keysource.
func createKeyStore(ctx context.Context, cfg *config.Config, awsCfg aws.Config, clock domain.Clock, logger *slog.Logger) (auth.KeyStore, error) {
	switch cfg.Token.KeySource {
	case config.KeySourcePEM:
		return auth.NewPEMKeyStore(cfg.Token.Key.Expose(), cfg.Token.KID)

	case config.KeySourceAWS:
		if cfg.Token.Secret == "" {
			return nil, errors.New("token.secret is required for the aws key source")
		}
		endpoint := awsconf.Config{Endpoint: cfg.AWS.Endpoint}.BaseEndpoint()
		sm := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
			o.BaseEndpoint = endpoint
		})
		ssm := awsssm.NewFromConfig(awsCfg, func(o *awsssm.Options) {
			o.BaseEndpoint = endpoint
		})
		return adapter.NewAWSKeyStore(ctx, sm, ssm, clock, adapter.AWSKeyStoreConfig{
			KeyParam:     cfg.Token.KeyParam,
			SecretPrefix: cfg.Token.Secret,
		})

	default:
		logger.Warn("using ephemeral signing key; sessions end on restart")
		return auth.NewEphemeralKeyStore(cfg.Token.KID)
	}
}

// createEmailSender uses SMTP when it is fully configured and falls back to
// logging otherwise.
func createEmailSender(cfg *config.Config, logger *slog.Logger) auth.EmailSender {
	if cfg.SMTP.Enabled() {
		return adapter.NewSMTPEmailSender(adapter.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Validity: cfg.OTP.Validity,
		})
	}
	if !cfg.IsLocal() {
		logger.Warn("smtp not configured; verification codes will not be delivered")
	}
	return adapter.NewLogEmailSender(logger, cfg.IsLocal())
}
