// Package config loads service configuration with koanf.
// Precedence: environment variables over compiled defaults.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/bagly/claim-intake/internal/domain"
)

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// Signing key sources.
const (
	KeySourceEphemeral = "ephemeral"
	KeySourcePEM       = "pem"
	KeySourceAWS       = "aws"
)

// Config holds all service configuration. Leaf keys are single words so
// that env names split cleanly on "_" (OTP_ATTEMPTWINDOW -> otp.attemptwindow).
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	Log  LogConfig  `koanf:"log"`
	HTTP HTTPConfig `koanf:"http"`

	Store    StoreConfig    `koanf:"store"`
	Postgres PostgresConfig `koanf:"postgres"`
	DynamoDB DynamoDBConfig `koanf:"dynamodb"`
	Redis    RedisConfig    `koanf:"redis"`
	AWS      AWSConfig      `koanf:"aws"`
	SMTP     SMTPConfig     `koanf:"smtp"`

	OTP   OTPConfig   `koanf:"otp"`
	Token TokenConfig `koanf:"token"`

	OTEL OTELConfig `koanf:"otel"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig holds the public listener settings.
type HTTPConfig struct {
	Port       int    `koanf:"port"`
	RateLimit  int    `koanf:"ratelimit"`  // requests per client IP per minute, 0 disables
	Origin     string `koanf:"origin"`     // CORS allowed origin (web client)
	TrustProxy bool   `koanf:"trustproxy"` // key the limiter on X-Forwarded-For / X-Real-IP
}

type StoreConfig struct {
	Backend string `koanf:"backend"` // "postgres" or "dynamodb"
}

type PostgresConfig struct {
	DSN      domain.SecretString `koanf:"dsn"`
	MaxConns int32               `koanf:"maxconns"`
	Migrate  bool                `koanf:"migrate"` // apply embedded migrations at startup
}

// DynamoDBConfig holds DynamoDB configuration.
type DynamoDBConfig struct {
	Endpoint string        `koanf:"endpoint"` // Empty for production (uses default AWS endpoint)
	Timeout  time.Duration `koanf:"timeout"`
	Accounts string        `koanf:"accounts"` // table name
	OTPs     string        `koanf:"otps"`     // table name
}

// RedisConfig holds the counter store connection.
type RedisConfig struct {
	Addr     string              `koanf:"addr"`
	Password domain.SecretString `koanf:"password"`
	DB       int                 `koanf:"db"`
	Timeout  time.Duration       `koanf:"timeout"`
	Prefix   string              `koanf:"prefix"` // counter key namespace
}

// AWSConfig holds AWS SDK configuration.
type AWSConfig struct {
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // LocalStack endpoint for development
}

// SMTPConfig enables email delivery when Host, User and Password are all set.
type SMTPConfig struct {
	Host     string              `koanf:"host"`
	Port     int                 `koanf:"port"`
	User     string              `koanf:"user"`
	Password domain.SecretString `koanf:"password"`
	From     string              `koanf:"from"`
}

// Enabled reports whether enough is configured to send real email.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.User != "" && !c.Password.IsEmpty()
}

// OTPConfig holds the issuance and verification policy.
type OTPConfig struct {
	Validity      time.Duration `koanf:"validity"`
	Attempts      int           `koanf:"attempts"`
	AttemptWindow time.Duration `koanf:"attemptwindow"`
	Lockout       time.Duration `koanf:"lockout"`
	Requests      int           `koanf:"requests"`
	Window        time.Duration `koanf:"window"`
}

// TokenConfig holds session token settings. KeySource selects where the
// RS256 signing key comes from: a generated key (local only), a PEM in Key,
// or Secrets Manager (Secret) with the key ID read from SSM (KeyParam).
type TokenConfig struct {
	Lifetime  time.Duration       `koanf:"lifetime"`
	Issuer    string              `koanf:"issuer"`
	Audience  string              `koanf:"audience"`
	KeySource string              `koanf:"keysource"`
	Key       domain.SecretString `koanf:"key"`
	KID       string              `koanf:"kid"`
	Secret    string              `koanf:"secret"`
	KeyParam  string              `koanf:"keyparam"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint string `koanf:"endpoint"` // Empty disables OTLP export
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		HTTP: HTTPConfig{
			Port:      3333,
			RateLimit: domain.DefaultIPRequestLimit,
			Origin:    "http://localhost:5173",
		},
		Store: StoreConfig{
			Backend: BackendPostgres,
		},
		Postgres: PostgresConfig{
			MaxConns: 10,
			Migrate:  true,
		},
		DynamoDB: DynamoDBConfig{
			Timeout:  domain.DynamoDBTimeout,
			Accounts: "accounts",
			OTPs:     "otp_codes",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Timeout: domain.RedisTimeout,
			Prefix:  domain.DefaultCounterPrefix,
		},
		AWS: AWSConfig{
			Region: "sa-east-1",
		},
		SMTP: SMTPConfig{
			Port: 587,
			From: "noreply@bagly.com.br",
		},
		OTP: OTPConfig{
			Validity:      domain.OTPValidityDuration,
			Attempts:      domain.MaxOTPVerifyAttempts,
			AttemptWindow: domain.OTPAttemptWindow,
			Lockout:       domain.OTPLockoutDuration,
			Requests:      domain.OTPRequestLimit,
			Window:        domain.OTPRequestWindow,
		},
		Token: TokenConfig{
			Lifetime:  domain.SessionTokenLifetime,
			Issuer:    "claim-intake",
			Audience:  "claim-web",
			KeySource: KeySourceEphemeral,
			KID:       "local",
			KeyParam:  "/claim-intake/jwt/current-key-id",
		},
	}
}

// Load reads environment variables over the compiled defaults and
// validates the result. Env names map to keys by lowercasing and turning
// "_" into "." (SMTP_HOST -> smtp.host).
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")
	cfg := defaults()

	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate rejects values no environment could run with.
func validate(cfg *Config) error {
	switch cfg.Store.Backend {
	case BackendPostgres, BackendDynamoDB:
	default:
		return fmt.Errorf("store.backend %q: must be %s or %s", cfg.Store.Backend, BackendPostgres, BackendDynamoDB)
	}
	switch cfg.Token.KeySource {
	case KeySourceEphemeral, KeySourcePEM, KeySourceAWS:
	default:
		return fmt.Errorf("token.keysource %q: must be ephemeral, pem or aws", cfg.Token.KeySource)
	}
	if cfg.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.ratelimit %d: must be 0 (disabled) or positive", cfg.HTTP.RateLimit)
	}
	if cfg.OTP.Attempts < 1 || cfg.OTP.Requests < 1 {
		return fmt.Errorf("otp.attempts and otp.requests must be positive")
	}
	if cfg.OTP.Validity <= 0 || cfg.OTP.Window <= 0 || cfg.OTP.Lockout <= 0 || cfg.OTP.AttemptWindow <= 0 {
		return fmt.Errorf("otp durations must be positive")
	}
	return nil
}

// validateRequired enforces keys that have no safe default outside local.
func validateRequired(cfg *Config) error {
	if cfg.IsLocal() {
		return nil
	}

	if cfg.Store.Backend == BackendPostgres && cfg.Postgres.DSN.IsEmpty() {
		return fmt.Errorf("%w: postgres.dsn", domain.ErrConfigRequired)
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr", domain.ErrConfigRequired)
	}
	switch cfg.Token.KeySource {
	case KeySourceEphemeral:
		return fmt.Errorf("%w: token.keysource (ephemeral keys are local only)", domain.ErrConfigRequired)
	case KeySourcePEM:
		if cfg.Token.Key.IsEmpty() {
			return fmt.Errorf("%w: token.key", domain.ErrConfigRequired)
		}
	case KeySourceAWS:
		if cfg.Token.Secret == "" {
			return fmt.Errorf("%w: token.secret", domain.ErrConfigRequired)
		}
	}

	return nil
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}
