package adapter

import (
	"context"
	"crypto/rsa"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/bagly/claim-intake/internal/auth"
	"github.com/bagly/claim-intake/internal/domain"
)

// smClient is the narrow consumer-defined interface for Secrets Manager operations.
type smClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// ssmClient is the narrow consumer-defined interface for SSM Parameter Store operations.
type ssmClient interface {
	GetParameter(ctx context.Context, params *awsssm.GetParameterInput, optFns ...func(*awsssm.Options)) (*awsssm.GetParameterOutput, error)
}

var _ auth.KeyStore = (*AWSKeyStore)(nil)

// defaultKidCooldown bounds how often an unknown kid may trigger a reload.
const defaultKidCooldown = 30 * time.Second

// AWSKeyStore implements auth.KeyStore with the signing key ID in an SSM
// parameter and each PEM private key in Secrets Manager under
// secretPrefix + kid. After a rotation the previous public key stays
// available so tokens signed before the switch still verify.
type AWSKeyStore struct {
	sm           smClient
	ssm          ssmClient
	clock        domain.Clock
	keyParam     string
	secretPrefix string
	kidCooldown  time.Duration

	mu         sync.RWMutex
	privateKey *rsa.PrivateKey
	keyID      string
	publicKeys map[string]*rsa.PublicKey
	lastReload time.Time
}

// AWSKeyStoreConfig names where the key material lives.
type AWSKeyStoreConfig struct {
	KeyParam     string // SSM parameter holding the current kid
	SecretPrefix string // Secrets Manager name prefix; the kid is appended
}

// NewAWSKeyStore loads the current signing key. It fails when no usable
// key can be fetched, so the service never starts unable to mint tokens.
func NewAWSKeyStore(ctx context.Context, sm smClient, ssm ssmClient, clock domain.Clock, cfg AWSKeyStoreConfig) (*AWSKeyStore, error) {
	ks := &AWSKeyStore{
		sm:           sm,
		ssm:          ssm,
		clock:        clock,
		keyParam:     cfg.KeyParam,
		secretPrefix: cfg.SecretPrefix,
		kidCooldown:  defaultKidCooldown,
		publicKeys:   make(map[string]*rsa.PublicKey),
	}
	if err := ks.Reload(ctx); err != nil {
		return nil, err
	}
	return ks, nil
}

// Reload re-reads the current kid and, when it changed, fetches the new
// private key. Known public keys are kept.
func (ks *AWSKeyStore) Reload(ctx context.Context) error {
	kid, err := ks.currentKeyID(ctx)
	if err != nil {
		return err
	}

	ks.mu.RLock()
	unchanged := kid == ks.keyID && ks.privateKey != nil
	ks.mu.RUnlock()
	if unchanged {
		ks.mu.Lock()
		ks.lastReload = ks.clock.Now()
		ks.mu.Unlock()
		return nil
	}

	secretName := ks.secretPrefix + kid
	out, err := ks.sm.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return fmt.Errorf("fetching signing key %q from Secrets Manager: %w", secretName, err)
	}
	if out.SecretString == nil {
		return fmt.Errorf("signing key %q has no secret string", secretName)
	}

	key, err := auth.ParseRSAPrivateKey(*out.SecretString)
	if err != nil {
		return fmt.Errorf("parsing private key for key ID %q: %w", kid, err)
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.privateKey = key
	ks.keyID = kid
	ks.publicKeys[kid] = &key.PublicKey
	ks.lastReload = ks.clock.Now()
	return nil
}

func (ks *AWSKeyStore) currentKeyID(ctx context.Context) (string, error) {
	out, err := ks.ssm.GetParameter(ctx, &awsssm.GetParameterInput{
		Name: aws.String(ks.keyParam),
	})
	if err != nil {
		return "", fmt.Errorf("fetching current key ID from SSM: %w", err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil || *out.Parameter.Value == "" {
		return "", fmt.Errorf("SSM parameter %s has no value", ks.keyParam)
	}
	return *out.Parameter.Value, nil
}

// SigningKey returns the current private signing key and its key ID.
func (ks *AWSKeyStore) SigningKey() (*rsa.PrivateKey, string, error) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	if ks.privateKey == nil {
		return nil, "", fmt.Errorf("no signing key available")
	}
	return ks.privateKey, ks.keyID, nil
}

// PublicKey returns the verification key for kid. An unknown kid triggers
// at most one reload per cooldown, picking up a rotation done by another
// instance.
//
// auth.KeyStore carries no context, so the reload runs on
// context.Background().
func (ks *AWSKeyStore) PublicKey(kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	pk, ok := ks.publicKeys[kid]
	cooling := ks.clock.Now().Sub(ks.lastReload) <= ks.kidCooldown
	ks.mu.RUnlock()

	if ok {
		return pk, nil
	}
	if cooling {
		return nil, fmt.Errorf("unknown key ID %q (cooldown active)", kid)
	}

	if err := ks.Reload(context.Background()); err != nil {
		return nil, fmt.Errorf("reloading keys (unknown kid %q): %w", kid, err)
	}

	ks.mu.RLock()
	defer ks.mu.RUnlock()
	if pk, ok := ks.publicKeys[kid]; ok {
		return pk, nil
	}
	return nil, fmt.Errorf("unknown key ID %q", kid)
}
