package cognito

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/goliatone/go-accounts"
)

// Config holds the user pool coordinates
type Config struct {
	Region       string
	UserPoolID   string
	ClientID     string
	ClientSecret string

	// Endpoint overrides the service endpoint (local emulators)
	Endpoint string

	// AccessKey and SecretKey switch to static credentials,
	// otherwise the default credential chain is used
	AccessKey string
	SecretKey string

	// VerifyTokens checks ID token signatures against the pool JWKS
	VerifyTokens bool
}

// FromAccountsConfig copies the cognito section of the accounts configuration
func FromAccountsConfig(cfg accounts.CognitoConfig) Config {
	return Config{
		Region:       cfg.Region,
		UserPoolID:   cfg.UserPoolID,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     cfg.Endpoint,
		AccessKey:    cfg.AccessKey,
		SecretKey:    cfg.SecretKey,
		VerifyTokens: cfg.VerifyTokens,
	}
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return fmt.Errorf("cognito: region is required")
	}
	if strings.TrimSpace(c.UserPoolID) == "" {
		return fmt.Errorf("cognito: user pool id is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("cognito: client id is required")
	}
	return nil
}

// Issuer is the token issuer URL for the pool
func (c Config) Issuer() string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolID)
}

// JWKSURL is where the pool publishes its signing keys
func (c Config) JWKSURL() string {
	return c.Issuer() + "/.well-known/jwks.json"
}

// NewFromConfig loads AWS configuration and builds a Provider
func NewFromConfig(ctx context.Context, cfg Config, opts ...Option) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var awsConfig aws.Config
	var err error

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey,
				cfg.SecretKey,
				"",
			)),
		)
	} else {
		awsConfig, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.Region),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("cognito: failed to load AWS config: %w", err)
	}

	client := cip.NewFromConfig(awsConfig, func(o *cip.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	if cfg.VerifyTokens {
		verifier, err := NewTokenVerifier(cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTokenVerifier(verifier))
	}

	return New(client, cfg, opts...)
}
