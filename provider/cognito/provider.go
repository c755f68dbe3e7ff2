package cognito

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/goliatone/go-accounts"
)

// API is the subset of the Cognito client the provider calls
type API interface {
	AdminGetUser(ctx context.Context, params *cip.AdminGetUserInput, optFns ...func(*cip.Options)) (*cip.AdminGetUserOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
}

var _ API = (*cip.Client)(nil)
var _ accounts.IdentityProvider = (*Provider)(nil)

// Provider implements accounts.IdentityProvider backed by a Cognito user pool.
type Provider struct {
	api      API
	config   Config
	verifier *TokenVerifier
	logger   accounts.Logger
}

// Option customizes the provider
type Option func(*Provider)

// WithLogger sets the logger
func WithLogger(logger accounts.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTokenVerifier checks ID tokens returned on sign in
func WithTokenVerifier(v *TokenVerifier) Option {
	return func(p *Provider) {
		p.verifier = v
	}
}

// New wraps an existing client
func New(api API, cfg Config, opts ...Option) (*Provider, error) {
	if api == nil {
		return nil, accounts.ErrMissingProvider
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		api:    api,
		config: cfg,
		logger: accounts.NopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	return p, nil
}

// FindUser implements accounts.UserFinder.
func (p *Provider) FindUser(ctx context.Context, email string) (*accounts.ProviderUser, error) {
	out, err := p.api.AdminGetUser(ctx, &cip.AdminGetUserInput{
		UserPoolId: aws.String(p.config.UserPoolID),
		Username:   aws.String(email),
	})
	if err != nil {
		var notFound *types.UserNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cognito: admin get user: %w", err)
	}

	attributes := make(map[string]string, len(out.UserAttributes))
	for _, attr := range out.UserAttributes {
		attributes[aws.ToString(attr.Name)] = aws.ToString(attr.Value)
	}

	userEmail := attributes["email"]
	if userEmail == "" {
		userEmail = email
	}

	return &accounts.ProviderUser{
		Username:   aws.ToString(out.Username),
		Email:      userEmail,
		Status:     string(out.UserStatus),
		Enabled:    out.Enabled,
		Attributes: attributes,
	}, nil
}

// CreateUser implements accounts.UserCreator.
func (p *Provider) CreateUser(ctx context.Context, email, password string, attributes map[string]string) (accounts.ProviderResult, error) {
	input := &cip.SignUpInput{
		ClientId:       aws.String(p.config.ClientID),
		Username:       aws.String(email),
		Password:       aws.String(password),
		UserAttributes: toAttributes(attributes),
	}

	if hash := p.secretHash(email); hash != "" {
		input.SecretHash = aws.String(hash)
	}

	out, err := p.api.SignUp(ctx, input)
	if err != nil {
		return rejection(err, "sign up")
	}

	p.logger.Debug("cognito sign up", "email", email, "confirmed", out.UserConfirmed)

	return accounts.ProviderSucceeded(), nil
}

// ConfirmUser implements accounts.UserConfirmer. forceConfirm maps to
// ForceAliasCreation, moving an email alias held by another account.
func (p *Provider) ConfirmUser(ctx context.Context, user *accounts.ProviderUser, code string, forceConfirm bool) (accounts.ProviderResult, error) {
	if user == nil {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        "UserNotFoundException",
			Description: "User does not exist.",
		}), nil
	}

	username := user.Username
	if username == "" {
		username = user.Email
	}

	input := &cip.ConfirmSignUpInput{
		ClientId:           aws.String(p.config.ClientID),
		Username:           aws.String(username),
		ConfirmationCode:   aws.String(code),
		ForceAliasCreation: forceConfirm,
	}

	if hash := p.secretHash(username); hash != "" {
		input.SecretHash = aws.String(hash)
	}

	if _, err := p.api.ConfirmSignUp(ctx, input); err != nil {
		return rejection(err, "confirm sign up")
	}

	return accounts.ProviderSucceeded(), nil
}

// Authenticate implements accounts.PasswordAuthenticator. Cognito applies
// its own lockout policy, lockoutOnFailure cannot change it.
func (p *Provider) Authenticate(ctx context.Context, email, password string, rememberSession, lockoutOnFailure bool) (accounts.SignInResult, error) {
	if lockoutOnFailure {
		p.logger.Debug("cognito manages lockout on its own, flag ignored", "email", email)
	}

	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if hash := p.secretHash(email); hash != "" {
		params["SECRET_HASH"] = hash
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.config.ClientID),
		AuthParameters: params,
	})
	if err != nil {
		if isClientFault(err) {
			p.logger.Debug("cognito sign in rejected", "email", email, "code", errorCode(err))
			return accounts.SignInResult{}, nil
		}
		return accounts.SignInResult{}, fmt.Errorf("cognito: initiate auth: %w", err)
	}

	if out.AuthenticationResult == nil {
		p.logger.Info("cognito sign in requires a challenge", "email", email, "challenge", string(out.ChallengeName))
		return accounts.SignInResult{}, nil
	}

	result := out.AuthenticationResult
	session := &accounts.Session{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
		Remember:     rememberSession,
	}

	if session.IDToken != "" {
		claims, err := p.readIDToken(session.IDToken)
		if err != nil {
			p.logger.Warn("cognito sign in rejected, id token not accepted", "email", email, "error", err)
			return accounts.SignInResult{}, nil
		}
		session.Subject = claims.Subject
	}

	return accounts.SignInResult{Succeeded: true, Session: session}, nil
}

func (p *Provider) readIDToken(token string) (*IDTokenClaims, error) {
	if p.verifier != nil {
		claims, err := p.verifier.Verify(token)
		if err != nil {
			return nil, fmt.Errorf("cognito: id token verification failed: %w", err)
		}
		return claims, nil
	}
	return ParseUnverified(token)
}

// secretHash is required by app clients created with a secret
func (p *Provider) secretHash(username string) string {
	if p.config.ClientSecret == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(p.config.ClientSecret))
	mac.Write([]byte(username + p.config.ClientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func toAttributes(in map[string]string) []types.AttributeType {
	out := make([]types.AttributeType, 0, len(in))
	for _, name := range sortedKeys(in) {
		out = append(out, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(in[name]),
		})
	}
	return out
}

// rejection turns client faults into provider errors, anything else
// is a transport failure
func rejection(err error, operation string) (accounts.ProviderResult, error) {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorFault() != smithy.FaultServer {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        apiErr.ErrorCode(),
			Description: apiErr.ErrorMessage(),
		}), nil
	}
	return accounts.ProviderResult{}, fmt.Errorf("cognito: %s: %w", operation, err)
}

func isClientFault(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorFault() != smithy.FaultServer
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}
