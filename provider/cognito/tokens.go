package cognito

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// ErrWrongTokenUse is returned when an access token is presented as an ID token
var ErrWrongTokenUse = errors.New("cognito: token is not an id token")

// IDTokenClaims are the ID token claims the provider reads
type IDTokenClaims struct {
	jwt.RegisteredClaims
	Email           string `json:"email,omitempty"`
	EmailVerified   bool   `json:"email_verified,omitempty"`
	TokenUse        string `json:"token_use,omitempty"`
	CognitoUsername string `json:"cognito:username,omitempty"`
}

// TokenVerifier validates ID tokens issued by a user pool
type TokenVerifier struct {
	keyFunc  jwt.Keyfunc
	issuer   string
	clientID string
}

// NewTokenVerifier fetches the pool JWKS and keeps it refreshed in the background
func NewTokenVerifier(cfg Config) (*TokenVerifier, error) {
	jwks, err := keyfunc.Get(cfg.JWKSURL(), keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			log.Printf("cognito: failed to refresh JWKS: %s", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("cognito: failed to load JWKS: %w", err)
	}

	return NewTokenVerifierWithKeyfunc(jwks.Keyfunc, cfg.Issuer(), cfg.ClientID), nil
}

// NewTokenVerifierWithKeyfunc builds a verifier around an existing key lookup
func NewTokenVerifierWithKeyfunc(kf jwt.Keyfunc, issuer, clientID string) *TokenVerifier {
	return &TokenVerifier{
		keyFunc:  kf,
		issuer:   issuer,
		clientID: clientID,
	}
}

// Verify checks signature, issuer, audience and expiry
func (v *TokenVerifier) Verify(token string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}

	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc,
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.clientID),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	if claims.TokenUse != "id" {
		return nil, ErrWrongTokenUse
	}

	return claims, nil
}

// ParseUnverified reads claims from a token received straight from Cognito
func ParseUnverified(token string) (*IDTokenClaims, error) {
	claims := &IDTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("cognito: malformed id token: %w", err)
	}
	return claims, nil
}

func sortedKeys(in map[string]string) []string {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
