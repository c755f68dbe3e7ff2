package accounts

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the logging contract used across the package. Calls pass a
// message followed by slog style key/value pairs, e.g.
// logger.Info("signup created", "email", email). A glog logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ProviderUser is the identity provider's view of an account.
// An empty Status means the provider knows the handle but holds
// no registration for it.
type ProviderUser struct {
	Username   string            `json:"username"`
	Email      string            `json:"email"`
	Status     string            `json:"status"`
	Enabled    bool              `json:"enabled"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Registered reports whether the provider holds a record for the user
func (u *ProviderUser) Registered() bool {
	return u != nil && strings.TrimSpace(u.Status) != ""
}

// ProviderError is a structured rejection reported by the identity provider
type ProviderError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// ProviderResult is the answer to a create or confirm request
type ProviderResult struct {
	Succeeded bool            `json:"succeeded"`
	Errors    []ProviderError `json:"errors,omitempty"`
}

// ProviderSucceeded is a successful ProviderResult
func ProviderSucceeded() ProviderResult {
	return ProviderResult{Succeeded: true}
}

// ProviderFailed builds a rejected ProviderResult from the given errors
func ProviderFailed(errs ...ProviderError) ProviderResult {
	return ProviderResult{Succeeded: false, Errors: errs}
}

// Session holds whatever artefacts the provider issued on sign in.
// Tokens are opaque to this package.
type Session struct {
	Subject      string `json:"sub,omitempty"`
	IDToken      string `json:"-"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	ExpiresIn    int32  `json:"expires_in,omitempty"`
	Remember     bool   `json:"remember"`
}

// SignInResult is the answer to a password sign in. Failures carry
// no reason on purpose.
type SignInResult struct {
	Succeeded bool     `json:"succeeded"`
	Session   *Session `json:"session,omitempty"`
}

// UserFinder looks up a user by email. It returns a nil user and a nil
// error when the provider has never heard of the email.
type UserFinder interface {
	FindUser(ctx context.Context, email string) (*ProviderUser, error)
}

// UserCreator registers a new user with the provider
type UserCreator interface {
	CreateUser(ctx context.Context, email, password string, attributes map[string]string) (ProviderResult, error)
}

// UserConfirmer submits a confirmation code for a pending user
type UserConfirmer interface {
	ConfirmUser(ctx context.Context, user *ProviderUser, code string, forceConfirm bool) (ProviderResult, error)
}

// PasswordAuthenticator runs a password based sign in
type PasswordAuthenticator interface {
	Authenticate(ctx context.Context, email, password string, rememberSession, lockoutOnFailure bool) (SignInResult, error)
}

// IdentityProvider is the full capability set the lifecycle needs.
// Errors returned by these methods are transport failures; business
// rejections travel inside the results.
type IdentityProvider interface {
	UserFinder
	UserCreator
	UserConfirmer
	PasswordAuthenticator
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] ACCOUNTS " + line(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] ACCOUNTS " + line(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] ACCOUNTS " + line(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] ACCOUNTS " + line(msg, args...))
}

// line renders slog style key/value pairs after the message
func line(msg string, args ...any) string {
	msg = strings.TrimRight(msg, "\n")
	if len(args) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
			continue
		}
		fmt.Fprintf(&b, " %v", args[i])
	}
	return b.String()
}

// NopLogger discards every message
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}

// DefaultLogger returns the stdout logger used when none is configured
func DefaultLogger() Logger {
	return defLogger{}
}
