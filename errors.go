package accounts

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeMissingProvider     = "MISSING_IDENTITY_PROVIDER"
	TextCodeMissingLifecycle    = "MISSING_ACCOUNT_LIFECYCLE"
	TextCodeProviderUnavailable = "IDENTITY_PROVIDER_UNAVAILABLE"
	TextCodeInvalidConfig       = "INVALID_ACCOUNTS_CONFIG"
	TextCodeInvalidTransition   = "INVALID_ACCOUNT_STATE_TRANSITION"
)

// ErrMissingProvider is returned when a component is built without an identity provider
var ErrMissingProvider = goerrors.New("identity provider is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingProvider).
	WithCode(goerrors.CodeBadRequest)

// ErrMissingLifecycle is returned when the controller is built without a lifecycle
var ErrMissingLifecycle = goerrors.New("account lifecycle is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingLifecycle).
	WithCode(goerrors.CodeBadRequest)

// ErrProviderUnavailable marks transport level failures talking to the identity provider
var ErrProviderUnavailable = goerrors.New("identity provider unavailable", goerrors.CategoryOperation).
	WithTextCode(TextCodeProviderUnavailable).
	WithCode(503)

// ErrInvalidConfig is returned when configuration fails validation
var ErrInvalidConfig = goerrors.New("invalid accounts configuration", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidConfig).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidTransition is returned when a lifecycle step is not allowed from the current state
var ErrInvalidTransition = goerrors.New("invalid account state transition", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidTransition).
	WithCode(goerrors.CodeBadRequest)

// IsProviderUnavailable reports whether err is a provider transport failure
func IsProviderUnavailable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrProviderUnavailable) {
		return true
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeProviderUnavailable
	}
	return false
}

func providerUnavailable(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during "+operation)
	}

	clone := ErrProviderUnavailable.Clone()
	clone.Source = err
	clone.WithMetadata(map[string]any{
		"operation": operation,
		"error":     err.Error(),
	})
	return clone
}
