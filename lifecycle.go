package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Attribute names sent to the provider on signup
const (
	AttributeName  = "name"
	AttributeEmail = "email"
	AttributePhone = "phone_number"
)

var (
	signupFieldOrder      = []string{FieldEmail, FieldPassword, FieldPasswordConfirmation, FieldPhone}
	confirmFieldOrder     = []string{FieldEmail, FieldCode}
	credentialsFieldOrder = []string{FieldEmail, FieldPassword}
)

// Lifecycle sequences signup, confirmation and sign in against an
// identity provider. It holds no per account state and is safe for
// concurrent use.
//
// The signup existence check and the create call are two separate
// provider requests. Two concurrent signups for the same email can
// both pass the check; de-duplication is left to the provider.
type Lifecycle struct {
	provider         IdentityProvider
	logger           Logger
	activitySink     ActivitySink
	lockoutOnFailure bool
	phoneRegion      string
	now              func() time.Time
}

// LifecycleOption customizes lifecycle construction.
type LifecycleOption func(*Lifecycle)

// WithLogger sets the logger
func WithLogger(logger Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithActivitySink sets the ActivitySink used to publish lifecycle events.
func WithActivitySink(sink ActivitySink) LifecycleOption {
	return func(l *Lifecycle) {
		l.activitySink = normalizeActivitySink(sink)
	}
}

// WithLockoutOnFailure asks the provider to count failed sign ins towards
// account lockout. Disabled by default.
func WithLockoutOnFailure(enabled bool) LifecycleOption {
	return func(l *Lifecycle) {
		l.lockoutOnFailure = enabled
	}
}

// WithPhoneRegion sets the region used to parse phone numbers without a country code
func WithPhoneRegion(region string) LifecycleOption {
	return func(l *Lifecycle) {
		if region = strings.TrimSpace(region); region != "" {
			l.phoneRegion = strings.ToUpper(region)
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		if clock != nil {
			l.now = clock
		}
	}
}

// NewLifecycle validates its dependencies up front so request paths never
// see a missing provider.
func NewLifecycle(provider IdentityProvider, opts ...LifecycleOption) (*Lifecycle, error) {
	if provider == nil {
		return nil, ErrMissingProvider
	}

	l := &Lifecycle{
		provider:     provider,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
		phoneRegion:  DefaultPhoneRegion,
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	if !l.lockoutOnFailure {
		l.logger.Warn("sign in lockout on failure is disabled, failed attempts will not lock accounts")
	}

	return l, nil
}

// LockoutOnFailure reports whether failed sign ins are sent with lockout enabled
func (l *Lifecycle) LockoutOnFailure() bool {
	return l.lockoutOnFailure
}

// SignUp creates a new account unless the provider already holds one for the email.
func (l *Lifecycle) SignUp(ctx context.Context, req SignupRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during signup")
	}

	if err := req.ValidateWithRegion(l.phoneRegion); err != nil {
		l.logger.Debug("signup validation failed", "error", err)
		return failure(StatusValidationFailed, StateUnknown, FormatValidationErrors(err, signupFieldOrder...)), nil
	}

	email := normalizeEmail(req.Email)

	user, err := l.provider.FindUser(ctx, email)
	if err != nil {
		l.logger.Error("signup find user", "email", email, "error", err)
		return Outcome{}, providerUnavailable(err, "find user")
	}

	if user.Registered() {
		current := StateFromProvider(user)
		out := failureField(StatusAlreadyExists, current, FieldEmail, MessageUserExists)
		l.record(ctx, ActivityEventSignupRejected, email, current, current, out, map[string]any{
			"reason": "exists",
		})
		return out, nil
	}

	attributes := map[string]string{
		AttributeName:  email,
		AttributeEmail: email,
	}

	if phone := strings.TrimSpace(req.Phone); phone != "" {
		normalized, err := NormalizePhone(phone, l.phoneRegion)
		if err != nil {
			return failureField(StatusValidationFailed, StateUnknown, FieldPhone, MessagePhoneInvalid), nil
		}
		attributes[AttributePhone] = normalized
	}

	result, err := l.provider.CreateUser(ctx, email, req.Password, attributes)
	if err != nil {
		l.logger.Error("signup create user", "email", email, "error", err)
		return Outcome{}, providerUnavailable(err, "create user")
	}

	if !result.Succeeded {
		out := failure(StatusProviderRejected, StateUnregistered, fromProviderErrors(result.Errors))
		l.record(ctx, ActivityEventSignupRejected, email, StateUnregistered, StateUnregistered, out, map[string]any{
			"codes": out.FieldErrors.Fields(),
		})
		return out, nil
	}

	out := success(StatePendingConfirmation)
	l.record(ctx, ActivityEventSignupCreated, email, StateUnregistered, StatePendingConfirmation, out, nil)
	l.logger.Info("signup created", "email", email)

	return out, nil
}

// Confirm submits a confirmation code for a registered account.
func (l *Lifecycle) Confirm(ctx context.Context, req ConfirmationRequest) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during confirmation")
	}

	if err := req.Validate(); err != nil {
		l.logger.Debug("confirm validation failed", "error", err)
		return failure(StatusValidationFailed, StateUnknown, FormatValidationErrors(err, confirmFieldOrder...)), nil
	}

	email := normalizeEmail(req.Email)

	user, err := l.provider.FindUser(ctx, email)
	if err != nil {
		l.logger.Error("confirm find user", "email", email, "error", err)
		return Outcome{}, providerUnavailable(err, "find user")
	}

	if !user.Registered() {
		return failureField(StatusNotFound, StateUnregistered, FieldEmail, MessageUserNotFound), nil
	}

	current := StateFromProvider(user)
	if err := ValidateTransition(current, StateConfirmed); err != nil {
		l.logger.Debug("confirm requested outside pending state, deferring to provider",
			"email", email, "state", current.String())
	}

	result, err := l.provider.ConfirmUser(ctx, user, strings.TrimSpace(req.Code), true)
	if err != nil {
		l.logger.Error("confirm user", "email", email, "error", err)
		return Outcome{}, providerUnavailable(err, "confirm user")
	}

	if !result.Succeeded {
		out := failure(StatusProviderRejected, current, fromProviderErrors(result.Errors))
		l.record(ctx, ActivityEventConfirmRejected, email, current, current, out, map[string]any{
			"codes": out.FieldErrors.Fields(),
		})
		return out, nil
	}

	out := success(StateConfirmed)
	l.record(ctx, ActivityEventConfirmed, email, current, StateConfirmed, out, nil)
	l.logger.Info("account confirmed", "email", email)

	return out, nil
}

// Authenticate runs a password sign in. Every failure produces the same
// single field error so callers cannot tell unknown users from bad passwords.
func (l *Lifecycle) Authenticate(ctx context.Context, creds Credentials) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled during authentication")
	}

	if err := creds.Validate(); err != nil {
		l.logger.Debug("login validation failed", "error", err)
		return failure(StatusValidationFailed, StateUnknown, FormatValidationErrors(err, credentialsFieldOrder...)), nil
	}

	email := normalizeEmail(creds.Email)

	result, err := l.provider.Authenticate(ctx, email, creds.Password, creds.RememberSession, l.lockoutOnFailure)
	if err != nil {
		l.logger.Error("authenticate", "email", email, "error", err)
		return Outcome{}, providerUnavailable(err, "authenticate")
	}

	if !result.Succeeded {
		out := failureField(StatusProviderRejected, StateUnknown, FieldCredentials, MessageBadCredentials)
		l.record(ctx, ActivityEventLoginFailure, email, StateUnknown, StateUnknown, out, nil)
		return out, nil
	}

	out := success(StateAuthenticated)
	if result.Session != nil {
		session := *result.Session
		session.Remember = creds.RememberSession
		out.Session = &session
	} else {
		out.Session = &Session{Remember: creds.RememberSession}
	}

	l.record(ctx, ActivityEventLoginSuccess, email, StateConfirmed, StateAuthenticated, out, map[string]any{
		"remember": creds.RememberSession,
	})

	return out, nil
}

func (l *Lifecycle) record(ctx context.Context, eventType ActivityEventType, email string, from, to AccountState, out Outcome, meta map[string]any) {
	event := ActivityEvent{
		EventType:  eventType,
		Email:      email,
		FromState:  from,
		ToState:    to,
		Status:     out.Status,
		Metadata:   meta,
		OccurredAt: l.now().UTC(),
	}

	if err := l.activitySink.Record(ctx, event); err != nil {
		l.logger.Error("activity sink error", "event", string(eventType), "error", err)
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(email)
}
