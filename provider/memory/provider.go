package memory

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Error codes, named after the Cognito exceptions they stand in for
const (
	CodeUsernameExists   = "UsernameExistsException"
	CodeInvalidPassword  = "InvalidPasswordException"
	CodeInvalidParameter = "InvalidParameterException"
	CodeUserNotFound     = "UserNotFoundException"
	CodeCodeMismatch     = "CodeMismatchException"
	CodeExpiredCode      = "ExpiredCodeException"
	CodeNotAuthorized    = "NotAuthorizedException"
)

const (
	DefaultCodeTTL           = 24 * time.Hour
	DefaultMinPasswordLength = 6
	DefaultLockoutThreshold  = 5
	DefaultLockoutDuration   = 15 * time.Minute
	DefaultSessionTTL        = time.Hour
)

// CodeSink delivers confirmation codes, in place of the provider's email
type CodeSink func(ctx context.Context, email, code string) error

var _ accounts.IdentityProvider = (*Provider)(nil)

type record struct {
	id          uuid.UUID
	email       string
	hash        []byte
	status      string
	attributes  map[string]string
	code        string
	codeIssued  time.Time
	failures    int
	lockedUntil time.Time
}

// Provider is an in-process user pool for development and tests.
type Provider struct {
	mu                sync.RWMutex
	users             map[string]*record
	cost              int
	minPasswordLength int
	codeTTL           time.Duration
	lockoutThreshold  int
	lockoutDuration   time.Duration
	sessionTTL        time.Duration
	now               func() time.Time
	generateCode      func() (string, error)
	codeSink          CodeSink
	logger            accounts.Logger
	dummyHash         []byte
}

// Option customizes the provider
type Option func(*Provider)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithBcryptCost sets the hashing cost, tests use bcrypt.MinCost
func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			p.cost = cost
		}
	}
}

// WithMinPasswordLength sets the provider side password policy
func WithMinPasswordLength(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.minPasswordLength = n
		}
	}
}

// WithCodeTTL sets how long a confirmation code stays valid
func WithCodeTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl > 0 {
			p.codeTTL = ttl
		}
	}
}

// WithLockout sets how many failed sign ins lock an account and for how long.
// Lockout only applies to calls made with lockoutOnFailure.
func WithLockout(threshold int, duration time.Duration) Option {
	return func(p *Provider) {
		if threshold > 0 {
			p.lockoutThreshold = threshold
		}
		if duration > 0 {
			p.lockoutDuration = duration
		}
	}
}

// WithCodeSink sets where confirmation codes are delivered
func WithCodeSink(sink CodeSink) Option {
	return func(p *Provider) {
		if sink != nil {
			p.codeSink = sink
		}
	}
}

// WithCodeGenerator replaces the random six digit generator
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(p *Provider) {
		if gen != nil {
			p.generateCode = gen
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger accounts.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns an empty user pool
func New(opts ...Option) *Provider {
	p := &Provider{
		users:             map[string]*record{},
		cost:              bcrypt.DefaultCost,
		minPasswordLength: DefaultMinPasswordLength,
		codeTTL:           DefaultCodeTTL,
		lockoutThreshold:  DefaultLockoutThreshold,
		lockoutDuration:   DefaultLockoutDuration,
		sessionTTL:        DefaultSessionTTL,
		now:               time.Now,
		generateCode:      randomCode,
		logger:            accounts.NopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	if p.codeSink == nil {
		p.codeSink = func(_ context.Context, email, code string) error {
			p.logger.Info("confirmation code issued", "email", email, "code", code)
			return nil
		}
	}

	p.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), p.cost)

	return p
}

// FindUser implements accounts.UserFinder.
func (p *Provider) FindUser(ctx context.Context, email string) (*accounts.ProviderUser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.users[key(email)]
	if !ok {
		return nil, nil
	}
	return rec.toUser(), nil
}

// CreateUser implements accounts.UserCreator.
func (p *Provider) CreateUser(ctx context.Context, email, password string, attributes map[string]string) (accounts.ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return accounts.ProviderResult{}, err
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeInvalidParameter,
			Description: "Username cannot be empty.",
		}), nil
	}

	if len(password) < p.minPasswordLength {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeInvalidPassword,
			Description: "Password did not conform with policy: Password not long enough",
		}), nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeInvalidPassword,
			Description: "Password did not conform with policy.",
		}), nil
	}

	code, err := p.generateCode()
	if err != nil {
		return accounts.ProviderResult{}, fmt.Errorf("memory: generate confirmation code: %w", err)
	}

	id, err := hashid.NewUUID(strings.ToLower(email))
	if err != nil {
		id = uuid.New()
	}

	p.mu.Lock()
	if _, exists := p.users[key(email)]; exists {
		p.mu.Unlock()
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeUsernameExists,
			Description: "An account with the given email already exists.",
		}), nil
	}

	p.users[key(email)] = &record{
		id:         id,
		email:      email,
		hash:       hash,
		status:     accounts.ProviderStatusUnconfirmed,
		attributes: copyAttributes(attributes),
		code:       code,
		codeIssued: p.now(),
	}
	p.mu.Unlock()

	if err := p.codeSink(ctx, email, code); err != nil {
		p.logger.Error("confirmation code delivery failed", "email", email, "error", err)
	}

	return accounts.ProviderSucceeded(), nil
}

// ConfirmUser implements accounts.UserConfirmer. forceConfirm has no
// effect here, the pool has no aliases to migrate.
func (p *Provider) ConfirmUser(ctx context.Context, user *accounts.ProviderUser, code string, forceConfirm bool) (accounts.ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return accounts.ProviderResult{}, err
	}

	if user == nil {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeUserNotFound,
			Description: "Username/client id combination not found.",
		}), nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.users[key(user.Email)]
	if !ok {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeUserNotFound,
			Description: "Username/client id combination not found.",
		}), nil
	}

	if rec.status == accounts.ProviderStatusConfirmed {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeNotAuthorized,
			Description: "User cannot be confirmed. Current status is CONFIRMED",
		}), nil
	}

	if p.now().Sub(rec.codeIssued) > p.codeTTL {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeExpiredCode,
			Description: "Invalid code provided, please request a code again.",
		}), nil
	}

	if strings.TrimSpace(code) != rec.code {
		return accounts.ProviderFailed(accounts.ProviderError{
			Code:        CodeCodeMismatch,
			Description: "Invalid verification code provided, please try again.",
		}), nil
	}

	rec.status = accounts.ProviderStatusConfirmed
	rec.code = ""

	return accounts.ProviderSucceeded(), nil
}

// Authenticate implements accounts.PasswordAuthenticator. Password
// comparison runs outside the pool lock.
func (p *Provider) Authenticate(ctx context.Context, email, password string, rememberSession, lockoutOnFailure bool) (accounts.SignInResult, error) {
	if err := ctx.Err(); err != nil {
		return accounts.SignInResult{}, err
	}

	k := key(email)

	p.mu.RLock()
	var snap record
	rec, ok := p.users[k]
	if ok {
		snap = *rec
	}
	p.mu.RUnlock()

	now := p.now()

	if !ok {
		// keep timing close to the known user path
		_ = bcrypt.CompareHashAndPassword(p.dummyHash, []byte(password))
		return accounts.SignInResult{}, nil
	}

	if now.Before(snap.lockedUntil) {
		return accounts.SignInResult{}, nil
	}

	if err := bcrypt.CompareHashAndPassword(snap.hash, []byte(password)); err != nil {
		if lockoutOnFailure {
			p.recordFailure(k, now)
		}
		return accounts.SignInResult{}, nil
	}

	if snap.status != accounts.ProviderStatusConfirmed {
		return accounts.SignInResult{}, nil
	}

	p.mu.Lock()
	if rec, ok := p.users[k]; ok {
		rec.failures = 0
	}
	p.mu.Unlock()

	return accounts.SignInResult{
		Succeeded: true,
		Session: &accounts.Session{
			Subject:      snap.id.String(),
			IDToken:      "mem." + uuid.NewString(),
			AccessToken:  "mem." + uuid.NewString(),
			RefreshToken: "mem." + uuid.NewString(),
			ExpiresIn:    int32(p.sessionTTL / time.Second),
			Remember:     rememberSession,
		},
	}, nil
}

func (p *Provider) recordFailure(k string, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, ok := p.users[k]
	if !ok || now.Before(rec.lockedUntil) {
		return
	}

	rec.failures++
	if rec.failures >= p.lockoutThreshold {
		rec.lockedUntil = now.Add(p.lockoutDuration)
		rec.failures = 0
		p.logger.Warn("account locked after failed sign ins", "email", rec.email)
	}
}

// PendingCode returns the outstanding confirmation code for email
func (p *Provider) PendingCode(email string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec, ok := p.users[key(email)]
	if !ok || rec.code == "" {
		return "", false
	}
	return rec.code, true
}

// Len returns the number of users in the pool
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.users)
}

func (r *record) toUser() *accounts.ProviderUser {
	return &accounts.ProviderUser{
		Username:   r.id.String(),
		Email:      r.email,
		Status:     r.status,
		Enabled:    true,
		Attributes: copyAttributes(r.attributes),
	}
}

func key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func copyAttributes(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
