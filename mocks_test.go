package accounts_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/mock"
)

// MockIdentityProvider implements accounts.IdentityProvider
type MockIdentityProvider struct {
	mock.Mock
}

func (m *MockIdentityProvider) FindUser(ctx context.Context, email string) (*accounts.ProviderUser, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*accounts.ProviderUser)
	return user, args.Error(1)
}

func (m *MockIdentityProvider) CreateUser(ctx context.Context, email, password string, attributes map[string]string) (accounts.ProviderResult, error) {
	args := m.Called(ctx, email, password, attributes)
	return args.Get(0).(accounts.ProviderResult), args.Error(1)
}

func (m *MockIdentityProvider) ConfirmUser(ctx context.Context, user *accounts.ProviderUser, code string, forceConfirm bool) (accounts.ProviderResult, error) {
	args := m.Called(ctx, user, code, forceConfirm)
	return args.Get(0).(accounts.ProviderResult), args.Error(1)
}

func (m *MockIdentityProvider) Authenticate(ctx context.Context, email, password string, rememberSession, lockoutOnFailure bool) (accounts.SignInResult, error) {
	args := m.Called(ctx, email, password, rememberSession, lockoutOnFailure)
	return args.Get(0).(accounts.SignInResult), args.Error(1)
}

// MockLifecycle implements accounts.AccountLifecycle
type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) SignUp(ctx context.Context, req accounts.SignupRequest) (accounts.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(accounts.Outcome), args.Error(1)
}

func (m *MockLifecycle) Confirm(ctx context.Context, req accounts.ConfirmationRequest) (accounts.Outcome, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(accounts.Outcome), args.Error(1)
}

func (m *MockLifecycle) Authenticate(ctx context.Context, creds accounts.Credentials) (accounts.Outcome, error) {
	args := m.Called(ctx, creds)
	return args.Get(0).(accounts.Outcome), args.Error(1)
}

type logCall struct {
	level   string
	message string
	args    []any
}

type captureLogger struct {
	mu    sync.Mutex
	calls []logCall
}

func (l *captureLogger) record(level, message string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, logCall{level: level, message: message, args: args})
}

func (l *captureLogger) Debug(message string, args ...any) { l.record("debug", message, args...) }
func (l *captureLogger) Info(message string, args ...any)  { l.record("info", message, args...) }
func (l *captureLogger) Warn(message string, args ...any)  { l.record("warn", message, args...) }
func (l *captureLogger) Error(message string, args ...any) { l.record("error", message, args...) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c.level == level {
			n++
		}
	}
	return n
}

func (l *captureLogger) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprint(l.calls)
}

type recordingSink struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event accounts.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) types() []accounts.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}
