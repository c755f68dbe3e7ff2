package accounts_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockContext is the router.NewMockContext surface the tests drive
type mockContext interface {
	router.Context
	On(method string, args ...any) *mock.Call
}

type rendered struct {
	view string
	data router.ViewContext
}

// response collects what a handler did to the context
type response struct {
	status         int
	renders        []rendered
	redirect       string
	redirectStatus int
	cookies        []*router.Cookie
}

func (r *response) last(t *testing.T) rendered {
	t.Helper()
	require.NotEmpty(t, r.renders)
	return r.renders[len(r.renders)-1]
}

func (r *response) cookie(name string) *router.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func newRecordingContext() (mockContext, *response) {
	ctx := router.NewMockContext()
	res := &response{}

	ctx.On("Context").Return(context.Background()).Maybe()

	ctx.On("Status", mock.Anything).Run(func(args mock.Arguments) {
		res.status = args.Int(0)
	}).Return(ctx).Maybe()

	render := func(args mock.Arguments) {
		data, _ := args.Get(1).(router.ViewContext)
		res.renders = append(res.renders, rendered{view: args.String(0), data: data})
	}
	ctx.On("Render", mock.Anything, mock.Anything).Run(render).Return(nil).Maybe()
	ctx.On("Render", mock.Anything, mock.Anything, mock.Anything).Run(render).Return(nil).Maybe()

	redirect := func(args mock.Arguments) {
		res.redirect = args.String(0)
		if len(args) > 1 {
			if codes, ok := args.Get(1).([]int); ok && len(codes) > 0 {
				res.redirectStatus = codes[0]
			}
		}
	}
	ctx.On("Redirect", mock.Anything).Run(redirect).Return(nil).Maybe()
	ctx.On("Redirect", mock.Anything, mock.Anything).Run(redirect).Return(nil).Maybe()

	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		if c, ok := args.Get(0).(*router.Cookie); ok {
			res.cookies = append(res.cookies, c)
		}
	}).Maybe()
	ctx.On("Cookies", mock.Anything).Return("").Maybe()
	ctx.On("Cookies", mock.Anything, mock.Anything).Return("").Maybe()
	ctx.On("Locals", mock.Anything).Return(nil).Maybe()
	ctx.On("Locals", mock.Anything, mock.Anything).Return(nil).Maybe()

	return ctx, res
}

func bindPayload[T any](ctx mockContext, payload T) {
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		*args.Get(0).(*T) = payload
	}).Return(nil).Once()
}

func newTestController(t *testing.T, lifecycle accounts.AccountLifecycle, opts ...accounts.AccountsControllerOption) *accounts.AccountsController {
	t.Helper()
	opts = append([]accounts.AccountsControllerOption{
		accounts.WithControllerLogger(accounts.NopLogger{}),
	}, opts...)

	ctrl, err := accounts.NewAccountsController(lifecycle, opts...)
	require.NoError(t, err)
	return ctrl
}

func TestNewAccountsControllerRequiresLifecycle(t *testing.T) {
	_, err := accounts.NewAccountsController(nil)
	require.ErrorIs(t, err, accounts.ErrMissingLifecycle)

	var rich *goerrors.Error
	require.True(t, goerrors.As(err, &rich))
	assert.Equal(t, "MISSING_ACCOUNT_LIFECYCLE", rich.TextCode)
	assert.NotEqual(t, accounts.TextCodeMissingProvider, rich.TextCode)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, accounts.StatusCode(accounts.StatusSuccess))
	assert.Equal(t, http.StatusUnprocessableEntity, accounts.StatusCode(accounts.StatusValidationFailed))
	assert.Equal(t, http.StatusConflict, accounts.StatusCode(accounts.StatusAlreadyExists))
	assert.Equal(t, http.StatusNotFound, accounts.StatusCode(accounts.StatusNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, accounts.StatusCode(accounts.StatusProviderRejected))
}

func TestWithRoutesAppliesConfiguredPaths(t *testing.T) {
	ctrl := newTestController(t, &MockLifecycle{}, accounts.WithRoutes(accounts.RoutesConfig{
		Login:  "/accounts/login",
		Logout: "/accounts/bye",
		Home:   "/dashboard",
	}))

	assert.Equal(t, "/accounts/login", ctrl.Routes.Login)
	assert.Equal(t, "/accounts/bye", ctrl.Routes.Logout)
	assert.Equal(t, "/dashboard", ctrl.Routes.Home)
	assert.Equal(t, "/signup", ctrl.Routes.Signup, "unset paths keep their defaults")

	defaults := accounts.DefaultConfig().Routes
	ctrl = newTestController(t, &MockLifecycle{}, accounts.WithRoutes(defaults))
	assert.Equal(t, defaults.Logout, ctrl.Routes.Logout)
}

func TestShowPagesRender(t *testing.T) {
	ctrl := newTestController(t, &MockLifecycle{})

	for view, handler := range map[string]func(router.Context) error{
		"login":   ctrl.LoginShow,
		"signup":  ctrl.SignupShow,
		"confirm": ctrl.ConfirmShow,
	} {
		ctx, res := newRecordingContext()
		ctx.On("Query", "email").Return("a@b.com").Maybe()
		ctx.On("Query", "email", mock.Anything).Return("a@b.com").Maybe()

		require.NoError(t, handler(ctx))
		assert.Equal(t, view, res.last(t).view)

		if view == "confirm" {
			record, ok := res.last(t).data["record"].(accounts.ConfirmationRequest)
			require.True(t, ok)
			assert.Equal(t, "a@b.com", record.Email)
		}
	}
}

func TestSignupPostSuccessRedirectsToConfirm(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	req := accounts.SignupRequest{Email: "a@b.com", Password: "secret1", PasswordConfirmation: "secret1"}
	lifecycle.On("SignUp", mock.Anything, req).
		Return(accounts.Outcome{Status: accounts.StatusSuccess, State: accounts.StatePendingConfirmation}, nil).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, req)

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.Equal(t, http.StatusSeeOther, res.redirectStatus)
	assert.Equal(t, "/confirm?email=a%40b.com", res.redirect)
	lifecycle.AssertExpectations(t)
}

func TestSignupPostAlreadyExistsRerenders(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	errs := accounts.FieldErrors{}
	errs.Add(accounts.FieldEmail, accounts.MessageUserExists)
	lifecycle.On("SignUp", mock.Anything, mock.Anything).
		Return(accounts.Outcome{Status: accounts.StatusAlreadyExists, FieldErrors: errs}, nil).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, accounts.SignupRequest{Email: "a@b.com", Password: "secret1", PasswordConfirmation: "secret1"})

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.Equal(t, http.StatusConflict, res.status)

	last := res.last(t)
	assert.Equal(t, "signup", last.view)
	assert.Equal(t, "already_exists", last.data["status"])
	assert.Equal(t, map[string]string{accounts.FieldEmail: accounts.MessageUserExists}, last.data["error_map"])

	record, ok := last.data["record"].(accounts.SignupRequest)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", record.Email)
	assert.Empty(t, record.Password, "passwords are never echoed back")
}

func TestSignupPostParseError(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	ctx, res := newRecordingContext()
	ctx.On("Bind", mock.Anything).Return(errors.New("unsupported content type")).Once()

	require.NoError(t, ctrl.SignupPost(ctx))
	assert.Equal(t, http.StatusBadRequest, res.status)
	assert.Equal(t, "signup", res.last(t).view)
	lifecycle.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
}

func TestLoginPostSuccessStartsSession(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle, accounts.WithSessionStarter(accounts.NewCookieSessionStarter(accounts.SessionConfig{
		CookieName: "sid",
	})))

	creds := accounts.Credentials{Email: "x@y.com", Password: "secret1", RememberSession: true}
	lifecycle.On("Authenticate", mock.Anything, creds).
		Return(accounts.Outcome{
			Status:  accounts.StatusSuccess,
			State:   accounts.StateAuthenticated,
			Session: &accounts.Session{IDToken: "id-token", Remember: true},
		}, nil).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, creds)

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.Equal(t, http.StatusSeeOther, res.redirectStatus)
	assert.Equal(t, "/", res.redirect)

	cookie := res.cookie("sid")
	require.NotNil(t, cookie)
	assert.Equal(t, "id-token", cookie.Value)
	assert.True(t, cookie.HTTPOnly)
	lifecycle.AssertExpectations(t)
}

func TestLoginPostRejectedIsUnauthorized(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	errs := accounts.FieldErrors{}
	errs.Add(accounts.FieldCredentials, accounts.MessageBadCredentials)
	lifecycle.On("Authenticate", mock.Anything, mock.Anything).
		Return(accounts.Outcome{Status: accounts.StatusProviderRejected, FieldErrors: errs}, nil).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, accounts.Credentials{Email: "x@y.com", Password: "wrong"})

	require.NoError(t, ctrl.LoginPost(ctx))
	assert.Equal(t, http.StatusUnauthorized, res.status)
	assert.Nil(t, res.cookie("accounts_session"))
	assert.Equal(t, "login", res.last(t).view)
}

func TestProviderUnavailableRenders503(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	lifecycle.On("Confirm", mock.Anything, mock.Anything).
		Return(accounts.Outcome{}, accounts.ErrProviderUnavailable.Clone()).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, accounts.ConfirmationRequest{Email: "a@b.com", Code: "123456"})

	require.NoError(t, ctrl.ConfirmPost(ctx))
	assert.Equal(t, http.StatusServiceUnavailable, res.status)
	assert.Equal(t, "errors/503", res.last(t).view)
}

func TestUnexpectedErrorRenders500(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle)

	lifecycle.On("Confirm", mock.Anything, mock.Anything).
		Return(accounts.Outcome{}, fmt.Errorf("unexpected")).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, accounts.ConfirmationRequest{Email: "a@b.com", Code: "123456"})

	require.NoError(t, ctrl.ConfirmPost(ctx))
	assert.Equal(t, http.StatusInternalServerError, res.status)
	assert.Equal(t, "errors/500", res.last(t).view)
}

func TestCustomErrorHandler(t *testing.T) {
	lifecycle := &MockLifecycle{}
	var handled error
	ctrl := newTestController(t, lifecycle, accounts.WithErrorHandler(func(ctx router.Context, err error) error {
		handled = err
		return err
	}))

	lifecycle.On("Confirm", mock.Anything, mock.Anything).
		Return(accounts.Outcome{}, accounts.ErrProviderUnavailable.Clone()).Once()

	ctx, _ := newRecordingContext()
	bindPayload(ctx, accounts.ConfirmationRequest{Email: "a@b.com", Code: "123456"})

	err := ctrl.ConfirmPost(ctx)
	require.Error(t, err)
	assert.Same(t, handled, err)
}

func TestConfirmPostSuccessRedirectsHome(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle, accounts.WithRoutes(accounts.RoutesConfig{Home: "/dashboard"}))

	req := accounts.ConfirmationRequest{Email: "a@b.com", Code: "123456"}
	lifecycle.On("Confirm", mock.Anything, req).
		Return(accounts.Outcome{Status: accounts.StatusSuccess, State: accounts.StateConfirmed}, nil).Once()

	ctx, res := newRecordingContext()
	bindPayload(ctx, req)

	require.NoError(t, ctrl.ConfirmPost(ctx))
	assert.Equal(t, http.StatusSeeOther, res.redirectStatus)
	assert.Equal(t, "/dashboard", res.redirect)
}

func TestLogOutClearsCookie(t *testing.T) {
	ctrl := newTestController(t, &MockLifecycle{})

	ctx, res := newRecordingContext()
	require.NoError(t, ctrl.LogOut(ctx))

	assert.Equal(t, http.StatusTemporaryRedirect, res.redirectStatus)
	assert.Equal(t, "/", res.redirect)

	cookie := res.cookie("accounts_session")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestSignupViewWithDjangoEngine(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "signup.html"), []byte(
		`{{ status }}|{% for e in errors %}{{ e.Field }}={{ e.Message }};{% endfor %}|{% if has_error(error_map, "confirm_password") %}x{% endif %}`,
	), 0o600))

	engine := django.New(dir, ".html")
	for name, fn := range accounts.TemplateHelpers() {
		engine.AddFunc(name, fn)
	}
	require.NoError(t, engine.Load())

	errs := accounts.FieldErrors{}
	errs.Add(accounts.FieldPasswordConfirmation, accounts.MessagePasswordMismatch)

	var buf bytes.Buffer
	require.NoError(t, engine.Render(&buf, "signup", fiber.Map{
		"status":    accounts.StatusValidationFailed.String(),
		"errors":    errs,
		"error_map": errs.Map(),
	}))
	assert.Equal(t, "validation_failed|confirm_password="+accounts.MessagePasswordMismatch+";|x", buf.String())
}

func TestDebugDumpOmitsSecrets(t *testing.T) {
	lifecycle := &MockLifecycle{}
	ctrl := newTestController(t, lifecycle, accounts.WithControllerDebug(true))

	lifecycle.On("SignUp", mock.Anything, mock.Anything).
		Return(accounts.Outcome{Status: accounts.StatusSuccess}, nil).Once()

	ctx, _ := newRecordingContext()
	bindPayload(ctx, accounts.SignupRequest{Email: "a@b.com", Password: "hunter22", PasswordConfirmation: "hunter22"})

	out := captureStdout(t, func() {
		require.NoError(t, ctrl.SignupPost(ctx))
	})

	assert.Contains(t, out, "ACCOUNTS SIGNUP")
	assert.Contains(t, out, "a@b.com")
	assert.NotContains(t, out, "hunter22")
}
