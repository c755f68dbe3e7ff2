package accounts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// AccountLifecycle is what the controller needs from Lifecycle
type AccountLifecycle interface {
	SignUp(ctx context.Context, req SignupRequest) (Outcome, error)
	Confirm(ctx context.Context, req ConfirmationRequest) (Outcome, error)
	Authenticate(ctx context.Context, creds Credentials) (Outcome, error)
}

var _ AccountLifecycle = (*Lifecycle)(nil)

// RegisterAccountRoutes mounts the controller handlers on app
func RegisterAccountRoutes[T any](app router.Router[T], controller *AccountsController) {
	app.Get(controller.Routes.Login, controller.LoginShow).
		SetName("login.get")
	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("login.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("logout.get")

	app.Get(controller.Routes.Signup, controller.SignupShow).
		SetName("signup.get")
	app.Post(controller.Routes.Signup, controller.SignupPost).
		SetName("signup.post")

	app.Get(controller.Routes.Confirm, controller.ConfirmShow).
		SetName("confirm.get")
	app.Post(controller.Routes.Confirm, controller.ConfirmPost).
		SetName("confirm.post")
}

type AccountsControllerRoutes struct {
	Login   string
	Logout  string
	Signup  string
	Confirm string
	Home    string
}

type AccountsControllerViews struct {
	Login       string
	Signup      string
	Confirm     string
	Unavailable string
	Error       string
}

type AccountsController struct {
	Debug        bool
	Logger       Logger
	Lifecycle    AccountLifecycle
	Sessions     SessionStarter
	Routes       *AccountsControllerRoutes
	Views        *AccountsControllerViews
	ErrorHandler router.ErrorHandler
}

type AccountsControllerOption func(*AccountsController) *AccountsController

// WithControllerLogger sets the controller logger
func WithControllerLogger(logger Logger) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithControllerDebug dumps sanitized payloads
func WithControllerDebug(debug bool) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		c.Debug = debug
		return c
	}
}

// WithSessionStarter overrides how sessions are established after sign in
func WithSessionStarter(s SessionStarter) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if s != nil {
			c.Sessions = s
		}
		return c
	}
}

// WithRoutes applies configured paths
func WithRoutes(routes RoutesConfig) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if routes.Login != "" {
			c.Routes.Login = routes.Login
		}
		if routes.Logout != "" {
			c.Routes.Logout = routes.Logout
		}
		if routes.Signup != "" {
			c.Routes.Signup = routes.Signup
		}
		if routes.Confirm != "" {
			c.Routes.Confirm = routes.Confirm
		}
		if routes.Home != "" {
			c.Routes.Home = routes.Home
		}
		return c
	}
}

// WithErrorHandler overrides the handler used for provider and parse failures
func WithErrorHandler(h router.ErrorHandler) AccountsControllerOption {
	return func(c *AccountsController) *AccountsController {
		if h != nil {
			c.ErrorHandler = h
		}
		return c
	}
}

// NewAccountsController builds the controller, failing fast on missing dependencies.
func NewAccountsController(lifecycle AccountLifecycle, opts ...AccountsControllerOption) (*AccountsController, error) {
	if lifecycle == nil {
		return nil, ErrMissingLifecycle
	}

	c := &AccountsController{
		Logger:    defLogger{},
		Lifecycle: lifecycle,
		Sessions:  NewCookieSessionStarter(DefaultConfig().Session),
		Routes: &AccountsControllerRoutes{
			Login:   "/login",
			Logout:  "/logout",
			Signup:  "/signup",
			Confirm: "/confirm",
			Home:    "/",
		},
		Views: &AccountsControllerViews{
			Login:       "login",
			Signup:      "signup",
			Confirm:     "confirm",
			Unavailable: "errors/503",
			Error:       "errors/500",
		},
	}

	c.ErrorHandler = c.defaultErrHandler

	for _, opt := range opts {
		if opt != nil {
			c = opt(c)
		}
	}

	return c, nil
}

func (a *AccountsController) LoginShow(ctx router.Context) error {
	return ctx.Render(a.Views.Login, router.ViewContext{
		"errors":    FieldErrors{},
		"error_map": map[string]string{},
		"record":    Credentials{},
	})
}

func (a *AccountsController) LoginPost(ctx router.Context) error {
	payload := new(Credentials)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderParseError(ctx, a.Views.Login, err, Credentials{})
	}

	record := Credentials{Email: payload.Email, RememberSession: payload.RememberSession}
	a.dump("LOGIN", record)

	out, err := a.Lifecycle.Authenticate(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if !out.Succeeded() {
		return a.renderOutcome(ctx, a.Views.Login, loginStatusCode(out.Status), out, record)
	}

	if err := a.Sessions.Start(ctx, out.Session); err != nil {
		a.Logger.Error("start session", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.Redirect(a.Routes.Home, http.StatusSeeOther)
}

func (a *AccountsController) LogOut(ctx router.Context) error {
	a.Sessions.End(ctx)
	return ctx.Redirect(a.Routes.Home, http.StatusTemporaryRedirect)
}

func (a *AccountsController) SignupShow(ctx router.Context) error {
	return ctx.Render(a.Views.Signup, router.ViewContext{
		"errors":    FieldErrors{},
		"error_map": map[string]string{},
		"record":    SignupRequest{},
	})
}

func (a *AccountsController) SignupPost(ctx router.Context) error {
	payload := new(SignupRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload", "error", err)
		return a.renderParseError(ctx, a.Views.Signup, err, SignupRequest{})
	}

	record := SignupRequest{Email: payload.Email, Phone: payload.Phone}
	a.dump("SIGNUP", record)

	out, err := a.Lifecycle.SignUp(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if !out.Succeeded() {
		return a.renderOutcome(ctx, a.Views.Signup, StatusCode(out.Status), out, record)
	}

	redirect := a.Routes.Confirm + "?email=" + url.QueryEscape(strings.TrimSpace(payload.Email))
	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account created, check your email for the confirmation code",
	}).Redirect(redirect, http.StatusSeeOther)
}

func (a *AccountsController) ConfirmShow(ctx router.Context) error {
	return ctx.Render(a.Views.Confirm, router.ViewContext{
		"errors":    FieldErrors{},
		"error_map": map[string]string{},
		"record":    ConfirmationRequest{Email: ctx.Query("email")},
	})
}

func (a *AccountsController) ConfirmPost(ctx router.Context) error {
	payload := new(ConfirmationRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("confirm parse payload", "error", err)
		return a.renderParseError(ctx, a.Views.Confirm, err, ConfirmationRequest{})
	}

	record := ConfirmationRequest{Email: payload.Email}
	a.dump("CONFIRM", record)

	out, err := a.Lifecycle.Confirm(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if !out.Succeeded() {
		return a.renderOutcome(ctx, a.Views.Confirm, StatusCode(out.Status), out, record)
	}

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Account confirmed, you can sign in now",
	}).Redirect(a.Routes.Home, http.StatusSeeOther)
}

func (a *AccountsController) renderOutcome(ctx router.Context, view string, code int, out Outcome, record any) error {
	return flash.WithError(ctx, router.ViewContext{
		"error_message":  strings.Join(out.FieldErrors.Messages(), " "),
		"system_message": statusLabel(out.Status),
	}).Status(code).Render(view, router.ViewContext{
		"errors":    out.FieldErrors,
		"error_map": out.FieldErrors.Map(),
		"status":    out.Status.String(),
		"record":    record,
	})
}

func (a *AccountsController) renderParseError(ctx router.Context, view string, err error, record any) error {
	errs := FieldErrors{}
	errs.Add("form", "Failed to parse form")

	return flash.WithError(ctx, router.ViewContext{
		"error_message":  err.Error(),
		"system_message": "Error parsing body",
	}).Status(http.StatusBadRequest).Render(view, router.ViewContext{
		"errors":    errs,
		"error_map": errs.Map(),
		"record":    record,
	})
}

func (a *AccountsController) dump(label string, record any) {
	if !a.Debug {
		return
	}
	fmt.Println("======= ACCOUNTS " + label + " ======")
	fmt.Println(print.MaybePrettyJSON(record))
	fmt.Println("=========================")
}

// StatusCode maps an outcome status onto the HTTP status used to re-render a form
func StatusCode(status OutcomeStatus) int {
	switch status {
	case StatusSuccess:
		return http.StatusOK
	case StatusValidationFailed:
		return http.StatusUnprocessableEntity
	case StatusAlreadyExists:
		return http.StatusConflict
	case StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func loginStatusCode(status OutcomeStatus) int {
	if status == StatusProviderRejected {
		return http.StatusUnauthorized
	}
	return StatusCode(status)
}

func (a *AccountsController) defaultErrHandler(ctx router.Context, err error) error {
	if IsProviderUnavailable(err) {
		a.Logger.Error("identity provider unavailable", "error", err)
		return ctx.Status(http.StatusServiceUnavailable).Render(a.Views.Unavailable, router.ViewContext{
			"message": "The account service is temporarily unavailable, please try again later.",
		})
	}

	a.Logger.Error("accounts controller error", "error", err)
	return ctx.Status(http.StatusInternalServerError).Render(a.Views.Error, router.ViewContext{
		"message": "Something went wrong.",
	})
}
