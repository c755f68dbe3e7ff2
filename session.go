package accounts

import (
	"time"

	"github.com/goliatone/go-router"
)

// SessionStarter establishes a session once the provider accepted a sign in
type SessionStarter interface {
	Start(ctx router.Context, session *Session) error
	End(ctx router.Context)
}

// CookieSessionStarter keeps the provider ID token in an HTTP only cookie.
// It never mints tokens of its own.
type CookieSessionStarter struct {
	CookieName       string
	Duration         time.Duration
	ExtendedDuration time.Duration
	Secure           bool
	SameSite         string
	now              func() time.Time
}

// NewCookieSessionStarter builds a starter from session configuration
func NewCookieSessionStarter(cfg SessionConfig) *CookieSessionStarter {
	duration := cfg.Duration
	if duration <= 0 {
		duration = 24 * time.Hour
	}

	extended := cfg.ExtendedDuration
	if extended < duration {
		extended = duration
	}

	name := cfg.CookieName
	if name == "" {
		name = "accounts_session"
	}

	return &CookieSessionStarter{
		CookieName:       name,
		Duration:         duration,
		ExtendedDuration: extended,
		Secure:           cfg.Secure,
		SameSite:         "Lax",
		now:              time.Now,
	}
}

// Start implements SessionStarter.
func (s *CookieSessionStarter) Start(ctx router.Context, session *Session) error {
	if session == nil || session.IDToken == "" {
		return nil
	}

	duration := s.Duration
	if session.Remember {
		duration = s.ExtendedDuration
	}

	s.setCookie(ctx, session.IDToken, s.clock().Add(duration))
	return nil
}

// End implements SessionStarter.
func (s *CookieSessionStarter) End(ctx router.Context) {
	s.setCookie(ctx, "", s.clock().Add(-time.Hour*(24*365)))
}

func (s *CookieSessionStarter) setCookie(ctx router.Context, val string, expires time.Time) {
	ctx.Cookie(&router.Cookie{
		Name:     s.CookieName,
		Value:    val,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.Secure,
		SameSite: s.SameSite,
	})
}

func (s *CookieSessionStarter) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}
