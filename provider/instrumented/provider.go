package instrumented

import (
	"context"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/prometheus/client_golang/prometheus"
)

// Call results
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Operation labels
const (
	OperationFindUser     = "find_user"
	OperationCreateUser   = "create_user"
	OperationConfirmUser  = "confirm_user"
	OperationAuthenticate = "authenticate"
)

// Metrics holds the provider call collectors
type Metrics struct {
	CallsTotal   *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on registerer
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "accounts_provider_calls_total",
				Help: "Total number of identity provider calls",
			},
			[]string{"operation", "result"},
		),
		CallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "accounts_provider_call_duration_seconds",
				Help:    "Identity provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(m.CallsTotal, m.CallDuration)
	}

	return m
}

func (m *Metrics) observe(operation, result string, start time.Time) {
	m.CallsTotal.WithLabelValues(operation, result).Inc()
	m.CallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Provider decorates an identity provider with call metrics
type Provider struct {
	next    accounts.IdentityProvider
	metrics *Metrics
}

var _ accounts.IdentityProvider = (*Provider)(nil)

// Wrap instruments next. A nil metrics value registers nothing
// and only counts in memory.
func Wrap(next accounts.IdentityProvider, metrics *Metrics) (*Provider, error) {
	if next == nil {
		return nil, accounts.ErrMissingProvider
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Provider{next: next, metrics: metrics}, nil
}

func (p *Provider) FindUser(ctx context.Context, email string) (*accounts.ProviderUser, error) {
	start := time.Now()
	user, err := p.next.FindUser(ctx, email)

	result := ResultOK
	if err != nil {
		result = ResultError
	}
	p.metrics.observe(OperationFindUser, result, start)

	return user, err
}

func (p *Provider) CreateUser(ctx context.Context, email, password string, attributes map[string]string) (accounts.ProviderResult, error) {
	start := time.Now()
	res, err := p.next.CreateUser(ctx, email, password, attributes)
	p.metrics.observe(OperationCreateUser, resultLabel(res.Succeeded, err), start)
	return res, err
}

func (p *Provider) ConfirmUser(ctx context.Context, user *accounts.ProviderUser, code string, forceConfirm bool) (accounts.ProviderResult, error) {
	start := time.Now()
	res, err := p.next.ConfirmUser(ctx, user, code, forceConfirm)
	p.metrics.observe(OperationConfirmUser, resultLabel(res.Succeeded, err), start)
	return res, err
}

func (p *Provider) Authenticate(ctx context.Context, email, password string, rememberSession, lockoutOnFailure bool) (accounts.SignInResult, error) {
	start := time.Now()
	res, err := p.next.Authenticate(ctx, email, password, rememberSession, lockoutOnFailure)
	p.metrics.observe(OperationAuthenticate, resultLabel(res.Succeeded, err), start)
	return res, err
}

func resultLabel(succeeded bool, err error) string {
	switch {
	case err != nil:
		return ResultError
	case succeeded:
		return ResultOK
	default:
		return ResultRejected
	}
}
