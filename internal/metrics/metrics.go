package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsession"

// Refresh results
const (
	RefreshOK       = "ok"
	RefreshRejected = "rejected"
	RefreshError    = "error"
)

// Revocation scopes
const (
	ScopeToken   = "token"
	ScopeSubject = "subject"
)

type Recorder interface {
	TokenIssued(kind string)
	Refresh(result string)
	ValidateFailure(reason string)
	Revoked(scope string, n int)
	ObserveHTTP(method string, route string, status int, took time.Duration)
}

// Prometheus recorder with its own registry
// Own registry keeps tests independent from the global default one
type Prometheus struct {
	registry *prometheus.Registry

	issued      *prometheus.CounterVec
	refresh     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	revocations *prometheus.CounterVec
	httpTook    *prometheus.HistogramVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by kind.",
		}, []string{"kind"}),
		refresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Refresh attempts by result.",
		}, []string{"result"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validate_failures_total",
			Help:      "Rejected tokens by reason.",
		}, []string{"reason"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Revoked sessions by scope.",
		}, []string{"scope"}),
		httpTook: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.issued,
		p.refresh,
		p.failures,
		p.revocations,
		p.httpTook,
	)

	return p
}

func (p *Prometheus) TokenIssued(kind string) {
	p.issued.WithLabelValues(kind).Inc()
}

func (p *Prometheus) Refresh(result string) {
	p.refresh.WithLabelValues(result).Inc()
}

func (p *Prometheus) ValidateFailure(reason string) {
	p.failures.WithLabelValues(reason).Inc()
}

func (p *Prometheus) Revoked(scope string, n int) {
	p.revocations.WithLabelValues(scope).Add(float64(n))
}

func (p *Prometheus) ObserveHTTP(method string, route string, status int, took time.Duration) {
	p.httpTook.WithLabelValues(method, route, strconv.Itoa(status)).Observe(took.Seconds())
}

// Exposition handler for GET /metrics
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Nop drops everything
type Nop struct{}

func (Nop) TokenIssued(string) {}
func (Nop) Refresh(string) {}
func (Nop) ValidateFailure(string) {}
func (Nop) Revoked(string, int) {}
func (Nop) ObserveHTTP(string, string, int, time.Duration) {}
