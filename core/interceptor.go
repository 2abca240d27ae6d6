package core

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// BearerTransport attaches the stored credential to every outgoing back-end request.
// The token is read from the store on each call, never from the session state,
// so a login or logout is visible to the very next request.
type BearerTransport struct {
	Base    http.RoundTripper // nil: http.DefaultTransport
	Tokens  *TokenStore
	Metrics *TransportMetrics // optional
}

// RoundTrip forwards req unchanged when no credential is stored; the back-end
// decides whether the endpoint accepts anonymous calls. Responses, including
// 401/403, are returned as-is.
func (t *BearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	out := req
	if cred, ok := t.Tokens.Token(req.Context()); ok {
		out = req.Clone(req.Context())
		out.Header.Set("Authorization", DefaultTokenType+" "+cred.Token)
	}

	start := time.Now()
	resp, err := base.RoundTrip(out)
	t.Metrics.observe(req.Method, resp, err, time.Since(start))
	return resp, err
}

// TransportMetrics counts back-end calls by method and status.
type TransportMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTransportMetrics registers the collectors on reg.
func NewTransportMetrics(reg prometheus.Registerer) *TransportMetrics {
	m := &TransportMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankconsole",
			Name:      "api_requests_total",
			Help:      "Requests sent to the banking back-end.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bankconsole",
			Name:      "api_request_duration_seconds",
			Help:      "Latency of requests sent to the banking back-end.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

func (m *TransportMetrics) observe(method string, resp *http.Response, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	if err == nil && resp != nil {
		status = strconv.Itoa(resp.StatusCode)
	}
	m.requests.WithLabelValues(method, status).Inc()
	m.duration.WithLabelValues(method).Observe(elapsed.Seconds())
}
