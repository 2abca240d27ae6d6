package core

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Session bundles the session core. It is built once in main and passed to
// whatever needs it; there is no package-level state.
type Session struct {
	Backend string
	Tokens  *TokenStore
	State   *SessionState
	Auth    *AuthGateway
	Bank    *BankClient
	Routes  *RouteTable
	Metrics *TransportMetrics
}

// SessionOptions carries the collaborators NewSession needs.
type SessionOptions struct {
	Config     Config
	KV         KVStore               // nil: storage unavailable
	Transport  http.RoundTripper     // base transport; nil uses http.DefaultTransport
	Registerer prometheus.Registerer // nil: metrics disabled
	Logger     *zap.Logger
}

// NewSession wires the token store, session state, transport and gateways,
// then initializes the session from storage.
func NewSession(ctx context.Context, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tokens := NewTokenStore(opts.KV, logger.Named("tokens"))
	state := NewSessionState()
	state.Initialize(ctx, tokens)

	var metrics *TransportMetrics
	if opts.Registerer != nil {
		metrics = NewTransportMetrics(opts.Registerer)
	}
	transport := &BearerTransport{Base: opts.Transport, Tokens: tokens, Metrics: metrics}
	api := NewAPIClient(opts.Config.APIURL, transport, opts.Config.HTTPTimeout, logger.Named("api"))

	backend := opts.Config.TokenStore
	if opts.KV == nil {
		backend = "none"
	}
	return &Session{
		Backend: backend,
		Tokens:  tokens,
		State:   state,
		Auth:    NewAuthGateway(api, tokens, state, logger.Named("auth")),
		Bank:    NewBankClient(api),
		Routes:  DefaultRoutes(),
		Metrics: metrics,
	}
}
