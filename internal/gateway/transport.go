// Package gateway attaches the effective bearer credential to outbound backend requests.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sudheendra1210/Citycycle/internal/credential"
	"github.com/sudheendra1210/Citycycle/internal/observability/metrics"
	"github.com/sudheendra1210/Citycycle/internal/observability/statsd"
)

// RequestIDHeader carries a per-request correlation id to the backend.
const RequestIDHeader = "X-Request-ID"

// Resolver yields the credential for a request. *credential.Chain satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, mode credential.Mode) credential.Result
}

// TransportOptions configures a Transport.
type TransportOptions struct {
	Base     http.RoundTripper
	Resolver Resolver
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// Transport is an http.RoundTripper that authenticates requests with the first credential
// any source yields. It never signs out, retries or mutates session state.
type Transport struct {
	base     http.RoundTripper
	resolver Resolver
	logger   *slog.Logger
	metrics  statsd.Sink
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport constructs a Transport. A nil Base uses http.DefaultTransport.
func NewTransport(opts TransportOptions) *Transport {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		base:     base,
		resolver: opts.Resolver,
		logger:   logger.With("component", "request_gateway"),
		metrics:  opts.Metrics,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())

	if out.Header.Get("Authorization") == "" && t.resolver != nil {
		res := t.resolver.Resolve(out.Context(), credential.FallThrough)
		if !res.Credential.IsZero() {
			out.Header.Set("Authorization", "Bearer "+res.Credential.Token)
		}
	}
	if out.Header.Get(RequestIDHeader) == "" {
		out.Header.Set(RequestIDHeader, uuid.NewString())
	}

	resp, err := t.base.RoundTrip(out)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		t.logger.WarnContext(out.Context(), "authentication required",
			"method", out.Method,
			"path", out.URL.Path,
			"request_id", out.Header.Get(RequestIDHeader))
		metrics.EmitUnauthorized(t.metrics, out.Method)
	}
	return resp, nil
}

// ClientOptions configures NewClient.
type ClientOptions struct {
	Base     http.RoundTripper
	Resolver Resolver
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Timeout  time.Duration
}

// NewClient returns an *http.Client whose requests go through a Transport.
func NewClient(opts ClientOptions) *http.Client {
	return &http.Client{
		Timeout: opts.Timeout,
		Transport: NewTransport(TransportOptions{
			Base:     opts.Base,
			Resolver: opts.Resolver,
			Logger:   opts.Logger,
			Metrics:  opts.Metrics,
		}),
	}
}
