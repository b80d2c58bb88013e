// Package gh talks to the GitHub GraphQL API. It builds the feed queries,
// fetches pages, comments and reactions, and classifies failures.
package gh

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/h0rv/gwitter/internal/domain"
	"github.com/machinebox/graphql"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// DefaultEndpoint is the public GitHub GraphQL endpoint.
const DefaultEndpoint = "https://api.github.com/graphql"

const maxErrorBody = 64 << 10

// Factory hands out clients bound to a single token. All clients built by one
// factory share the transport, the request limiter and the rate limit tracker.
type Factory struct {
	endpoint  string
	transport http.RoundTripper
	limiter   *rate.Limiter
	tracker   *RateLimitTracker
	logger    *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithEndpoint overrides the GraphQL endpoint.
func WithEndpoint(endpoint string) FactoryOption {
	return func(f *Factory) {
		if endpoint != "" {
			f.endpoint = endpoint
		}
	}
}

// WithRateLimit paces outbound requests. rps <= 0 disables pacing.
func WithRateLimit(rps float64, burst int) FactoryOption {
	return func(f *Factory) {
		if rps <= 0 {
			f.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		f.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFactory creates a client factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		endpoint:  DefaultEndpoint,
		transport: http.DefaultTransport,
		tracker:   NewRateLimitTracker(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.transport = &apiTransport{base: f.transport, tracker: f.tracker}
	return f
}

// ForToken returns a client that authenticates with token. An empty token
// yields an anonymous client.
func (f *Factory) ForToken(token string) *Client {
	hc := &http.Client{Transport: f.transport}
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, hc)
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}

	return &Client{
		gql:           graphql.NewClient(f.endpoint, graphql.WithHTTPClient(hc)),
		limiter:       f.limiter,
		logger:        f.logger,
		authenticated: token != "",
	}
}

// RateLimit returns the most recent quota snapshot.
func (f *Factory) RateLimit() domain.RateLimit {
	return f.tracker.Snapshot()
}

// Client is a GitHub GraphQL API client bound to one credential.
type Client struct {
	gql           *graphql.Client
	limiter       *rate.Limiter
	logger        *slog.Logger
	authenticated bool
}

// Authenticated reports whether the client sends a token.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// makeRequest waits for the limiter, runs the request and classifies failures.
func (c *Client) makeRequest(ctx context.Context, req *graphql.Request, resp interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Classify(err)
		}
	}
	start := time.Now()
	err := c.gql.Run(ctx, req, resp)
	c.logger.Debug("graphql request", "elapsed", time.Since(start), "authenticated", c.authenticated, "error", err)
	return Classify(err)
}

// RateLimitTracker records the x-ratelimit-* headers of every response.
type RateLimitTracker struct {
	mu   sync.Mutex
	last domain.RateLimit
}

// NewRateLimitTracker returns a tracker with an unknown quota.
func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{last: domain.RateLimit{Limit: -1, Remaining: -1}}
}

// Snapshot returns the last observed quota.
func (t *RateLimitTracker) Snapshot() domain.RateLimit {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *RateLimitTracker) update(h http.Header) {
	limit, okLimit := parseHeaderInt(h, "x-ratelimit-limit")
	remaining, okRemaining := parseHeaderInt(h, "x-ratelimit-remaining")
	if !okLimit && !okRemaining {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if okLimit {
		t.last.Limit = limit
	}
	if okRemaining {
		t.last.Remaining = remaining
	}
	if used, ok := parseHeaderInt(h, "x-ratelimit-used"); ok {
		t.last.Used = used
	}
	if reset, ok := parseHeaderInt(h, "x-ratelimit-reset"); ok {
		t.last.Reset = time.Unix(int64(reset), 0)
	}
}

// apiTransport records quota headers and converts error statuses into
// *HTTPError. The GraphQL client would otherwise accept any JSON body.
type apiTransport struct {
	base    http.RoundTripper
	tracker *RateLimitTracker
}

func (t *apiTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.tracker.update(resp.Header)

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, newHTTPError(resp, body)
	}
	return resp, nil
}

func parseHeaderInt(h http.Header, key string) (int, bool) {
	v := h.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
