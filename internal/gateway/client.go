// Package gateway is the HTTP client for the civictrack REST backend.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

// DefaultBaseURL is the public backend.
const DefaultBaseURL = "https://loginexpress-ts-jwt.onrender.com/api"

// RequestIDHeader carries a per-call correlation id.
const RequestIDHeader = "X-Request-ID"

const maxBody = 8 << 20

// TokenSource returns the bearer token to attach, or "" for anonymous calls.
type TokenSource func() string

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	timeout time.Duration
	base    http.RoundTripper
}

// WithTimeout bounds every call, including reading the response body.
func WithTimeout(d time.Duration) Option { return func(o *clientOptions) { o.timeout = d } }

// WithTransport replaces the underlying round tripper (tests use httptest transports).
func WithTransport(rt http.RoundTripper) Option { return func(o *clientOptions) { o.base = rt } }

// New builds a client for baseURL. tokens may be nil.
func New(baseURL string, tokens TokenSource, log *zap.Logger, opts ...Option) *Client {
	o := clientOptions{timeout: 30 * time.Second, base: http.DefaultTransport}
	for _, fn := range opts {
		fn(&o)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	rt := otelhttp.NewTransport(&authTransport{next: o.base, tokens: tokens})
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: o.timeout, Transport: rt},
		log:  log,
	}
}

// authTransport adds the bearer token and a request id unless the caller set them.
type authTransport struct {
	next   http.RoundTripper
	tokens TokenSource
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	if r.Header.Get("Authorization") == "" && t.tokens != nil {
		if tok := t.tokens(); tok != "" {
			r.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if r.Header.Get(RequestIDHeader) == "" {
		if id, err := uuid.NewV4(); err == nil {
			r.Header.Set(RequestIDHeader, id.String())
		}
	}
	return t.next.RoundTrip(r)
}

// call is one backend round trip.
type call struct {
	op          string
	method      string
	path        string
	body        io.Reader
	contentType string
	bearer      string // overrides the token source
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// do executes c and returns the response body for 2xx responses. Any other
// outcome is an *APIError.
func (cl *Client) do(ctx context.Context, c call) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, c.method, cl.base+c.path, c.body)
	if err != nil {
		return nil, fmt.Errorf("gateway: %s: build request: %w", c.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}
	reqID, _ := uuid.NewV4()
	req.Header.Set(RequestIDHeader, reqID.String())

	start := time.Now()
	resp, err := cl.http.Do(req)
	if err != nil {
		cl.log.Debug("gateway call failed",
			zap.String("op", c.op),
			zap.String("request_id", reqID.String()),
			zap.Duration("dur", time.Since(start)),
			zap.Error(err),
		)
		return nil, transportError(c.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	cl.log.Debug("gateway call",
		zap.String("op", c.op),
		zap.String("method", c.method),
		zap.String("path", c.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID.String()),
		zap.Duration("dur", time.Since(start)),
	)
	if err != nil {
		return nil, transportError(c.op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(c.op, resp.StatusCode, body)
	}
	return body, nil
}
