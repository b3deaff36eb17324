package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/globalassist/globalassist/sdk/go/headers"
)

const defaultBaseURL = "http://localhost:5000/api"
const defaultUserAgent = "globalassist-sdk/" + Version
const defaultRequestTimeout = 30 * time.Second

// Config wires authentication, base URL, and telemetry for the API client.
type Config struct {
	BaseURL     string
	AccessToken string
	// TokenProvider supplies the bearer token per request. It takes precedence
	// over AccessToken.
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	Telemetry     TelemetryHooks
	UserAgent     string
	ClientHeader  string
	// RequestTimeout bounds every call. Zero means the default (30s); a
	// negative value disables the bound.
	RequestTimeout time.Duration
	// Retry enables retries of idempotent GETs. Nil means a single attempt.
	Retry *RetryConfig
}

// Option mutates a Config before the client is built.
type Option func(*Config)

func WithBaseURL(u string) Option               { return func(c *Config) { c.BaseURL = u } }
func WithHTTPClient(h *http.Client) Option      { return func(c *Config) { c.HTTPClient = h } }
func WithStaticToken(token string) Option       { return func(c *Config) { c.AccessToken = token } }
func WithTokenProvider(p TokenProvider) Option  { return func(c *Config) { c.TokenProvider = p } }
func WithTelemetry(h TelemetryHooks) Option     { return func(c *Config) { c.Telemetry = h } }
func WithUserAgent(ua string) Option            { return func(c *Config) { c.UserAgent = ua } }
func WithClientHeader(v string) Option          { return func(c *Config) { c.ClientHeader = v } }
func WithRequestTimeout(d time.Duration) Option { return func(c *Config) { c.RequestTimeout = d } }

// WithRetry opts into retrying idempotent GET requests.
func WithRetry(r RetryConfig) Option {
	return func(c *Config) {
		cfg := r
		c.Retry = &cfg
	}
}

// Client provides high-level helpers for interacting with the GlobalAssist API.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	auth         authChain
	telemetry    TelemetryHooks
	userAgent    string
	clientHeader string
	timeout      time.Duration
	retry        RetryConfig

	// Grouped service clients.
	Auth    *AuthClient
	AI      *AIClient
	History *HistoryClient
	Payment *PaymentClient
	Profile *ProfileClient
}

// New builds a client from functional options.
func New(opts ...Option) (*Client, error) {
	var cfg Config
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return NewClient(cfg)
}

// NewClient validates the configuration and returns a ready-to-use Client.
// Credentials are optional: public endpoints (models, plans, login) work without them.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, ConfigError{Reason: err.Error()}
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	retry := RetryConfig{MaxAttempts: 1}
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	client := &Client{
		baseURL:      normalized,
		httpClient:   httpClient,
		auth:         buildAuthChain(cfg),
		telemetry:    cfg.Telemetry,
		userAgent:    ua,
		clientHeader: strings.TrimSpace(cfg.ClientHeader),
		timeout:      timeout,
		retry:        retry.normalized(),
	}
	client.Auth = &AuthClient{client: client}
	client.AI = &AIClient{client: client}
	client.History = &HistoryClient{client: client}
	client.Payment = &PaymentClient{client: client}
	client.Profile = &ProfileClient{client: client}
	return client, nil
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func buildAuthChain(cfg Config) authChain {
	var chain authChain
	if cfg.TokenProvider != nil {
		chain = append(chain, providerAuth{provider: cfg.TokenProvider})
	}
	if cfg.AccessToken != "" {
		chain = append(chain, bearerAuth{token: normalizeBearer(cfg.AccessToken)})
	}
	return chain
}

func normalizeBearer(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	injectTraceparent(ctx, req)
	return req, nil
}

func (c *Client) prepare(req *http.Request) error {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.clientHeader != "" && req.Header.Get(headers.Client) == "" {
		req.Header.Set(headers.Client, c.clientHeader)
	}
	if req.Header.Get(headers.RequestID) == "" {
		req.Header.Set(headers.RequestID, uuid.NewString())
	}
	if token, ok := accessTokenFromContext(req.Context()); ok {
		bearerAuth{token: token}.Apply(req)
		return nil
	}
	return c.auth.Apply(req)
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	if err := c.prepare(req); err != nil {
		return nil, err
	}
	if c.telemetry.OnHTTPRequest != nil {
		c.telemetry.OnHTTPRequest(req.Context(), req)
	}
	c.telemetry.log(req.Context(), LogLevelDebug, "http_request", map[string]any{
		"method":     req.Method,
		"path":       req.URL.Path,
		"request_id": req.Header.Get(headers.RequestID),
	})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.telemetry.OnHTTPResponse != nil {
		c.telemetry.OnHTTPResponse(req.Context(), req, resp, err, time.Since(start))
	}
	c.telemetry.metric(req.Context(), "sdk_http_request_latency_ms", float64(time.Since(start).Milliseconds()), map[string]string{
		"path": req.URL.Path,
	})
	if err != nil {
		kind := classifyTransportErrorKind(err)
		if ctxErr := req.Context().Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			kind = TransportErrorTimeout
		}
		c.telemetry.log(req.Context(), LogLevelError, "http_transport_error", map[string]any{
			"path":  req.URL.Path,
			"kind":  string(kind),
			"error": err.Error(),
		})
		return nil, TransportError{
			Kind:    kind,
			Message: fmt.Sprintf("%s %s", req.Method, req.URL.Path),
			Cause:   err,
		}
	}
	if resp.StatusCode >= 400 {
		//nolint:errcheck // best-effort cleanup on return
		defer func() { _ = resp.Body.Close() }()
		apiErr := decodeAPIError(resp)
		c.telemetry.log(req.Context(), LogLevelError, "http_api_error", map[string]any{
			"path":   req.URL.Path,
			"status": resp.StatusCode,
			"error":  apiErr.Error(),
		})
		return nil, apiErr
	}
	return resp, nil
}

// sendAndDecode performs a JSON request bounded by the client timeout and
// decodes the response into out (which may be nil).
func (c *Client) sendAndDecode(ctx context.Context, method, path string, payload, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	attempts := 1
	if method == http.MethodGet {
		attempts = c.retry.MaxAttempts
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if delay := c.retry.backoffDelay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			case <-timer.C:
			}
		}
		req, err := c.newJSONRequest(ctx, method, path, payload)
		if err != nil {
			return err
		}
		resp, err := c.send(req)
		if err != nil {
			lastErr = err
			if !retryable(err) {
				return err
			}
			continue
		}
		return decodeBody(resp, out)
	}
	return lastErr
}

func decodeBody(resp *http.Response, out any) error {
	//nolint:errcheck // best-effort cleanup on return
	defer func() { _ = resp.Body.Close() }()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("sdk: empty response body")
		}
		return fmt.Errorf("sdk: decode response: %w", err)
	}
	return nil
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
