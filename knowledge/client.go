package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wtthornton/TappMCP-sub003/observe"
	"github.com/wtthornton/TappMCP-sub003/resilience"
	"github.com/wtthornton/TappMCP-sub003/secret"
)

// TokenSource mints bearer tokens for outbound requests.
//
// Implementations must be safe for concurrent use. auth.ServiceTokenSource
// satisfies this interface.
type TokenSource interface {
	// Token returns a token valid for at least the next request.
	Token(ctx context.Context) (string, error)
}

// ClientConfig configures the upstream HTTP client.
type ClientConfig struct {
	// BaseURL is the root of the knowledge service, e.g.
	// "https://knowledge.internal". Supports ${VAR} expansion. Required.
	BaseURL string

	// APIKey is sent as X-API-Key when non-empty. Supports ${VAR}
	// expansion and secretref resolution.
	APIKey string

	// Headers are extra headers sent on every request. Values support
	// ${VAR} expansion and secretref resolution.
	Headers map[string]string

	// Tokens mints Authorization bearer tokens when set.
	Tokens TokenSource

	// Secrets resolves references in BaseURL, APIKey and Headers.
	// Default: a strict resolver with the env provider registered.
	Secrets *secret.Resolver

	// HTTPClient is the underlying HTTP client.
	// Default: &http.Client{Timeout: 30 * time.Second}
	HTTPClient *http.Client

	// MaxConcurrent caps in-flight upstream requests across all keys.
	// Dedup already bounds same-key concurrency to one; this bounds the
	// aggregate. Default: 0 (no cap)
	MaxConcurrent int

	// MaxConcurrentWait is how long a request may wait for a slot once
	// MaxConcurrent is reached. Default: 0 (reject immediately)
	MaxConcurrentWait time.Duration

	// Logger receives request diagnostics. Default: discard.
	Logger observe.Logger
}

// Client is an HTTP Fetcher against the upstream knowledge service.
//
// It issues GET {BaseURL}/v1/knowledge?topic=<topic> and maps the outcome
// onto the package's error kinds: 429 becomes rate_limited with any
// Retry-After hint, transport failures and 5xx become network, every other
// status and undecodable body becomes invalid_response.
type Client struct {
	base    *url.URL
	apiKey  string
	headers map[string]string
	tokens  TokenSource
	client  *http.Client
	slots   *resilience.Bulkhead
	logger  observe.Logger
}

// NewClient creates a client. Secret references in the configuration are
// resolved once, here; ctx bounds that resolution.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	resolver := cfg.Secrets
	if resolver == nil {
		resolver = secret.NewResolver(true, secret.NewEnvProvider())
	}

	rawURL, err := resolver.ResolveValue(ctx, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge: resolve base URL: %w", err)
	}
	if strings.TrimSpace(rawURL) == "" {
		return nil, ErrMissingBaseURL
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("knowledge: invalid base URL %q: %w", rawURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" || base.Host == "" {
		return nil, fmt.Errorf("knowledge: invalid base URL %q", rawURL)
	}

	apiKey, err := resolver.ResolveValue(ctx, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("knowledge: resolve API key: %w", err)
	}
	headers, err := resolver.ResolveMap(ctx, cfg.Headers)
	if err != nil {
		return nil, fmt.Errorf("knowledge: resolve headers: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	var slots *resilience.Bulkhead
	if cfg.MaxConcurrent > 0 {
		slots = resilience.NewBulkhead(resilience.BulkheadConfig{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxWait:       cfg.MaxConcurrentWait,
		})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Client{
		base:    base,
		apiKey:  apiKey,
		headers: headers,
		tokens:  cfg.Tokens,
		client:  httpClient,
		slots:   slots,
		logger:  logger.WithComponent("knowledge-client"),
	}, nil
}

// Fetch retrieves knowledge for topic from the upstream service.
func (c *Client) Fetch(ctx context.Context, topic string) (*Result, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}

	if c.slots != nil {
		if err := c.slots.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("knowledge: upstream slots exhausted: %w", err)
		}
		defer c.slots.Release()
	}

	req, err := c.newRequest(ctx, topic)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewNetworkError(topic, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		res, err := c.decode(topic, resp)
		if err != nil {
			return nil, err
		}
		c.logger.Debug(ctx, "fetched topic",
			observe.Field{Key: "topic", Value: topic},
			observe.Field{Key: "duration_ms", Value: time.Since(start).Milliseconds()},
		)
		return res, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.logger.Warn(ctx, "upstream rate limited",
			observe.Field{Key: "topic", Value: topic},
			observe.Field{Key: "retry_after", Value: retryAfter.String()},
		)
		return nil, NewRateLimited(topic, resp.StatusCode, retryAfter)

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, NewNetworkError(topic, resp.StatusCode, nil)

	default:
		return nil, NewInvalidResponse(topic, resp.StatusCode, nil)
	}
}

// newRequest builds the GET request with auth and tracing headers.
func (c *Client) newRequest(ctx context.Context, topic string) (*http.Request, error) {
	u := c.base.JoinPath("v1", "knowledge")
	q := u.Query()
	q.Set("topic", topic)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge: build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("knowledge: mint token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

// wireDocument is the upstream response payload.
type wireDocument struct {
	Topic   string `json:"topic"`
	Content string `json:"content"`
	Source  string `json:"source,omitempty"`
}

// decode reads a 200 response body. The result keeps the requested topic as
// its identity regardless of what the upstream echoes back.
func (c *Client) decode(topic string, resp *http.Response) (*Result, error) {
	var doc wireDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, NewInvalidResponse(topic, resp.StatusCode, err)
	}
	return &Result{
		Topic:     topic,
		Content:   []byte(doc.Content),
		Source:    doc.Source,
		FetchedAt: time.Now(),
	}, nil
}

// parseRetryAfter reads a Retry-After value in either the delay-seconds or
// HTTP-date form. Returns 0 when absent or malformed.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Ensure Client implements Fetcher
var _ Fetcher = (*Client)(nil)
