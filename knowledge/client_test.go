package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/wtthornton/TappMCP-sub003/resilience"
)

type tokenSourceFunc func(ctx context.Context) (string, error)

func (f tokenSourceFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

func newTestClient(t *testing.T, cfg ClientConfig) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no scheme", "knowledge.internal/v1"},
		{"bad scheme", "ftp://knowledge.internal"},
		{"no host", "https://"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(context.Background(), ClientConfig{BaseURL: tt.baseURL})
			if err == nil {
				t.Fatalf("NewClient(%q) error = nil, want error", tt.baseURL)
			}
		})
	}
}

func TestNewClient_MissingBaseURL(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{})
	if !errors.Is(err, ErrMissingBaseURL) {
		t.Errorf("error = %v, want ErrMissingBaseURL", err)
	}
}

func TestNewClient_ResolvesSecrets(t *testing.T) {
	t.Setenv("KNOWCACHE_TEST_BASE", "https://knowledge.internal")
	t.Setenv("KNOWCACHE_TEST_KEY", "k-123")
	t.Setenv("KNOWCACHE_TEST_CONSUMER", "broker")

	c := newTestClient(t, ClientConfig{
		BaseURL: "${KNOWCACHE_TEST_BASE}",
		APIKey:  "secretref:env:KNOWCACHE_TEST_KEY",
		Headers: map[string]string{"X-Consumer": "${KNOWCACHE_TEST_CONSUMER}"},
	})

	if c.base.String() != "https://knowledge.internal" {
		t.Errorf("base = %q, want %q", c.base.String(), "https://knowledge.internal")
	}
	if c.apiKey != "k-123" {
		t.Errorf("apiKey = %q, want %q", c.apiKey, "k-123")
	}
	if got := c.headers["X-Consumer"]; got != "broker" {
		t.Errorf("headers[X-Consumer] = %q, want %q", got, "broker")
	}
}

func TestNewClient_MissingEnvVar(t *testing.T) {
	_, err := NewClient(context.Background(), ClientConfig{
		BaseURL: "${KNOWCACHE_UNSET_VAR_FOR_TEST}",
	})
	if err == nil {
		t.Fatal("NewClient() error = nil, want missing variable error")
	}
}

func TestClient_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if r.URL.Path != "/v1/knowledge" {
			t.Errorf("path = %q, want /v1/knowledge", r.URL.Path)
		}
		if got := r.URL.Query().Get("topic"); got != "redis caching" {
			t.Errorf("topic = %q, want %q", got, "redis caching")
		}
		if got := r.Header.Get("X-API-Key"); got != "k-123" {
			t.Errorf("X-API-Key = %q, want %q", got, "k-123")
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("X-Request-ID header missing")
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"topic":   "redis caching",
			"content": "use SETEX for bounded ttl",
			"source":  "kb://caching/redis",
		})
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{BaseURL: server.URL, APIKey: "k-123"})

	res, err := c.Fetch(context.Background(), "redis caching")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if res.Topic != "redis caching" {
		t.Errorf("Topic = %q, want %q", res.Topic, "redis caching")
	}
	if string(res.Content) != "use SETEX for bounded ttl" {
		t.Errorf("Content = %q, want %q", res.Content, "use SETEX for bounded ttl")
	}
	if res.Source != "kb://caching/redis" {
		t.Errorf("Source = %q, want %q", res.Source, "kb://caching/redis")
	}
	if res.FetchedAt.IsZero() {
		t.Error("FetchedAt is zero")
	}
}

func TestClient_Fetch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		body       string
		wantErr    error
		wantRetry  time.Duration
	}{
		{
			name:       "rate limited with seconds hint",
			status:     http.StatusTooManyRequests,
			retryAfter: "7",
			wantErr:    ErrRateLimited,
			wantRetry:  7 * time.Second,
		},
		{
			name:    "rate limited without hint",
			status:  http.StatusTooManyRequests,
			wantErr: ErrRateLimited,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			wantErr: ErrNetwork,
		},
		{
			name:    "gateway unavailable",
			status:  http.StatusServiceUnavailable,
			wantErr: ErrNetwork,
		},
		{
			name:    "not found",
			status:  http.StatusNotFound,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			wantErr: ErrInvalidResponse,
		},
		{
			name:    "undecodable body",
			status:  http.StatusOK,
			body:    "not-json{{",
			wantErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			c := newTestClient(t, ClientConfig{BaseURL: server.URL})

			_, err := c.Fetch(context.Background(), "some topic")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
			}

			var ue *UpstreamError
			if !errors.As(err, &ue) {
				t.Fatalf("error %v is not *UpstreamError", err)
			}
			if ue.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", ue.StatusCode, tt.status)
			}
			if ue.Topic != "some topic" {
				t.Errorf("Topic = %q, want %q", ue.Topic, "some topic")
			}
			if tt.wantRetry > 0 && ue.RetryAfter != tt.wantRetry {
				t.Errorf("RetryAfter = %v, want %v", ue.RetryAfter, tt.wantRetry)
			}
		})
	}
}

func TestClient_Fetch_RetryAfterDate(t *testing.T) {
	when := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", when)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{BaseURL: server.URL})

	_, err := c.Fetch(context.Background(), "topic")
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not *UpstreamError", err)
	}
	if ue.RetryAfter <= 0 || ue.RetryAfter > 30*time.Second {
		t.Errorf("RetryAfter = %v, want within (0s, 30s]", ue.RetryAfter)
	}
}

func TestClient_Fetch_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, ClientConfig{BaseURL: server.URL})
	server.Close()

	_, err := c.Fetch(context.Background(), "topic")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("Fetch() error = %v, want ErrNetwork", err)
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("error %v is not *UpstreamError", err)
	}
	if ue.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport failure", ue.StatusCode)
	}
}

func TestClient_Fetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{BaseURL: server.URL})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, "topic")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}

func TestClient_Fetch_EmptyTopic(t *testing.T) {
	c := newTestClient(t, ClientConfig{BaseURL: "https://knowledge.internal"})

	_, err := c.Fetch(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyTopic) {
		t.Errorf("Fetch() error = %v, want ErrEmptyTopic", err)
	}
}

func TestClient_Fetch_BearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-abc" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer tok-abc")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{
		BaseURL: server.URL,
		Tokens: tokenSourceFunc(func(ctx context.Context) (string, error) {
			return "tok-abc", nil
		}),
	})

	if _, err := c.Fetch(context.Background(), "topic"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestClient_Fetch_TokenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the upstream when minting fails")
	}))
	defer server.Close()

	mintErr := errors.New("signing key unavailable")
	c := newTestClient(t, ClientConfig{
		BaseURL: server.URL,
		Tokens: tokenSourceFunc(func(ctx context.Context) (string, error) {
			return "", mintErr
		}),
	})

	_, err := c.Fetch(context.Background(), "topic")
	if !errors.Is(err, mintErr) {
		t.Errorf("Fetch() error = %v, want wrapped %v", err, mintErr)
	}
}

func TestClient_Fetch_ExtraHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Consumer"); got != "broker" {
			t.Errorf("X-Consumer = %q, want %q", got, "broker")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{
		BaseURL: server.URL,
		Headers: map[string]string{"X-Consumer": "broker"},
	})

	if _, err := c.Fetch(context.Background(), "topic"); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
}

func TestClient_Fetch_ConcurrencyCap(t *testing.T) {
	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entered <- struct{}{}
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"content": "ok"})
	}))
	defer server.Close()

	c := newTestClient(t, ClientConfig{
		BaseURL:       server.URL,
		MaxConcurrent: 2,
	})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Fetch(context.Background(), "topic")
		}(i)
	}

	// Wait for both in-flight requests to occupy the slots.
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for in-flight requests")
		}
	}

	_, err := c.Fetch(context.Background(), "topic")
	if !errors.Is(err, resilience.ErrBulkheadFull) {
		t.Errorf("third Fetch() error = %v, want ErrBulkheadFull", err)
	}

	close(release)
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Errorf("fetch %d error = %v", i, err)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"empty", "", 0},
		{"seconds", "7", 7 * time.Second},
		{"zero", "0", 0},
		{"negative", "-3", 0},
		{"garbage", "soon", 0},
		{"past date", time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseRetryAfter(tt.value); got != tt.want {
				t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter_FutureDate(t *testing.T) {
	value := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	got := parseRetryAfter(value)
	if got <= 0 || got > time.Minute {
		t.Errorf("parseRetryAfter(%q) = %v, want within (0s, 1m]", value, got)
	}
}
