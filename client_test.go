package sdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/globalassist/globalassist/sdk/go/headers"
)

func TestBearerTokenNormalization(t *testing.T) {
	for _, token := range []string{"my-secret-token", "Bearer my-secret-token", "  bearer my-secret-token "} {
		t.Run(token, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get(headers.Authorization); got != "Bearer my-secret-token" {
					t.Errorf("authorization = %q", got)
				}
				writeTestJSON(t, w, http.StatusOK, map[string]any{"models": []Model{}})
			}, WithStaticToken(token))
			if _, err := client.AI.Models(context.Background()); err != nil {
				t.Fatalf("models: %v", err)
			}
		})
	}
}

func TestTokenProviderTakesPrecedence(t *testing.T) {
	var calls atomic.Int64
	provider := TokenProviderFunc(func(context.Context) (string, error) {
		calls.Add(1)
		return "from-provider", nil
	})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(headers.Authorization); got != "Bearer from-provider" {
			t.Errorf("authorization = %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"user": User{Email: "a@b.com"}})
	}, WithStaticToken("static"), WithTokenProvider(provider))

	if _, err := client.Auth.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("provider calls = %d", calls.Load())
	}
}

func TestEmptyProviderTokenFallsBackToStatic(t *testing.T) {
	provider := TokenProviderFunc(func(context.Context) (string, error) { return "", nil })
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(headers.Authorization); got != "Bearer static" {
			t.Errorf("authorization = %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"user": User{Email: "a@b.com"}})
	}, WithStaticToken("static"), WithTokenProvider(provider))

	if _, err := client.Auth.Me(context.Background()); err != nil {
		t.Fatalf("me: %v", err)
	}
}

func TestTokenProviderErrorAbortsRequest(t *testing.T) {
	boom := errors.New("keyring locked")
	var hits atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, WithTokenProvider(TokenProviderFunc(func(context.Context) (string, error) { return "", boom })))

	_, err := client.Auth.Me(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if hits.Load() != 0 {
		t.Fatalf("request should not be sent")
	}
}

func TestContextAccessTokenOverridesClientCredential(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(headers.Authorization); got != "Bearer stored" {
			t.Errorf("authorization = %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"user": User{Email: "a@b.com"}})
	}, WithStaticToken("other"))

	ctx := WithAccessToken(context.Background(), "Bearer stored")
	if tok, ok := AccessTokenFromContext(ctx); !ok || tok != "stored" {
		t.Fatalf("AccessTokenFromContext = %q, %v", tok, ok)
	}
	if _, err := client.Auth.Me(ctx); err != nil {
		t.Fatalf("me: %v", err)
	}
}

func TestUnauthenticatedRequestHasNoAuthorization(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(headers.Authorization); got != "" {
			t.Errorf("unexpected authorization %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"plans": []Plan{}})
	})
	if _, err := client.Payment.Plans(context.Background()); err != nil {
		t.Fatalf("plans: %v", err)
	}
}

func TestRequestHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/ai/models" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get(headers.RequestID) == "" {
			t.Errorf("missing request id")
		}
		if got := r.Header.Get(headers.Client); got != "globalassist-cli/test" {
			t.Errorf("client header = %q", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "globalassist-sdk/") {
			t.Errorf("user agent = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("accept = %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"models": []Model{}})
	}, WithClientHeader("globalassist-cli/test"))

	if _, err := client.AI.Models(context.Background()); err != nil {
		t.Fatalf("models: %v", err)
	}
}

func TestTraceparentInjected(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		want := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
		if got := r.Header.Get(headers.Traceparent); got != want {
			t.Errorf("traceparent = %q", got)
		}
		writeTestJSON(t, w, http.StatusOK, map[string]any{"models": []Model{}})
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	if _, err := client.AI.Models(ctx); err != nil {
		t.Fatalf("models: %v", err)
	}
}

func TestRequestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, WithRequestTimeout(30*time.Millisecond))

	_, err := client.AI.Models(context.Background())
	if !IsNetworkError(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	var transportErr TransportError
	if !errors.As(err, &transportErr) || transportErr.Kind != TransportErrorTimeout {
		t.Fatalf("expected timeout transport error, got %#v", err)
	}
}

func TestRetryOnlyForGet(t *testing.T) {
	var gets, posts atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				writeTestJSON(t, w, http.StatusBadGateway, map[string]any{"error": "upstream"})
				return
			}
			writeTestJSON(t, w, http.StatusOK, map[string]any{"models": []Model{{ID: "kiwi-4.5"}}})
			return
		}
		posts.Add(1)
		writeTestJSON(t, w, http.StatusBadGateway, map[string]any{"error": "upstream"})
	}, WithRetry(RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}))

	models, err := client.AI.Models(context.Background())
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 1 || gets.Load() != 3 {
		t.Fatalf("models=%v gets=%d", models, gets.Load())
	}

	_, err = client.AI.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	if ErrorKindOf(err) != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if posts.Load() != 1 {
		t.Fatalf("POST retried: %d", posts.Load())
	}
}

func TestRetrySkipsClientErrors(t *testing.T) {
	var hits atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeTestJSON(t, w, http.StatusUnauthorized, map[string]any{"error": "Token is invalid"})
	}, WithRetry(RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}))

	_, err := client.Auth.Me(context.Background())
	if !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"localhost:5000", "http://", "::"} {
		if _, err := New(WithBaseURL(raw)); err == nil {
			t.Errorf("%q: expected error", raw)
		} else {
			var cfgErr ConfigError
			if !errors.As(err, &cfgErr) {
				t.Errorf("%q: expected ConfigError, got %T", raw, err)
			}
		}
	}

	client, err := New(WithBaseURL("https://api.example.com/api/"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if client.BaseURL() != "https://api.example.com/api" {
		t.Fatalf("base url = %s", client.BaseURL())
	}

	client, err = New()
	if err != nil {
		t.Fatalf("new default: %v", err)
	}
	if client.BaseURL() != defaultBaseURL {
		t.Fatalf("default base url = %s", client.BaseURL())
	}
}

func TestTelemetryHooks(t *testing.T) {
	var (
		requests, responses atomic.Int64
		metrics             atomic.Int64
		errorLogs           atomic.Int64
	)
	hooks := TelemetryHooks{
		OnHTTPRequest: func(context.Context, *http.Request) { requests.Add(1) },
		OnHTTPResponse: func(_ context.Context, _ *http.Request, resp *http.Response, err error, _ time.Duration) {
			responses.Add(1)
		},
		OnMetric: func(_ context.Context, m Metric) {
			if m.Name == "sdk_http_request_latency_ms" {
				metrics.Add(1)
			}
		},
		OnLogEntry: func(_ context.Context, e LogEntry) {
			if e.Level == LogLevelError {
				errorLogs.Add(1)
			}
		},
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeTestJSON(t, w, http.StatusNotFound, map[string]any{"error": "History not found"})
	}, WithTelemetry(hooks))

	if _, err := client.History.Get(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	if requests.Load() != 1 || responses.Load() != 1 || metrics.Load() != 1 || errorLogs.Load() != 1 {
		t.Fatalf("hooks: req=%d resp=%d metric=%d errlog=%d",
			requests.Load(), responses.Load(), metrics.Load(), errorLogs.Load())
	}
}

func TestUninitializedClients(t *testing.T) {
	ctx := context.Background()
	calls := map[string]func() error{
		"ai":   func() error { _, err := (&AIClient{}).Models(ctx); return err },
		"auth": func() error { _, err := (&AuthClient{}).Me(ctx); return err },
		"history": func() error {
			_, err := (&HistoryClient{}).List(ctx, HistoryAll, nil)
			return err
		},
		"payment": func() error { _, err := (&PaymentClient{}).Plans(ctx); return err },
		"profile": func() error { _, err := (&ProfileClient{}).Get(ctx); return err },
	}
	for name, call := range calls {
		err := call()
		var cfgErr ConfigError
		if !errors.As(err, &cfgErr) {
			t.Errorf("%s: expected ConfigError, got %T %v", name, err, err)
			continue
		}
		if want := name + " client not initialized"; cfgErr.Reason != want {
			t.Errorf("%s: reason %q, want %q", name, cfgErr.Reason, want)
		}
	}
}
