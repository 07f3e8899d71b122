package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/tuneshop/internal/shared"
	tu "github.com/desertthunder/tuneshop/internal/testing"
)

type staticTokens struct {
	mu     sync.Mutex
	token  string
	prefix string
}

func (s *staticTokens) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *staticTokens) AuthorizationHeader() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return ""
	}
	return s.prefix + " " + s.token
}

func (s *staticTokens) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

type stubRenewer struct {
	tokens *staticTokens
	next   string
	err    error
	stale  []string
}

func (r *stubRenewer) Renew(ctx context.Context, staleToken string) (string, error) {
	r.stale = append(r.stale, staleToken)
	if r.err != nil {
		return "", r.err
	}
	r.tokens.set(r.next)
	return r.next, nil
}

func TestAPIService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		t.Run("With Custom BaseURL and Client", func(t *testing.T) {
			customClient := &http.Client{}
			srv := NewAPIService(APIOptions{BaseURL: "http://example.com/api/", HTTPClient: customClient})

			if srv.baseURL != "http://example.com/api" {
				t.Errorf("expected trailing slash to be trimmed, got %s", srv.baseURL)
			}
			if srv.httpClient != customClient {
				t.Error("expected custom client to be used")
			}
			if srv.limiter != nil {
				t.Error("expected no limiter without a rate limit")
			}
		})

		t.Run("With Defaults", func(t *testing.T) {
			srv := NewAPIService(APIOptions{RateLimit: 5})

			if srv.baseURL != "http://localhost:8080/api" {
				t.Errorf("expected default baseURL, got %s", srv.baseURL)
			}
			if srv.httpClient != http.DefaultClient {
				t.Error("expected default client to be used")
			}
			if srv.limiter == nil {
				t.Error("expected limiter to be configured")
			}
		})
	})

	t.Run("Authorization", func(t *testing.T) {
		tc := []struct {
			name    string
			base    string
			token   string
			wantHdr string
		}{
			{name: "api path with token", base: "/api", token: "abc", wantHdr: "Bearer abc"},
			{name: "api path without token", base: "/api", token: "", wantHdr: ""},
			{name: "non-api path", base: "/public", token: "abc", wantHdr: ""},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				var got string
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = r.Header.Get("Authorization")
					w.WriteHeader(http.StatusOK)
				}))
				defer server.Close()

				srv := NewAPIService(APIOptions{
					BaseURL: server.URL + tt.base,
					Tokens:  &staticTokens{token: tt.token, prefix: "Bearer"},
				})
				if err := srv.Do(context.Background(), Request{Path: "/carrito"}, nil); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if got != tt.wantHdr {
					t.Errorf("expected header %q, got %q", tt.wantHdr, got)
				}
			})
		}
	})

	t.Run("Do", func(t *testing.T) {
		t.Run("Encodes Body And Decodes Result", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST method, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("expected Content-Type 'application/json', got %s", r.Header.Get("Content-Type"))
				}
				if r.URL.Query().Get("q") != "1" {
					t.Errorf("expected query q=1, got %s", r.URL.RawQuery)
				}

				body, _ := io.ReadAll(r.Body)
				var data map[string]string
				if err := json.Unmarshal(body, &data); err != nil {
					t.Errorf("failed to unmarshal request body: %v", err)
				}
				if data["test"] != "data" {
					t.Errorf("expected request data 'test:data', got %v", data)
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusCreated)
				json.NewEncoder(w).Encode(map[string]string{"id": "123"})
			}))
			defer server.Close()

			srv := NewAPIService(APIOptions{BaseURL: server.URL})
			var result map[string]string
			err := srv.Do(context.Background(), Request{
				Method: http.MethodPost,
				Path:   "/test",
				Query:  map[string][]string{"q": {"1"}},
				Body:   map[string]string{"test": "data"},
			}, &result)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result["id"] != "123" {
				t.Errorf("expected id 123, got %v", result)
			}
		})

		t.Run("Empty Body Leaves Result Untouched", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			defer server.Close()

			srv := NewAPIService(APIOptions{BaseURL: server.URL})
			var result map[string]string
			if err := srv.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/x"}, &result); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if result != nil {
				t.Errorf("expected nil result, got %v", result)
			}
		})

		t.Run("Invalid JSON", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			}))
			defer server.Close()

			srv := NewAPIService(APIOptions{BaseURL: server.URL})
			var result map[string]string
			err := srv.Do(context.Background(), Request{Path: "/x"}, &result)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
		})

		t.Run("Failed Request Creation", func(t *testing.T) {
			srv := NewAPIService(APIOptions{BaseURL: "http://example.com"})
			err := srv.Do(context.Background(), Request{Path: "/test\x00invalid"}, nil)

			if err == nil || !strings.Contains(err.Error(), "failed to create request") {
				t.Errorf("expected 'failed to create request' error, got %v", err)
			}
		})

		t.Run("Failed HTTP Request", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.FixedTransport(nil, errors.New("connection failed")),
			}

			srv := NewAPIService(APIOptions{BaseURL: "http://example.com", HTTPClient: client})
			err := srv.Do(context.Background(), Request{Path: "/test"}, nil)

			if err == nil || !strings.Contains(err.Error(), "request failed") {
				t.Errorf("expected 'request failed' error, got %v", err)
			}
		})

		t.Run("Failed Response Body Read", func(t *testing.T) {
			client := &http.Client{
				Transport: tu.FixedTransport(&http.Response{
					StatusCode: http.StatusOK,
					Body:       tu.FailingBody{},
					Header:     http.Header{},
				}, nil),
			}

			srv := NewAPIService(APIOptions{BaseURL: "http://example.com", HTTPClient: client})
			err := srv.Do(context.Background(), Request{Path: "/test"}, nil)

			if err == nil || !strings.Contains(err.Error(), "failed to read response") {
				t.Errorf("expected 'failed to read response' error, got %v", err)
			}
		})

		t.Run("With Canceled Context", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			srv := NewAPIService(APIOptions{BaseURL: server.URL, RateLimit: 1})
			if err := srv.Do(ctx, Request{Path: "/test"}, nil); err == nil {
				t.Error("expected error for canceled context")
			}
		})
	})

	t.Run("Raw", func(t *testing.T) {
		t.Run("Returns Non-2xx Without Error", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Custom-Header", "test-value")
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"mensaje":"no existe"}`))
			}))
			defer server.Close()

			srv := NewAPIService(APIOptions{BaseURL: server.URL})
			resp, err := srv.Raw(context.Background(), Request{Path: "/x"})

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if resp.OK() || resp.StatusCode != http.StatusNotFound {
				t.Errorf("expected 404, got %d", resp.StatusCode)
			}
			if !resp.IsJSON {
				t.Error("expected response to be JSON")
			}
			if resp.Headers.Get("X-Custom-Header") != "test-value" {
				t.Errorf("expected custom header 'test-value', got %s", resp.Headers.Get("X-Custom-Header"))
			}
		})
	})
}

func TestErrorClassification(t *testing.T) {
	tc := []struct {
		name         string
		status       int
		body         string
		wantSentinel error
		wantMessage  string
	}{
		{
			name:         "token expired",
			status:       http.StatusUnauthorized,
			body:         `{"error":"TOKEN_EXPIRED"}`,
			wantSentinel: shared.ErrTokenExpired,
		},
		{
			name:         "other unauthorized",
			status:       http.StatusUnauthorized,
			body:         `{"error":"UNAUTHORIZED","mensaje":"No autenticado"}`,
			wantSentinel: shared.ErrNotAuthenticated,
			wantMessage:  "No autenticado",
		},
		{
			name:         "server error with message",
			status:       http.StatusInternalServerError,
			body:         `{"message":"Pago rechazado"}`,
			wantSentinel: shared.ErrAPIRequest,
			wantMessage:  "Pago rechazado",
		},
		{
			name:         "plain text body",
			status:       http.StatusBadGateway,
			body:         "upstream down",
			wantSentinel: shared.ErrServiceUnavailable,
			wantMessage:  "upstream down",
		},
		{
			name:         "json string body",
			status:       http.StatusBadRequest,
			body:         `"Producto inválido"`,
			wantSentinel: shared.ErrAPIRequest,
			wantMessage:  "Producto inválido",
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			srv := NewAPIService(APIOptions{BaseURL: server.URL})
			err := srv.Do(context.Background(), Request{Path: "/x"}, nil)

			if !errors.Is(err, tt.wantSentinel) {
				t.Errorf("expected %v, got %v", tt.wantSentinel, err)
			}
			apiErr, ok := AsAPIError(err)
			if !ok {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.StatusCode)
			}
			if apiErr.UserMessage() != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, apiErr.UserMessage())
			}
		})
	}
}

func TestRenewal(t *testing.T) {
	newServer := func(t *testing.T, valid string, hits *[]string) *httptest.Server {
		t.Helper()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			*hits = append(*hits, auth)
			if auth != "Bearer "+valid {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"TOKEN_EXPIRED"}`))
				return
			}
			w.Write([]byte(`{"ok":true}`))
		}))
		t.Cleanup(server.Close)
		return server
	}

	t.Run("Renews And Retries Once", func(t *testing.T) {
		var hits []string
		server := newServer(t, "fresh", &hits)
		tokens := &staticTokens{token: "old", prefix: "Bearer"}
		renewer := &stubRenewer{tokens: tokens, next: "fresh"}

		srv := NewAPIService(APIOptions{BaseURL: server.URL + "/api", Tokens: tokens})
		srv.UseRenewer(renewer)

		var result map[string]bool
		if err := srv.Do(context.Background(), Request{Path: "/carrito"}, &result); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result["ok"] {
			t.Error("expected retried response to be decoded")
		}
		if len(hits) != 2 || hits[0] != "Bearer old" || hits[1] != "Bearer fresh" {
			t.Errorf("expected old then fresh token, got %v", hits)
		}
		if len(renewer.stale) != 1 || renewer.stale[0] != "old" {
			t.Errorf("expected renewer to get the stale token, got %v", renewer.stale)
		}
	})

	t.Run("Second Expiry Is Not Renewed Again", func(t *testing.T) {
		var hits []string
		server := newServer(t, "never", &hits)
		tokens := &staticTokens{token: "old", prefix: "Bearer"}
		renewer := &stubRenewer{tokens: tokens, next: "fresh"}

		srv := NewAPIService(APIOptions{BaseURL: server.URL + "/api", Tokens: tokens})
		srv.UseRenewer(renewer)

		err := srv.Do(context.Background(), Request{Path: "/carrito"}, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if len(hits) != 2 || len(renewer.stale) != 1 {
			t.Errorf("expected a single retry, got %d hits and %d renewals", len(hits), len(renewer.stale))
		}
	})

	t.Run("Renewal Failure Keeps Original Error", func(t *testing.T) {
		var hits []string
		server := newServer(t, "fresh", &hits)
		tokens := &staticTokens{token: "old", prefix: "Bearer"}
		renewer := &stubRenewer{tokens: tokens, err: shared.ErrRefreshFailed}

		srv := NewAPIService(APIOptions{BaseURL: server.URL + "/api", Tokens: tokens})
		srv.UseRenewer(renewer)

		err := srv.Do(context.Background(), Request{Path: "/carrito"}, nil)
		if !errors.Is(err, shared.ErrRefreshFailed) || !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected refresh failure wrapping the expiry, got %v", err)
		}
		if len(hits) != 1 {
			t.Errorf("expected no retry, got %d hits", len(hits))
		}
	})

	t.Run("NoRenew Is Not Intercepted", func(t *testing.T) {
		var hits []string
		server := newServer(t, "fresh", &hits)
		tokens := &staticTokens{token: "old", prefix: "Bearer"}
		renewer := &stubRenewer{tokens: tokens, next: "fresh"}

		srv := NewAPIService(APIOptions{BaseURL: server.URL + "/api", Tokens: tokens})
		srv.UseRenewer(renewer)

		err := srv.Do(context.Background(), Request{Path: "/usuarios/refresh", NoRenew: true}, nil)
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if len(renewer.stale) != 0 {
			t.Errorf("expected no renewal, got %d", len(renewer.stale))
		}
	})
}
