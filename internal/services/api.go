// API service for authenticated HTTP requests to the storefront backend
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/shared"
	"golang.org/x/time/rate"
)

const expiredCode = "TOKEN_EXPIRED"

// TokenSource exposes the current credentials without any network I/O.
type TokenSource interface {
	AccessToken() string
	AuthorizationHeader() string
}

// Renewer obtains a fresh access token after the backend reported TOKEN_EXPIRED.
//
// staleToken is the token the failed request was sent with.
type Renewer interface {
	Renew(ctx context.Context, staleToken string) (string, error)
}

// APIService sends requests to the storefront backend.
//
// Requests whose path contains "/api/" carry the Authorization header whenever a token exists.
// A 401 with code TOKEN_EXPIRED is handed to the [Renewer] and the request is retried once.
type APIService struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	renewer    Renewer
	limiter    *rate.Limiter
	logger     *log.Logger
}

// APIOptions configures an [APIService].
type APIOptions struct {
	BaseURL    string
	HTTPClient *http.Client
	Tokens     TokenSource
	// RateLimit caps requests per second; zero disables limiting.
	RateLimit float64
	Logger    *log.Logger
}

// NewAPIService creates a new API service instance for the storefront backend.
func NewAPIService(opts APIOptions) *APIService {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:8080/api"
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}

	srv := &APIService{
		baseURL:    baseURL,
		httpClient: client,
		tokens:     opts.Tokens,
		logger:     logger,
	}

	if opts.RateLimit > 0 {
		burst := max(int(opts.RateLimit), 1)
		srv.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return srv
}

// UseRenewer installs the token renewer. Call it before the service is shared between goroutines.
func (a *APIService) UseRenewer(r Renewer) {
	a.renewer = r
}

// BaseURL returns the configured backend root.
func (a *APIService) BaseURL() string {
	return a.baseURL
}

// Request describes a single backend call.
type Request struct {
	Method string
	// Path is relative to the base URL, e.g. "/carrito".
	Path  string
	Query url.Values
	// Body is encoded as JSON when non-nil.
	Body any
	// NoRenew disables TOKEN_EXPIRED interception (login, refresh, logout).
	NoRenew bool
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Do sends req and decodes a successful JSON body into result (which may be nil).
func (a *APIService) Do(ctx context.Context, req Request, result any) error {
	resp, err := a.Raw(ctx, req)
	if err != nil {
		return err
	}

	if apiErr := classify(resp); apiErr != nil {
		return apiErr
	}

	if result == nil || len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Raw sends req with token renewal applied and returns the final response whatever its status.
func (a *APIService) Raw(ctx context.Context, req Request) (*APIResponse, error) {
	var body []byte
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = data
	}

	stale := a.accessToken()
	resp, err := a.send(ctx, req, body, a.authorization())
	if err != nil {
		return nil, err
	}

	apiErr := classify(resp)
	if apiErr == nil || !apiErr.Expired() || req.NoRenew || a.renewer == nil {
		return resp, nil
	}

	a.logger.Debug("access token expired, renewing", "method", req.Method, "path", req.Path)
	if _, err := a.renewer.Renew(ctx, stale); err != nil {
		return nil, fmt.Errorf("%w (request: %w)", err, apiErr)
	}

	return a.send(ctx, req, body, a.authorization())
}

func (a *APIService) send(ctx context.Context, req Request, body []byte, authorization string) (*APIResponse, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	fullURL := a.baseURL + req.Path
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" && strings.Contains(httpReq.URL.Path, "/api/") {
		httpReq.Header.Set("Authorization", authorization)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	a.logger.Debug("backend request", "method", method, "path", req.Path, "status", resp.StatusCode)

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}

	var jsonData any
	if err := json.Unmarshal(data, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

func (a *APIService) accessToken() string {
	if a.tokens == nil {
		return ""
	}
	return a.tokens.AccessToken()
}

func (a *APIService) authorization() string {
	if a.tokens == nil {
		return ""
	}
	return a.tokens.AuthorizationHeader()
}
