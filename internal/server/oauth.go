package server

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

const exchangeTimeout = 30 * time.Second

// CodeExchanger trades an authorization code for the provider's id token.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (string, error)
}

// CallbackResult is the outcome of the single callback an [OAuthHandler] accepts.
type CallbackResult struct {
	IDToken string
	Err     error
}

// OAuthHandler handles the login provider's redirect for the authorization code flow.
//
// Only the first request is processed; later ones get 409 and nothing is sent.
type OAuthHandler struct {
	exchanger CodeExchanger
	state     string
	claimed   atomic.Bool
	results   chan CallbackResult
}

// NewOAuthHandler creates a handler that accepts one callback carrying state.
func NewOAuthHandler(exchanger CodeExchanger, state string) *OAuthHandler {
	return &OAuthHandler{
		exchanger: exchanger,
		state:     state,
		results:   make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"GET /callback"}
}

// Result delivers exactly one [CallbackResult], then is closed.
func (h *OAuthHandler) Result() <-chan CallbackResult {
	return h.results
}

func (h *OAuthHandler) finish(result CallbackResult) {
	h.results <- result
	close(h.results)
}

// ServeHTTP validates state, exchanges the code and publishes the id token.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claimed.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusConflict)
		return
	}

	query := r.URL.Query()
	switch {
	case query.Get("state") != h.state:
		h.finish(CallbackResult{Err: fmt.Errorf("invalid state parameter")})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	case query.Get("error") != "":
		h.finish(CallbackResult{Err: fmt.Errorf("authorization denied: %s %s", query.Get("error"), query.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	case query.Get("code") == "":
		h.finish(CallbackResult{Err: fmt.Errorf("authorization code missing")})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), exchangeTimeout)
	defer cancel()

	idToken, err := h.exchanger.Exchange(ctx, query.Get("code"))
	if err != nil {
		h.finish(CallbackResult{Err: fmt.Errorf("token exchange failed: %w", err)})
		http.Error(w, "Token exchange failed", http.StatusBadGateway)
		return
	}

	h.finish(CallbackResult{IDToken: idToken})
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, successPage)
}

const successPage = `<!DOCTYPE html>
<html>
<head>
    <title>Signed in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #7C3AED; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Signed in with Google</h1>
        <p>You can close this window and return to tuneshop.</p>
    </div>
</body>
</html>
`
