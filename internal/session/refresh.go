package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
	"golang.org/x/sync/singleflight"
)

const (
	renewKey = "renew"

	DefaultRefreshTimeout = 15 * time.Second
)

// RefreshState tells whether a renewal is in flight.
type RefreshState int

const (
	StateIdle RefreshState = iota
	StateRefreshing
)

func (s RefreshState) String() string {
	if s == StateRefreshing {
		return "REFRESHING"
	}
	return "IDLE"
}

// TokenRefresher calls the backend's refresh endpoint.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error)
}

// LogoutHook runs once per forced logout, after the session is cleared.
type LogoutHook func(ctx context.Context)

// Coordinator guarantees at most one renewal call in flight.
//
// Callers that hit TOKEN_EXPIRED while a renewal runs wait for it and share its outcome.
type Coordinator struct {
	tokens    *TokenStore
	refresher TokenRefresher
	timeout   time.Duration
	logger    *log.Logger
	group     singleflight.Group

	mu       sync.Mutex
	state    RefreshState
	hooks    []LogoutHook
	renewals int
	logouts  int
}

// CoordinatorOpts configures a [Coordinator].
type CoordinatorOpts struct {
	Tokens    *TokenStore
	Refresher TokenRefresher
	// Timeout bounds a single renewal call. Zero means [DefaultRefreshTimeout].
	Timeout time.Duration
	Logger  *log.Logger
}

// NewCoordinator creates a coordinator in the IDLE state.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	return &Coordinator{
		tokens:    opts.Tokens,
		refresher: opts.Refresher,
		timeout:   timeout,
		logger:    logger,
	}
}

// OnForcedLogout registers a hook run after a failed renewal has cleared the session.
func (c *Coordinator) OnForcedLogout(hook LogoutHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// State reports whether a renewal is in flight.
func (c *Coordinator) State() RefreshState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Renewals counts completed renewal calls, successful or not.
func (c *Coordinator) Renewals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renewals
}

// ForcedLogouts counts sessions cleared because renewal failed.
func (c *Coordinator) ForcedLogouts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logouts
}

// Renew returns a valid access token to replace staleToken.
//
// If the current token already differs from staleToken a renewal finished after the
// caller's request was sent, and the current token is returned as is. Otherwise the
// caller starts a renewal or joins the one in flight. On failure the session has been
// cleared and the error matches [shared.ErrRefreshFailed].
//
// Cancelling ctx only stops this caller from waiting.
func (c *Coordinator) Renew(ctx context.Context, staleToken string) (string, error) {
	if token, done, err := c.settled(staleToken); done {
		return token, err
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(renewKey, func() (any, error) {
		return c.renew(detached, staleToken)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) renew(ctx context.Context, staleToken string) (string, error) {
	// A renewal may have completed between the caller's check and joining the group.
	if token, done, err := c.settled(staleToken); done {
		return token, err
	}

	c.setState(StateRefreshing)
	defer c.setState(StateIdle)

	refresh := c.tokens.RefreshToken()
	if refresh == "" {
		c.forceLogout(ctx)
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNoRefreshToken)
	}

	// ctx outlives the call deadline so a timed-out renewal can still clear the session.
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("renewing access token")
	pair, err := c.refresher.Refresh(callCtx, refresh)
	c.mu.Lock()
	c.renewals++
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("token renewal failed", "error", err)
		c.forceLogout(ctx)
		return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
	}

	if err := c.tokens.UpdateTokens(ctx, pair.AccessToken, pair.RefreshToken, pair.TokenType); err != nil {
		if c.tokens.AccessToken() != pair.AccessToken {
			c.forceLogout(ctx)
			return "", fmt.Errorf("%w: %w", shared.ErrRefreshFailed, err)
		}
		c.logger.Warn("renewed tokens not persisted", "error", err)
	}

	c.logger.Debug("access token renewed")
	return pair.AccessToken, nil
}

// settled reports whether staleToken was already dealt with by an earlier renewal,
// successful (a newer token exists) or not (the session is gone).
func (c *Coordinator) settled(staleToken string) (string, bool, error) {
	current := c.tokens.AccessToken()
	switch {
	case current != "" && current != staleToken:
		return current, true, nil
	case current == "" && staleToken != "":
		return "", true, fmt.Errorf("%w: %w", shared.ErrRefreshFailed, shared.ErrNotAuthenticated)
	case current == "" && c.tokens.RefreshToken() == "":
		// never logged in: nothing to renew and nothing to log out
		return "", true, shared.ErrNotAuthenticated
	}
	return "", false, nil
}

func (c *Coordinator) setState(s RefreshState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

func (c *Coordinator) forceLogout(ctx context.Context) {
	if err := c.tokens.Clear(ctx); err != nil {
		c.logger.Warn("failed to clear persisted session", "error", err)
	}

	c.mu.Lock()
	c.logouts++
	hooks := append([]LogoutHook(nil), c.hooks...)
	c.mu.Unlock()

	c.logger.Info("session expired, logged out")
	for _, hook := range hooks {
		hook(ctx)
	}
}
