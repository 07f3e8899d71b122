package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/server"
	"github.com/desertthunder/tuneshop/internal/services"
	"github.com/desertthunder/tuneshop/internal/shared"
	"github.com/urfave/cli/v3"
)

const oauthTimeout = 2 * time.Minute

// AuthLogin signs in with email and password and stores the session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := cmd.String("email")
	password := cmd.String("password")

	if email == "" {
		return fmt.Errorf("%w: --email", shared.ErrMissingArgument)
	}
	if password == "" {
		var err error
		if password, err = promptPassword(ctx, email); err != nil {
			return err
		}
	}

	r.logger.Info("logging in", "email", email)

	s, err := r.auth.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return r.startSession(ctx, s)
}

// AuthGoogle signs in through Google using a local OAuth callback server.
//
// Opens the consent page in the browser and trades the returned id token for a session.
func (r *Runner) AuthGoogle(ctx context.Context, cmd *cli.Command) error {
	provider, err := r.googleProvider()
	if err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state: %w", err)
	}

	handler := server.NewOAuthHandler(provider, state)
	addr := net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	callback := server.NewCallbackServer(addr, handler, shared.WithLogger(r.logger, "component", "oauth"))
	if err := callback.Start(); err != nil {
		return err
	}

	authURL := provider.GetAuthURL(state)
	r.writePlain("Opening browser for %s sign-in...\n", provider.Name())
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("Visit this URL to sign in:\n%s\n", authURL)
	}

	idToken, err := callback.Wait(ctx, oauthTimeout)
	if err != nil {
		return err
	}

	s, err := r.auth.LoginGoogle(ctx, idToken)
	if err != nil {
		return err
	}
	return r.startSession(ctx, s)
}

func (r *Runner) googleProvider() (services.OAuthService, error) {
	if r.google != nil {
		return r.google, nil
	}

	g := r.config.Auth.Google
	provider, err := services.NewGoogleService(map[string]string{
		"client_id":     g.ClientID,
		"client_secret": g.ClientSecret,
		"redirect_uri":  g.RedirectURI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google service: %w", err)
	}
	return provider, nil
}

// startSession stores a fresh session and drops cached state from any previous user.
func (r *Runner) startSession(ctx context.Context, s *models.Session) error {
	r.cart.Reset()
	if err := r.tokens.SetSession(ctx, *s); err != nil {
		r.logger.Warn("session not persisted", "error", err)
	}

	r.logger.Info("authentication successful")
	return r.writePlain("%s\n", styles.OK("✓ Logged in"))
}

// AuthLogout revokes the refresh token and clears the local session and cart cache.
//
// The checkout context is left alone; it belongs to the browsing session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if !r.tokens.IsAuthenticated() {
		return r.writePlain("Not logged in.\n")
	}

	r.auth.Logout(ctx, r.tokens.RefreshToken())
	if err := r.tokens.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	r.cart.Reset()

	return r.writePlain("%s\n", styles.OK("✓ Logged out"))
}

// AuthStatus reports whether a session is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if !r.tokens.IsAuthenticated() {
		return r.writePlain("Authentication: %s\n", styles.Err("✗ Not authenticated"))
	}

	r.writePlain("Authentication: %s\n", styles.OK("✓ Authenticated"))
	r.writePlain("Backend: %s\n", r.api.BaseURL())
	if user := r.tokens.User(); len(user) > 0 {
		r.writePlain("User: %s\n", string(user))
	}
	return nil
}
