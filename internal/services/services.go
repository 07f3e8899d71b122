package services

import (
	"context"

	"golang.org/x/oauth2"
)

// OAuthService is implemented by identity providers used for social login.
type OAuthService interface {
	// Name returns the provider name (e.g. "Google").
	Name() string

	// GetAuthURL returns the URL the user visits to grant consent.
	GetAuthURL(state string) string

	// GetOAuthConfig returns the OAuth2 configuration.
	GetOAuthConfig() *oauth2.Config

	// Exchange trades the callback code for the credential the backend accepts.
	Exchange(ctx context.Context, code string) (string, error)
}

var _ OAuthService = (*GoogleService)(nil)
