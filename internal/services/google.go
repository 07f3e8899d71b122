package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/tuneshop/internal/shared"
	"golang.org/x/oauth2"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
)

// GoogleService runs the authorization code flow whose id token the backend accepts at /usuarios/login/google.
type GoogleService struct {
	config *oauth2.Config
}

// NewGoogleService creates a Google OAuth client from client_id, client_secret and redirect_uri.
func NewGoogleService(credentials map[string]string) (*GoogleService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingConfig)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingConfig)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}

	return &GoogleService{config: config}, nil
}

func (s *GoogleService) Name() string {
	return "Google"
}

// GetAuthURL returns the consent page URL for state.
func (s *GoogleService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state)
}

// GetOAuthConfig exposes the underlying configuration.
func (s *GoogleService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// Exchange trades an authorization code for the Google id token.
func (s *GoogleService) Exchange(ctx context.Context, code string) (string, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return IDToken(token)
}

// IDToken extracts the OpenID id_token from an OAuth2 token response.
func IDToken(token *oauth2.Token) (string, error) {
	idToken, ok := token.Extra("id_token").(string)
	if !ok || idToken == "" {
		return "", fmt.Errorf("%w: token response has no id_token", shared.ErrAuthFailed)
	}
	return idToken, nil
}
