package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneshop/internal/models"
	"github.com/desertthunder/tuneshop/internal/shared"
)

const logoutTimeout = 5 * time.Second

// AuthService talks to the /usuarios endpoints. None of its calls are intercepted for renewal.
type AuthService struct {
	api    *APIService
	logger *log.Logger
}

// NewAuthService creates an auth client on top of api.
func NewAuthService(api *APIService, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &AuthService{api: api, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

type loginResponse struct {
	Token        string          `json:"token"`
	RefreshToken string          `json:"refreshToken"`
	User         json.RawMessage `json:"usuario"`
	TokenType    string          `json:"tipo"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r loginResponse) session() (*models.Session, error) {
	s := &models.Session{
		AccessToken:  r.Token,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         r.User,
	}
	if s.IsZero() {
		return nil, fmt.Errorf("%w: login response carried no tokens", shared.ErrAuthFailed)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrPartialSession, err)
	}
	return s, nil
}

// Login exchanges email and password for a session.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var resp loginResponse
	err := s.api.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/usuarios/login",
		Body:    loginRequest{Email: email, Password: password},
		NoRenew: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return resp.session()
}

// LoginGoogle exchanges a Google id token for a session.
func (s *AuthService) LoginGoogle(ctx context.Context, idToken string) (*models.Session, error) {
	var resp loginResponse
	err := s.api.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/usuarios/login/google",
		Body:    googleLoginRequest{Token: idToken},
		NoRenew: true,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return resp.session()
}

// Refresh trades a refresh token for a new token pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var pair models.TokenPair
	err := s.api.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/usuarios/refresh",
		Body:    refreshRequest{RefreshToken: refreshToken},
		NoRenew: true,
	}, &pair)
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh response is missing tokens", shared.ErrAPIRequest)
	}
	return &pair, nil
}

// Logout revokes the refresh token on the server. Failures are logged and otherwise ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), logoutTimeout)
	defer cancel()

	err := s.api.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/usuarios/logout",
		Body:    refreshRequest{RefreshToken: refreshToken},
		NoRenew: true,
	}, nil)
	if err != nil {
		s.logger.Warn("logout request failed", "error", err)
	}
}
