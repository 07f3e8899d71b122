package models

import (
	"encoding/json"
	"fmt"
)

// DefaultTokenType is used when the backend omits the token type.
const DefaultTokenType = "Bearer"

// Session is the authenticated state of the current user.
//
// AccessToken and RefreshToken are both set or both empty.
type Session struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	TokenType    string          `json:"tokenType"`
	User         json.RawMessage `json:"user,omitempty"`
}

// TokenPair is what the refresh endpoint hands back.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tipo"`
}

// IsZero reports whether the session holds no tokens.
func (s Session) IsZero() bool {
	return s.AccessToken == "" && s.RefreshToken == ""
}

// Validate rejects sessions with only one of the two tokens.
func (s Session) Validate() error {
	if (s.AccessToken == "") != (s.RefreshToken == "") {
		return fmt.Errorf("access and refresh tokens must be set together")
	}
	return nil
}

// Prefix returns the token type, falling back to [DefaultTokenType].
func (s Session) Prefix() string {
	if s.TokenType == "" {
		return DefaultTokenType
	}
	return s.TokenType
}
