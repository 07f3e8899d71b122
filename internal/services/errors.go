package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/tuneshop/internal/shared"
)

// APIError is a non-2xx answer from the backend.
//
// It matches [shared.ErrTokenExpired], [shared.ErrNotAuthenticated] or [shared.ErrAPIRequest]
// under [errors.Is] depending on status and code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "backend returned %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, " (%s)", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// Expired reports the TOKEN_EXPIRED signal.
func (e *APIError) Expired() bool {
	return e.StatusCode == http.StatusUnauthorized && e.Code == expiredCode
}

func (e *APIError) Is(target error) bool {
	switch target {
	case shared.ErrTokenExpired:
		return e.Expired()
	case shared.ErrNotAuthenticated:
		return e.StatusCode == http.StatusUnauthorized && !e.Expired()
	case shared.ErrAPIRequest:
		return e.StatusCode != http.StatusUnauthorized
	case shared.ErrServiceUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
	}
	return false
}

// UserMessage returns the backend's own explanation, if it sent one.
func (e *APIError) UserMessage() string {
	return e.Message
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Mensaje string `json:"mensaje"`
}

// classify returns nil for 2xx responses.
func classify(resp *APIResponse) *APIError {
	if resp.OK() {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body errorBody
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Mensaje
		}
		return apiErr
	}

	var text string
	if err := json.Unmarshal(resp.Body, &text); err == nil {
		apiErr.Message = text
		return apiErr
	}

	if !resp.IsJSON {
		apiErr.Message = strings.TrimSpace(string(resp.Body))
	}
	return apiErr
}

// AsAPIError extracts the backend error from err, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
