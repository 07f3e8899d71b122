package shared

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrPartialSession   = fmt.Errorf("partial session")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Checkout errors
	ErrNoCheckout           = fmt.Errorf("no checkout in progress")
	ErrEmptyCart            = fmt.Errorf("cart is empty, nothing to checkout")
	ErrPreparationFailed    = fmt.Errorf("cart preparation failed")
	ErrPaymentMethodMissing = fmt.Errorf("payment method required")
	ErrPaymentNotRequired   = fmt.Errorf("payment method not required for free checkout")
	ErrFinalizeFailed       = fmt.Errorf("purchase could not be completed")
	ErrSnapshotImmutable    = fmt.Errorf("cart snapshot already captured")
	ErrInvalidTransition    = fmt.Errorf("illegal transition of checkout state")
	ErrNotPersisted         = fmt.Errorf("state kept in memory but not persisted")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// messenger is implemented by errors that carry text meant for the end user.
type messenger interface {
	UserMessage() string
}

// UserMessage maps an error to the text shown to the user.
//
// An expired session always reads as such. Otherwise errors that carry their own
// message (backend rejections) win over the generic taxonomy text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrRefreshFailed) || errors.Is(err, ErrNoRefreshToken) {
		return "Session expired, please log in again."
	}

	var m messenger
	if errors.As(err, &m) {
		if msg := m.UserMessage(); msg != "" {
			return msg
		}
	}

	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "You need to log in first."
	case errors.Is(err, ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, ErrPreparationFailed):
		return "The product could not be added for checkout. Please choose it again."
	case errors.Is(err, ErrPaymentMethodMissing):
		return "Select or add a payment method to continue."
	case errors.Is(err, ErrFinalizeFailed):
		return "The purchase could not be completed."
	case errors.Is(err, ErrNoCheckout):
		return "There is no checkout in progress."
	default:
		return err.Error()
	}
}
