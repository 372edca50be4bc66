package client

import (
	"errors"
	"fmt"

	"farmart-bargain/services/bargain-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrNetworkFailure wraps transport failures: the request never produced an
// HTTP response.
var ErrNetworkFailure = errors.New("network failure")

// APIError is a non-2xx response from the bargain service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
	Min     string `json:"min,omitempty"`
	Max     string `json:"max,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bargain api: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("bargain api: %d %s: %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"INVALID_TRANSITION":      domain.ErrInvalidTransition,
	"INVALID_STATE":           domain.ErrInvalidState,
	"SESSION_TERMINAL":        domain.ErrSessionTerminal,
	"CONCURRENT_MODIFICATION": domain.ErrConcurrentModification,
	"LISTING_UNAVAILABLE":     domain.ErrListingUnavailable,
	"SESSION_NOT_FOUND":       domain.ErrSessionNotFound,
	"ORDER_NOT_FOUND":         domain.ErrOrderNotFound,
	"LISTING_NOT_FOUND":       domain.ErrListingNotFound,
	"FORBIDDEN":               domain.ErrForbidden,
	"INVALID_INPUT":           domain.ErrInvalidInput,
}

// Unwrap lets callers match server errors against the domain sentinels and
// *domain.OfferOutOfRangeError with errors.Is / errors.As.
func (e *APIError) Unwrap() error {
	if e.Code == "OFFER_OUT_OF_RANGE" {
		lo, _ := decimal.NewFromString(e.Min)
		hi, _ := decimal.NewFromString(e.Max)
		return &domain.OfferOutOfRangeError{Min: lo, Max: hi}
	}
	return codeErrors[e.Code]
}

// IsUnauthorized reports whether err is a rejected bearer token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 401
}
