package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition      = errors.New("invalid state transition")
	ErrInvalidState           = errors.New("invalid session state")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionTerminal        = errors.New("session is closed")
	ErrOrderNotFound          = errors.New("order not found")
	ErrListingNotFound        = errors.New("listing not found")
	ErrListingUnavailable     = errors.New("listing is no longer available")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrForbidden              = errors.New("caller is not a party to this negotiation")
	ErrInvalidInput           = errors.New("invalid input")
)

// OfferOutOfRangeError reports an offer outside the allowed band around the
// asking price. Min and Max are inclusive.
type OfferOutOfRangeError struct {
	Amount decimal.Decimal
	Min    decimal.Decimal
	Max    decimal.Decimal
}

func (e *OfferOutOfRangeError) Error() string {
	return fmt.Sprintf("offer %s out of range: must be between %s and %s",
		e.Amount.StringFixed(2), e.Min.StringFixed(2), e.Max.StringFixed(2))
}
