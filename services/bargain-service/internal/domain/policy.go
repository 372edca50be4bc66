package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	DefaultOfferFloor   = decimal.RequireFromString("0.5")
	DefaultOfferCeiling = decimal.RequireFromString("1.2")
)

// OfferPolicy bounds every offer and counter-offer relative to the listing's
// asking price. MaxRounds caps counter-offers; zero means unbounded.
type OfferPolicy struct {
	Floor     decimal.Decimal
	Ceiling   decimal.Decimal
	MaxRounds int
}

func DefaultOfferPolicy() OfferPolicy {
	return OfferPolicy{Floor: DefaultOfferFloor, Ceiling: DefaultOfferCeiling}
}

func (p OfferPolicy) Validate() error {
	if !p.Floor.IsPositive() || p.Ceiling.LessThan(p.Floor) {
		return fmt.Errorf("%w: offer band [%s, %s]", ErrInvalidInput, p.Floor, p.Ceiling)
	}
	if p.MaxRounds < 0 {
		return fmt.Errorf("%w: max rounds %d", ErrInvalidInput, p.MaxRounds)
	}
	return nil
}

// Bounds returns the inclusive [min, max] interval for offers on a listing
// priced at price.
func (p OfferPolicy) Bounds(price decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	return price.Mul(p.Floor), price.Mul(p.Ceiling)
}

// CheckCents fails with ErrInvalidInput when amount carries a fraction of a
// cent. Amounts are stored as NUMERIC(14,2).
func CheckCents(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: %s is not a whole number of cents", ErrInvalidInput, amount)
	}
	return nil
}

// CheckOffer fails with *OfferOutOfRangeError unless amount is positive and
// within Bounds(price). Amounts finer than a cent are ErrInvalidInput.
func (p OfferPolicy) CheckOffer(amount, price decimal.Decimal) error {
	if err := CheckCents(amount); err != nil {
		return err
	}
	lo, hi := p.Bounds(price)
	if !amount.IsPositive() || amount.LessThan(lo) || amount.GreaterThan(hi) {
		return &OfferOutOfRangeError{Amount: amount, Min: lo, Max: hi}
	}
	return nil
}
