package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderPendingPayment OrderState = "pending_payment"
	OrderPaid           OrderState = "paid"
)

// Order is the payable record bridged from an accepted negotiation. Payment
// capture happens elsewhere; this service only learns that it cleared.
type Order struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	AnimalID  string          `json:"animal_id"`
	BuyerID   string          `json:"buyer_id"`
	FarmerID  string          `json:"farmer_id"`
	Amount    decimal.Decimal `json:"amount"`
	State     OrderState      `json:"state"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func NewOrder(id string, s *NegotiationSession, now time.Time) (*Order, error) {
	if s.Status != StatusAccepted || !s.FinalPrice.Valid {
		return nil, fmt.Errorf("%w: cannot order %s session", ErrInvalidState, s.Status)
	}
	return &Order{
		ID:        id,
		SessionID: s.ID,
		AnimalID:  s.AnimalID,
		BuyerID:   s.BuyerID,
		FarmerID:  s.FarmerID,
		Amount:    s.FinalPrice.Decimal,
		State:     OrderPendingPayment,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPaid is idempotent for an order that is already paid.
func (o *Order) MarkPaid(now time.Time) error {
	switch o.State {
	case OrderPaid:
		return nil
	case OrderPendingPayment:
		o.State = OrderPaid
		o.UpdatedAt = now
		return nil
	}
	return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, o.ID, o.State)
}
