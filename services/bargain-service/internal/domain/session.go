package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusCounter   SessionStatus = "counter"
	StatusAccepted  SessionStatus = "accepted"
	StatusRejected  SessionStatus = "rejected"
	StatusCompleted SessionStatus = "completed"
)

func (s SessionStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted
}

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCounter, StatusAccepted, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleFarmer Role = "farmer"
)

func (r Role) Other() Role {
	if r == RoleBuyer {
		return RoleFarmer
	}
	return RoleBuyer
}

// NegotiationSession is one buyer's price negotiation over one listed animal.
//
// FinalPrice is set iff Status is accepted or completed, and OrderID is only
// ever set on an accepted or completed session.
type NegotiationSession struct {
	ID            string              `json:"id"`
	AnimalID      string              `json:"animal_id"`
	BuyerID       string              `json:"buyer_id"`
	FarmerID      string              `json:"farmer_id"`
	OriginalPrice decimal.Decimal     `json:"original_price"`
	CurrentOffer  decimal.Decimal     `json:"current_offer"`
	FinalPrice    decimal.NullDecimal `json:"final_price"`
	LastOfferBy   Role                `json:"last_offer_by"`
	Rounds        int                 `json:"rounds"`
	Status        SessionStatus       `json:"status"`
	OrderID       *string             `json:"order_id"`
	Version       int                 `json:"version"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// NewSession opens a pending negotiation with the buyer's initial offer on
// listing. The offer must satisfy policy.
func NewSession(id string, listing *Listing, buyerID string, offer decimal.Decimal, policy OfferPolicy, now time.Time) (*NegotiationSession, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, fmt.Errorf("%w: buyer id is required", ErrInvalidInput)
	}
	if !listing.Price.IsPositive() {
		return nil, fmt.Errorf("%w: listing %s has no asking price", ErrInvalidInput, listing.AnimalID)
	}
	if listing.FarmerID == buyerID {
		return nil, fmt.Errorf("%w: cannot bargain on your own listing", ErrForbidden)
	}
	if listing.Status != ListingAvailable {
		return nil, ErrListingUnavailable
	}
	if err := policy.CheckOffer(offer, listing.Price); err != nil {
		return nil, err
	}
	return &NegotiationSession{
		ID:            id,
		AnimalID:      listing.AnimalID,
		BuyerID:       buyerID,
		FarmerID:      listing.FarmerID,
		OriginalPrice: listing.Price,
		CurrentOffer:  offer,
		LastOfferBy:   RoleBuyer,
		Status:        StatusPending,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// RoleOf reports which side of the negotiation userID is on.
func (s *NegotiationSession) RoleOf(userID string) (Role, error) {
	switch userID {
	case "":
	case s.BuyerID:
		return RoleBuyer, nil
	case s.FarmerID:
		return RoleFarmer, nil
	}
	return "", ErrForbidden
}

func (s *NegotiationSession) PartyID(r Role) string {
	if r == RoleBuyer {
		return s.BuyerID
	}
	return s.FarmerID
}

// Counter puts a new amount on the table. Either party may counter, including
// revising their own standing offer.
func (s *NegotiationSession) Counter(by Role, amount decimal.Decimal, policy OfferPolicy, now time.Time) error {
	if err := transition(s.Status, StatusCounter); err != nil {
		return err
	}
	if policy.MaxRounds > 0 && s.Rounds >= policy.MaxRounds {
		return fmt.Errorf("%w: counter-offer limit of %d reached", ErrInvalidTransition, policy.MaxRounds)
	}
	if err := policy.CheckOffer(amount, s.OriginalPrice); err != nil {
		return err
	}
	s.CurrentOffer = amount
	s.LastOfferBy = by
	s.Rounds++
	s.Status = StatusCounter
	s.UpdatedAt = now
	return nil
}

// Accept closes the deal at the standing offer. Only the party that did not
// make the standing offer can accept it.
func (s *NegotiationSession) Accept(by Role, now time.Time) error {
	if err := transition(s.Status, StatusAccepted); err != nil {
		return err
	}
	if by == s.LastOfferBy {
		return fmt.Errorf("%w: %s cannot accept their own offer", ErrInvalidTransition, by)
	}
	s.FinalPrice = decimal.NewNullDecimal(s.CurrentOffer)
	s.Status = StatusAccepted
	s.UpdatedAt = now
	return nil
}

func (s *NegotiationSession) Reject(now time.Time) error {
	if err := transition(s.Status, StatusRejected); err != nil {
		return err
	}
	s.Status = StatusRejected
	s.UpdatedAt = now
	return nil
}

// LinkOrder records the payable order created for an accepted session.
func (s *NegotiationSession) LinkOrder(orderID string, now time.Time) error {
	if s.Status != StatusAccepted || s.OrderID != nil {
		return fmt.Errorf("%w: cannot link order to %s session", ErrInvalidState, s.Status)
	}
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	s.OrderID = &orderID
	s.UpdatedAt = now
	return nil
}

// Complete marks the negotiation settled once its order has been paid.
func (s *NegotiationSession) Complete(now time.Time) error {
	if err := transition(s.Status, StatusCompleted); err != nil {
		return err
	}
	if s.OrderID == nil {
		return fmt.Errorf("%w: session has no order", ErrInvalidState)
	}
	s.Status = StatusCompleted
	s.UpdatedAt = now
	return nil
}

// transition enforces the negotiation state machine:
//
//	pending  -> counter | accepted | rejected
//	counter  -> counter | accepted | rejected
//	accepted -> completed
//
// pending -> accepted lets the farmer take the buyer's opening offer without
// countering first. transition only checks statuses; Accept additionally
// refuses the party that made the standing offer.
func transition(from, to SessionStatus) error {
	ok := false
	switch from {
	case StatusPending:
		ok = to == StatusCounter || to == StatusAccepted || to == StatusRejected
	case StatusCounter:
		ok = to == StatusCounter || to == StatusAccepted || to == StatusRejected
	case StatusAccepted:
		ok = to == StatusCompleted
	case StatusRejected, StatusCompleted:
		return fmt.Errorf("%w: session is %s", ErrInvalidTransition, from)
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
