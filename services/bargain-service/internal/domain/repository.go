package domain

import "context"

// SessionRepository persists negotiation sessions. Update succeeds only when
// the stored version equals s.Version and bumps it; otherwise it returns
// ErrConcurrentModification.
type SessionRepository interface {
	Create(ctx context.Context, s *NegotiationSession) error
	Update(ctx context.Context, s *NegotiationSession) error
	Get(ctx context.Context, id string) (*NegotiationSession, error)
	ListByParty(ctx context.Context, userID string) ([]*NegotiationSession, error)
}

// MessageRepository is an append-only log. Append assigns m.Seq; ListSince
// returns messages with Seq > afterSeq in ascending Seq order.
type MessageRepository interface {
	Append(ctx context.Context, m *Message) error
	ListSince(ctx context.Context, sessionID string, afterSeq int64) ([]*Message, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *Order) error
	Update(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetBySession(ctx context.Context, sessionID string) (*Order, error)
	// FindPaidUnsettled returns paid orders whose session is still accepted.
	FindPaidUnsettled(ctx context.Context, limit int) ([]*Order, error)
}

type ListingRepository interface {
	// PutListing creates or reprices a listing. Sold listings are frozen.
	PutListing(ctx context.Context, l *Listing) error
	GetListing(ctx context.Context, animalID string) (*Listing, error)
	// MarkSold reserves the listing for sessionID. Repeating the call for the
	// same session succeeds; any other session gets ErrListingUnavailable.
	MarkSold(ctx context.Context, animalID, sessionID string) error
}
