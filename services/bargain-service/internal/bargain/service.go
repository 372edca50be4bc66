// Package bargain is the offer/counter engine: it applies buyer and farmer
// actions to a negotiation session, persists the result and records each
// step on the session's timeline.
package bargain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/ids"
	"farmart-bargain/services/bargain-service/internal/timeline"

	"github.com/shopspring/decimal"
)

type Service struct {
	sessions domain.SessionRepository
	listings domain.ListingRepository
	timeline *timeline.Timeline
	events   domain.EventPublisher
	policy   domain.OfferPolicy
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(
	sessions domain.SessionRepository,
	listings domain.ListingRepository,
	tl *timeline.Timeline,
	events domain.EventPublisher,
	policy domain.OfferPolicy,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if sessions == nil || listings == nil || tl == nil {
		return nil, errors.New("bargain: repositories and timeline are required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("bargain: %w", err)
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		sessions: sessions,
		listings: listings,
		timeline: tl,
		events:   events,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
		newID:    ids.NewSessionID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Policy() domain.OfferPolicy { return s.policy }

type CreateSessionInput struct {
	AnimalID    string
	OfferAmount decimal.Decimal
	Message     string
}

// CreateSession opens a negotiation for buyerID with an initial offer. An
// out-of-range offer fails before anything is stored.
func (s *Service) CreateSession(ctx context.Context, buyerID string, in CreateSessionInput) (*domain.NegotiationSession, error) {
	if strings.TrimSpace(in.AnimalID) == "" {
		return nil, fmt.Errorf("%w: animal_id is required", domain.ErrInvalidInput)
	}
	if err := s.timeline.CheckLength(in.Message); err != nil {
		return nil, err
	}
	listing, err := s.listings.GetListing(ctx, in.AnimalID)
	if err != nil {
		return nil, err
	}
	sess, err := domain.NewSession(s.newID(), listing, buyerID, in.OfferAmount, s.policy, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.record(ctx, sess, domain.RoleBuyer, domain.KindOffer, decimal.NewNullDecimal(sess.CurrentOffer),
		orDefault(in.Message, "Offered KES "+sess.CurrentOffer.StringFixed(2)))
	s.events.Publish(domain.TopicSessionCreated, domain.SessionEvent(sess))
	s.logger.Info("bargain session opened",
		"session_id", sess.ID, "animal_id", sess.AnimalID, "buyer_id", buyerID, "offer", sess.CurrentOffer.String())
	return sess, nil
}

type CounterInput struct {
	Amount  decimal.Decimal
	Message string
	// IfVersion, when positive, must match the stored session version.
	IfVersion int
}

func (s *Service) Counter(ctx context.Context, userID, sessionID string, in CounterInput) (*domain.NegotiationSession, error) {
	if err := s.timeline.CheckLength(in.Message); err != nil {
		return nil, err
	}
	sess, role, err := s.mutate(ctx, userID, sessionID, in.IfVersion, func(sess *domain.NegotiationSession, role domain.Role) error {
		return sess.Counter(role, in.Amount, s.policy, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, sess, role, domain.KindCounter, decimal.NewNullDecimal(sess.CurrentOffer),
		orDefault(in.Message, "Countered at KES "+sess.CurrentOffer.StringFixed(2)))
	s.events.Publish(domain.TopicSessionCounter, domain.SessionEvent(sess))
	return sess, nil
}

func (s *Service) Accept(ctx context.Context, userID, sessionID string, ifVersion int) (*domain.NegotiationSession, error) {
	sess, role, err := s.mutate(ctx, userID, sessionID, ifVersion, func(sess *domain.NegotiationSession, role domain.Role) error {
		return sess.Accept(role, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, sess, role, domain.KindAccept, sess.FinalPrice,
		"Accepted KES "+sess.FinalPrice.Decimal.StringFixed(2))
	s.events.Publish(domain.TopicSessionAccepted, domain.SessionEvent(sess))
	s.logger.Info("bargain accepted", "session_id", sess.ID, "final_price", sess.FinalPrice.Decimal.String())
	return sess, nil
}

func (s *Service) Reject(ctx context.Context, userID, sessionID, reason string, ifVersion int) (*domain.NegotiationSession, error) {
	if err := s.timeline.CheckLength(reason); err != nil {
		return nil, err
	}
	sess, role, err := s.mutate(ctx, userID, sessionID, ifVersion, func(sess *domain.NegotiationSession, _ domain.Role) error {
		return sess.Reject(s.now())
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, sess, role, domain.KindReject, decimal.NullDecimal{}, orDefault(reason, "Offer rejected"))
	s.events.Publish(domain.TopicSessionRejected, domain.SessionEvent(sess))
	return sess, nil
}

// SendMessage appends a chat message and returns the session's full
// message list.
func (s *Service) SendMessage(ctx context.Context, userID, sessionID, content string) ([]*domain.Message, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role, err := sess.RoleOf(userID)
	if err != nil {
		return nil, err
	}
	if _, err := s.timeline.Append(ctx, sessionID, userID, role, content); err != nil {
		return nil, err
	}
	return s.timeline.ListSince(ctx, sessionID, 0)
}

// Get returns the session with the messages after since (zero for all).
func (s *Service) Get(ctx context.Context, userID, sessionID string, since int64) (*domain.NegotiationSession, []*domain.Message, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if _, err := sess.RoleOf(userID); err != nil {
		return nil, nil, err
	}
	msgs, err := s.timeline.ListSince(ctx, sessionID, since)
	if err != nil {
		return nil, nil, err
	}
	return sess, msgs, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*domain.NegotiationSession, error) {
	sessions, err := s.sessions.ListByParty(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []*domain.NegotiationSession{}
	}
	return sessions, nil
}

// PutListing creates or reprices farmerID's listing. Open sessions keep the
// price they were opened at.
func (s *Service) PutListing(ctx context.Context, farmerID, animalID string, price decimal.Decimal) (*domain.Listing, error) {
	if strings.TrimSpace(animalID) == "" || !price.IsPositive() {
		return nil, fmt.Errorf("%w: listing needs an animal id and a positive price", domain.ErrInvalidInput)
	}
	if err := domain.CheckCents(price); err != nil {
		return nil, err
	}
	l := &domain.Listing{AnimalID: animalID, FarmerID: farmerID, Price: price, Status: domain.ListingAvailable}
	if err := s.listings.PutListing(ctx, l); err != nil {
		return nil, err
	}
	return s.listings.GetListing(ctx, animalID)
}

// mutate loads the session, checks the caller and the optional version
// precondition, applies fn and writes the result back.
func (s *Service) mutate(
	ctx context.Context,
	userID, sessionID string,
	ifVersion int,
	fn func(*domain.NegotiationSession, domain.Role) error,
) (*domain.NegotiationSession, domain.Role, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	role, err := sess.RoleOf(userID)
	if err != nil {
		return nil, "", err
	}
	if ifVersion > 0 && sess.Version != ifVersion {
		return nil, "", fmt.Errorf("%w: session is at version %d, not %d", domain.ErrConcurrentModification, sess.Version, ifVersion)
	}
	if err := fn(sess, role); err != nil {
		return nil, "", err
	}
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, "", err
	}
	return sess, role, nil
}

// record writes a timeline event. The session row is already committed, so
// a failure here is logged rather than returned.
func (s *Service) record(ctx context.Context, sess *domain.NegotiationSession, role domain.Role, kind domain.MessageKind, amount decimal.NullDecimal, content string) {
	if _, err := s.timeline.Record(ctx, sess, role, kind, amount, content); err != nil {
		s.logger.Error("failed to record timeline event", "session_id", sess.ID, "kind", kind, "error", err)
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
