// Package orderbridge turns an accepted negotiation into a payable order and
// closes the negotiation once the payment collaborator reports the order
// paid.
package orderbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"farmart-bargain/services/bargain-service/internal/domain"
	"farmart-bargain/services/bargain-service/internal/ids"
	"farmart-bargain/services/bargain-service/internal/timeline"
	"farmart-bargain/shared/kafka"

	"github.com/shopspring/decimal"
)

type Bridge struct {
	sessions domain.SessionRepository
	orders   domain.OrderRepository
	listings domain.ListingRepository
	timeline *timeline.Timeline
	events   domain.EventPublisher
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

func New(
	sessions domain.SessionRepository,
	orders domain.OrderRepository,
	listings domain.ListingRepository,
	tl *timeline.Timeline,
	events domain.EventPublisher,
	logger *slog.Logger,
) *Bridge {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		sessions: sessions,
		orders:   orders,
		listings: listings,
		timeline: tl,
		events:   events,
		logger:   logger,
		now:      time.Now,
		newID:    ids.NewOrderID,
	}
}

// BridgeToOrder returns the order for an accepted session, creating it at the
// final price on first call. Later calls return the same order.
//
// The listing is reserved for this session before the order is created, so
// of several sessions accepted on one animal only the first to bridge gets
// an order; the rest fail with ErrListingUnavailable.
func (b *Bridge) BridgeToOrder(ctx context.Context, userID, sessionID string) (*domain.Order, error) {
	sess, err := b.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.RoleOf(userID); err != nil {
		return nil, err
	}
	if sess.OrderID != nil {
		return b.orders.Get(ctx, *sess.OrderID)
	}
	if sess.Status != domain.StatusAccepted {
		return nil, fmt.Errorf("%w: session is %s, not accepted", domain.ErrInvalidState, sess.Status)
	}

	order, err := b.orders.GetBySession(ctx, sess.ID)
	switch {
	case err == nil:
		// created by an earlier attempt that did not get to link it
	case errors.Is(err, domain.ErrOrderNotFound):
		order, err = b.createOrder(ctx, sess)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := sess.LinkOrder(order.ID, b.now()); err != nil {
		return nil, err
	}
	if err := b.sessions.Update(ctx, sess); err != nil {
		if !errors.Is(err, domain.ErrConcurrentModification) {
			return nil, err
		}
		current, getErr := b.sessions.Get(ctx, sess.ID)
		if getErr != nil || current.OrderID == nil || *current.OrderID != order.ID {
			return nil, err
		}
		return order, nil
	}

	b.record(ctx, sess, "Order "+order.ID+" created for KES "+order.Amount.StringFixed(2))
	ev := domain.SessionEvent(sess)
	ev["amount"] = order.Amount.String()
	b.events.Publish(domain.TopicOrderCreated, ev)
	b.logger.Info("bargain bridged to order", "session_id", sess.ID, "order_id", order.ID, "amount", order.Amount.String())
	return order, nil
}

func (b *Bridge) createOrder(ctx context.Context, sess *domain.NegotiationSession) (*domain.Order, error) {
	if err := b.listings.MarkSold(ctx, sess.AnimalID, sess.ID); err != nil {
		return nil, err
	}
	order, err := domain.NewOrder(b.newID(), sess, b.now())
	if err != nil {
		return nil, err
	}
	if err := b.orders.Create(ctx, order); err != nil {
		if errors.Is(err, domain.ErrConcurrentModification) {
			// a concurrent bridge call won the insert
			return b.orders.GetBySession(ctx, sess.ID)
		}
		return nil, err
	}
	return order, nil
}

func (b *Bridge) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := b.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if userID != o.BuyerID && userID != o.FarmerID {
		return nil, domain.ErrForbidden
	}
	return o, nil
}

// MarkOrderPaid records that payment for orderID cleared and completes the
// negotiation. Repeated notifications for the same order are harmless.
func (b *Bridge) MarkOrderPaid(ctx context.Context, orderID string) error {
	o, err := b.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.State != domain.OrderPaid {
		if err := o.MarkPaid(b.now()); err != nil {
			return err
		}
		if err := b.orders.Update(ctx, o); err != nil {
			if !errors.Is(err, domain.ErrConcurrentModification) {
				return err
			}
			if o, err = b.orders.Get(ctx, orderID); err != nil {
				return err
			}
			if o.State != domain.OrderPaid {
				return fmt.Errorf("%w: order %s is %s", domain.ErrInvalidTransition, o.ID, o.State)
			}
		}
	}
	return b.settle(ctx, o)
}

// ApplyPaymentEvent is MarkOrderPaid for the payment consumer. Failures that a
// retry cannot change are marked kafka.Permanent so the event is skipped.
func (b *Bridge) ApplyPaymentEvent(ctx context.Context, orderID string) error {
	err := b.MarkOrderPaid(ctx, orderID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrInvalidState):
		return kafka.Permanent(err)
	}
	return err
}

// SettlePaidOrders completes sessions whose orders were paid but whose
// completion never got written. It returns how many were settled.
func (b *Bridge) SettlePaidOrders(ctx context.Context, limit int) (int, error) {
	orders, err := b.orders.FindPaidUnsettled(ctx, limit)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, o := range orders {
		if err := b.settle(ctx, o); err != nil {
			b.logger.Error("failed to settle paid order", "order_id", o.ID, "session_id", o.SessionID, "error", err)
			continue
		}
		settled++
	}
	return settled, nil
}

func (b *Bridge) settle(ctx context.Context, o *domain.Order) error {
	sess, err := b.sessions.Get(ctx, o.SessionID)
	if err != nil {
		return err
	}
	if sess.Status == domain.StatusCompleted {
		return nil
	}
	if err := sess.Complete(b.now()); err != nil {
		return err
	}
	if err := b.sessions.Update(ctx, sess); err != nil {
		return err
	}
	b.record(ctx, sess, "Payment received, order "+o.ID+" completed")
	b.events.Publish(domain.TopicSessionComplete, domain.SessionEvent(sess))
	b.logger.Info("bargain completed", "session_id", sess.ID, "order_id", o.ID)
	return nil
}

func (b *Bridge) record(ctx context.Context, sess *domain.NegotiationSession, content string) {
	if _, err := b.timeline.Record(ctx, sess, domain.RoleFarmer, domain.KindSystem, decimal.NullDecimal{}, content); err != nil {
		b.logger.Error("failed to record timeline event", "session_id", sess.ID, "error", err)
	}
}
