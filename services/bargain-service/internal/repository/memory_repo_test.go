package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"farmart-bargain/services/bargain-service/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(id, buyer string, at time.Time) *domain.NegotiationSession {
	return &domain.NegotiationSession{
		ID:            id,
		AnimalID:      "goat-7",
		BuyerID:       buyer,
		FarmerID:      "farmer-1",
		OriginalPrice: decimal.NewFromInt(10000),
		CurrentOffer:  decimal.NewFromInt(8500),
		LastOfferBy:   domain.RoleBuyer,
		Status:        domain.StatusPending,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func TestMemorySessionOptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Sessions()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, newSession("s-1", "buyer-1", now)))

	a, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	b, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)

	a.CurrentOffer = decimal.NewFromInt(9000)
	require.NoError(t, repo.Update(ctx, a))
	assert.Equal(t, 2, a.Version)

	b.CurrentOffer = decimal.NewFromInt(9500)
	assert.ErrorIs(t, repo.Update(ctx, b), domain.ErrConcurrentModification)

	got, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentOffer.Equal(decimal.NewFromInt(9000)))

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestMemorySessionReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Sessions()
	s := newSession("s-1", "buyer-1", time.Now())
	require.NoError(t, repo.Create(ctx, s))

	s.Status = domain.StatusRejected
	got, err := repo.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
}

func TestMemoryListByParty(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryStore().Sessions()
	base := time.Now()
	require.NoError(t, repo.Create(ctx, newSession("old", "buyer-1", base)))
	require.NoError(t, repo.Create(ctx, newSession("new", "buyer-1", base.Add(time.Minute))))
	require.NoError(t, repo.Create(ctx, newSession("other", "buyer-2", base)))

	mine, err := repo.ListByParty(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "new", mine[0].ID)
	assert.Equal(t, "old", mine[1].ID)

	farmer, err := repo.ListByParty(ctx, "farmer-1")
	require.NoError(t, err)
	assert.Len(t, farmer, 3)
}

func TestMemoryMessagesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Sessions().Create(ctx, newSession("s-1", "buyer-1", time.Now())))
	msgs := store.Messages()

	same := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, msgs.Append(ctx, &domain.Message{
			ID: fmt.Sprintf("m%d", i), SessionID: "s-1", Content: fmt.Sprintf("m%d", i), CreatedAt: same,
		}))
	}

	all, err := msgs.ListSince(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i+1), m.ID)
	}

	tail, err := msgs.ListSince(ctx, "s-1", all[0].Seq)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "m2", tail[0].ID)

	assert.ErrorIs(t, msgs.Append(ctx, &domain.Message{SessionID: "nope"}), domain.ErrSessionNotFound)
}

func TestMemoryChatRefusedOnClosedSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := newSession("s-1", "buyer-1", time.Now())
	require.NoError(t, store.Sessions().Create(ctx, s))
	msgs := store.Messages()

	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "c1", SessionID: "s-1", Kind: domain.KindChat, Content: "hi"}))

	s.Status = domain.StatusCompleted
	require.NoError(t, store.Sessions().Update(ctx, s))

	err := msgs.Append(ctx, &domain.Message{ID: "c2", SessionID: "s-1", Kind: domain.KindChat, Content: "late"})
	assert.ErrorIs(t, err, domain.ErrSessionTerminal)
	require.NoError(t, msgs.Append(ctx, &domain.Message{ID: "sys", SessionID: "s-1", Kind: domain.KindSystem, Content: "Payment received"}))

	all, err := msgs.ListSince(ctx, "s-1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []string{"c1", "sys"}, []string{all[0].ID, all[1].ID})
}

func TestMemoryListingMarkSold(t *testing.T) {
	ctx := context.Background()
	listings := NewMemoryStore().Listings()
	require.NoError(t, listings.PutListing(ctx, &domain.Listing{AnimalID: "cow-1", FarmerID: "farmer-1", Price: decimal.NewFromInt(10000)}))

	require.NoError(t, listings.MarkSold(ctx, "cow-1", "s-1"))
	require.NoError(t, listings.MarkSold(ctx, "cow-1", "s-1"))
	assert.ErrorIs(t, listings.MarkSold(ctx, "cow-1", "s-2"), domain.ErrListingUnavailable)
	assert.ErrorIs(t, listings.MarkSold(ctx, "cow-9", "s-1"), domain.ErrListingNotFound)

	assert.ErrorIs(t, listings.PutListing(ctx, &domain.Listing{AnimalID: "cow-1", FarmerID: "farmer-1", Price: decimal.NewFromInt(1)}), domain.ErrListingUnavailable)

	l, err := listings.GetListing(ctx, "cow-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ListingSold, l.Status)
	assert.Equal(t, "s-1", *l.SoldSessionID)
}

func TestMemoryOrdersOnePerSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	orders := store.Orders()
	s := newSession("s-1", "buyer-1", time.Now())
	s.Status = domain.StatusAccepted
	require.NoError(t, store.Sessions().Create(ctx, s))

	o := &domain.Order{ID: "o-1", SessionID: "s-1", State: domain.OrderPendingPayment}
	require.NoError(t, orders.Create(ctx, o))
	assert.ErrorIs(t, orders.Create(ctx, &domain.Order{ID: "o-2", SessionID: "s-1"}), domain.ErrConcurrentModification)

	got, err := orders.GetBySession(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", got.ID)

	unsettled, err := orders.FindPaidUnsettled(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unsettled)

	got.State = domain.OrderPaid
	require.NoError(t, orders.Update(ctx, got))
	unsettled, err = orders.FindPaidUnsettled(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsettled, 1)
	assert.Equal(t, "o-1", unsettled[0].ID)
}
