package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderTakesFinalPrice(t *testing.T) {
	s := openSession(t, "8500")
	_, err := NewOrder("o-1", s, t0)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, s.Counter(RoleFarmer, d("9200"), DefaultOfferPolicy(), t0))
	require.NoError(t, s.Accept(RoleBuyer, t0))
	o, err := NewOrder("o-1", s, t0)
	require.NoError(t, err)
	assert.True(t, o.Amount.Equal(d("9200")))
	assert.Equal(t, OrderPendingPayment, o.State)
	assert.Equal(t, s.ID, o.SessionID)
}

func TestOrderStates(t *testing.T) {
	o := &Order{ID: "o-1", State: OrderPendingPayment}
	require.NoError(t, o.MarkPaid(t0))
	require.NoError(t, o.MarkPaid(t0), "paying twice is a no-op")
	assert.Equal(t, OrderPaid, o.State)

	unknown := &Order{ID: "o-2", State: "refunded"}
	assert.ErrorIs(t, unknown.MarkPaid(t0), ErrInvalidTransition)
}
