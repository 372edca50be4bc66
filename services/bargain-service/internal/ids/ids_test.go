package ids

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageIDsSortWithinSameMillisecond(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := newULID(at).String()
	for i := 0; i < 100; i++ {
		next := newULID(at).String()
		assert.Less(t, prev, next)
		prev = next
	}
}

func TestSessionIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(NewSessionID())
	require.NoError(t, err)
	assert.NotEqual(t, NewOrderID(), NewOrderID())
	assert.Len(t, NewMessageID(), 26)
}
