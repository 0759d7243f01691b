package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActiveStatesMoveFreely(t *testing.T) {
	active := []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered}
	for _, from := range active {
		for _, to := range Statuses {
			tr, err := stateOf(from).On(to)
			require.NoError(t, err, "%s -> %s", from, to)
			assert.Equal(t, from != to, tr.Changed, "%s -> %s", from, to)
			assert.Equal(t, from != to && to == StatusCancelled, tr.Restock, "%s -> %s", from, to)
		}
	}
}

func TestCancelledIsTerminal(t *testing.T) {
	for _, to := range []Status{StatusPending, StatusConfirmed, StatusShipped, StatusDelivered} {
		_, err := stateOf(StatusCancelled).On(to)
		require.ErrorIs(t, err, ErrInvalidTransition, "cancelled -> %s", to)
	}
}

func TestCancelTwiceRestocksOnce(t *testing.T) {
	o := &Order{ID: "o-1", Status: StatusShipped}

	first, err := o.Plan(StatusCancelled)
	require.NoError(t, err)
	assert.True(t, first.Restock)
	o.Apply(first, o.UpdatedAt)

	second, err := o.Plan(StatusCancelled)
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.False(t, second.Restock)
}
