package models

import (
	"testing"

	"comanda/internal/faults"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHappyPath(t *testing.T) {
	order := &Order{State: OrderCreated}

	require.NoError(t, order.Confirm())
	assert.Equal(t, OrderInPreparation, order.State)

	require.NoError(t, order.MarkReady())
	assert.Equal(t, OrderReady, order.State)

	require.NoError(t, order.Deliver())
	assert.Equal(t, OrderDelivered, order.State)
	require.NotNil(t, order.DeliveredAt)

	require.NoError(t, order.Close())
	assert.Equal(t, OrderClosed, order.State)
	assert.True(t, order.State.Terminal())
}

func TestOrderSkipAttemptsFail(t *testing.T) {
	cases := []struct {
		name  string
		state OrderState
		apply func(*Order) error
	}{
		{"deliver from created", OrderCreated, (*Order).Deliver},
		{"ready from created", OrderCreated, (*Order).MarkReady},
		{"close from created", OrderCreated, (*Order).Close},
		{"close from ready", OrderReady, (*Order).Close},
		{"confirm from ready", OrderReady, (*Order).Confirm},
		{"confirm from cancelled", OrderCancelled, (*Order).Confirm},
		{"deliver twice", OrderDelivered, (*Order).Deliver},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := &Order{State: tc.state}
			err := tc.apply(order)

			var transition *faults.IllegalTransitionError
			require.ErrorAs(t, err, &transition)
			assert.Equal(t, string(tc.state), transition.From)
			// the failed transition leaves the order untouched
			assert.Equal(t, tc.state, order.State)
		})
	}
}

func TestOrderDeliveredAtSetOnce(t *testing.T) {
	order := &Order{State: OrderReady}
	require.NoError(t, order.Deliver())
	first := order.DeliveredAt
	require.NotNil(t, first)

	// A later write must not disturb the captured timestamp.
	require.Error(t, order.Deliver())
	assert.Equal(t, first, order.DeliveredAt)
}

func TestOrderCancelFromNonTerminalStates(t *testing.T) {
	for _, state := range []OrderState{OrderCreated, OrderInPreparation, OrderReady, OrderDelivered} {
		order := &Order{State: state}
		require.NoError(t, order.Cancel(), "cancel from %s", state)
		assert.Equal(t, OrderCancelled, order.State)
	}
}

func TestOrderCancelFromTerminalFails(t *testing.T) {
	for _, state := range []OrderState{OrderClosed, OrderCancelled} {
		order := &Order{State: state}
		err := order.Cancel()

		var transition *faults.IllegalTransitionError
		require.ErrorAs(t, err, &transition)
		assert.Equal(t, state, order.State)
	}
}

func TestOrderStateValid(t *testing.T) {
	assert.True(t, OrderCreated.Valid())
	assert.True(t, OrderCancelled.Valid())
	assert.False(t, OrderState("UNKNOWN").Valid())
}
