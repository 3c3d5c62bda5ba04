package order

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"ms-sorteos/internal/models"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		current models.OrderStatus
		outcome Outcome
		want    Action
	}{
		{models.OrderPending, OutcomeApproved, Apply},
		{models.OrderPending, OutcomeRejected, Apply},
		{models.OrderPending, OutcomeCancelled, Apply},
		{models.OrderApproved, OutcomeApproved, Replay},
		{models.OrderRejected, OutcomeRejected, Replay},
		{models.OrderCancelled, OutcomeCancelled, Replay},
		{models.OrderApproved, OutcomeRejected, Conflict},
		{models.OrderApproved, OutcomeCancelled, Conflict},
		{models.OrderRejected, OutcomeApproved, Conflict},
		{models.OrderCancelled, OutcomeApproved, Conflict},
		{models.OrderCancelled, OutcomeRejected, Conflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"_"+string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.want, Transition(tt.current, tt.outcome))
		})
	}
}

func TestOutcomeValid(t *testing.T) {
	assert.True(t, OutcomeApproved.Valid())
	assert.False(t, Outcome("paid").Valid())
	assert.Equal(t, models.OrderCancelled, OutcomeCancelled.Status())
}

func TestInsufficientInventoryErrorIs(t *testing.T) {
	var err error = &InsufficientInventoryError{Available: 4, Requested: 6}

	assert.True(t, errors.Is(err, ErrInsufficientInventory))
	var inv *InsufficientInventoryError
	assert.True(t, errors.As(err, &inv))
	assert.Equal(t, 4, inv.Available)
	assert.Contains(t, err.Error(), "available 4")
}

func TestMismatchErrorUnwraps(t *testing.T) {
	err := &MismatchError{OrderID: "o1", Expected: 3, Found: 2}
	assert.ErrorIs(t, err, ErrTicketStateMismatch)
}
