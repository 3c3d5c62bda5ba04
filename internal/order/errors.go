package order

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound            = errors.New("order not found")
	ErrAlreadySettled           = errors.New("order already settled")
	ErrTicketStateMismatch      = errors.New("reserved tickets do not match order quantity")
	ErrInvalidQuantity          = errors.New("quantity must be at least 1")
	ErrInvalidOutcome           = errors.New("unknown settlement outcome")
	ErrInvalidClient            = errors.New("client identity is incomplete")
	ErrRaffleNotFound           = errors.New("raffle not found")
	ErrRaffleNotPublished       = errors.New("raffle is not published")
	ErrPackageUnavailable       = errors.New("package is not available for this raffle")
	ErrPaymentMethodUnavailable = errors.New("payment method is not available")
	ErrPaymentAttemptNotFound   = errors.New("payment attempt not found")
	ErrNotGatewayOrder          = errors.New("order is not paid through the gateway")
	ErrOrderNotPending          = errors.New("order is not pending")
	ErrInsufficientInventory    = errors.New("not enough tickets available")
)

// InsufficientInventoryError carries the count the caller could still reserve.
// Losing a race and a sold out raffle look the same.
type InsufficientInventoryError struct {
	Available int
	Requested int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("not enough tickets available: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}

// MismatchError reports an order whose reserved tickets disagree with its
// quantity. It signals corrupted state and is never repaired automatically.
type MismatchError struct {
	OrderID  string
	Expected int
	Found    int
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("order %s: expected %d reserved tickets, found %d", e.OrderID, e.Expected, e.Found)
}

func (e *MismatchError) Unwrap() error {
	return ErrTicketStateMismatch
}
