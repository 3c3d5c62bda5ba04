package order_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-sorteos/internal/database/testdb"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order"
)

func TestReserveWholePoolThenSoldOut(t *testing.T) {
	f := setup(t, 5, order.Dependencies{}, order.Options{})
	ctx := context.Background()

	res := f.reserve(t, 5)
	assert.Equal(t, models.OrderPending, res.Status)
	assert.Len(t, res.TicketCodes, 5)
	assert.Equal(t, 12.5, res.TotalAmount)
	assert.Regexp(t, `^SRT-`, res.OrderCode)

	reserved, err := f.svc.DB.Tickets.ReservedByOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Len(t, reserved, 5)

	req := f.request(1)
	req.Client = client("luis")
	_, err = f.svc.CreateReservation(ctx, req)

	var inv *order.InsufficientInventoryError
	require.ErrorAs(t, err, &inv)
	assert.Equal(t, 0, inv.Available)
	assert.ErrorIs(t, err, order.ErrInsufficientInventory)
	assert.Equal(t, 1, f.countRows(t, (*models.Order)(nil), ""))
}

func TestConcurrentReservationsOverlap(t *testing.T) {
	f := setup(t, 10, order.Dependencies{}, order.Options{})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		okCount  int
		failures []error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.request(6)
			req.Client = client(fmt.Sprintf("buyer%d", i))
			_, err := f.svc.CreateReservation(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				okCount++
			} else {
				failures = append(failures, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, okCount)
	require.Len(t, failures, 1)
	var inv *order.InsufficientInventoryError
	require.ErrorAs(t, failures[0], &inv)
	assert.Equal(t, 4, inv.Available)

	a := f.availability(t)
	assert.Equal(t, 6, a.Reserved)
	assert.Equal(t, 4, a.Available)
	testdb.AssertInventoryInvariant(t, f.bun, f.raffle)
}

func TestConcurrentReservationsExactlyOneFails(t *testing.T) {
	const k, n = 5, 3
	f := setup(t, n*k-1, order.Dependencies{}, order.Options{})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []*order.Reservation
		failures  int
	)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := f.request(n)
			req.Client = client(fmt.Sprintf("buyer%d", i))
			res, err := f.svc.CreateReservation(context.Background(), req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, order.ErrInsufficientInventory)
				failures++
				return
			}
			successes = append(successes, res)
		}(i)
	}
	wg.Wait()

	assert.Len(t, successes, k-1)
	assert.Equal(t, 1, failures)

	seen := make(map[string]string)
	for _, res := range successes {
		assert.Len(t, res.TicketCodes, n)
		for _, code := range res.TicketCodes {
			owner, dup := seen[code]
			assert.False(t, dup, "ticket %s held by %s and %s", code, owner, res.OrderID)
			seen[code] = res.OrderID
		}
	}
	testdb.AssertInventoryInvariant(t, f.bun, f.raffle)
}

func TestFailedReservationLeavesNoTrace(t *testing.T) {
	f := setup(t, 4, order.Dependencies{}, order.Options{})
	ctx := context.Background()
	before := testdb.Tickets(t, f.bun, f.raffle.ID)

	_, err := f.svc.CreateReservation(ctx, f.request(5))
	require.ErrorIs(t, err, order.ErrInsufficientInventory)

	assert.Equal(t, before, testdb.Tickets(t, f.bun, f.raffle.ID))
	assert.Equal(t, 0, f.countRows(t, (*models.Order)(nil), ""))
}

func TestReservationPreconditions(t *testing.T) {
	f := setup(t, 10, order.Dependencies{}, order.Options{})
	ctx := context.Background()

	draft := testdb.Raffle(t, f.bun, 10, 1, models.RaffleDraft)
	inactive := testdb.PaymentMethod(t, f.bun, models.PaymentTransfer, false)
	otherPkg := testdb.Package(t, f.bun, draft.ID, 2, 1, true)
	hiddenPkg := testdb.Package(t, f.bun, f.raffle.ID, 2, 1, false)

	tests := []struct {
		name   string
		mutate func(*order.ReservationRequest)
		want   error
	}{
		{"zero quantity", func(r *order.ReservationRequest) { r.Quantity = 0 }, order.ErrInvalidQuantity},
		{"negative quantity", func(r *order.ReservationRequest) { r.Quantity = -2 }, order.ErrInvalidQuantity},
		{"missing client", func(r *order.ReservationRequest) { r.Client = models.ClientIdentity{} }, order.ErrInvalidClient},
		{"unknown raffle", func(r *order.ReservationRequest) { r.RaffleID = "missing" }, order.ErrRaffleNotFound},
		{"draft raffle", func(r *order.ReservationRequest) { r.RaffleID = draft.ID }, order.ErrRaffleNotPublished},
		{"unknown package", func(r *order.ReservationRequest) { r.PackageID = "missing" }, order.ErrPackageUnavailable},
		{"foreign package", func(r *order.ReservationRequest) { r.PackageID = otherPkg.ID }, order.ErrPackageUnavailable},
		{"unpublished package", func(r *order.ReservationRequest) { r.PackageID = hiddenPkg.ID }, order.ErrPackageUnavailable},
		{"unknown payment method", func(r *order.ReservationRequest) { r.PaymentMethodID = "missing" }, order.ErrPaymentMethodUnavailable},
		{"inactive payment method", func(r *order.ReservationRequest) { r.PaymentMethodID = inactive.ID }, order.ErrPaymentMethodUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.request(2)
			tt.mutate(&req)
			_, err := f.svc.CreateReservation(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, 0, f.countRows(t, (*models.Order)(nil), ""))
	assert.Equal(t, 10, f.availability(t).Available)
}

func TestReservationWithPackage(t *testing.T) {
	f := setup(t, 10, order.Dependencies{}, order.Options{})
	pkg := testdb.Package(t, f.bun, f.raffle.ID, 4, 8, true)

	req := f.request(1)
	req.PackageID = pkg.ID
	res, err := f.svc.CreateReservation(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Quantity)
	assert.Equal(t, 8.0, res.TotalAmount)
	assert.Len(t, res.TicketCodes, 4)

	view, err := f.svc.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, view.Order.PackageID)
}

func TestReservationReusesMatchingClient(t *testing.T) {
	f := setup(t, 10, order.Dependencies{}, order.Options{})

	first := f.reserve(t, 1)
	second := f.reserve(t, 1)

	req := f.request(1)
	req.Client.Phone = "0414-9999999"
	_, err := f.svc.CreateReservation(context.Background(), req)
	require.NoError(t, err)

	a, err := f.svc.GetOrder(context.Background(), first.OrderID)
	require.NoError(t, err)
	b, err := f.svc.GetOrder(context.Background(), second.OrderID)
	require.NoError(t, err)
	assert.Equal(t, a.Order.ClientID, b.Order.ClientID)
	assert.Equal(t, 2, f.countRows(t, (*models.Client)(nil), ""))
}

func TestReservationSideEffects(t *testing.T) {
	events := new(MockEvents)
	broadcaster := new(MockBroadcaster)
	f := setup(t, 10, order.Dependencies{Events: events, Broadcaster: broadcaster}, order.Options{})

	events.On("PublishOrderEvent", mock.Anything, mock.MatchedBy(func(e models.OrderEvent) bool {
		return e.Type == models.EventOrderReserved && e.Quantity == 3 && len(e.TicketCodes) == 3
	})).Return(errors.New("broker down")).Once()
	broadcaster.On("BroadcastAvailability", mock.MatchedBy(func(a models.Availability) bool {
		return a.RaffleID == f.raffle.ID && a.Available == 7 && a.Reserved == 3
	})).Once()

	// A failing publisher does not fail the reservation.
	res := f.reserve(t, 3)
	assert.NotEmpty(t, res.OrderID)

	events.AssertExpectations(t)
	broadcaster.AssertExpectations(t)
}

func TestGetOrderNotFound(t *testing.T) {
	f := setup(t, 1, order.Dependencies{}, order.Options{})

	_, err := f.svc.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
