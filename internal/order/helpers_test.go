package order_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"

	"ms-sorteos/internal/database/testdb"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order"
	"ms-sorteos/internal/order/db"
	ticketdb "ms-sorteos/internal/tickets/db"
	tickets "ms-sorteos/internal/tickets/service"
)

type MockEvents struct {
	mock.Mock
}

func (m *MockEvents) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	return m.Called(ctx, event).Error(0)
}

type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) BroadcastAvailability(a models.Availability) {
	m.Called(a)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySettlement(ctx context.Context, notice models.SettlementNotice) error {
	return m.Called(ctx, notice).Error(0)
}

type MockAlerter struct {
	mock.Mock
}

func (m *MockAlerter) Alert(ctx context.Context, message string) error {
	return m.Called(ctx, message).Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreatePayment(ctx context.Context, o *models.Order) (*order.GatewayPayment, error) {
	args := m.Called(ctx, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.GatewayPayment), args.Error(1)
}

func (m *MockGateway) Confirm(ctx context.Context, externalID string) (*order.GatewayConfirmation, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.GatewayConfirmation), args.Error(1)
}

// MockResumingGateway can hand back the checkout of an open payment.
type MockResumingGateway struct {
	MockGateway
}

func (m *MockResumingGateway) Resume(ctx context.Context, externalID string) (*order.GatewayPayment, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.GatewayPayment), args.Error(1)
}

type fixture struct {
	svc      *order.OrderService
	bun      *bun.DB
	raffle   *models.Raffle
	transfer *models.PaymentMethod
	card     *models.PaymentMethod
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T, ticketCount int, deps order.Dependencies, opts order.Options) *fixture {
	t.Helper()

	bunDB := testdb.New(t)
	if deps.Inventory == nil {
		deps.Inventory = tickets.NewTicketService(&ticketdb.DB{Bun: bunDB}, nil, nil)
	}
	if opts.ClaimRetryBudget == 0 {
		opts.ClaimRetryBudget = 3
	}

	return &fixture{
		svc:      order.NewOrderService(db.New(bunDB), deps, opts, nil),
		bun:      bunDB,
		raffle:   testdb.Raffle(t, bunDB, ticketCount, 2.5, models.RafflePublished),
		transfer: testdb.PaymentMethod(t, bunDB, models.PaymentTransfer, true),
		card:     testdb.PaymentMethod(t, bunDB, models.PaymentGateway, true),
	}
}

func client(name string) models.ClientIdentity {
	return models.ClientIdentity{
		Name:       name,
		Email:      name + "@example.com",
		Phone:      "0412-0000000",
		Address:    "Caracas",
		NationalID: "V-" + name,
	}
}

func (f *fixture) request(quantity int) order.ReservationRequest {
	return order.ReservationRequest{
		RaffleID:        f.raffle.ID,
		Client:          client("ana"),
		Quantity:        quantity,
		PaymentMethodID: f.transfer.ID,
	}
}

func (f *fixture) reserve(t *testing.T, quantity int) *order.Reservation {
	t.Helper()
	res, err := f.svc.CreateReservation(context.Background(), f.request(quantity))
	if err != nil {
		t.Fatalf("reserve %d: %v", quantity, err)
	}
	return res
}

func (f *fixture) availability(t *testing.T) models.Availability {
	t.Helper()
	a, err := f.svc.DB.Tickets.Availability(context.Background(), f.raffle.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	return a
}

func (f *fixture) countRows(t *testing.T, model interface{}, where string, args ...interface{}) int {
	t.Helper()
	q := f.bun.NewSelect().Model(model)
	if where != "" {
		q = q.Where(where, args...)
	}
	n, err := q.Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
