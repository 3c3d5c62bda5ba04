package tickets_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-sorteos/internal/database/testdb"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/tickets/db"
	tickets "ms-sorteos/internal/tickets/service"
)

// MockCache is a mock implementation of AvailabilityCache
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, raffleID string) (models.Availability, bool, error) {
	args := m.Called(ctx, raffleID)
	return args.Get(0).(models.Availability), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, a models.Availability) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockCache) Invalidate(ctx context.Context, raffleID string) error {
	args := m.Called(ctx, raffleID)
	return args.Error(0)
}

func setupService(t *testing.T, cache tickets.AvailabilityCache) *tickets.TicketService {
	return tickets.NewTicketService(&db.DB{Bun: testdb.New(t)}, cache, nil)
}

func TestCreateRaffle(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	raffle, err := svc.CreateRaffle(ctx, tickets.CreateRaffleRequest{
		Name:           "Moto 0km",
		Digits:         2,
		PricePerTicket: 5,
		Packages:       []tickets.PackageOption{{Quantity: 5, Price: 20, Published: true}},
		Prizes:         []string{"Moto", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, 100, raffle.TotalTickets)
	assert.Equal(t, models.RaffleDraft, raffle.Status)

	a, err := svc.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, a.Total)
	assert.Equal(t, 100, a.Available)

	var packages []models.Package
	require.NoError(t, svc.DB.Bun.NewSelect().Model(&packages).Where("raffle_id = ?", raffle.ID).Scan(ctx))
	assert.Len(t, packages, 1)

	count, err := svc.DB.Bun.NewSelect().Model((*models.Prize)(nil)).Where("raffle_id = ?", raffle.ID).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateRaffleValidation(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	cases := []tickets.CreateRaffleRequest{
		{Name: "", Digits: 2, PricePerTicket: 1},
		{Name: "x", Digits: 0, PricePerTicket: 1},
		{Name: "x", Digits: 7, PricePerTicket: 1},
		{Name: "x", Digits: 2, PricePerTicket: 0},
		{Name: "x", Digits: 1, PricePerTicket: 1, Packages: []tickets.PackageOption{{Quantity: 11, Price: 1}}},
	}
	for _, req := range cases {
		_, err := svc.CreateRaffle(ctx, req)
		assert.ErrorIs(t, err, tickets.ErrInvalidRaffle)
	}
}

func TestPublishUnpublish(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	raffle := testdb.Raffle(t, svc.DB.Bun, 10, 1, models.RaffleDraft)

	got, err := svc.Publish(ctx, raffle.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())

	got, err = svc.Unpublish(ctx, raffle.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublished())

	_, err = svc.Publish(ctx, "missing")
	assert.ErrorIs(t, err, tickets.ErrRaffleNotFound)
}

func TestAvailabilityUsesCache(t *testing.T) {
	cache := new(MockCache)
	svc := setupService(t, cache)
	ctx := context.Background()
	raffle := testdb.Raffle(t, svc.DB.Bun, 10, 1, models.RafflePublished)

	cached := models.Availability{RaffleID: raffle.ID, Total: 10, Available: 3, Reserved: 7}
	cache.On("Get", mock.Anything, raffle.ID).Return(cached, true, nil).Once()

	a, err := svc.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, cached, a)

	fresh := models.Availability{RaffleID: raffle.ID, Total: 10, Available: 10}
	cache.On("Get", mock.Anything, raffle.ID).Return(models.Availability{}, false, nil).Once()
	cache.On("Set", mock.Anything, fresh).Return(nil).Once()

	a, err = svc.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh, a)
	cache.AssertExpectations(t)
}

func TestAvailabilityCacheErrorFallsThrough(t *testing.T) {
	cache := new(MockCache)
	svc := setupService(t, cache)
	ctx := context.Background()
	raffle := testdb.Raffle(t, svc.DB.Bun, 5, 1, models.RafflePublished)

	cache.On("Get", mock.Anything, raffle.ID).Return(models.Availability{}, false, assert.AnError)
	cache.On("Set", mock.Anything, mock.Anything).Return(assert.AnError)

	a, err := svc.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, a.Available)
}

func TestAvailabilityUnknownRaffle(t *testing.T) {
	svc := setupService(t, nil)

	_, err := svc.Availability(context.Background(), "missing")
	assert.ErrorIs(t, err, tickets.ErrRaffleNotFound)
}

func TestTicketCodes(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()
	raffle := testdb.Raffle(t, svc.DB.Bun, 10, 1, models.RafflePublished)

	_, err := svc.DB.ClaimAvailable(ctx, raffle.ID, "order-1", 3, 0)
	require.NoError(t, err)

	codes, err := svc.TicketCodes(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, codes, 3)
	assert.IsNonDecreasing(t, codes)
}
