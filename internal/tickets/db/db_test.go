package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-sorteos/internal/database/testdb"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/tickets/db"
	"ms-sorteos/internal/utils"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: testdb.New(t)}
}

func TestTicketCode(t *testing.T) {
	assert.Equal(t, "007", db.TicketCode(7, 3))
	assert.Equal(t, "0", db.TicketCode(0, 1))
	assert.Equal(t, "123456", db.TicketCode(123456, 6))
}

func TestCreateTickets(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 0, 1, models.RaffleDraft)

	total, err := ticketDB.CreateTickets(ctx, raffle.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1000, total)

	tickets := testdb.Tickets(t, ticketDB.Bun, raffle.ID)
	require.Len(t, tickets, 1000)
	assert.Equal(t, "000", tickets[0].Code)
	assert.Equal(t, "999", tickets[999].Code)

	availability, err := ticketDB.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Availability{RaffleID: raffle.ID, Total: 1000, Available: 1000}, availability)
}

func TestCreateTicketsRejectsDigits(t *testing.T) {
	ticketDB := setupTestDB(t)

	_, err := ticketDB.CreateTickets(context.Background(), "r", 0)
	assert.ErrorIs(t, err, db.ErrInvalidDigits)
	_, err = ticketDB.CreateTickets(context.Background(), "r", 7)
	assert.ErrorIs(t, err, db.ErrInvalidDigits)
}

func TestClaimAvailableCompareAndSwap(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 10, 2, models.RafflePublished)
	assert.False(t, ticketDB.SupportsSkipLocked())

	orderA := utils.GenerateUUID()
	claimed, err := ticketDB.ClaimAvailable(ctx, raffle.ID, orderA, 6, 3)
	require.NoError(t, err)
	require.Len(t, claimed, 6)
	for _, tk := range claimed {
		assert.Equal(t, models.TicketReserved, tk.State)
		assert.Equal(t, orderA, tk.OrderID)
	}

	// Only four remain, the claim returns what it could get.
	orderB := utils.GenerateUUID()
	claimed, err = ticketDB.ClaimAvailable(ctx, raffle.ID, orderB, 6, 3)
	require.NoError(t, err)
	assert.Len(t, claimed, 4)

	count, err := ticketDB.CountAvailable(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	testdb.AssertInventoryInvariant(t, ticketDB.Bun, raffle)
}

func TestClaimAvailableDisjoint(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 20, 1, models.RafflePublished)

	owners := make(map[string]string)
	for i := 0; i < 4; i++ {
		orderID := utils.GenerateUUID()
		claimed, err := ticketDB.ClaimAvailable(ctx, raffle.ID, orderID, 5, 0)
		require.NoError(t, err)
		require.Len(t, claimed, 5)
		for _, tk := range claimed {
			_, taken := owners[tk.ID]
			assert.False(t, taken, "ticket %s claimed twice", tk.Code)
			owners[tk.ID] = orderID
		}
	}
	assert.Len(t, owners, 20)
}

func TestMarkSoldAndRelease(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 10, 1, models.RafflePublished)

	sold := utils.GenerateUUID()
	released := utils.GenerateUUID()
	_, err := ticketDB.ClaimAvailable(ctx, raffle.ID, sold, 3, 0)
	require.NoError(t, err)
	_, err = ticketDB.ClaimAvailable(ctx, raffle.ID, released, 2, 0)
	require.NoError(t, err)

	reserved, err := ticketDB.ReservedByOrder(ctx, sold)
	require.NoError(t, err)
	assert.Len(t, reserved, 3)

	n, err := ticketDB.MarkSoldByOrder(ctx, sold)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = ticketDB.ReleaseByOrder(ctx, released)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Sold tickets are terminal, releasing their order again touches nothing.
	n, err = ticketDB.ReleaseByOrder(ctx, sold)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	owned, err := ticketDB.ByOrder(ctx, sold)
	require.NoError(t, err)
	assert.Len(t, owned, 3)

	availability, err := ticketDB.Availability(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, availability.Available)
	assert.Equal(t, 0, availability.Reserved)
	assert.Equal(t, 3, availability.Sold)
	assert.Equal(t, 10, availability.Total)
	testdb.AssertInventoryInvariant(t, ticketDB.Bun, raffle)
}

func TestRunInTxRollsBack(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 5, 1, models.RafflePublished)

	err := ticketDB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		claimed, err := tx.ClaimAvailable(ctx, raffle.ID, utils.GenerateUUID(), 5, 0)
		require.NoError(t, err)
		require.Len(t, claimed, 5)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	count, err := ticketDB.CountAvailable(ctx, raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestSetRaffleStatus(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()
	raffle := testdb.Raffle(t, ticketDB.Bun, 1, 1, models.RaffleDraft)

	raffle.Status = models.RafflePublished
	require.NoError(t, ticketDB.SetRaffleStatus(ctx, raffle))

	got, err := ticketDB.GetRaffle(ctx, raffle.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPublished())

	_, err = ticketDB.GetRaffle(ctx, "missing")
	assert.Error(t, err)
}
