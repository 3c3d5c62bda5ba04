// Package testdb provides in-memory SQLite databases with the service schema
// for repository and engine tests.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-sorteos/internal/database"
	"ms-sorteos/internal/models"
	ticketdb "ms-sorteos/internal/tickets/db"
	"ms-sorteos/internal/utils"
)

// New opens a private in-memory database. A single connection makes
// concurrent transactions queue behind each other.
func New(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)
	sqldb.SetMaxIdleConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// Raffle inserts a raffle with exactly n available tickets.
func Raffle(t testing.TB, db bun.IDB, n int, price float64, status models.RaffleStatus) *models.Raffle {
	t.Helper()
	ctx := context.Background()

	digits := 1
	for limit := 10; limit < n; limit *= 10 {
		digits++
	}

	raffle := &models.Raffle{
		ID:             utils.GenerateUUID(),
		Name:           "Test raffle",
		Digits:         digits,
		TotalTickets:   n,
		PricePerTicket: price,
		Status:         status,
		CreatedAt:      time.Now(),
	}
	if _, err := db.NewInsert().Model(raffle).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert raffle: %v", err)
	}

	if n == 0 {
		return raffle
	}
	tickets := make([]models.Ticket, n)
	for i := range tickets {
		tickets[i] = models.Ticket{
			ID:       utils.GenerateUUID(),
			RaffleID: raffle.ID,
			Code:     ticketdb.TicketCode(i, digits),
			State:    models.TicketAvailable,
		}
	}
	if _, err := db.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		t.Fatalf("Failed to insert tickets: %v", err)
	}
	return raffle
}

func PaymentMethod(t testing.TB, db bun.IDB, kind models.PaymentMethodKind, active bool) *models.PaymentMethod {
	t.Helper()

	pm := &models.PaymentMethod{
		ID:     utils.GenerateUUID(),
		Name:   string(kind),
		Kind:   kind,
		Active: active,
	}
	if _, err := db.NewInsert().Model(pm).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert payment method: %v", err)
	}
	return pm
}

func Package(t testing.TB, db bun.IDB, raffleID string, quantity int, price float64, published bool) *models.Package {
	t.Helper()

	pkg := &models.Package{
		ID:        utils.GenerateUUID(),
		RaffleID:  raffleID,
		Quantity:  quantity,
		Price:     price,
		Published: published,
	}
	if _, err := db.NewInsert().Model(pkg).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert package: %v", err)
	}
	return pkg
}

// Tickets returns every ticket of the raffle.
func Tickets(t testing.TB, db bun.IDB, raffleID string) []models.Ticket {
	t.Helper()

	var tickets []models.Ticket
	if err := db.NewSelect().Model(&tickets).Where("raffle_id = ?", raffleID).Order("code").Scan(context.Background()); err != nil {
		t.Fatalf("Failed to list tickets: %v", err)
	}
	return tickets
}

// AssertInventoryInvariant fails the test if any ticket's owner disagrees with
// its state or if more tickets are held than exist.
func AssertInventoryInvariant(t testing.TB, db bun.IDB, raffle *models.Raffle) {
	t.Helper()

	held := 0
	for _, tk := range Tickets(t, db, raffle.ID) {
		switch tk.State {
		case models.TicketAvailable:
			if tk.OrderID != "" {
				t.Errorf("ticket %s is available but owned by %s", tk.Code, tk.OrderID)
			}
		case models.TicketReserved, models.TicketSold:
			held++
			if tk.OrderID == "" {
				t.Errorf("ticket %s is %s without an owner", tk.Code, tk.State)
			}
		default:
			t.Errorf("ticket %s has unknown state %q", tk.Code, tk.State)
		}
	}
	if held > raffle.TotalTickets {
		t.Errorf("held %d tickets out of %d", held, raffle.TotalTickets)
	}
}
