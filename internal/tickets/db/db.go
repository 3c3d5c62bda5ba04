package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-sorteos/internal/models"
	"ms-sorteos/internal/utils"
)

// insertChunk bounds the number of rows per bulk insert. SQLite caps bound
// parameters per statement.
const insertChunk = 500

const MaxDigits = 6

var ErrInvalidDigits = errors.New("digits must be between 1 and 6")

// DB is the ticket inventory store. Bun may be a *bun.DB or a bun.Tx so the
// same methods run inside a caller's transaction.
type DB struct {
	Bun bun.IDB
}

func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx})
	})
}

// SupportsSkipLocked reports whether the dialect can lock-and-skip rows.
func (d *DB) SupportsSkipLocked() bool {
	return d.Bun.Dialect().Name() == dialect.PG
}

func (d *DB) CreateRaffle(ctx context.Context, raffle *models.Raffle) error {
	_, err := d.Bun.NewInsert().Model(raffle).Exec(ctx)
	return err
}

func (d *DB) GetRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	var raffle models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (d *DB) SetRaffleStatus(ctx context.Context, raffle *models.Raffle) error {
	res, err := d.Bun.NewUpdate().
		Model(raffle).
		Column("status", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("raffle %s not updated", raffle.ID)
	}
	return nil
}

// TicketCode renders ticket number n zero-padded to the raffle digit width.
func TicketCode(n, digits int) string {
	return fmt.Sprintf("%0*d", digits, n)
}

// CreateTickets inserts every ticket of the raffle in state available.
func (d *DB) CreateTickets(ctx context.Context, raffleID string, digits int) (int, error) {
	if digits < 1 || digits > MaxDigits {
		return 0, ErrInvalidDigits
	}

	total := 1
	for i := 0; i < digits; i++ {
		total *= 10
	}

	batch := make([]models.Ticket, 0, insertChunk)
	for n := 0; n < total; n++ {
		batch = append(batch, models.Ticket{
			ID:       utils.GenerateUUID(),
			RaffleID: raffleID,
			Code:     TicketCode(n, digits),
			State:    models.TicketAvailable,
		})
		if len(batch) == insertChunk || n == total-1 {
			if _, err := d.Bun.NewInsert().Model(&batch).Exec(ctx); err != nil {
				return 0, fmt.Errorf("insert tickets: %w", err)
			}
			batch = batch[:0]
		}
	}
	return total, nil
}

// ClaimAvailable reserves up to n available tickets of the raffle for orderID,
// chosen in random order. It returns the claimed tickets, which may be fewer
// than n; the caller decides whether a shortfall aborts its transaction.
//
// On Postgres the candidates are locked with FOR UPDATE SKIP LOCKED so
// concurrent claimers never block on or double-select a row. Other dialects
// claim row by row with a conditional update, retrying lost rows up to
// retryBudget extra rounds.
func (d *DB) ClaimAvailable(ctx context.Context, raffleID, orderID string, n, retryBudget int) ([]models.Ticket, error) {
	if n <= 0 {
		return nil, nil
	}
	if d.SupportsSkipLocked() {
		return d.claimSkipLocked(ctx, raffleID, orderID, n)
	}
	return d.claimCompareAndSwap(ctx, raffleID, orderID, n, retryBudget)
}

func (d *DB) claimSkipLocked(ctx context.Context, raffleID, orderID string, n int) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("raffle_id = ?", raffleID).
		Where("state = ?", models.TicketAvailable).
		OrderExpr("random()").
		Limit(n).
		For("UPDATE SKIP LOCKED").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("select available tickets: %w", err)
	}
	if len(tickets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(tickets))
	for i := range tickets {
		ids[i] = tickets[i].ID
		tickets[i].State = models.TicketReserved
		tickets[i].OrderID = orderID
	}

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("state = ?", models.TicketReserved).
		Set("order_id = ?", orderID).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve tickets: %w", err)
	}
	if affected, _ := res.RowsAffected(); int(affected) != len(ids) {
		return nil, fmt.Errorf("reserve tickets: locked %d rows but updated %d", len(ids), affected)
	}
	return tickets, nil
}

func (d *DB) claimCompareAndSwap(ctx context.Context, raffleID, orderID string, n, retryBudget int) ([]models.Ticket, error) {
	claimed := make([]models.Ticket, 0, n)

	for round := 0; round <= retryBudget && len(claimed) < n; round++ {
		var candidates []models.Ticket
		err := d.Bun.NewSelect().
			Model(&candidates).
			Where("raffle_id = ?", raffleID).
			Where("state = ?", models.TicketAvailable).
			OrderExpr("random()").
			Limit(n - len(claimed)).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("select available tickets: %w", err)
		}
		if len(candidates) == 0 {
			break
		}

		lost := 0
		for _, t := range candidates {
			res, err := d.Bun.NewUpdate().
				Model((*models.Ticket)(nil)).
				Set("state = ?", models.TicketReserved).
				Set("order_id = ?", orderID).
				Where("id = ?", t.ID).
				Where("state = ?", models.TicketAvailable).
				Exec(ctx)
			if err != nil {
				return nil, fmt.Errorf("claim ticket %s: %w", t.Code, err)
			}
			if affected, _ := res.RowsAffected(); affected == 1 {
				t.State = models.TicketReserved
				t.OrderID = orderID
				claimed = append(claimed, t)
			} else {
				lost++
			}
		}
		// Nothing lost to a concurrent claimer: either done or the pool ran dry.
		if lost == 0 {
			break
		}
	}
	return claimed, nil
}

// ReservedByOrder returns the tickets currently reserved for the order.
func (d *DB) ReservedByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Where("state = ?", models.TicketReserved).
		Order("code ASC").
		Scan(ctx)
	return tickets, err
}

// ByOrder returns every ticket owned by the order regardless of state.
func (d *DB) ByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("code ASC").
		Scan(ctx)
	return tickets, err
}

func (d *DB) GetTicketByCode(ctx context.Context, raffleID, code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("raffle_id = ?", raffleID).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// MarkSoldByOrder moves the order's reserved tickets to sold.
func (d *DB) MarkSoldByOrder(ctx context.Context, orderID string) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("state = ?", models.TicketSold).
		Where("order_id = ?", orderID).
		Where("state = ?", models.TicketReserved).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ReleaseByOrder returns the order's reserved tickets to the pool.
func (d *DB) ReleaseByOrder(ctx context.Context, orderID string) (int, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("state = ?", models.TicketAvailable).
		Set("order_id = NULL").
		Where("order_id = ?", orderID).
		Where("state = ?", models.TicketReserved).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
