package db

import (
	"context"

	"ms-sorteos/internal/models"
)

// CountByState counts the raffle's tickets in the given state. It takes no locks.
func (d *DB) CountByState(ctx context.Context, raffleID string, state models.TicketState) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("state = ?", state).
		Count(ctx)
}

// CountAvailable is the fast-fail precheck used before opening a reservation.
func (d *DB) CountAvailable(ctx context.Context, raffleID string) (int, error) {
	return d.CountByState(ctx, raffleID, models.TicketAvailable)
}

// Availability returns per-state counters for the raffle in one grouped query.
func (d *DB) Availability(ctx context.Context, raffleID string) (models.Availability, error) {
	var rows []struct {
		State models.TicketState `bun:"state"`
		Count int                `bun:"count"`
	}
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("state").
		ColumnExpr("COUNT(*) AS count").
		Where("raffle_id = ?", raffleID).
		Group("state").
		Scan(ctx, &rows)
	if err != nil {
		return models.Availability{}, err
	}

	a := models.Availability{RaffleID: raffleID}
	for _, r := range rows {
		switch r.State {
		case models.TicketAvailable:
			a.Available = r.Count
		case models.TicketReserved:
			a.Reserved = r.Count
		case models.TicketSold:
			a.Sold = r.Count
		}
		a.Total += r.Count
	}
	return a, nil
}
