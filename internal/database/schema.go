// Package database holds connection and schema bootstrapping shared by the
// service, tests and local tooling. Production schemas are managed by the
// migrations subpackage.
package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-sorteos/internal/models"
)

var schemaModels = []interface{}{
	(*models.Raffle)(nil),
	(*models.Ticket)(nil),
	(*models.Client)(nil),
	(*models.PaymentMethod)(nil),
	(*models.Package)(nil),
	(*models.Order)(nil),
	(*models.OrderItem)(nil),
	(*models.PaymentAttempt)(nil),
	(*models.Prize)(nil),
	(*models.Invoice)(nil),
}

// CreateSchema creates every table from the bun models. It is used against
// SQLite where the Postgres migrations do not apply.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range schemaModels {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("idx_tickets_raffle_state").
		IfNotExists().
		Column("raffle_id", "state").
		Exec(ctx); err != nil {
		return fmt.Errorf("create tickets index: %w", err)
	}
	return nil
}
