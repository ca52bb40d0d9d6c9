package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-raffle/internal/models"
)

// CreateSchema builds the tables from the bun models. Postgres deployments
// use the migrations package; this is for SQLite and local seeding.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Raffle)(nil),
		(*models.TicketRecord)(nil),
		(*models.ReminderLogEntry)(nil),
		(*models.Winner)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", m, err)
		}
	}
	return nil
}

// DropSchema removes the tables in reverse dependency order.
func DropSchema(ctx context.Context, db *bun.DB) error {
	tables := []interface{}{
		(*models.Winner)(nil),
		(*models.ReminderLogEntry)(nil),
		(*models.TicketRecord)(nil),
		(*models.Raffle)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewDropTable().Model(m).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("drop table for %T: %w", m, err)
		}
	}
	return nil
}
