package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-raffle/internal/models"
)

// LockRaffle reads the status of a raffle inside tx. On Postgres the row is
// locked: ticket writers take it shared, the winner declaration takes it
// exclusive, so a raffle cannot be finalized while a ticket write is in
// flight. SQLite serializes writers on its own and gets a plain read.
func LockRaffle(ctx context.Context, tx bun.Tx, raffleID string, exclusive bool) (models.RaffleStatus, error) {
	raffle := new(models.Raffle)
	q := tx.NewSelect().
		Model(raffle).
		Column("status").
		Where("id = ?", raffleID)
	if tx.Dialect().Name() == dialect.PG {
		if exclusive {
			q = q.For("UPDATE")
		} else {
			q = q.For("SHARE")
		}
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: %s", models.ErrRaffleNotFound, raffleID)
		}
		return "", err
	}
	return raffle.Status, nil
}

// RequireActive holds the raffle shared for the rest of tx and fails unless
// its tickets may still change.
func RequireActive(ctx context.Context, tx bun.Tx, raffleID string) error {
	status, err := LockRaffle(ctx, tx, raffleID, false)
	if err != nil {
		return err
	}
	switch status {
	case models.RaffleActive:
		return nil
	case models.RaffleCancelled:
		return fmt.Errorf("%w: %s", models.ErrRaffleCancelled, raffleID)
	default:
		return fmt.Errorf("%w: %s", models.ErrRaffleFinalized, raffleID)
	}
}
