package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-raffle/internal/database"
	"ms-raffle/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetWinner → nil when the raffle has no winner yet
func (d *DB) GetWinner(ctx context.Context, raffleID string) (*models.Winner, error) {
	winner := new(models.Winner)
	err := d.Bun.NewSelect().
		Model(winner).
		Where("rifa_id = ?", raffleID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return winner, nil
}

// InsertWinner stores the winner and finalizes the raffle in one transaction.
// The raffle row is locked first, so no ticket write can slip in between the
// eligibility check below and the commit. The winner table's key on rifa_id
// is what stops a second winner.
func (d *DB) InsertWinner(ctx context.Context, winner models.Winner) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		status, err := database.LockRaffle(ctx, tx, winner.RaffleID, true)
		if err != nil {
			return err
		}
		switch status {
		case models.RaffleFinalized:
			return fmt.Errorf("%w: %s is finalized", models.ErrWinnerAlreadyExists, winner.RaffleID)
		case models.RaffleCancelled:
			return fmt.Errorf("%w: %s", models.ErrRaffleCancelled, winner.RaffleID)
		}

		ticket := new(models.TicketRecord)
		err = tx.NewSelect().
			Model(ticket).
			Where("rifa_id = ? AND numero = ?", winner.RaffleID, winner.Number).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s is available", models.ErrTicketNotEligible, winner.Number)
		}
		if err != nil {
			return err
		}
		if ticket.Status != models.TicketPaid || ticket.HolderID != winner.HolderID {
			return fmt.Errorf("%w: %s is %s (holder=%s)", models.ErrTicketNotEligible, winner.Number, ticket.Status, ticket.HolderID)
		}

		if _, err := tx.NewInsert().Model(&winner).Exec(ctx); err != nil {
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", models.ErrWinnerAlreadyExists, winner.RaffleID)
			}
			return err
		}

		_, err = tx.NewUpdate().
			Model((*models.Raffle)(nil)).
			Set("status = ?", models.RaffleFinalized).
			Set("finalized_at = ?", winner.DeclaredAt).
			Where("id = ?", winner.RaffleID).
			Exec(ctx)
		return err
	})
}
