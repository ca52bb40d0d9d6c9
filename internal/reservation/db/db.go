package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-raffle/internal/database"
	"ms-raffle/internal/models"
)

// DB stores the sparse ticket rows. The (rifa_id, numero) primary key decides
// every race between two buyers. Every write first checks, inside its own
// transaction, that the raffle is still active.
type DB struct {
	Bun *bun.DB
}

// ListTickets → every persisted row of a raffle
func (d *DB) ListTickets(ctx context.Context, raffleID string) ([]models.TicketRecord, error) {
	var records []models.TicketRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("rifa_id = ?", raffleID).
		Order("numero").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetTicket → one row, nil when the number is available
func (d *DB) GetTicket(ctx context.Context, raffleID, number string) (*models.TicketRecord, error) {
	var record models.TicketRecord
	err := d.Bun.NewSelect().
		Model(&record).
		Where("rifa_id = ? AND numero = ?", raffleID, number).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// affected runs one write of an active raffle and reports whether it touched a row.
func (d *DB) affected(ctx context.Context, raffleID string, write func(ctx context.Context, tx bun.Tx) (sql.Result, error)) (bool, error) {
	var touched bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := database.RequireActive(ctx, tx, raffleID); err != nil {
			return err
		}
		res, err := write(ctx, tx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		touched = n > 0
		return nil
	})
	return touched, err
}

// InsertHeld → try to claim a number; false means another row already owns it
func (d *DB) InsertHeld(ctx context.Context, record models.TicketRecord) (bool, error) {
	record.Status = models.TicketHeld
	return d.affected(ctx, record.RaffleID, func(ctx context.Context, tx bun.Tx) (sql.Result, error) {
		return tx.NewInsert().
			Model(&record).
			On("CONFLICT (rifa_id, numero) DO NOTHING").
			Exec(ctx)
	})
}

// ConfirmPaid → held rows of holderID become paid, all or nothing. Rows the
// holder already paid count as confirmed so that a retry succeeds.
func (d *DB) ConfirmPaid(ctx context.Context, raffleID string, numbers []string, holderID string, paidAt time.Time) (int, error) {
	var transitioned int
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := database.RequireActive(ctx, tx, raffleID); err != nil {
			return err
		}
		var owned []models.TicketRecord
		err := tx.NewSelect().
			Model(&owned).
			Where("rifa_id = ?", raffleID).
			Where("numero IN (?)", bun.In(numbers)).
			Where("jugador_id = ?", holderID).
			Where("estado IN (?)", bun.In([]models.TicketStatus{models.TicketHeld, models.TicketPaid})).
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(owned) != len(numbers) {
			return fmt.Errorf("%w: %d of %d numbers", models.ErrNotHeldByCaller, len(owned), len(numbers))
		}

		held := 0
		for _, rec := range owned {
			if rec.Status == models.TicketHeld {
				held++
			}
		}
		if held == 0 {
			return nil
		}

		res, err := tx.NewUpdate().
			Model((*models.TicketRecord)(nil)).
			Set("estado = ?", models.TicketPaid).
			Set("fecha_pago = ?", paidAt).
			Where("rifa_id = ?", raffleID).
			Where("numero IN (?)", bun.In(numbers)).
			Where("jugador_id = ?", holderID).
			Where("estado = ?", models.TicketHeld).
			Exec(ctx)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if int(n) != held {
			return fmt.Errorf("%w: tickets changed during confirmation", models.ErrNotHeldByCaller)
		}
		transitioned = held
		return nil
	})
	if err != nil {
		return 0, err
	}
	return transitioned, nil
}

// DeleteTicket → number back to available; false when it already was
func (d *DB) DeleteTicket(ctx context.Context, raffleID, number string) (bool, error) {
	return d.affected(ctx, raffleID, func(ctx context.Context, tx bun.Tx) (sql.Result, error) {
		return tx.NewDelete().
			Model((*models.TicketRecord)(nil)).
			Where("rifa_id = ? AND numero = ?", raffleID, number).
			Exec(ctx)
	})
}

// DeleteFamily → release a number only while it is in the family lane
func (d *DB) DeleteFamily(ctx context.Context, raffleID, number string) (bool, error) {
	return d.affected(ctx, raffleID, func(ctx context.Context, tx bun.Tx) (sql.Result, error) {
		return tx.NewDelete().
			Model((*models.TicketRecord)(nil)).
			Where("rifa_id = ? AND numero = ?", raffleID, number).
			Where("estado = ?", models.TicketFamily).
			Exec(ctx)
	})
}

// UpsertFamily → move a number to the family lane from whatever state it is in
func (d *DB) UpsertFamily(ctx context.Context, raffleID, number, holderID string, at time.Time) error {
	record := models.TicketRecord{
		RaffleID: raffleID,
		Number:   number,
		HolderID: holderID,
		Status:   models.TicketFamily,
		HeldAt:   at,
	}
	_, err := d.affected(ctx, raffleID, func(ctx context.Context, tx bun.Tx) (sql.Result, error) {
		return tx.NewInsert().
			Model(&record).
			On("CONFLICT (rifa_id, numero) DO UPDATE").
			Set("estado = EXCLUDED.estado").
			Set("jugador_id = EXCLUDED.jugador_id").
			Set("fecha_apartado = EXCLUDED.fecha_apartado").
			Set("fecha_pago = NULL").
			Exec(ctx)
	})
	return err
}

// ListHeldBefore → held rows older than cutoff
func (d *DB) ListHeldBefore(ctx context.Context, raffleID string, cutoff time.Time) ([]models.TicketRecord, error) {
	var records []models.TicketRecord
	err := d.Bun.NewSelect().
		Model(&records).
		Where("rifa_id = ?", raffleID).
		Where("estado = ?", models.TicketHeld).
		Where("fecha_apartado < ?", cutoff).
		Order("numero").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteExpiredHold → release a hold only if it is still held and still old
func (d *DB) DeleteExpiredHold(ctx context.Context, raffleID, number string, cutoff time.Time) (bool, error) {
	return d.affected(ctx, raffleID, func(ctx context.Context, tx bun.Tx) (sql.Result, error) {
		return tx.NewDelete().
			Model((*models.TicketRecord)(nil)).
			Where("rifa_id = ? AND numero = ?", raffleID, number).
			Where("estado = ?", models.TicketHeld).
			Where("fecha_apartado < ?", cutoff).
			Exec(ctx)
	})
}
