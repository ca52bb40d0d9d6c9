package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-raffle/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ListEntries → holders already reminded for a raffle
func (d *DB) ListEntries(ctx context.Context, raffleID string) ([]models.ReminderLogEntry, error) {
	var entries []models.ReminderLogEntry
	err := d.Bun.NewSelect().
		Model(&entries).
		Where("rifa_id = ?", raffleID).
		Order("jugador_id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Append → false when the holder is already in the log
func (d *DB) Append(ctx context.Context, entry models.ReminderLogEntry) (bool, error) {
	res, err := d.Bun.NewInsert().
		Model(&entry).
		On("CONFLICT (rifa_id, jugador_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Remove → drop one entry by its id, used to undo a claim whose send failed
func (d *DB) Remove(ctx context.Context, raffleID, entryID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.ReminderLogEntry)(nil)).
		Where("rifa_id = ? AND id = ?", raffleID, entryID).
		Exec(ctx)
	return err
}

// Reset → start a new reminder round
func (d *DB) Reset(ctx context.Context, raffleID string) (int, error) {
	res, err := d.Bun.NewDelete().
		Model((*models.ReminderLogEntry)(nil)).
		Where("rifa_id = ?", raffleID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
