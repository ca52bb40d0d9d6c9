package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-raffle/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// GetRaffle → fetch one raffle, ErrRaffleNotFound when missing
func (d *DB) GetRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	var raffle models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffle).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrRaffleNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

// CreateRaffle → insert a new raffle; used by seeding and tests
func (d *DB) CreateRaffle(ctx context.Context, raffle *models.Raffle) error {
	if raffle.TotalTickets < 1 {
		return fmt.Errorf("raffle %s: total_tickets must be at least 1", raffle.ID)
	}
	if raffle.Status == "" {
		raffle.Status = models.RaffleActive
	}
	if raffle.CreatedAt.IsZero() {
		raffle.CreatedAt = time.Now().UTC()
	}
	_, err := d.Bun.NewInsert().Model(raffle).Exec(ctx)
	return err
}

// ListActiveWithHoldWindow → active raffles whose holds expire
func (d *DB) ListActiveWithHoldWindow(ctx context.Context) ([]models.Raffle, error) {
	var raffles []models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffles).
		Where("status = ?", models.RaffleActive).
		Where("hold_hours > 0").
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return raffles, nil
}
