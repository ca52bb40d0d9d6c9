// Package dbtest provides an in-memory SQLite database for store tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-raffle/internal/database"
	"ms-raffle/internal/models"
)

// New opens a private shared-cache in-memory database with the full schema.
// One connection keeps every goroutine on the same database.
func New(t testing.TB) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.CreateSchema(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// SeedRaffle inserts an active raffle and returns it.
func SeedRaffle(t testing.TB, db *bun.DB, id string, total int, price string) *models.Raffle {
	t.Helper()

	raffle := &models.Raffle{
		ID:           id,
		Name:         "Rifa " + id,
		TotalTickets: total,
		TicketPrice:  decimal.RequireFromString(price),
		Status:       models.RaffleActive,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := db.NewInsert().Model(raffle).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed raffle: %v", err)
	}
	return raffle
}
