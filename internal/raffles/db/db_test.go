package db_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffle/internal/database/dbtest"
	"ms-raffle/internal/models"
	"ms-raffle/internal/raffles/db"
)

func TestCreateAndGetRaffle(t *testing.T) {
	bunDB := dbtest.New(t)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	raffle := &models.Raffle{
		ID:           "rifa-1",
		Name:         "Rifa de diciembre",
		TotalTickets: 1000,
		TicketPrice:  decimal.RequireFromString("2.50"),
		HoldHours:    24,
	}
	require.NoError(t, store.CreateRaffle(ctx, raffle))

	got, err := store.GetRaffle(ctx, "rifa-1")
	require.NoError(t, err)
	assert.Equal(t, 1000, got.TotalTickets)
	assert.True(t, got.TicketPrice.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, models.RaffleActive, got.Status)
	assert.True(t, got.AcceptsMutations())

	_, err = store.GetRaffle(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrRaffleNotFound)
}

func TestCreateRaffle_RejectsEmptySpace(t *testing.T) {
	store := &db.DB{Bun: dbtest.New(t)}
	err := store.CreateRaffle(context.Background(), &models.Raffle{ID: "r0", Name: "empty"})
	assert.Error(t, err)
}

func TestListActiveWithHoldWindow(t *testing.T) {
	bunDB := dbtest.New(t)
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()

	require.NoError(t, store.CreateRaffle(ctx, &models.Raffle{ID: "a", Name: "a", TotalTickets: 10, HoldHours: 12}))
	require.NoError(t, store.CreateRaffle(ctx, &models.Raffle{ID: "b", Name: "b", TotalTickets: 10}))
	require.NoError(t, store.CreateRaffle(ctx, &models.Raffle{ID: "c", Name: "c", TotalTickets: 10, HoldHours: 6, Status: models.RaffleFinalized}))

	raffles, err := store.ListActiveWithHoldWindow(ctx)
	require.NoError(t, err)
	require.Len(t, raffles, 1)
	assert.Equal(t, "a", raffles[0].ID)
}
