package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-raffle/internal/database/dbtest"
	"ms-raffle/internal/models"
	"ms-raffle/internal/reservation/db"
)

func held(raffleID, number, holder string, at time.Time) models.TicketRecord {
	return models.TicketRecord{RaffleID: raffleID, Number: number, HolderID: holder, Status: models.TicketHeld, HeldAt: at}
}

func TestInsertHeld_UniqueNumberPerRaffle(t *testing.T) {
	bunDB := dbtest.New(t)
	dbtest.SeedRaffle(t, bunDB, "r1", 100, "5")
	dbtest.SeedRaffle(t, bunDB, "r2", 100, "5")
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()
	now := time.Now().UTC()

	ok, err := store.InsertHeld(ctx, held("r1", "005", "ana", now))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.InsertHeld(ctx, held("r1", "005", "bob", now))
	require.NoError(t, err)
	assert.False(t, ok, "second insert on the same number must lose")

	ok, err = store.InsertHeld(ctx, held("r2", "005", "bob", now))
	require.NoError(t, err)
	assert.True(t, ok, "same number in another raffle is independent")

	rec, err := store.GetTicket(ctx, "r1", "005")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "ana", rec.HolderID)
	assert.Equal(t, models.TicketHeld, rec.Status)

	rec, err = store.GetTicket(ctx, "r1", "006")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestConfirmPaid_AllOrNothing(t *testing.T) {
	bunDB := dbtest.New(t)
	dbtest.SeedRaffle(t, bunDB, "r1", 100, "5")
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()
	now := time.Now().UTC()

	for _, n := range []string{"001", "002"} {
		_, err := store.InsertHeld(ctx, held("r1", n, "ana", now))
		require.NoError(t, err)
	}
	_, err := store.InsertHeld(ctx, held("r1", "003", "bob", now))
	require.NoError(t, err)

	_, err = store.ConfirmPaid(ctx, "r1", []string{"001", "002", "003"}, "ana", now)
	assert.ErrorIs(t, err, models.ErrNotHeldByCaller)

	records, err := store.ListTickets(ctx, "r1")
	require.NoError(t, err)
	for _, rec := range records {
		assert.Equal(t, models.TicketHeld, rec.Status, "number %s must stay held", rec.Number)
	}

	n, err := store.ConfirmPaid(ctx, "r1", []string{"001", "002"}, "ana", now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.ConfirmPaid(ctx, "r1", []string{"001", "002"}, "ana", now)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "retry is a no-op")

	rec, err := store.GetTicket(ctx, "r1", "001")
	require.NoError(t, err)
	assert.Equal(t, models.TicketPaid, rec.Status)
	assert.False(t, rec.PaidAt.IsZero())
}

func TestFamilyLane(t *testing.T) {
	bunDB := dbtest.New(t)
	dbtest.SeedRaffle(t, bunDB, "r1", 100, "5")
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.InsertHeld(ctx, held("r1", "010", "ana", now))
	require.NoError(t, err)

	deleted, err := store.DeleteFamily(ctx, "r1", "010")
	require.NoError(t, err)
	assert.False(t, deleted, "a held number is not in the family lane")

	require.NoError(t, store.UpsertFamily(ctx, "r1", "010", "tia", now))
	require.NoError(t, store.UpsertFamily(ctx, "r1", "011", "", now))

	rec, err := store.GetTicket(ctx, "r1", "010")
	require.NoError(t, err)
	assert.Equal(t, models.TicketFamily, rec.Status)
	assert.Equal(t, "tia", rec.HolderID)

	deleted, err = store.DeleteFamily(ctx, "r1", "010")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteTicket(ctx, "r1", "011")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteTicket(ctx, "r1", "011")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestExpiredHolds(t *testing.T) {
	bunDB := dbtest.New(t)
	dbtest.SeedRaffle(t, bunDB, "r1", 100, "5")
	store := &db.DB{Bun: bunDB}
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := store.InsertHeld(ctx, held("r1", "001", "ana", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = store.InsertHeld(ctx, held("r1", "002", "ana", now.Add(-48*time.Hour)))
	require.NoError(t, err)
	_, err = store.InsertHeld(ctx, held("r1", "003", "bob", now))
	require.NoError(t, err)
	_, err = store.ConfirmPaid(ctx, "r1", []string{"002"}, "ana", now)
	require.NoError(t, err)

	cutoff := now.Add(-24 * time.Hour)
	expired, err := store.ListHeldBefore(ctx, "r1", cutoff)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "001", expired[0].Number)

	ok, err := store.DeleteExpiredHold(ctx, "r1", "003", cutoff)
	require.NoError(t, err)
	assert.False(t, ok, "a fresh hold is not expired")

	ok, err = store.DeleteExpiredHold(ctx, "r1", "001", cutoff)
	require.NoError(t, err)
	assert.True(t, ok)
}

func setStatus(t *testing.T, store *db.DB, raffleID string, status models.RaffleStatus) {
	t.Helper()
	_, err := store.Bun.NewUpdate().
		Model((*models.Raffle)(nil)).
		Set("status = ?", status).
		Where("id = ?", raffleID).
		Exec(context.Background())
	require.NoError(t, err)
}

func TestWritesRefusedOnceRaffleIsClosed(t *testing.T) {
	for status, want := range map[models.RaffleStatus]error{
		models.RaffleFinalized: models.ErrRaffleFinalized,
		models.RaffleCancelled: models.ErrRaffleCancelled,
	} {
		t.Run(string(status), func(t *testing.T) {
			bunDB := dbtest.New(t)
			dbtest.SeedRaffle(t, bunDB, "r1", 100, "5")
			store := &db.DB{Bun: bunDB}
			ctx := context.Background()
			now := time.Now().UTC()

			_, err := store.InsertHeld(ctx, held("r1", "001", "ana", now))
			require.NoError(t, err)
			_, err = store.InsertHeld(ctx, held("r1", "002", "ana", now))
			require.NoError(t, err)
			setStatus(t, store, "r1", status)

			ok, err := store.InsertHeld(ctx, held("r1", "003", "bob", now))
			assert.ErrorIs(t, err, want)
			assert.False(t, ok)

			_, err = store.DeleteTicket(ctx, "r1", "001")
			assert.ErrorIs(t, err, want)
			assert.ErrorIs(t, store.UpsertFamily(ctx, "r1", "004", "tia", now), want)
			_, err = store.ConfirmPaid(ctx, "r1", []string{"002"}, "ana", now)
			assert.ErrorIs(t, err, want)
			_, err = store.DeleteExpiredHold(ctx, "r1", "001", now.Add(time.Hour))
			assert.ErrorIs(t, err, want)

			rows, err := store.ListTickets(ctx, "r1")
			require.NoError(t, err)
			require.Len(t, rows, 2, "nothing changed")
			for _, r := range rows {
				assert.Equal(t, models.TicketHeld, r.Status)
			}
		})
	}
}

func TestInsertHeld_UnknownRaffle(t *testing.T) {
	store := &db.DB{Bun: dbtest.New(t)}
	_, err := store.InsertHeld(context.Background(), held("ghost", "001", "ana", time.Now().UTC()))
	assert.ErrorIs(t, err, models.ErrRaffleNotFound)
}
