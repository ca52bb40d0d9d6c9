package winner_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"ms-raffle/internal/database/dbtest"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	raffledb "ms-raffle/internal/raffles/db"
	ticketdb "ms-raffle/internal/reservation/db"
	"ms-raffle/internal/winner"
	winnerdb "ms-raffle/internal/winner/db"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishTicketEvent(ctx context.Context, event models.TicketEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func setup(t *testing.T) (*winner.Selector, *bun.DB, *MockPublisher) {
	t.Helper()
	bunDB := dbtest.New(t)
	dbtest.SeedRaffle(t, bunDB, "r1", 1000, "10")

	tickets := &ticketdb.DB{Bun: bunDB}
	ctx := context.Background()
	now := time.Now().UTC()
	for _, n := range []string{"042", "077", "123"} {
		_, err := tickets.InsertHeld(ctx, models.TicketRecord{RaffleID: "r1", Number: n, HolderID: "ana", HeldAt: now})
		require.NoError(t, err)
	}
	_, err := tickets.ConfirmPaid(ctx, "r1", []string{"042", "077"}, "ana", now)
	require.NoError(t, err)

	pub := &MockPublisher{}
	pub.On("PublishTicketEvent", mock.Anything, mock.Anything).Return(nil)

	sel := winner.NewSelector(&raffledb.DB{Bun: bunDB}, tickets, &winnerdb.DB{Bun: bunDB}, pub, logger.NewNopLogger())
	return sel, bunDB, pub
}

func raffleStatus(t *testing.T, bunDB *bun.DB) models.RaffleStatus {
	t.Helper()
	raffle, err := (&raffledb.DB{Bun: bunDB}).GetRaffle(context.Background(), "r1")
	require.NoError(t, err)
	return raffle.Status
}

func TestDeclareWinner(t *testing.T) {
	sel, bunDB, pub := setup(t)
	ctx := context.Background()

	_, err := sel.GetWinner(ctx, "r1")
	assert.ErrorIs(t, err, models.ErrNoWinner)

	w, err := sel.DeclareWinner(ctx, "r1", "42")
	require.NoError(t, err)
	assert.Equal(t, "042", w.Number)
	assert.Equal(t, "ana", w.HolderID)
	assert.Equal(t, models.RaffleFinalized, raffleStatus(t, bunDB))

	got, err := sel.GetWinner(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "042", got.Number)

	_, err = sel.DeclareWinner(ctx, "r1", "077")
	assert.ErrorIs(t, err, models.ErrWinnerAlreadyExists)

	pub.AssertNumberOfCalls(t, "PublishTicketEvent", 1)
}

func TestDeclareWinner_HeldTicketNotEligible(t *testing.T) {
	sel, bunDB, _ := setup(t)

	_, err := sel.DeclareWinner(context.Background(), "r1", "123")
	assert.ErrorIs(t, err, models.ErrTicketNotEligible)
	assert.Equal(t, models.RaffleActive, raffleStatus(t, bunDB))

	_, err = sel.DeclareWinner(context.Background(), "r1", "500")
	assert.ErrorIs(t, err, models.ErrTicketNotEligible, "available numbers cannot win")
}

func TestDeclareWinner_UnknownNumberOrRaffle(t *testing.T) {
	sel, _, _ := setup(t)
	ctx := context.Background()

	for _, n := range []string{"1000", "-1", "abc", ""} {
		_, err := sel.DeclareWinner(ctx, "r1", n)
		assert.ErrorIs(t, err, models.ErrNumberNotFound, "number %q", n)
	}

	_, err := sel.DeclareWinner(ctx, "nope", "042")
	assert.ErrorIs(t, err, models.ErrRaffleNotFound)
	_, err = sel.GetWinner(ctx, "nope")
	assert.ErrorIs(t, err, models.ErrRaffleNotFound)
}

func TestDeclareWinner_CancelledRaffle(t *testing.T) {
	sel, bunDB, _ := setup(t)
	_, err := bunDB.NewUpdate().
		Model((*models.Raffle)(nil)).
		Set("status = ?", models.RaffleCancelled).
		Where("id = ?", "r1").
		Exec(context.Background())
	require.NoError(t, err)

	_, err = sel.DeclareWinner(context.Background(), "r1", "042")
	assert.ErrorIs(t, err, models.ErrRaffleCancelled)
}

func TestDeclareWinner_ConcurrentDeclarations(t *testing.T) {
	sel, _, _ := setup(t)
	ctx := context.Background()

	numbers := []string{"042", "077", "042", "077", "042", "077"}
	errs := make([]error, len(numbers))
	var wg sync.WaitGroup
	for i, n := range numbers {
		wg.Add(1)
		go func(i int, n string) {
			defer wg.Done()
			_, errs[i] = sel.DeclareWinner(ctx, "r1", n)
		}(i, n)
	}
	wg.Wait()

	succeeded := 0
	for i, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, models.ErrWinnerAlreadyExists, fmt.Sprintf("call %d", i))
	}
	assert.Equal(t, 1, succeeded)

	w, err := sel.GetWinner(ctx, "r1")
	require.NoError(t, err)
	assert.Contains(t, []string{"042", "077"}, w.Number)
}

func TestHandleDrawResult_Redelivery(t *testing.T) {
	sel, _, pub := setup(t)
	ctx := context.Background()

	require.NoError(t, sel.HandleDrawResult(ctx, models.DrawResult{RaffleID: "r1", Number: "77"}))
	require.NoError(t, sel.HandleDrawResult(ctx, models.DrawResult{RaffleID: "r1", Number: "077"}))

	err := sel.HandleDrawResult(ctx, models.DrawResult{RaffleID: "r1", Number: "042"})
	assert.ErrorIs(t, err, models.ErrWinnerAlreadyExists)

	err = sel.HandleDrawResult(ctx, models.DrawResult{RaffleID: "nope", Number: "042"})
	assert.ErrorIs(t, err, models.ErrRaffleNotFound)
	pub.AssertNumberOfCalls(t, "PublishTicketEvent", 1)
}

// changingStore runs a ticket write between the selector's eligibility read
// and the winner insert.
type changingStore struct {
	winner.Store
	before func()
}

func (s *changingStore) InsertWinner(ctx context.Context, w models.Winner) error {
	s.before()
	return s.Store.InsertWinner(ctx, w)
}

func TestDeclareWinner_TicketChangesBeforeInsert(t *testing.T) {
	ctx := context.Background()

	t.Run("released", func(t *testing.T) {
		sel, bunDB, pub := setup(t)
		tickets := &ticketdb.DB{Bun: bunDB}
		sel.Winners = &changingStore{Store: sel.Winners, before: func() {
			_, err := tickets.DeleteTicket(ctx, "r1", "042")
			require.NoError(t, err)
		}}

		_, err := sel.DeclareWinner(ctx, "r1", "042")
		assert.ErrorIs(t, err, models.ErrTicketNotEligible)
		assert.Equal(t, models.RaffleActive, raffleStatus(t, bunDB))

		got, err := (&winnerdb.DB{Bun: bunDB}).GetWinner(ctx, "r1")
		require.NoError(t, err)
		assert.Nil(t, got)
		pub.AssertNotCalled(t, "PublishTicketEvent", mock.Anything, mock.Anything)
	})

	t.Run("paid again by someone else", func(t *testing.T) {
		sel, bunDB, _ := setup(t)
		tickets := &ticketdb.DB{Bun: bunDB}
		sel.Winners = &changingStore{Store: sel.Winners, before: func() {
			now := time.Now().UTC()
			_, err := tickets.DeleteTicket(ctx, "r1", "042")
			require.NoError(t, err)
			_, err = tickets.InsertHeld(ctx, models.TicketRecord{RaffleID: "r1", Number: "042", HolderID: "luis", HeldAt: now})
			require.NoError(t, err)
			_, err = tickets.ConfirmPaid(ctx, "r1", []string{"042"}, "luis", now)
			require.NoError(t, err)
		}}

		_, err := sel.DeclareWinner(ctx, "r1", "042")
		assert.ErrorIs(t, err, models.ErrTicketNotEligible)
		assert.Equal(t, models.RaffleActive, raffleStatus(t, bunDB))
	})
}
