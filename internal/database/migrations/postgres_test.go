package migrations_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-raffle/internal/config"
	"ms-raffle/internal/database"
	"ms-raffle/internal/database/migrations"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	raffledb "ms-raffle/internal/raffles/db"
	"ms-raffle/internal/reservation"
	ticketdb "ms-raffle/internal/reservation/db"
	"ms-raffle/internal/winner"
	winnerdb "ms-raffle/internal/winner/db"
)

// TestPostgresIntegration runs the migrations and the two racing operations
// against a real Postgres. Opt in with RAFFLE_PG_INTEGRATION=1; it needs Docker.
func TestPostgresIntegration(t *testing.T) {
	if testing.Short() || os.Getenv("RAFFLE_PG_INTEGRATION") != "1" {
		t.Skip("Skipping Postgres integration test (set RAFFLE_PG_INTEGRATION=1)")
	}

	ctx := context.Background()
	pg, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "raffle",
				"POSTGRES_PASSWORD": "raffle",
				"POSTGRES_DB":       "raffle",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer pg.Terminate(ctx)

	host, err := pg.Host(ctx)
	require.NoError(t, err)
	port, err := pg.MappedPort(ctx, "5432")
	require.NoError(t, err)

	log := logger.NewNopLogger()
	db, err := database.Connect(ctx, config.DatabaseConfig{
		DSN:          fmt.Sprintf("postgres://raffle:raffle@%s:%s/raffle?sslmode=disable", host, port.Port()),
		MaxOpenConns: 20,
		MaxIdleConns: 20,
		MaxLifetime:  time.Minute,
		ConnectTries: 5,
	}, log)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, migrations.NewRunner(db, log).MigrateUp())

	raffles := &raffledb.DB{Bun: db}
	tickets := &ticketdb.DB{Bun: db}
	require.NoError(t, raffles.CreateRaffle(ctx, &models.Raffle{
		ID: "pg", Name: "Postgres", TotalTickets: 1000, TicketPrice: decimal.NewFromInt(10),
	}))

	engine := reservation.NewEngine(raffles, tickets, nil, log)

	const callers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := engine.Reserve(ctx, "pg", []string{"005"}, fmt.Sprintf("holder-%d", i))
			if !assert.NoError(t, err) {
				return
			}
			if res.Kind() == reservation.KindSuccess {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, won, "exactly one caller holds 005")

	rec, err := tickets.GetTicket(ctx, "pg", "005")
	require.NoError(t, err)
	require.NotNil(t, rec)

	_, err = engine.ConfirmPayment(ctx, "pg", []string{"005"}, rec.HolderID, decimal.NewFromInt(10))
	require.NoError(t, err)

	selector := winner.NewSelector(raffles, tickets, &winnerdb.DB{Bun: db}, nil, log)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = selector.DeclareWinner(ctx, "pg", "005")
		}(i)
	}
	wg.Wait()

	declared := 0
	for _, err := range errs {
		if err == nil {
			declared++
			continue
		}
		assert.ErrorIs(t, err, models.ErrWinnerAlreadyExists)
	}
	assert.Equal(t, 1, declared)

	raffle, err := raffles.GetRaffle(ctx, "pg")
	require.NoError(t, err)
	assert.Equal(t, models.RaffleFinalized, raffle.Status)

	_, err = tickets.InsertHeld(ctx, models.TicketRecord{RaffleID: "pg", Number: "006", HolderID: "late", HeldAt: time.Now().UTC()})
	assert.ErrorIs(t, err, models.ErrRaffleFinalized)
	_, err = tickets.DeleteTicket(ctx, "pg", "005")
	assert.ErrorIs(t, err, models.ErrRaffleFinalized)
}
