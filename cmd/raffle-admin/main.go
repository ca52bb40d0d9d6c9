// Command raffle-admin migrates the raffle schema and seeds raffles.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"ms-raffle/internal/config"
	"ms-raffle/internal/database"
	"ms-raffle/internal/database/migrations"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	raffledb "ms-raffle/internal/raffles/db"
)

type options struct {
	migrate string
	reset   bool
	seed    bool
	raffle  models.Raffle
	price   string
}

func parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := pflag.NewFlagSet("raffle-admin", pflag.ContinueOnError)
	fs.StringVar(&opts.migrate, "migrate", "", `run schema migrations: "up" or "down"`)
	fs.BoolVar(&opts.reset, "reset", false, "drop and recreate the tables from the models (local databases only)")
	fs.BoolVar(&opts.seed, "seed", false, "insert the raffle described by the --raffle-* flags")
	fs.StringVar(&opts.raffle.ID, "raffle-id", "rifa-demo", "id of the seeded raffle")
	fs.StringVar(&opts.raffle.Name, "raffle-name", "Rifa de prueba", "name of the seeded raffle")
	fs.IntVar(&opts.raffle.TotalTickets, "tickets", 1000, "number of tickets, numbered from 0")
	fs.StringVar(&opts.price, "price", "5.00", "price of one ticket")
	fs.IntVar(&opts.raffle.HoldHours, "hold-hours", 48, "hours a held ticket waits for payment, 0 to never expire")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch opts.migrate {
	case "", "up", "down":
	default:
		return nil, fmt.Errorf("--migrate must be up or down, got %q", opts.migrate)
	}
	if opts.seed {
		price, err := decimal.NewFromString(opts.price)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("invalid --price %q", opts.price)
		}
		opts.raffle.TicketPrice = price
	}
	if opts.migrate == "" && !opts.reset && !opts.seed {
		return nil, fmt.Errorf("nothing to do: pass --migrate, --reset or --seed")
	}
	return opts, nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger("raffle-admin", "")

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer db.Close()

	if opts.reset {
		log.Info("SCHEMA", "Dropping tables...")
		if err := database.DropSchema(ctx, db); err != nil {
			log.Fatal("SCHEMA", err.Error())
		}
		log.Info("SCHEMA", "Creating tables...")
		if err := database.CreateSchema(ctx, db); err != nil {
			log.Fatal("SCHEMA", err.Error())
		}
	}

	switch opts.migrate {
	case "up":
		err = migrations.NewRunner(db, log).MigrateUp()
	case "down":
		err = migrations.NewRunner(db, log).MigrateDown()
	}
	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}

	if opts.seed {
		raffle := opts.raffle
		if err := (&raffledb.DB{Bun: db}).CreateRaffle(ctx, &raffle); err != nil {
			log.Fatal("SEED", fmt.Sprintf("Failed to seed raffle %s: %v", raffle.ID, err))
		}
		log.Info("SEED", fmt.Sprintf("Raffle %s created with %d tickets at %s", raffle.ID, raffle.TotalTickets, raffle.TicketPrice.StringFixed(2)))
	}

	log.Info("APP", "✅ Done.")
}
