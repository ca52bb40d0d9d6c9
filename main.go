package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ms-raffle/internal/config"
	"ms-raffle/internal/database"
	"ms-raffle/internal/database/migrations"
	"ms-raffle/internal/kafka"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/metrics"
	"ms-raffle/internal/models"
	"ms-raffle/internal/notify"
	raffledb "ms-raffle/internal/raffles/db"
	"ms-raffle/internal/raffles/raffle_api"
	"ms-raffle/internal/receipt"
	"ms-raffle/internal/reminders"
	reminderdb "ms-raffle/internal/reminders/db"
	"ms-raffle/internal/reservation"
	ticketdb "ms-raffle/internal/reservation/db"
	"ms-raffle/internal/sse"
	"ms-raffle/internal/winner"
	winnerdb "ms-raffle/internal/winner/db"
)

// disabledSender is the reminder Sender when Kafka is off.
type disabledSender struct{}

func (disabledSender) SendReminder(context.Context, models.ReminderRequest) error {
	return errors.New("reminder delivery is disabled (KAFKA_ENABLED=false)")
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, ticket events stay local: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	log := logger.NewLogger("raffle-service", cfg.Log.Dir)
	defer log.Close()
	log.SetLevel(logger.ParseLevel(cfg.Log.Level))
	log.Info("APP", "Starting Raffle Service initialization")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(bunDB, log).MigrateUp(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Failed to migrate schema: %v", err))
		}
	}

	raffles := &raffledb.DB{Bun: bunDB}
	tickets := &ticketdb.DB{Bun: bunDB}

	emitter := sse.NewTicketEventEmitter()
	appMetrics := metrics.New()
	events := notify.Fanout{appMetrics}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = connectRedis(ctx, cfg.Redis, log)
	}
	if redisClient != nil {
		defer redisClient.Close()
		events = append(events, notify.NewBridge(redisClient, log))
	} else {
		events = append(events, notify.Local{Emitter: emitter})
	}

	var sender reminders.Sender = disabledSender{}
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.TicketEvents, cfg.Kafka.Topics.ReminderRequests, cfg.Kafka.Topics.DrawResults}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		events = append(events, producer)
		sender = producer
		log.Info("KAFKA", "Kafka producer initialized successfully")
	}

	engine := reservation.NewEngine(raffles, tickets, events, log)
	reminderService := reminders.NewService(raffles, tickets, &reminderdb.DB{Bun: bunDB}, sender, log)
	selector := winner.NewSelector(raffles, tickets, &winnerdb.DB{Bun: bunDB}, events, log)
	sealer, err := receipt.NewSealer(cfg.Receipts.Secret)
	if err != nil {
		log.Fatal("APP", fmt.Sprintf("Failed to set up receipt sealing: %v", err))
	}

	var wg sync.WaitGroup
	run := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.Info("APP", fmt.Sprintf("%s stopped", name))
		}()
	}

	if cfg.Holds.Enabled {
		sweeper := reservation.NewSweeper(engine, raffles, cfg.Holds.SweepInterval, log)
		run("hold sweeper", func() { sweeper.Run(ctx) })
	}
	if redisClient != nil {
		bridge := notify.NewBridge(redisClient, log)
		run("redis listener", func() {
			if err := bridge.Listen(ctx, emitter); err != nil {
				log.Error("REDIS", fmt.Sprintf("Ticket event listener failed: %v", err))
			}
		})
	}
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.DrawResults, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		run("draw results consumer", func() {
			if err := consumer.Run(ctx, selector.HandleDrawResult); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Draw results consumer failed: %v", err))
			}
		})
	}

	handler := raffle_api.NewHandler(engine, reminderService, selector, receipt.NewService(raffles, tickets, sealer), emitter, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(appMetrics.Middleware)
	r.Use(requestLogger(log))

	r.Get("/healthz", raffle_api.Health)
	r.Handle("/metrics", appMetrics.Handler())
	handler.RegisterRoutes(r)
	log.Info("ROUTER", "Raffle routes registered under /api/raffles/{raffleID}")

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Raffle Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}
	wg.Wait()
	log.Info("APP", "Server gracefully stopped")
}
