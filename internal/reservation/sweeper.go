package reservation

import (
	"context"
	"fmt"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
)

type HoldWindowLister interface {
	ListActiveWithHoldWindow(ctx context.Context) ([]models.Raffle, error)
}

// Sweeper periodically releases holds that outlived their raffle's window.
type Sweeper struct {
	Engine   *Engine
	Raffles  HoldWindowLister
	Interval time.Duration
	Logger   *logger.Logger
}

func NewSweeper(engine *Engine, raffles HoldWindowLister, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{Engine: engine, Raffles: raffles, Interval: interval, Logger: log}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Logger.Info("SWEEPER", fmt.Sprintf("Hold sweeper started (every %s)", s.Interval))
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.Logger.Error("SWEEPER", fmt.Sprintf("Sweep failed: %v", err))
		}
		select {
		case <-ctx.Done():
			s.Logger.Info("SWEEPER", "Hold sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

// SweepOnce releases expired holds across all raffles with a hold window and
// returns how many numbers it freed. A failing raffle does not stop the others.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	raffles, err := s.Raffles.ListActiveWithHoldWindow(ctx)
	if err != nil {
		return 0, fmt.Errorf("list raffles with hold window: %w", err)
	}

	total := 0
	var firstErr error
	for _, raffle := range raffles {
		released, err := s.Engine.ReleaseExpired(ctx, raffle)
		total += len(released)
		if err != nil {
			s.Logger.Error("SWEEPER", fmt.Sprintf("Raffle %s: %v", raffle.ID, err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return total, firstErr
}
