// Package winner declares the one winning number of a raffle.
package winner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/ticketnum"
	"ms-raffle/internal/ticketspace"
)

type Store interface {
	GetWinner(ctx context.Context, raffleID string) (*models.Winner, error)
	InsertWinner(ctx context.Context, winner models.Winner) error
}

type EventPublisher interface {
	PublishTicketEvent(ctx context.Context, event models.TicketEvent) error
}

type Selector struct {
	Loader  *ticketspace.Loader
	Winners Store
	Events  EventPublisher
	Logger  *logger.Logger
	Now     func() time.Time
}

func NewSelector(raffles ticketspace.RaffleReader, records ticketspace.RecordReader, winners Store, events EventPublisher, log *logger.Logger) *Selector {
	return &Selector{
		Loader:  &ticketspace.Loader{Raffles: raffles, Records: records},
		Winners: winners,
		Events:  events,
		Logger:  log,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// DeclareWinner makes number the winner of the raffle and finalizes it. Only
// a paid ticket can win. Two concurrent declarations race on the winner
// table's key; exactly one of them succeeds.
func (s *Selector) DeclareWinner(ctx context.Context, raffleID, number string) (*models.Winner, error) {
	existing, err := s.Winners.GetWinner(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("get winner of %s: %w", raffleID, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s won with %s", models.ErrWinnerAlreadyExists, raffleID, existing.Number)
	}

	view, err := s.Loader.Load(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	switch view.Raffle.Status {
	case models.RaffleFinalized:
		// only a declared winner finalizes a raffle
		return nil, fmt.Errorf("%w: %s is finalized", models.ErrWinnerAlreadyExists, raffleID)
	case models.RaffleCancelled:
		return nil, fmt.Errorf("%w: %s", models.ErrRaffleCancelled, raffleID)
	}

	formatted, err := ticketnum.Canonical(number, view.Raffle.TotalTickets)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", models.ErrNumberNotFound, number)
	}
	ticket, ok := view.Ticket(formatted)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNumberNotFound, formatted)
	}
	if ticket.Status != models.TicketPaid {
		return nil, fmt.Errorf("%w: %s is %s", models.ErrTicketNotEligible, formatted, ticket.Status)
	}

	winner := models.Winner{
		RaffleID:   raffleID,
		Number:     formatted,
		HolderID:   ticket.HolderID,
		DeclaredAt: s.Now(),
	}
	if err := s.Winners.InsertWinner(ctx, winner); err != nil {
		if errors.Is(err, models.ErrWinnerAlreadyExists) {
			s.Logger.Warn("WINNER", fmt.Sprintf("Lost winner race on raffle %s with %s", raffleID, formatted))
			return nil, err
		}
		return nil, fmt.Errorf("declare winner %s/%s: %w", raffleID, formatted, err)
	}

	s.Logger.LogTicket("WINNER", raffleID, fmt.Sprintf("%s wins (holder=%s), raffle finalized", formatted, winner.HolderID))
	if s.Events != nil {
		event := models.NewTicketEvent(models.EventWinnerDeclared, raffleID, winner.HolderID, []string{formatted})
		if err := s.Events.PublishTicketEvent(ctx, event); err != nil {
			s.Logger.Error("EVENTS", fmt.Sprintf("Failed to publish winner of %s: %v", raffleID, err))
		}
	}
	return &winner, nil
}

// GetWinner returns the declared winner or ErrNoWinner.
func (s *Selector) GetWinner(ctx context.Context, raffleID string) (*models.Winner, error) {
	if _, err := s.Loader.Raffles.GetRaffle(ctx, raffleID); err != nil {
		return nil, err
	}
	winner, err := s.Winners.GetWinner(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("get winner of %s: %w", raffleID, err)
	}
	if winner == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrNoWinner, raffleID)
	}
	return winner, nil
}

// HandleDrawResult applies an official draw result. A redelivered result that
// names the winner already on record is accepted.
func (s *Selector) HandleDrawResult(ctx context.Context, result models.DrawResult) error {
	_, err := s.DeclareWinner(ctx, result.RaffleID, result.Number)
	if !errors.Is(err, models.ErrWinnerAlreadyExists) {
		return err
	}

	existing, getErr := s.Winners.GetWinner(ctx, result.RaffleID)
	raffle, raffleErr := s.Loader.Raffles.GetRaffle(ctx, result.RaffleID)
	if getErr != nil || raffleErr != nil || existing == nil {
		return err
	}
	if formatted, fmtErr := ticketnum.Canonical(result.Number, raffle.TotalTickets); fmtErr == nil && formatted == existing.Number {
		s.Logger.Info("WINNER", fmt.Sprintf("Draw result for raffle %s already applied", result.RaffleID))
		return nil
	}
	return err
}
