package ticketspace

import (
	"context"
	"fmt"

	"ms-raffle/internal/models"
)

type RaffleReader interface {
	GetRaffle(ctx context.Context, id string) (*models.Raffle, error)
}

type RecordReader interface {
	ListTickets(ctx context.Context, raffleID string) ([]models.TicketRecord, error)
}

// View is one materialization of a raffle. It is built per call and thrown
// away; nothing holds on to it between requests.
type View struct {
	Raffle  *models.Raffle
	Tickets []models.VirtualTicket
}

// Loader reads a raffle and its rows and materializes them.
type Loader struct {
	Raffles RaffleReader
	Records RecordReader
}

func (l *Loader) Load(ctx context.Context, raffleID string) (*View, error) {
	raffle, err := l.Raffles.GetRaffle(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	records, err := l.Records.ListTickets(ctx, raffleID)
	if err != nil {
		return nil, fmt.Errorf("list tickets of raffle %s: %w", raffleID, err)
	}
	return &View{
		Raffle:  raffle,
		Tickets: Materialize(raffle.TotalTickets, records),
	}, nil
}

// Ticket returns the slot for a formatted number.
func (v *View) Ticket(formatted string) (models.VirtualTicket, bool) {
	return Lookup(v.Tickets, formatted)
}
