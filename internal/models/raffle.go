package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type RaffleStatus string

const (
	RaffleActive    RaffleStatus = "active"
	RaffleFinalized RaffleStatus = "finalized"
	RaffleCancelled RaffleStatus = "cancelled"
)

// Raffle is created by an external workflow; this service only reads it and
// flips it to finalized when a winner is declared.
type Raffle struct {
	bun.BaseModel `bun:"table:raffles"`

	ID           string          `bun:"id,pk" json:"id"`
	Name         string          `bun:"name,notnull" json:"name"`
	TotalTickets int             `bun:"total_tickets,notnull" json:"total_tickets"`
	TicketPrice  decimal.Decimal `bun:"ticket_price,type:decimal(12,2),notnull" json:"ticket_price"`
	HoldHours    int             `bun:"hold_hours,notnull" json:"hold_hours"`
	Status       RaffleStatus    `bun:"status,notnull" json:"status"`
	CreatedAt    time.Time       `bun:"created_at,notnull" json:"created_at"`
	FinalizedAt  time.Time       `bun:"finalized_at,nullzero" json:"finalized_at,omitempty"`
}

// AcceptsMutations reports whether ticket rows of the raffle may still change.
func (r *Raffle) AcceptsMutations() bool {
	return r.Status == RaffleActive
}

// ExpectedTotal is the price of count tickets.
func (r *Raffle) ExpectedTotal(count int) decimal.Decimal {
	return r.TicketPrice.Mul(decimal.NewFromInt(int64(count)))
}
