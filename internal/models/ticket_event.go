package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TicketEventType string

const (
	EventTicketsReserved TicketEventType = "tickets.reserved"
	EventTicketsPaid     TicketEventType = "tickets.paid"
	EventTicketsReleased TicketEventType = "tickets.released"
	EventTicketsFamily   TicketEventType = "tickets.family"
	EventWinnerDeclared  TicketEventType = "winner.declared"
)

// TicketEvent is published after every successful mutation of a raffle's
// tickets. Amount is only set on payment events; the abono ledger consumes it.
type TicketEvent struct {
	ID         string           `json:"id"`
	Type       TicketEventType  `json:"type"`
	RaffleID   string           `json:"raffle_id"`
	HolderID   string           `json:"holder_id,omitempty"`
	Numbers    []string         `json:"numbers"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewTicketEvent stamps a fresh id and timestamp.
func NewTicketEvent(eventType TicketEventType, raffleID, holderID string, numbers []string) TicketEvent {
	return TicketEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		RaffleID:   raffleID,
		HolderID:   holderID,
		Numbers:    numbers,
		OccurredAt: time.Now().UTC(),
	}
}

// ReminderRequest is handed to the messaging service that owns the outbound
// channel.
type ReminderRequest struct {
	ID          string    `json:"id"`
	RaffleID    string    `json:"raffle_id"`
	HolderID    string    `json:"holder_id"`
	HolderName  string    `json:"holder_name,omitempty"`
	Contact     string    `json:"contact,omitempty"`
	Numbers     []string  `json:"numbers"`
	Message     string    `json:"message"`
	RequestedAt time.Time `json:"requested_at"`
}

// DrawResult is the official draw outcome for a raffle, consumed from Kafka.
type DrawResult struct {
	RaffleID string `json:"raffle_id"`
	Number   string `json:"number"`
}
