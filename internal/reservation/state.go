package reservation

import (
	"fmt"

	"ms-raffle/internal/models"
)

// transitions lists every legal move of a ticket. Family is reachable from
// any state and only leaves back to available.
var transitions = map[models.TicketStatus][]models.TicketStatus{
	models.TicketAvailable: {models.TicketHeld, models.TicketFamily},
	models.TicketHeld:      {models.TicketPaid, models.TicketAvailable, models.TicketFamily},
	models.TicketPaid:      {models.TicketAvailable, models.TicketFamily},
	models.TicketFamily:    {models.TicketAvailable, models.TicketFamily},
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to models.TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition is CanTransition as an error.
func CheckTransition(number string, from, to models.TicketStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", models.ErrInvalidTransition, number, from, to)
	}
	return nil
}
