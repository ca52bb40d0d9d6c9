package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketHeld      TicketStatus = "held"
	TicketPaid      TicketStatus = "paid"
	TicketFamily    TicketStatus = "family"
)

// ParseTicketStatus accepts the API spelling of a status.
func ParseTicketStatus(s string) (TicketStatus, bool) {
	switch status := TicketStatus(s); status {
	case TicketAvailable, TicketHeld, TicketPaid, TicketFamily:
		return status, true
	}
	return "", false
}

// Values stored in the estado column. Available has no stored value: it is
// the absence of a row.
const (
	estadoApartado   = "apartado"
	estadoPagado     = "pagado"
	estadoFamiliares = "familiares"
)

// Value implements driver.Valuer so that bun writes the persisted spelling.
func (s TicketStatus) Value() (driver.Value, error) {
	switch s {
	case TicketHeld:
		return estadoApartado, nil
	case TicketPaid:
		return estadoPagado, nil
	case TicketFamily:
		return estadoFamiliares, nil
	}
	return nil, fmt.Errorf("ticket status %q is not persistable", string(s))
}

// Scan implements sql.Scanner.
func (s *TicketStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*s = TicketAvailable
		return nil
	default:
		return fmt.Errorf("cannot scan %T into TicketStatus", src)
	}
	switch raw {
	case estadoApartado:
		*s = TicketHeld
	case estadoPagado:
		*s = TicketPaid
	case estadoFamiliares:
		*s = TicketFamily
	default:
		return fmt.Errorf("unknown estado %q", raw)
	}
	return nil
}

// TicketRecord is a persisted, non-available ticket. (raffle_id, number) is
// the primary key and the arbiter of who got a number first.
type TicketRecord struct {
	bun.BaseModel `bun:"table:boletos"`

	RaffleID string       `bun:"rifa_id,pk" json:"raffle_id"`
	Number   string       `bun:"numero,pk" json:"number"`
	HolderID string       `bun:"jugador_id,nullzero" json:"holder_id,omitempty"`
	Status   TicketStatus `bun:"estado,notnull" json:"status"`
	HeldAt   time.Time    `bun:"fecha_apartado,nullzero" json:"held_at,omitempty"`
	PaidAt   time.Time    `bun:"fecha_pago,nullzero" json:"paid_at,omitempty"`
}

// VirtualTicket is one slot of a materialized ticket space. Never persisted.
type VirtualTicket struct {
	Number          int          `json:"number"`
	FormattedNumber string       `json:"formatted_number"`
	Status          TicketStatus `json:"status"`
	HolderID        string       `json:"holder_id,omitempty"`
}
