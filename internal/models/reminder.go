package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ReminderLogEntry marks a holder as already reminded for a raffle until the
// log of that raffle is reset.
type ReminderLogEntry struct {
	bun.BaseModel `bun:"table:recordatorios"`

	RaffleID string    `bun:"rifa_id,pk" json:"raffle_id"`
	HolderID string    `bun:"jugador_id,pk" json:"holder_id"`
	EntryID  string    `bun:"id,notnull" json:"id"`
	SentAt   time.Time `bun:"fecha_envio,notnull" json:"sent_at"`
}

// HolderGroup is every held number of one holder.
type HolderGroup struct {
	HolderID string   `json:"holder_id"`
	Numbers  []string `json:"numbers"`
}
