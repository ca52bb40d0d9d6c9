package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Winner struct {
	bun.BaseModel `bun:"table:ganadores"`

	RaffleID   string    `bun:"rifa_id,pk" json:"raffle_id"`
	Number     string    `bun:"numero_ganador,notnull" json:"number"`
	HolderID   string    `bun:"jugador_id,nullzero" json:"holder_id,omitempty"`
	DeclaredAt time.Time `bun:"fecha,notnull" json:"declared_at"`
}
