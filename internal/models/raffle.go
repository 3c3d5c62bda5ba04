package models

import (
	"time"

	"github.com/uptrace/bun"
)

type RaffleStatus string

const (
	RaffleDraft     RaffleStatus = "draft"
	RafflePublished RaffleStatus = "published"
)

// Raffle is a single draw with a fixed pool of numbered tickets.
type Raffle struct {
	bun.BaseModel `bun:"table:raffles"`

	ID             string       `bun:"id,pk" json:"id"`
	Name           string       `bun:"name,notnull" json:"name"`
	Digits         int          `bun:"digits,notnull" json:"digits"`
	TotalTickets   int          `bun:"total_tickets,notnull" json:"total_tickets"`
	PricePerTicket float64      `bun:"price_per_ticket,notnull" json:"price_per_ticket"`
	Status         RaffleStatus `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time    `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time    `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

func (r *Raffle) IsPublished() bool {
	return r.Status == RafflePublished
}

// Package is a predefined (quantity, price) bundle offered for a raffle.
type Package struct {
	bun.BaseModel `bun:"table:packages"`

	ID        string  `bun:"id,pk" json:"id"`
	RaffleID  string  `bun:"raffle_id,notnull" json:"raffle_id"`
	Quantity  int     `bun:"quantity,notnull" json:"quantity"`
	Price     float64 `bun:"price,notnull" json:"price"`
	Published bool    `bun:"published,notnull" json:"published"`
}

// Prize is read-only for the reservation and settlement workflow. TicketID is set
// by the separate random assignment step.
type Prize struct {
	bun.BaseModel `bun:"table:prizes"`

	ID          string `bun:"id,pk" json:"id"`
	RaffleID    string `bun:"raffle_id,notnull" json:"raffle_id"`
	Description string `bun:"description,notnull" json:"description"`
	TicketID    string `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
}

// PrizeWin pairs a sold ticket code with the prize assigned to it.
type PrizeWin struct {
	TicketCode  string `bun:"ticket_code" json:"ticket_code"`
	Description string `bun:"description" json:"description"`
}
