package models

import (
	"github.com/uptrace/bun"
)

type TicketState string

const (
	TicketAvailable TicketState = "available"
	TicketReserved  TicketState = "reserved"
	TicketSold      TicketState = "sold"
)

// Ticket is one numbered unit of a raffle. OrderID is set iff the ticket is
// reserved or sold.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID       string      `bun:"id,pk" json:"id"`
	RaffleID string      `bun:"raffle_id,notnull,unique:raffle_code" json:"raffle_id"`
	Code     string      `bun:"code,notnull,unique:raffle_code" json:"code"`
	State    TicketState `bun:"state,notnull" json:"state"`
	OrderID  string      `bun:"order_id,nullzero" json:"order_id,omitempty"`
}

// Availability is the read-only counter view of a raffle's inventory.
type Availability struct {
	RaffleID  string `json:"raffle_id"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Reserved  int    `json:"reserved"`
	Sold      int    `json:"sold"`
}
