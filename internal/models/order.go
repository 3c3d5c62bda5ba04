package models

import (
	"time"

	"github.com/uptrace/bun"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderRejected  OrderStatus = "rejected"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderApproved, OrderRejected, OrderCancelled:
		return true
	}
	return false
}

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID              string      `bun:"id,pk" json:"id"`
	Code            string      `bun:"code,notnull,unique" json:"code"`
	ClientID        string      `bun:"client_id,notnull" json:"client_id"`
	RaffleID        string      `bun:"raffle_id,notnull" json:"raffle_id"`
	Quantity        int         `bun:"quantity,notnull" json:"quantity"`
	TotalAmount     float64     `bun:"total_amount,notnull" json:"total_amount"`
	PaymentMethodID string      `bun:"payment_method_id,notnull" json:"payment_method_id"`
	PackageID       string      `bun:"package_id,nullzero" json:"package_id,omitempty"`
	Status          OrderStatus `bun:"status,notnull" json:"status"`
	StatusReason    string      `bun:"status_reason,nullzero" json:"status_reason,omitempty"`
	ProofPath       string      `bun:"proof_path,nullzero" json:"proof_path,omitempty"`
	CreatedAt       time.Time   `bun:"created_at,notnull" json:"created_at"`
	SettledAt       time.Time   `bun:"settled_at,nullzero" json:"settled_at,omitempty"`
}

// OrderItem is the durable record of a ticket sold under an approved order.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items"`

	ID        string  `bun:"id,pk" json:"id"`
	OrderID   string  `bun:"order_id,notnull,unique:order_ticket" json:"order_id"`
	TicketID  string  `bun:"ticket_id,notnull,unique:order_ticket" json:"ticket_id"`
	UnitPrice float64 `bun:"unit_price,notnull" json:"unit_price"`
}

// Invoice references the generated receipt of an approved order.
type Invoice struct {
	bun.BaseModel `bun:"table:invoices"`

	ID        string    `bun:"id,pk" json:"id"`
	OrderID   string    `bun:"order_id,notnull,unique" json:"order_id"`
	Number    string    `bun:"number,notnull,unique" json:"number"`
	Amount    float64   `bun:"amount,notnull" json:"amount"`
	FilePath  string    `bun:"file_path,notnull" json:"file_path"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
