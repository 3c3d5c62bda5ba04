package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethodKind string

const (
	PaymentTransfer PaymentMethodKind = "transfer"
	PaymentGateway  PaymentMethodKind = "gateway"
)

type PaymentMethod struct {
	bun.BaseModel `bun:"table:payment_methods"`

	ID     string            `bun:"id,pk" json:"id"`
	Name   string            `bun:"name,notnull" json:"name"`
	Kind   PaymentMethodKind `bun:"kind,notnull" json:"kind"`
	Active bool              `bun:"active,notnull" json:"active"`
}

type PaymentAttemptStatus string

const (
	AttemptInit     PaymentAttemptStatus = "init"
	AttemptApproved PaymentAttemptStatus = "approved"
	AttemptFailed   PaymentAttemptStatus = "failed"
)

// PaymentAttempt tracks one gateway transaction. ExternalID is unique and is the
// key used to deduplicate gateway callbacks.
type PaymentAttempt struct {
	bun.BaseModel `bun:"table:payment_attempts"`

	ID          string               `bun:"id,pk" json:"id"`
	OrderID     string               `bun:"order_id,notnull" json:"order_id"`
	ExternalID  string               `bun:"external_id,notnull,unique" json:"external_id"`
	Status      PaymentAttemptStatus `bun:"status,notnull" json:"status"`
	Amount      float64              `bun:"amount,notnull" json:"amount"`
	ExpiresAt   time.Time            `bun:"expires_at,notnull" json:"expires_at"`
	RawResponse string               `bun:"raw_response,type:text" json:"-"`
	CreatedAt   time.Time            `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time            `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

func (p *PaymentAttempt) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
