package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID         string    `bun:"id,pk" json:"id"`
	Name       string    `bun:"name,notnull" json:"name"`
	Email      string    `bun:"email,notnull" json:"email"`
	Phone      string    `bun:"phone,notnull" json:"phone"`
	Address    string    `bun:"address,notnull" json:"address"`
	NationalID string    `bun:"national_id,notnull" json:"national_id"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ClientIdentity holds the fields that must all match for a client record to be reused.
type ClientIdentity struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	NationalID string `json:"national_id"`
}
