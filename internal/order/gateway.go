package order

import (
	"context"

	"ms-sorteos/internal/models"
)

type GatewayStatus string

const (
	GatewayPending  GatewayStatus = "pending"
	GatewayApproved GatewayStatus = "approved"
	GatewayDeclined GatewayStatus = "declined"
)

// GatewayPayment is what the customer needs to complete a card payment.
type GatewayPayment struct {
	ExternalID   string
	ClientSecret string
	Raw          string
}

type GatewayConfirmation struct {
	ExternalID string
	Status     GatewayStatus
	Reason     string
	Raw        string
}

// Gateway is a third party payment processor. Calls may be slow and are made
// outside any database transaction.
type Gateway interface {
	CreatePayment(ctx context.Context, order *models.Order) (*GatewayPayment, error)
	Confirm(ctx context.Context, externalID string) (*GatewayConfirmation, error)
}

// GatewayCanceler is implemented by gateways that can void an open payment.
type GatewayCanceler interface {
	Cancel(ctx context.Context, externalID string) error
}

// GatewayResumer is implemented by gateways that can hand back the checkout of
// a payment that is still open.
type GatewayResumer interface {
	Resume(ctx context.Context, externalID string) (*GatewayPayment, error)
}
