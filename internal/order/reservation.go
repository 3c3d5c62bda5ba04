package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order/db"
	"ms-sorteos/internal/order/pricing"
	"ms-sorteos/internal/utils"
)

type ReservationRequest struct {
	RaffleID        string                `json:"raffle_id"`
	Client          models.ClientIdentity `json:"client"`
	Quantity        int                   `json:"quantity"`
	PackageID       string                `json:"package_id,omitempty"`
	PaymentMethodID string                `json:"payment_method_id"`
}

type Reservation struct {
	OrderID     string             `json:"order_id"`
	OrderCode   string             `json:"order_code"`
	Status      models.OrderStatus `json:"status"`
	Quantity    int                `json:"quantity"`
	TotalAmount float64            `json:"total_amount"`
	TicketCodes []string           `json:"ticket_codes"`
}

func (r ReservationRequest) validate() error {
	if r.PackageID == "" && r.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if strings.TrimSpace(r.Client.Name) == "" || strings.TrimSpace(r.Client.Email) == "" {
		return ErrInvalidClient
	}
	return nil
}

// CreateReservation creates a pending order holding exactly the requested
// number of randomly chosen tickets, or fails without leaving any state.
func (s *OrderService) CreateReservation(ctx context.Context, req ReservationRequest) (*Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	raffle, err := s.DB.Tickets.GetRaffle(ctx, req.RaffleID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle %s: %w", req.RaffleID, err)
	}
	if !raffle.IsPublished() {
		return nil, ErrRaffleNotPublished
	}

	var pkg *models.Package
	if req.PackageID != "" {
		pkg, err = s.DB.GetPackage(ctx, req.PackageID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageUnavailable
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load package %s: %w", req.PackageID, err)
		}
	}

	quote := pricing.Resolve(raffle, pkg, req.Quantity)
	if !quote.IsValid {
		if pkg != nil {
			return nil, fmt.Errorf("%w: %s", ErrPackageUnavailable, quote.Reason)
		}
		return nil, ErrInvalidQuantity
	}

	pm, err := s.DB.GetPaymentMethod(ctx, req.PaymentMethodID)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !pm.Active) {
		return nil, ErrPaymentMethodUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment method %s: %w", req.PaymentMethodID, err)
	}

	// Fast fail only. Availability can still change before the claim below.
	available, err := s.DB.Tickets.CountAvailable(ctx, raffle.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count available tickets: %w", err)
	}
	if available < quote.Quantity {
		return nil, &InsufficientInventoryError{Available: available, Requested: quote.Quantity}
	}

	order := models.Order{
		ID:              utils.GenerateUUID(),
		Code:            utils.GenerateOrderCode(),
		RaffleID:        raffle.ID,
		Quantity:        quote.Quantity,
		TotalAmount:     quote.Total,
		PaymentMethodID: pm.ID,
		PackageID:       quote.PackageID,
		Status:          models.OrderPending,
		CreatedAt:       s.now(),
	}

	var claimed []models.Ticket
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		client, err := tx.FindOrCreateClient(ctx, req.Client)
		if err != nil {
			return fmt.Errorf("find or create client: %w", err)
		}
		order.ClientID = client.ID

		if err := tx.CreateOrder(ctx, &order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		claimed, err = tx.Tickets.ClaimAvailable(ctx, raffle.ID, order.ID, order.Quantity, s.Options.ClaimRetryBudget)
		if err != nil {
			return err
		}
		if len(claimed) < order.Quantity {
			return &InsufficientInventoryError{Available: len(claimed), Requested: order.Quantity}
		}
		return nil
	})

	var inv *InsufficientInventoryError
	if errors.As(err, &inv) {
		s.Logger.LogOrder("RESERVE", order.ID, fmt.Sprintf("Rolled back: %v", inv))
		return nil, inv
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve tickets: %w", err)
	}

	codes := codesOf(claimed)
	sort.Strings(codes)
	s.Logger.LogOrder("RESERVE", order.ID, fmt.Sprintf("Order %s reserved %d tickets of raffle %s", order.Code, order.Quantity, raffle.ID))

	s.afterCommit(ctx, models.EventOrderReserved, &order, codes)

	return &Reservation{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		Status:      order.Status,
		Quantity:    order.Quantity,
		TotalAmount: order.TotalAmount,
		TicketCodes: codes,
	}, nil
}
