package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-sorteos/internal/models"
	"ms-sorteos/internal/utils"
)

const reasonPaymentExpired = "payment expired"

var ErrGatewayNotConfigured = errors.New("payment gateway is not configured")

type GatewayCheckout struct {
	OrderID      string    `json:"order_id"`
	ExternalID   string    `json:"external_id"`
	ClientSecret string    `json:"client_secret,omitempty"`
	Amount       float64   `json:"amount"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// StartGatewayPayment opens a gateway payment for a pending order and records
// the attempt that later confirmations are matched against.
func (s *OrderService) StartGatewayPayment(ctx context.Context, orderID string) (*GatewayCheckout, error) {
	if s.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	if order.Status != models.OrderPending {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("Cannot start payment for order %s with status %s", orderID, order.Status))
		return nil, ErrOrderNotPending
	}

	pm, err := s.DB.GetPaymentMethod(ctx, order.PaymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment method: %w", err)
	}
	if pm.Kind != models.PaymentGateway {
		return nil, ErrNotGatewayOrder
	}

	open, err := s.DB.OpenPaymentAttempt(ctx, order.ID, s.now())
	if err == nil {
		return s.resumeCheckout(ctx, open)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up open payment for order %s: %w", orderID, err)
	}

	payment, err := s.Gateway.CreatePayment(ctx, order)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Gateway rejected payment creation for order %s: %v", orderID, err))
		return nil, fmt.Errorf("failed to create gateway payment: %w", err)
	}

	now := s.now()
	attempt := &models.PaymentAttempt{
		ID:          utils.GenerateUUID(),
		OrderID:     order.ID,
		ExternalID:  payment.ExternalID,
		Status:      models.AttemptInit,
		Amount:      order.TotalAmount,
		ExpiresAt:   now.Add(s.Options.PaymentAttemptTTL),
		RawResponse: payment.Raw,
		CreatedAt:   now,
	}
	if err := s.DB.CreatePaymentAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to record payment attempt: %w", err)
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("Created payment %s for order %s (%.2f)", attempt.ExternalID, order.ID, order.TotalAmount))
	return &GatewayCheckout{
		OrderID:      order.ID,
		ExternalID:   attempt.ExternalID,
		ClientSecret: payment.ClientSecret,
		Amount:       attempt.Amount,
		ExpiresAt:    attempt.ExpiresAt,
	}, nil
}

// resumeCheckout hands back an attempt that is still open instead of opening a
// second gateway payment for the same order.
func (s *OrderService) resumeCheckout(ctx context.Context, attempt *models.PaymentAttempt) (*GatewayCheckout, error) {
	checkout := &GatewayCheckout{
		OrderID:    attempt.OrderID,
		ExternalID: attempt.ExternalID,
		Amount:     attempt.Amount,
		ExpiresAt:  attempt.ExpiresAt,
	}
	if resumer, ok := s.Gateway.(GatewayResumer); ok {
		payment, err := resumer.Resume(ctx, attempt.ExternalID)
		if err != nil {
			return nil, fmt.Errorf("failed to resume payment %s: %w", attempt.ExternalID, err)
		}
		checkout.ClientSecret = payment.ClientSecret
	}
	s.Logger.Info("PAYMENT", fmt.Sprintf("Reusing open payment %s for order %s", attempt.ExternalID, attempt.OrderID))
	return checkout, nil
}

// ConfirmGatewayPayment asks the gateway for the outcome of a payment and
// settles the order accordingly. It is safe to call any number of times.
func (s *OrderService) ConfirmGatewayPayment(ctx context.Context, externalID string) (*SettleResult, error) {
	if s.Gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	attempt, err := s.DB.GetPaymentAttemptByExternalID(ctx, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment attempt %s: %w", externalID, err)
	}

	confirmation, err := s.Gateway.Confirm(ctx, externalID)
	if err != nil {
		s.Logger.Error("PAYMENT", fmt.Sprintf("Gateway confirmation for %s failed: %v", externalID, err))
		return nil, fmt.Errorf("failed to confirm payment %s: %w", externalID, err)
	}

	if confirmation.Raw != "" {
		attempt.RawResponse = confirmation.Raw
		if err := s.DB.SaveAttemptResponse(ctx, attempt); err != nil {
			s.Logger.Warn("PAYMENT", fmt.Sprintf("Failed to store gateway response for %s: %v", externalID, err))
		}
	}

	req := SettleRequest{OrderID: attempt.OrderID, ExternalID: externalID}
	switch confirmation.Status {
	case GatewayApproved:
		req.Outcome = OutcomeApproved
	case GatewayDeclined:
		req.Outcome = OutcomeRejected
		req.Reason = confirmation.Reason
		if req.Reason == "" {
			req.Reason = "payment declined"
		}
	default:
		if !attempt.Expired(s.now()) {
			return s.pendingResult(ctx, attempt.OrderID)
		}
		if canceler, ok := s.Gateway.(GatewayCanceler); ok {
			if err := canceler.Cancel(ctx, externalID); err != nil {
				return nil, fmt.Errorf("failed to void expired payment %s: %w", externalID, err)
			}
		}
		if _, err := s.DB.OpenPaymentAttempt(ctx, attempt.OrderID, s.now()); err == nil {
			// A newer attempt still carries the order.
			if err := s.DB.SetAttemptStatus(ctx, externalID, models.AttemptFailed); err != nil {
				return nil, fmt.Errorf("failed to close expired payment %s: %w", externalID, err)
			}
			return s.pendingResult(ctx, attempt.OrderID)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to look up open payment for order %s: %w", attempt.OrderID, err)
		}
		req.Outcome = OutcomeCancelled
		req.Reason = reasonPaymentExpired
	}

	s.Logger.Info("PAYMENT", fmt.Sprintf("Payment %s is %s, settling order %s as %s", externalID, confirmation.Status, attempt.OrderID, req.Outcome))
	return s.Settle(ctx, req)
}

func (s *OrderService) pendingResult(ctx context.Context, orderID string) (*SettleResult, error) {
	order, err := s.DB.GetOrderByID(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return s.currentResult(ctx, order)
}
