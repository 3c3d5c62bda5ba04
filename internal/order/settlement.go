package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order/db"
	"ms-sorteos/internal/order/pricing"
	"ms-sorteos/internal/utils"
)

type SettleRequest struct {
	OrderID    string  `json:"order_id"`
	Outcome    Outcome `json:"outcome"`
	ExternalID string  `json:"external_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

type SettleResult struct {
	OrderID     string             `json:"order_id"`
	OrderCode   string             `json:"order_code"`
	Status      models.OrderStatus `json:"status"`
	Reason      string             `json:"reason,omitempty"`
	TicketCodes []string           `json:"ticket_codes"`
	Winners     []models.PrizeWin  `json:"winners,omitempty"`
	Replayed    bool               `json:"replayed"`
}

// Settle moves a pending order to its terminal status exactly once. Settling
// an order again with the same outcome returns the stored result; a different
// outcome returns the stored result with ErrAlreadySettled. Neither repeats
// side effects.
func (s *OrderService) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	if !req.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, req.Outcome)
	}

	var (
		order  *models.Order
		action Action
		codes  []string
	)
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, req.OrderID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}

		action = Transition(order.Status, req.Outcome)
		if action != Apply {
			action, err = closeLateAttempt(ctx, tx, order, req, action)
			return err
		}

		codes, err = s.applyOutcome(ctx, tx, order, req)
		return err
	})

	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		s.Logger.Error("SETTLE", mismatch.Error())
		s.alert(ctx, fmt.Sprintf("Invariant violation while settling order %s as %s: %v", req.OrderID, req.Outcome, mismatch))
		return nil, mismatch
	}
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to settle order %s: %w", req.OrderID, err)
	}

	if action != Apply {
		return s.replay(ctx, order, req, action)
	}

	s.Logger.LogOrder("SETTLE", order.ID, fmt.Sprintf("Order %s settled as %s", order.Code, order.Status))

	result := &SettleResult{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		Status:      order.Status,
		Reason:      order.StatusReason,
		TicketCodes: []string{},
	}
	if order.Status == models.OrderApproved {
		result.TicketCodes = codes
		if result.Winners, err = s.DB.WinnersByOrder(ctx, order.ID); err != nil {
			s.Logger.Warn("SETTLE", fmt.Sprintf("Failed to load winners for order %s: %v", order.ID, err))
		}
	}

	s.notify(ctx, order, result)
	s.afterCommit(ctx, models.SettledEventType(order.Status), order, result.TicketCodes)
	return result, nil
}

// applyOutcome performs the ticket and order transitions inside tx and returns
// the codes of the tickets the order held.
func (s *OrderService) applyOutcome(ctx context.Context, tx *db.DB, order *models.Order, req SettleRequest) ([]string, error) {
	reserved, err := tx.Tickets.ReservedByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("load reserved tickets: %w", err)
	}
	if len(reserved) != order.Quantity {
		return nil, &MismatchError{OrderID: order.ID, Expected: order.Quantity, Found: len(reserved)}
	}

	if req.Outcome == OutcomeApproved {
		n, err := tx.Tickets.MarkSoldByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("mark tickets sold: %w", err)
		}
		if n != order.Quantity {
			return nil, &MismatchError{OrderID: order.ID, Expected: order.Quantity, Found: n}
		}

		unit := pricing.UnitPrice(order.TotalAmount, order.Quantity)
		items := make([]models.OrderItem, len(reserved))
		for i, t := range reserved {
			items[i] = models.OrderItem{
				ID:        utils.GenerateUUID(),
				OrderID:   order.ID,
				TicketID:  t.ID,
				UnitPrice: unit,
			}
		}
		if err := tx.CreateOrderItems(ctx, items); err != nil {
			return nil, fmt.Errorf("create order items: %w", err)
		}
	} else {
		n, err := tx.Tickets.ReleaseByOrder(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("release tickets: %w", err)
		}
		if n != order.Quantity {
			return nil, &MismatchError{OrderID: order.ID, Expected: order.Quantity, Found: n}
		}
	}

	if req.ExternalID != "" {
		status := models.AttemptFailed
		if req.Outcome == OutcomeApproved {
			status = models.AttemptApproved
		}
		if err := tx.SetAttemptStatus(ctx, req.ExternalID, status); err != nil {
			return nil, fmt.Errorf("update payment attempt: %w", err)
		}
	}

	order.Status = req.Outcome.Status()
	order.StatusReason = req.Reason
	order.SettledAt = s.now()
	if err := tx.SettleOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return codesOf(reserved), nil
}

// closeLateAttempt fails a gateway attempt that reports after its order
// closed. An approval from any attempt other than the one that approved the
// order is a second charge and turns a replay into a conflict.
func closeLateAttempt(ctx context.Context, tx *db.DB, order *models.Order, req SettleRequest, action Action) (Action, error) {
	if req.ExternalID == "" {
		return action, nil
	}
	attempt, err := tx.GetPaymentAttemptByExternalID(ctx, req.ExternalID)
	if errors.Is(err, sql.ErrNoRows) {
		return action, nil
	}
	if err != nil {
		return action, fmt.Errorf("load payment attempt: %w", err)
	}
	if attempt.OrderID != order.ID || attempt.Status == models.AttemptApproved {
		return action, nil
	}

	if err := tx.SetAttemptStatus(ctx, req.ExternalID, models.AttemptFailed); err != nil {
		return action, fmt.Errorf("close payment attempt: %w", err)
	}
	if action == Replay && req.Outcome == OutcomeApproved {
		return Conflict, nil
	}
	return action, nil
}

// replay rebuilds the stored result of an already settled order.
func (s *OrderService) replay(ctx context.Context, order *models.Order, req SettleRequest, action Action) (*SettleResult, error) {
	result, err := s.currentResult(ctx, order)
	if err != nil {
		return nil, err
	}
	result.Replayed = true

	if action == Replay {
		s.Logger.LogOrder("SETTLE", order.ID, fmt.Sprintf("Replayed %s settlement", order.Status))
		return result, nil
	}

	s.Logger.Warn("SETTLE", fmt.Sprintf("Order %s is %s, refusing %s", order.ID, order.Status, req.Outcome))
	if req.Outcome == OutcomeApproved && req.ExternalID != "" {
		s.alert(ctx, fmt.Sprintf("Gateway approved payment %s for order %s which is already %s. Refund may be required.", req.ExternalID, order.Code, order.Status))
	}
	return result, ErrAlreadySettled
}

func (s *OrderService) currentResult(ctx context.Context, order *models.Order) (*SettleResult, error) {
	tickets, err := s.DB.Tickets.ByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets for order %s: %w", order.ID, err)
	}

	result := &SettleResult{
		OrderID:     order.ID,
		OrderCode:   order.Code,
		Status:      order.Status,
		Reason:      order.StatusReason,
		TicketCodes: codesOf(tickets),
	}
	if order.Status == models.OrderApproved {
		if result.Winners, err = s.DB.WinnersByOrder(ctx, order.ID); err != nil {
			return nil, fmt.Errorf("failed to load winners for order %s: %w", order.ID, err)
		}
	}
	return result, nil
}

// notify sends the settlement messages once. Failures are logged and alerted,
// never retried.
func (s *OrderService) notify(ctx context.Context, order *models.Order, result *SettleResult) {
	if s.Notifier == nil {
		return
	}

	notice := models.SettlementNotice{
		Order:       *order,
		TicketCodes: result.TicketCodes,
		Winners:     result.Winners,
	}

	client, err := s.DB.GetClient(ctx, order.ClientID)
	if err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Failed to load client for order %s: %v", order.ID, err))
		s.alert(ctx, fmt.Sprintf("Order %s settled as %s but the customer could not be notified: %v", order.Code, order.Status, err))
		return
	}
	notice.Client = *client

	raffle, err := s.DB.Tickets.GetRaffle(ctx, order.RaffleID)
	if err != nil {
		s.Logger.Warn("NOTIFY", fmt.Sprintf("Failed to load raffle for order %s: %v", order.ID, err))
	} else {
		notice.Raffle = *raffle
	}

	if err := s.Notifier.NotifySettlement(ctx, notice); err != nil {
		s.Logger.Error("NOTIFY", fmt.Sprintf("Notification for order %s failed: %v", order.ID, err))
		s.alert(ctx, fmt.Sprintf("Order %s settled as %s but notification failed: %v", order.Code, order.Status, err))
		return
	}
	s.Logger.LogOrder("NOTIFY", order.ID, "Customer notified")
}

// CancelOrder releases a pending order's tickets on the customer's request.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) (*SettleResult, error) {
	if reason == "" {
		reason = "cancelled by customer"
	}
	return s.Settle(ctx, SettleRequest{OrderID: orderID, Outcome: OutcomeCancelled, Reason: reason})
}
