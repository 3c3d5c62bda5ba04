package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order/db"
)

// Inventory is the read side of the ticket pool used after commits.
type Inventory interface {
	Availability(ctx context.Context, raffleID string) (models.Availability, error)
	InvalidateAvailability(ctx context.Context, raffleID string)
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

type Broadcaster interface {
	BroadcastAvailability(a models.Availability)
}

// Notifier sends the customer facing messages of a settlement, including the
// invoice on approval.
type Notifier interface {
	NotifySettlement(ctx context.Context, notice models.SettlementNotice) error
}

type Alerter interface {
	Alert(ctx context.Context, message string) error
}

type Dependencies struct {
	Inventory   Inventory
	Events      EventPublisher
	Broadcaster Broadcaster
	Notifier    Notifier
	Alerter     Alerter
	Gateway     Gateway
}

type Options struct {
	// ClaimRetryBudget bounds the extra compare-and-swap rounds on dialects
	// without SKIP LOCKED.
	ClaimRetryBudget  int
	PaymentAttemptTTL time.Duration
	// Clock defaults to time.Now.
	Clock func() time.Time
}

type OrderService struct {
	DB          *db.DB
	Inventory   Inventory
	Events      EventPublisher
	Broadcaster Broadcaster
	Notifier    Notifier
	Alerter     Alerter
	Gateway     Gateway
	Logger      *logger.Logger
	Options     Options

	now func() time.Time
}

func NewOrderService(store *db.DB, deps Dependencies, opts Options, log *logger.Logger) *OrderService {
	if log == nil {
		log = logger.Discard()
	}
	if opts.PaymentAttemptTTL <= 0 {
		opts.PaymentAttemptTTL = 30 * time.Minute
	}
	if opts.ClaimRetryBudget < 0 {
		opts.ClaimRetryBudget = 0
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &OrderService{
		DB:          store,
		Inventory:   deps.Inventory,
		Events:      deps.Events,
		Broadcaster: deps.Broadcaster,
		Notifier:    deps.Notifier,
		Alerter:     deps.Alerter,
		Gateway:     deps.Gateway,
		Logger:      log,
		Options:     opts,
		now:         opts.Clock,
	}
}

// OrderView is an order with its current tickets.
type OrderView struct {
	Order       *models.Order `json:"order"`
	TicketCodes []string      `json:"ticket_codes"`
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	order, err := s.DB.GetOrderByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", id, err)
	}

	tickets, err := s.DB.Tickets.ByOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load tickets for order %s: %w", id, err)
	}
	return &OrderView{Order: order, TicketCodes: codesOf(tickets)}, nil
}

func codesOf(tickets []models.Ticket) []string {
	codes := make([]string, len(tickets))
	for i, t := range tickets {
		codes[i] = t.Code
	}
	return codes
}

// afterCommit runs the best effort follow ups shared by reservation and
// settlement. Failures are logged and never returned.
func (s *OrderService) afterCommit(ctx context.Context, eventType string, order *models.Order, codes []string) {
	if s.Inventory != nil {
		s.Inventory.InvalidateAvailability(ctx, order.RaffleID)
	}

	if s.Events != nil {
		event := models.OrderEvent{
			Type:        eventType,
			OrderID:     order.ID,
			OrderCode:   order.Code,
			RaffleID:    order.RaffleID,
			Status:      order.Status,
			Quantity:    order.Quantity,
			TotalAmount: order.TotalAmount,
			TicketCodes: codes,
			Timestamp:   s.now(),
		}
		if err := s.Events.PublishOrderEvent(ctx, event); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish %s for order %s: %v", eventType, order.ID, err))
		}
	}

	if s.Broadcaster != nil && s.Inventory != nil {
		a, err := s.Inventory.Availability(ctx, order.RaffleID)
		if err != nil {
			s.Logger.Warn("SSE", fmt.Sprintf("Failed to read availability for raffle %s: %v", order.RaffleID, err))
			return
		}
		s.Broadcaster.BroadcastAvailability(a)
	}
}

func (s *OrderService) alert(ctx context.Context, message string) {
	if s.Alerter == nil {
		return
	}
	if err := s.Alerter.Alert(ctx, message); err != nil {
		s.Logger.Error("ALERT", fmt.Sprintf("Failed to alert admin: %v", err))
	}
}
