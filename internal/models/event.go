package models

import "time"

const (
	EventOrderReserved  = "order.reserved"
	EventOrderApproved  = "order.approved"
	EventOrderRejected  = "order.rejected"
	EventOrderCancelled = "order.cancelled"
)

// SettledEventType maps a terminal status to its lifecycle event.
func SettledEventType(status OrderStatus) string {
	return "order." + string(status)
}

// OrderEvent is the payload published on the order lifecycle topics.
type OrderEvent struct {
	Type        string      `json:"type"`
	OrderID     string      `json:"order_id"`
	OrderCode   string      `json:"order_code"`
	RaffleID    string      `json:"raffle_id"`
	Status      OrderStatus `json:"status"`
	Quantity    int         `json:"quantity"`
	TotalAmount float64     `json:"total_amount"`
	TicketCodes []string    `json:"ticket_codes,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// SettlementNotice is handed to the notification step after an order settles.
type SettlementNotice struct {
	Order       Order
	Client      Client
	Raffle      Raffle
	TicketCodes []string
	Winners     []PrizeWin
}
