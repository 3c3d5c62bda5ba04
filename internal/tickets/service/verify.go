package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-sorteos/internal/models"
	qr "ms-sorteos/internal/tickets/qr_genrator"
)

var (
	ErrInvalidQR      = errors.New("invalid ticket qr code")
	ErrTicketNotFound = errors.New("ticket not found")
)

// TicketVerification is the outcome of checking a presented ticket QR code.
type TicketVerification struct {
	RaffleID   string             `json:"raffle_id"`
	TicketCode string             `json:"ticket_code"`
	OrderCode  string             `json:"order_code"`
	OrderID    string             `json:"order_id,omitempty"`
	State      models.TicketState `json:"state"`
	Valid      bool               `json:"valid"`
}

// VerifyTicket decrypts a ticket QR payload and reports whether the ticket is
// sold. Matching the order code is left to the caller, which owns orders.
func (s *TicketService) VerifyTicket(ctx context.Context, gen *qr.QRGenerator, token string) (*TicketVerification, error) {
	payload, err := gen.Decrypt(token)
	if err != nil || payload.RaffleID == "" || payload.TicketCode == "" {
		s.Logger.LogSecurity("QR_VERIFY", "Rejected undecryptable ticket code")
		return nil, ErrInvalidQR
	}

	ticket, err := s.DB.GetTicketByCode(ctx, payload.RaffleID, payload.TicketCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket %s: %w", payload.TicketCode, err)
	}

	return &TicketVerification{
		RaffleID:   ticket.RaffleID,
		TicketCode: ticket.Code,
		OrderCode:  payload.OrderCode,
		OrderID:    ticket.OrderID,
		State:      ticket.State,
		Valid:      ticket.State == models.TicketSold,
	}, nil
}
