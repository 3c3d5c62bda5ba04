package tickets

import (
	"context"
	"fmt"

	"ms-sorteos/internal/models"
)

// Availability returns the raffle counters, served from the cache when fresh.
// Cache failures fall through to the database.
func (s *TicketService) Availability(ctx context.Context, raffleID string) (models.Availability, error) {
	if s.Cache != nil {
		a, ok, err := s.Cache.Get(ctx, raffleID)
		if err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Availability lookup for %s failed: %v", raffleID, err))
		} else if ok {
			return a, nil
		}
	}

	a, err := s.DB.Availability(ctx, raffleID)
	if err != nil {
		return models.Availability{}, fmt.Errorf("failed to count tickets for raffle %s: %w", raffleID, err)
	}
	if a.Total == 0 {
		if _, err := s.GetRaffle(ctx, raffleID); err != nil {
			return models.Availability{}, err
		}
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, a); err != nil {
			s.Logger.Warn("CACHE", fmt.Sprintf("Availability store for %s failed: %v", raffleID, err))
		}
	}
	return a, nil
}

// InvalidateAvailability drops the cached counters after inventory changes.
func (s *TicketService) InvalidateAvailability(ctx context.Context, raffleID string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, raffleID); err != nil {
		s.Logger.Warn("CACHE", fmt.Sprintf("Availability invalidation for %s failed: %v", raffleID, err))
	}
}

// TicketCodes lists the codes owned by an order in ascending order.
func (s *TicketService) TicketCodes(ctx context.Context, orderID string) ([]string, error) {
	tickets, err := s.DB.ByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tickets for order %s: %w", orderID, err)
	}
	codes := make([]string, len(tickets))
	for i, t := range tickets {
		codes[i] = t.Code
	}
	return codes, nil
}
