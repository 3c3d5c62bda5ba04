package tickets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/tickets/db"
	"ms-sorteos/internal/utils"
)

var (
	ErrRaffleNotFound = errors.New("raffle not found")
	ErrInvalidRaffle  = errors.New("invalid raffle")
)

type AvailabilityCache interface {
	Get(ctx context.Context, raffleID string) (models.Availability, bool, error)
	Set(ctx context.Context, a models.Availability) error
	Invalidate(ctx context.Context, raffleID string) error
}

type TicketService struct {
	DB     *db.DB
	Cache  AvailabilityCache
	Logger *logger.Logger
}

func NewTicketService(store *db.DB, cache AvailabilityCache, log *logger.Logger) *TicketService {
	if log == nil {
		log = logger.Discard()
	}
	return &TicketService{DB: store, Cache: cache, Logger: log}
}

type PackageOption struct {
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Published bool    `json:"published"`
}

type CreateRaffleRequest struct {
	Name           string        `json:"name"`
	Digits         int           `json:"digits"`
	PricePerTicket float64       `json:"price_per_ticket"`
	Packages       []PackageOption `json:"packages,omitempty"`
	Prizes         []string      `json:"prizes,omitempty"`
}

func (r CreateRaffleRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRaffle)
	}
	if r.Digits < 1 || r.Digits > db.MaxDigits {
		return fmt.Errorf("%w: digits must be between 1 and %d", ErrInvalidRaffle, db.MaxDigits)
	}
	if r.PricePerTicket <= 0 {
		return fmt.Errorf("%w: price_per_ticket must be positive", ErrInvalidRaffle)
	}
	total := totalTickets(r.Digits)
	for _, p := range r.Packages {
		if p.Quantity < 1 || p.Quantity > total {
			return fmt.Errorf("%w: package quantity %d out of range", ErrInvalidRaffle, p.Quantity)
		}
		if p.Price <= 0 {
			return fmt.Errorf("%w: package price must be positive", ErrInvalidRaffle)
		}
	}
	return nil
}

func totalTickets(digits int) int {
	total := 1
	for i := 0; i < digits; i++ {
		total *= 10
	}
	return total
}

// CreateRaffle creates a draft raffle with its whole ticket pool, packages and
// prizes in one transaction.
func (s *TicketService) CreateRaffle(ctx context.Context, req CreateRaffleRequest) (*models.Raffle, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	raffle := &models.Raffle{
		ID:             utils.GenerateUUID(),
		Name:           strings.TrimSpace(req.Name),
		Digits:         req.Digits,
		TotalTickets:   totalTickets(req.Digits),
		PricePerTicket: req.PricePerTicket,
		Status:         models.RaffleDraft,
		CreatedAt:      time.Now(),
	}

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *db.DB) error {
		if err := tx.CreateRaffle(ctx, raffle); err != nil {
			return fmt.Errorf("insert raffle: %w", err)
		}
		if _, err := tx.CreateTickets(ctx, raffle.ID, raffle.Digits); err != nil {
			return err
		}

		if len(req.Packages) > 0 {
			packages := make([]models.Package, len(req.Packages))
			for i, p := range req.Packages {
				packages[i] = models.Package{
					ID:        utils.GenerateUUID(),
					RaffleID:  raffle.ID,
					Quantity:  p.Quantity,
					Price:     p.Price,
					Published: p.Published,
				}
			}
			if _, err := tx.Bun.NewInsert().Model(&packages).Exec(ctx); err != nil {
				return fmt.Errorf("insert packages: %w", err)
			}
		}

		if len(req.Prizes) > 0 {
			prizes := make([]models.Prize, 0, len(req.Prizes))
			for _, description := range req.Prizes {
				if strings.TrimSpace(description) == "" {
					continue
				}
				prizes = append(prizes, models.Prize{
					ID:          utils.GenerateUUID(),
					RaffleID:    raffle.ID,
					Description: description,
				})
			}
			if len(prizes) > 0 {
				if _, err := tx.Bun.NewInsert().Model(&prizes).Exec(ctx); err != nil {
					return fmt.Errorf("insert prizes: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create raffle: %w", err)
	}

	s.Logger.LogDatabase("INSERT", "raffles", fmt.Sprintf("Raffle %s created with %d tickets", raffle.ID, raffle.TotalTickets))
	return raffle, nil
}

func (s *TicketService) GetRaffle(ctx context.Context, id string) (*models.Raffle, error) {
	raffle, err := s.DB.GetRaffle(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRaffleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load raffle %s: %w", id, err)
	}
	return raffle, nil
}

func (s *TicketService) Publish(ctx context.Context, id string) (*models.Raffle, error) {
	return s.setStatus(ctx, id, models.RafflePublished)
}

func (s *TicketService) Unpublish(ctx context.Context, id string) (*models.Raffle, error) {
	return s.setStatus(ctx, id, models.RaffleDraft)
}

func (s *TicketService) setStatus(ctx context.Context, id string, status models.RaffleStatus) (*models.Raffle, error) {
	raffle, err := s.GetRaffle(ctx, id)
	if err != nil {
		return nil, err
	}
	if raffle.Status == status {
		return raffle, nil
	}

	raffle.Status = status
	raffle.UpdatedAt = time.Now()
	if err := s.DB.SetRaffleStatus(ctx, raffle); err != nil {
		return nil, fmt.Errorf("failed to update raffle %s: %w", id, err)
	}
	s.Logger.Info("RAFFLE", fmt.Sprintf("Raffle %s is now %s", id, status))
	return raffle, nil
}
