package pricing

import (
	"math"

	"ms-sorteos/internal/models"
)

// Quote is the priced shape of a reservation request.
type Quote struct {
	IsValid   bool    // Whether the request can be priced
	Reason    string  // Why it cannot (if invalid)
	Quantity  int     // Tickets to reserve
	Total     float64 // Amount charged for the whole order
	PackageID string  // Set when a package supplied quantity and price
}

// Resolve prices a request for quantity tickets, or for the package when one is
// given. A package replaces both the quantity and the total.
func Resolve(raffle *models.Raffle, pkg *models.Package, quantity int) Quote {
	if pkg != nil {
		if pkg.RaffleID != raffle.ID {
			return Quote{Reason: "package belongs to another raffle"}
		}
		if !pkg.Published {
			return Quote{Reason: "package is not published"}
		}
		if pkg.Quantity < 1 {
			return Quote{Reason: "package has no tickets"}
		}
		return Quote{
			IsValid:   true,
			Quantity:  pkg.Quantity,
			Total:     Round(pkg.Price),
			PackageID: pkg.ID,
		}
	}

	if quantity < 1 {
		return Quote{Reason: "quantity must be at least 1"}
	}
	return Quote{
		IsValid:  true,
		Quantity: quantity,
		Total:    Round(raffle.PricePerTicket * float64(quantity)),
	}
}

// UnitPrice splits an order total across its tickets at currency precision.
func UnitPrice(total float64, quantity int) float64 {
	if quantity <= 0 {
		return 0
	}
	return Round(total / float64(quantity))
}

// Round rounds to two decimals.
func Round(amount float64) float64 {
	return math.Round(amount*100) / 100
}
