// Command seed loads a published demo raffle and the payment methods, and
// prints an admin token for local testing.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"ms-sorteos/internal/auth"
	"ms-sorteos/internal/config"
	"ms-sorteos/internal/database"
	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	ticket_db "ms-sorteos/internal/tickets/db"
	tickets "ms-sorteos/internal/tickets/service"
)

var paymentMethods = []models.PaymentMethod{
	{ID: "transfer", Name: "Bank transfer", Kind: models.PaymentTransfer, Active: true},
	{ID: "card", Name: "Card (Stripe)", Kind: models.PaymentGateway, Active: true},
}

func main() {
	name := flag.String("name", "Demo raffle", "raffle name")
	digits := flag.Int("digits", 3, "ticket code length")
	price := flag.Float64("price", 2.5, "price per ticket")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "admin token lifetime")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	defer log.Close()

	ctx := context.Background()
	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if _, err := bunDB.NewInsert().Model(&paymentMethods).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		log.Fatal("SEED", fmt.Sprintf("insert payment methods: %v", err))
	}

	svc := tickets.NewTicketService(&ticket_db.DB{Bun: bunDB}, nil, log)
	raffle, err := svc.CreateRaffle(ctx, tickets.CreateRaffleRequest{
		Name:           *name,
		Digits:         *digits,
		PricePerTicket: *price,
		Packages: []tickets.PackageOption{
			{Quantity: 5, Price: *price * 4, Published: true},
			{Quantity: 10, Price: *price * 7, Published: true},
		},
		Prizes: []string{"First prize", "Second prize"},
	})
	if err != nil {
		log.Fatal("SEED", err.Error())
	}
	if _, err := svc.Publish(ctx, raffle.ID); err != nil {
		log.Fatal("SEED", err.Error())
	}

	fmt.Printf("raffle:  %s (%d tickets)\n", raffle.ID, raffle.TotalTickets)
	for _, pm := range paymentMethods {
		fmt.Printf("method:  %s (%s)\n", pm.ID, pm.Kind)
	}

	if cfg.Auth.JWTSecret == "" {
		fmt.Println("token:   ADMIN_JWT_SECRET not set")
		return
	}
	token, err := auth.IssueAdminToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, "seed", *tokenTTL)
	if err != nil {
		log.Fatal("SEED", err.Error())
	}
	fmt.Printf("token:   %s\n", token)
}
