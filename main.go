package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"ms-sorteos/internal/auth"
	"ms-sorteos/internal/config"
	"ms-sorteos/internal/database"
	"ms-sorteos/internal/database/migrations"
	"ms-sorteos/internal/kafka"
	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/notify"
	"ms-sorteos/internal/order"
	"ms-sorteos/internal/order/db"
	"ms-sorteos/internal/order/gateway"
	orderkafka "ms-sorteos/internal/order/kafka"
	"ms-sorteos/internal/order/order_api"
	"ms-sorteos/internal/sse"
	"ms-sorteos/internal/storage"
	ticket_db "ms-sorteos/internal/tickets/db"
	qr "ms-sorteos/internal/tickets/qr_genrator"
	ticketredis "ms-sorteos/internal/tickets/redis"
	tickets "ms-sorteos/internal/tickets/service"
	"ms-sorteos/internal/tickets/template"
	"ms-sorteos/internal/tickets/ticket_api"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := logger.NewLogger(cfg.Log.Dir, cfg.Log.Level)
	defer log.Close()

	log.Info("APP", "Starting raffle service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()

	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		}, log)
		if err := runner.Initialize(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("MIGRATION", err.Error())
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer redisClient.Close()

	ticketService := tickets.NewTicketService(
		&ticket_db.DB{Bun: bunDB},
		ticketredis.NewAvailabilityCache(redisClient, cfg.Reservation.AvailabilityTTL),
		log,
	)
	orderDB := db.New(bunDB)
	emitter := sse.NewAvailabilityEmitter()

	deps := order.Dependencies{
		Inventory:   ticketService,
		Broadcaster: emitter,
	}

	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		deps.Events = orderkafka.NewEventPublisher(producer, cfg.Kafka.Topics)
	} else {
		log.Warn("KAFKA", "Kafka disabled, order events will not be published")
	}

	var webhooks order_api.WebhookParser
	if cfg.Stripe.SecretKey != "" {
		stripeGateway := gateway.NewStripeGateway(gateway.StripeOptions{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Currency:      cfg.Stripe.Currency,
		}, log)
		deps.Gateway = stripeGateway
		webhooks = stripeGateway
	} else {
		log.Warn("PAYMENT", "STRIPE_SECRET_KEY not set, card payments are disabled")
	}

	alerter, err := notify.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.AdminChatID, log)
	if err != nil {
		log.Warn("ALERT", fmt.Sprintf("Telegram alerts unavailable: %v", err))
	} else {
		deps.Alerter = alerter
	}

	blobs, err := storage.New(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("STORAGE", err.Error())
	}
	deps.Notifier = &notify.Dispatcher{
		Mailer:      notify.NewSMTPMailer(cfg.Email, log),
		Invoices:    orderDB,
		Blobs:       blobs,
		Renderer:    template.NewInvoicePDFGenerator(cfg.Invoice.FontPath),
		QR:          qr.NewQRGenerator(cfg.Invoice.QRSecret),
		CompanyName: cfg.Invoice.CompanyName,
		Logger:      log,
	}

	orderService := order.NewOrderService(orderDB, deps, order.Options{
		ClaimRetryBudget:  cfg.Reservation.ClaimRetryBudget,
		PaymentAttemptTTL: cfg.Reservation.PaymentAttemptTTL,
	}, log)

	orderHandler := order_api.NewHandler(orderService, webhooks, log)
	ticketHandler := ticket_api.NewHandler(ticketService, orderDB, emitter, cfg.Invoice.QRSecret, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/raffles", ticketHandler.PublicRoutes)
		orderHandler.PublicRoutes(r)
		log.Info("ROUTER", "Public raffle and order routes registered under /api")

		r.Route("/admin", func(r chi.Router) {
			if cfg.Auth.JWTSecret == "" {
				log.Warn("AUTH", "ADMIN_JWT_SECRET not set, admin routes will reject every request")
			}
			r.Use(auth.Middleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer, log))
			ticketHandler.AdminRoutes(r)
			orderHandler.AdminRoutes(r)
			log.Info("ROUTER", "Admin routes registered under /api/admin")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Raffle service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Raffle service shutdown complete")
	}
}

// requestLogger records method, path, status and latency of every request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}
