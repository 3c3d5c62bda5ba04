package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/order"
)

// StripeGateway opens and inspects Stripe PaymentIntents for card orders.
type StripeGateway struct {
	api           *client.API
	currency      string
	webhookSecret string
	logger        *logger.Logger
}

type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	// Backends overrides the Stripe API endpoint. Nil uses api.stripe.com.
	Backends *stripe.Backends
}

func NewStripeGateway(opts StripeOptions, log *logger.Logger) *StripeGateway {
	if log == nil {
		log = logger.Discard()
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &StripeGateway{
		api:           client.New(opts.SecretKey, opts.Backends),
		currency:      strings.ToLower(opts.Currency),
		webhookSecret: opts.WebhookSecret,
		logger:        log,
	}
}

func (g *StripeGateway) CreatePayment(ctx context.Context, o *models.Order) (*order.GatewayPayment, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(o.TotalAmount)),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", o.ID)
	params.AddMetadata("order_code", o.Code)

	intent, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Error("PAYMENT", fmt.Sprintf("Failed to create Stripe payment intent for order %s: %v", o.ID, err))
		return nil, err
	}

	g.logger.Info("PAYMENT", fmt.Sprintf("Created payment intent %s for order %s at %s",
		intent.ID, o.ID, time.Unix(intent.Created, 0).UTC().Format("2006-01-02 15:04:05")))
	return &order.GatewayPayment{
		ExternalID:   intent.ID,
		ClientSecret: intent.ClientSecret,
		Raw:          rawJSON(intent),
	}, nil
}

func (g *StripeGateway) Confirm(ctx context.Context, externalID string) (*order.GatewayConfirmation, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.PaymentIntents.Get(externalID, params)
	if err != nil {
		return nil, err
	}

	status, reason := MapIntentStatus(intent)
	return &order.GatewayConfirmation{
		ExternalID: intent.ID,
		Status:     status,
		Reason:     reason,
		Raw:        rawJSON(intent),
	}, nil
}

// Resume returns the client secret of an existing intent so a repeated
// checkout continues the same payment.
func (g *StripeGateway) Resume(ctx context.Context, externalID string) (*order.GatewayPayment, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.PaymentIntents.Get(externalID, params)
	if err != nil {
		return nil, err
	}
	return &order.GatewayPayment{
		ExternalID:   intent.ID,
		ClientSecret: intent.ClientSecret,
		Raw:          rawJSON(intent),
	}, nil
}

func (g *StripeGateway) Cancel(ctx context.Context, externalID string) error {
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx
	_, err := g.api.PaymentIntents.Cancel(externalID, params)
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState {
		// Already succeeded or canceled; the confirmation that follows decides.
		return nil
	}
	return err
}

// MapIntentStatus reduces a PaymentIntent to the three outcomes the order
// engine understands.
func MapIntentStatus(intent *stripe.PaymentIntent) (order.GatewayStatus, string) {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return order.GatewayApproved, ""
	case stripe.PaymentIntentStatusCanceled:
		reason := "payment canceled"
		if intent.CancellationReason != "" {
			reason = "payment canceled: " + string(intent.CancellationReason)
		}
		return order.GatewayDeclined, reason
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		// Fresh intents also sit here; only a recorded failure counts as a decline.
		if intent.LastPaymentError != nil {
			reason := intent.LastPaymentError.Msg
			if reason == "" {
				reason = string(intent.LastPaymentError.Code)
			}
			return order.GatewayDeclined, reason
		}
		return order.GatewayPending, ""
	default:
		return order.GatewayPending, ""
	}
}

// WebhookError represents an error that occurred during webhook processing
type WebhookError struct {
	Category      string // "configuration", "validation", "processing"
	StatusCode    int
	PublicError   string // Safe to expose to clients
	InternalError string
	OriginalErr   error
}

func (e *WebhookError) Error() string {
	return e.InternalError
}

func (e *WebhookError) Unwrap() error {
	return e.OriginalErr
}

// ParseWebhook verifies the Stripe signature and returns the PaymentIntent id
// the event refers to. Events that do not concern a PaymentIntent return an
// empty id and no error.
func (g *StripeGateway) ParseWebhook(r *http.Request) (string, error) {
	if g.webhookSecret == "" {
		g.logger.Error("WEBHOOK", "Stripe webhook secret is not configured")
		return "", &WebhookError{
			Category:      "configuration",
			StatusCode:    http.StatusInternalServerError,
			PublicError:   "Webhook processing error",
			InternalError: "Stripe webhook secret is not configured",
		}
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return "", &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid webhook payload",
			InternalError: fmt.Sprintf("Failed to read webhook payload: %v", err),
			OriginalErr:   err,
		}
	}

	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.logger.LogSecurity("WEBHOOK_SIGNATURE", fmt.Sprintf("Rejected Stripe webhook: %v", err))
		return "", &WebhookError{
			Category:      "validation",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Webhook signature verification failed",
			InternalError: fmt.Sprintf("Webhook signature verification failed: %v", err),
			OriginalErr:   err,
		}
	}

	g.logger.Info("WEBHOOK", fmt.Sprintf("Processing Stripe webhook event: %s", event.Type))
	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
	default:
		g.logger.Info("WEBHOOK", fmt.Sprintf("Unhandled event type: %s", event.Type))
		return "", nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil || intent.ID == "" {
		return "", &WebhookError{
			Category:      "processing",
			StatusCode:    http.StatusBadRequest,
			PublicError:   "Invalid event data",
			InternalError: fmt.Sprintf("Failed to unmarshal payment intent: %v", err),
			OriginalErr:   err,
		}
	}
	return intent.ID, nil
}

func toMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func rawJSON(intent *stripe.PaymentIntent) string {
	if intent.LastResponse != nil && len(intent.LastResponse.RawJSON) > 0 {
		return string(intent.LastResponse.RawJSON)
	}
	b, err := json.Marshal(intent)
	if err != nil {
		return ""
	}
	return string(b)
}
