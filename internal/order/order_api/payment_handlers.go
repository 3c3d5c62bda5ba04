package order_api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-sorteos/internal/order"
	"ms-sorteos/internal/order/gateway"
	"ms-sorteos/internal/utils"
)

// StartPayment opens a gateway payment for a pending card order
func (h *Handler) StartPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	checkout, err := h.OrderService.StartGatewayPayment(r.Context(), orderID)
	if err != nil {
		h.writeError(w, "StartPayment", err, nil)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("StartPayment: opened %s for order %s", checkout.ExternalID, orderID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Payment started", checkout))
}

// ConfirmPayment is the gateway redirect target. It can be hit any number of times.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("id")
	if externalID == "" {
		externalID = r.URL.Query().Get("payment_intent")
	}
	if externalID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", "payment id is required"))
		return
	}

	result, err := h.OrderService.ConfirmGatewayPayment(r.Context(), externalID)
	if err != nil {
		h.writeError(w, "ConfirmPayment", err, result)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(settledMessage(result), result))
}

// StripeWebhook handles webhook events from Stripe
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Webhooks == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Webhook processing error", "gateway not configured"))
		return
	}

	externalID, err := h.Webhooks.ParseWebhook(r)
	if err != nil {
		var webhookErr *gateway.WebhookError
		if errors.As(err, &webhookErr) {
			h.Logger.Info("API", fmt.Sprintf("StripeWebhook: handling webhook error category=%s, status=%d",
				webhookErr.Category, webhookErr.StatusCode))
			utils.WriteJSON(w, webhookErr.StatusCode, utils.ErrorResponse(webhookErr.PublicError, webhookErr.Category))
			return
		}
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Webhook processing error", "invalid webhook"))
		return
	}
	if externalID == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	result, err := h.OrderService.ConfirmGatewayPayment(r.Context(), externalID)
	switch {
	case err == nil:
		h.Logger.Info("API", fmt.Sprintf("StripeWebhook: order %s is %s", result.OrderID, result.Status))
	case errors.Is(err, order.ErrAlreadySettled):
		// Conflicts are alerted by the engine; redelivery cannot change them.
		h.Logger.Warn("API", fmt.Sprintf("StripeWebhook: %s arrived after settlement: %v", externalID, err))
	case errors.Is(err, order.ErrPaymentAttemptNotFound):
		h.Logger.Warn("API", fmt.Sprintf("StripeWebhook: unknown payment %s", externalID))
	default:
		// Non-2xx makes Stripe redeliver; confirmation is idempotent.
		h.Logger.Error("API", fmt.Sprintf("StripeWebhook: failed to confirm %s: %v", externalID, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Webhook processing error", "confirmation failed"))
		return
	}
	w.WriteHeader(http.StatusOK)
}
