package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/order"
	"ms-sorteos/internal/utils"
)

// WebhookParser turns a signed gateway callback into the payment id it refers to.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (string, error)
}

type Handler struct {
	OrderService *order.OrderService
	Webhooks     WebhookParser
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, webhooks WebhookParser, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{OrderService: orderService, Webhooks: webhooks, Logger: log}
}

// PublicRoutes mounts the customer endpoints under /api.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/orders", h.CreateReservation)
	r.Get("/orders/{orderId}", h.GetOrder)
	r.Post("/orders/{orderId}/cancel", h.CancelOrder)
	r.Post("/orders/{orderId}/payments", h.StartPayment)
	r.Get("/payments/confirm", h.ConfirmPayment)
	r.Post("/payments/stripe/webhook", h.StripeWebhook)
}

// AdminRoutes mounts the operator endpoints under /api/admin.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/orders/{orderId}/settle", h.SettleOrder)
	r.Get("/orders/{orderId}/tickets", h.OrderTickets)
}

func (h *Handler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req order.ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Warn("API", fmt.Sprintf("CreateReservation: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	res, err := h.OrderService.CreateReservation(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateReservation", err, nil)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateReservation: order %s holds %d tickets", res.OrderID, res.Quantity))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Tickets reserved", res))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.OrderService.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeError(w, "GetOrder", err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order retrieved", view))
}

func (h *Handler) OrderTickets(w http.ResponseWriter, r *http.Request) {
	view, err := h.OrderService.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		h.writeError(w, "OrderTickets", err, nil)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order tickets", map[string]interface{}{
		"order_id":     view.Order.ID,
		"status":       view.Order.Status,
		"ticket_codes": view.TicketCodes,
	}))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
			return
		}
	}

	result, err := h.OrderService.CancelOrder(r.Context(), chi.URLParam(r, "orderId"), body.Reason)
	if err != nil {
		h.writeError(w, "CancelOrder", err, result)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(settledMessage(result), result))
}

func (h *Handler) SettleOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Outcome order.Outcome `json:"outcome"`
		Reason  string        `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	result, err := h.OrderService.Settle(r.Context(), order.SettleRequest{
		OrderID: chi.URLParam(r, "orderId"),
		Outcome: body.Outcome,
		Reason:  body.Reason,
	})
	if err != nil {
		h.writeError(w, "SettleOrder", err, result)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(settledMessage(result), result))
}

func settledMessage(result *order.SettleResult) string {
	if result.Replayed {
		return "Order already " + string(result.Status)
	}
	return "Order " + string(result.Status)
}

// writeError maps engine errors to status codes. prior is the stored result
// returned alongside ErrAlreadySettled.
func (h *Handler) writeError(w http.ResponseWriter, op string, err error, prior interface{}) {
	var insufficient *order.InsufficientInventoryError
	switch {
	case errors.As(err, &insufficient):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponseWithData("Not enough tickets", err.Error(), map[string]int{
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		}))
	case errors.Is(err, order.ErrAlreadySettled):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponseWithData("Order already settled", err.Error(), prior))
	case errors.Is(err, order.ErrOrderNotPending):
		utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Order is not pending", err.Error()))
	case errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidOutcome),
		errors.Is(err, order.ErrInvalidClient),
		errors.Is(err, order.ErrRaffleNotPublished),
		errors.Is(err, order.ErrPackageUnavailable),
		errors.Is(err, order.ErrPaymentMethodUnavailable),
		errors.Is(err, order.ErrNotGatewayOrder):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrRaffleNotFound),
		errors.Is(err, order.ErrPaymentAttemptNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	case errors.Is(err, order.ErrGatewayNotConfigured):
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Card payments unavailable", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "internal server error"))
	}
}
