package ticket_api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-sorteos/internal/logger"
	"ms-sorteos/internal/models"
	"ms-sorteos/internal/sse"
	qr_genrator "ms-sorteos/internal/tickets/qr_genrator"
	tickets "ms-sorteos/internal/tickets/service"
	"ms-sorteos/internal/utils"
)

type OrderDBLayer interface {
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
}

type Handler struct {
	TicketService *tickets.TicketService
	OrderDB       OrderDBLayer
	Emitter       *sse.AvailabilityEmitter
	QRGenerator   *qr_genrator.QRGenerator
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, orderDB OrderDBLayer, emitter *sse.AvailabilityEmitter, qrSecret string, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		TicketService: ticketService,
		OrderDB:       orderDB,
		Emitter:       emitter,
		QRGenerator:   qr_genrator.NewQRGenerator(qrSecret),
		Logger:        log,
	}
}

// PublicRoutes mounts the customer facing raffle endpoints under /api/raffles.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Get("/{raffleId}", h.GetRaffle)
	r.Get("/{raffleId}/availability", h.GetAvailability)
	r.Get("/{raffleId}/events", h.StreamAvailability)
}

// AdminRoutes mounts the operator endpoints under /api/admin.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/raffles", h.CreateRaffle)
	r.Post("/raffles/{raffleId}/publish", h.PublishRaffle)
	r.Post("/raffles/{raffleId}/unpublish", h.UnpublishRaffle)
	r.Post("/tickets/verify", h.VerifyTicket)
}

func (h *Handler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.TicketService.GetRaffle(r.Context(), chi.URLParam(r, "raffleId"))
	if err != nil {
		h.writeError(w, "GetRaffle", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle retrieved", raffle))
}

func (h *Handler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	var req tickets.CreateRaffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	raffle, err := h.TicketService.CreateRaffle(r.Context(), req)
	if err != nil {
		h.writeError(w, "CreateRaffle", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("CreateRaffle: %s created %d tickets", raffle.ID, raffle.TotalTickets))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Raffle created", raffle))
}

func (h *Handler) PublishRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.TicketService.Publish(r.Context(), chi.URLParam(r, "raffleId"))
	if err != nil {
		h.writeError(w, "PublishRaffle", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle published", raffle))
}

func (h *Handler) UnpublishRaffle(w http.ResponseWriter, r *http.Request) {
	raffle, err := h.TicketService.Unpublish(r.Context(), chi.URLParam(r, "raffleId"))
	if err != nil {
		h.writeError(w, "UnpublishRaffle", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle unpublished", raffle))
}

// VerifyTicket checks a presented QR code
// Expected POST request body: {"encrypted_qr": "base64_encrypted_string"}
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	var requestBody struct {
		EncryptedQR string `json:"encrypted_qr"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if requestBody.EncryptedQR == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "encrypted_qr is required"))
		return
	}

	v, err := h.TicketService.VerifyTicket(r.Context(), h.QRGenerator, requestBody.EncryptedQR)
	if err != nil {
		h.writeError(w, "VerifyTicket", err)
		return
	}

	if v.Valid && h.OrderDB != nil {
		order, err := h.OrderDB.GetOrderByID(r.Context(), v.OrderID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			v.Valid = false
		case err != nil:
			h.writeError(w, "VerifyTicket", err)
			return
		default:
			v.Valid = order.Code == v.OrderCode && order.Status == models.OrderApproved
		}
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket verified", v))
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, tickets.ErrInvalidRaffle), errors.Is(err, tickets.ErrInvalidQR):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request", err.Error()))
	case errors.Is(err, tickets.ErrRaffleNotFound), errors.Is(err, tickets.ErrTicketNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Not found", err.Error()))
	default:
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Internal error", "internal server error"))
	}
}
