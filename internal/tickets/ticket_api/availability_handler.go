package ticket_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-sorteos/internal/models"
	"ms-sorteos/internal/utils"
)

// GetAvailability returns the raffle counters without taking any lock.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	a, err := h.TicketService.Availability(r.Context(), chi.URLParam(r, "raffleId"))
	if err != nil {
		h.writeError(w, "GetAvailability", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Availability retrieved", a))
}

// StreamAvailability pushes an availability snapshot on connect and after every
// reservation or settlement of the raffle.
func (h *Handler) StreamAvailability(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")
	flusher, ok := w.(http.Flusher)
	if !ok || h.Emitter == nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Streaming unsupported", "server cannot stream events"))
		return
	}

	current, err := h.TicketService.Availability(r.Context(), raffleID)
	if err != nil {
		h.writeError(w, "StreamAvailability", err)
		return
	}

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.Logger.Warn("SSE", fmt.Sprintf("Stream for raffle %s keeps the server write timeout: %v", raffleID, err))
	}

	ctx := r.Context()
	events := h.Emitter.Subscribe(ctx, raffleID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	writeEvent(w, "availability", current)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to availability events for raffle: %s", raffleID))
	for {
		select {
		case a, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, "availability", a)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from raffle: %s", raffleID))
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, a models.Availability) {
	data, _ := json.Marshal(a)
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Accel-Buffering", "no")
}
