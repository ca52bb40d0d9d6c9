package raffle_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// StreamEvents pushes a raffle's ticket events to the client as they happen.
// Events say what changed; clients re-read the tickets to see the new state.
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	if _, err := h.Engine.Raffles.GetRaffle(r.Context(), raffleID); err != nil {
		h.writeError(w, r, err)
		return
	}

	setupSSEHeaders(w)
	ctx := r.Context()
	eventChan := h.Emitter.Subscribe(ctx, raffleID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"raffle_id\":%q}\n\n", raffleID)
	flusher.Flush()
	h.Logger.Info("SSE", fmt.Sprintf("Client connected to ticket events of raffle %s", raffleID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize ticket event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, jsonData)
			flusher.Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from raffle %s", raffleID))
			return
		}
	}
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
