package raffle_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/receipt"
	"ms-raffle/internal/reminders"
	"ms-raffle/internal/reservation"
	"ms-raffle/internal/sse"
	"ms-raffle/internal/ticketnum"
	"ms-raffle/internal/ticketspace"
	"ms-raffle/internal/winner"
)

// Handler serves the raffle ticket API
type Handler struct {
	Engine    *reservation.Engine
	Reminders *reminders.Service
	Winners   *winner.Selector
	Receipts  *receipt.Service
	Emitter   *sse.TicketEventEmitter
	Logger    *logger.Logger
}

func NewHandler(engine *reservation.Engine, rem *reminders.Service, winners *winner.Selector, receipts *receipt.Service, emitter *sse.TicketEventEmitter, log *logger.Logger) *Handler {
	return &Handler{
		Engine:    engine,
		Reminders: rem,
		Winners:   winners,
		Receipts:  receipts,
		Emitter:   emitter,
		Logger:    log,
	}
}

// RegisterRoutes registers the raffle routes on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/raffles/{raffleID}", func(r chi.Router) {
		r.Get("/tickets", h.ListTickets)
		r.Get("/tickets/summary", h.GetSummary)
		r.Delete("/tickets/{number}", h.ReleaseTicket)
		r.Put("/tickets/{number}/family", h.MarkFamily)
		r.Delete("/tickets/{number}/family", h.UnmarkFamily)
		r.Get("/tickets/{number}/receipt", h.GetReceipt)
		r.Post("/receipts/verify", h.VerifyReceipt)

		r.Post("/reservations", h.Reserve)
		r.Post("/payments", h.ConfirmPayment)

		r.Get("/reminders/pending", h.ListPendingReminders)
		r.Post("/reminders/{holderID}", h.SendReminder)
		r.Put("/reminders/{holderID}", h.RecordReminder)
		r.Delete("/reminders", h.ResetReminders)

		r.Post("/winner", h.DeclareWinner)
		r.Get("/winner", h.GetWinner)

		r.Get("/events", h.StreamEvents)
	})
}

type ticketsResponse struct {
	RaffleID string                 `json:"raffle_id"`
	Total    int                    `json:"total"`
	Tickets  []models.VirtualTicket `json:"tickets"`
}

// ListTickets returns the full materialized ticket space, optionally narrowed
// by ?status= and ?holder=.
func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	var status models.TicketStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, ok := models.ParseTicketStatus(raw)
		if !ok {
			sendError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		status = parsed
	}

	view, err := h.Engine.View(r.Context(), raffleID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tickets := view.Tickets
	if status != "" {
		tickets = ticketspace.Filter(tickets, status)
	}
	if holder := r.URL.Query().Get("holder"); holder != "" {
		owned := make([]models.VirtualTicket, 0)
		for _, t := range tickets {
			if t.HolderID == holder {
				owned = append(owned, t)
			}
		}
		tickets = owned
	}

	sendJSONResponse(w, http.StatusOK, ticketsResponse{
		RaffleID: raffleID,
		Total:    view.Raffle.TotalTickets,
		Tickets:  tickets,
	})
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	view, err := h.Engine.View(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, ticketspace.Summarize(view.Tickets))
}

type reserveRequest struct {
	HolderID  string   `json:"holder_id"`
	Selection string   `json:"selection"`
	Numbers   []string `json:"numbers"`
}

type reserveResponse struct {
	reservation.ReserveResult
	Kind  reservation.Kind `json:"kind"`
	Error string           `json:"error,omitempty"`
}

// Reserve holds numbers for a holder. Numbers can come as a list, as a
// selection such as "1-3,7", or both. A reservation that got none of its
// numbers answers 409 with the per-number outcome.
func (h *Handler) Reserve(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleID")

	var req reserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	numbers := req.Numbers
	if strings.TrimSpace(req.Selection) != "" {
		view, err := h.Engine.View(r.Context(), raffleID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		numbers = append(numbers, ticketnum.ParseSelection(req.Selection, view.Raffle.TotalTickets)...)
	}
	if len(numbers) == 0 {
		sendError(w, http.StatusBadRequest, "no numbers requested")
		return
	}

	result, err := h.Engine.Reserve(r.Context(), raffleID, numbers, req.HolderID)
	if err != nil && len(result.Reserved()) > 0 {
		// some numbers are already held; the caller needs to know which
		status := h.logError(r, err)
		body := reserveResponse{ReserveResult: result, Kind: result.Kind(), Error: publicMessage(status, err)}
		sendJSONResponse(w, status, body)
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Kind() == reservation.KindFailure {
		status = http.StatusConflict
	}
	sendJSONResponse(w, status, reserveResponse{ReserveResult: result, Kind: result.Kind()})
}

type paymentRequest struct {
	HolderID string          `json:"holder_id"`
	Numbers  []string        `json:"numbers"`
	Amount   decimal.Decimal `json:"amount"`
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	payment, err := h.Engine.ConfirmPayment(r.Context(), chi.URLParam(r, "raffleID"), req.Numbers, req.HolderID, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, payment)
}

func (h *Handler) ReleaseTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.Release(r.Context(), chi.URLParam(r, "raffleID"), chi.URLParam(r, "number")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type familyRequest struct {
	HolderID string `json:"holder_id"`
}

// MarkFamily takes an optional {"holder_id"} naming who received the number.
func (h *Handler) MarkFamily(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	err := h.Engine.MarkFamily(r.Context(), chi.URLParam(r, "raffleID"), chi.URLParam(r, "number"), req.HolderID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UnmarkFamily(w http.ResponseWriter, r *http.Request) {
	if err := h.Engine.UnmarkFamily(r.Context(), chi.URLParam(r, "raffleID"), chi.URLParam(r, "number")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListPendingReminders(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Reminders.ListPending(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, groups)
}

type reminderRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// SendReminder takes an optional {"name", "contact"} forwarded to the sender.
func (h *Handler) SendReminder(w http.ResponseWriter, r *http.Request) {
	var body reminderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	holder := models.Holder{ID: chi.URLParam(r, "holderID"), Name: body.Name, Contact: body.Contact}
	req, err := h.Reminders.SendTo(r.Context(), chi.URLParam(r, "raffleID"), holder)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusAccepted, req)
}

// RecordReminder marks a holder as reminded through some other channel.
func (h *Handler) RecordReminder(w http.ResponseWriter, r *http.Request) {
	if err := h.Reminders.Record(r.Context(), chi.URLParam(r, "raffleID"), chi.URLParam(r, "holderID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ResetReminders(w http.ResponseWriter, r *http.Request) {
	n, err := h.Reminders.ResetLog(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, map[string]int{"cleared": n})
}

type winnerRequest struct {
	Number string `json:"number"`
}

func (h *Handler) DeclareWinner(w http.ResponseWriter, r *http.Request) {
	var req winnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	won, err := h.Winners.DeclareWinner(r.Context(), chi.URLParam(r, "raffleID"), req.Number)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusCreated, won)
}

func (h *Handler) GetWinner(w http.ResponseWriter, r *http.Request) {
	won, err := h.Winners.GetWinner(r.Context(), chi.URLParam(r, "raffleID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, won)
}

// GetReceipt answers with the QR code of a paid number.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	rec, img, err := h.Receipts.Issue(r.Context(), chi.URLParam(r, "raffleID"), chi.URLParam(r, "number"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Ticket-Number", rec.Number)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

type verifyRequest struct {
	Token string `json:"token"`
}

func (h *Handler) VerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.Receipts.Verify(r.Context(), chi.URLParam(r, "raffleID"), req.Token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sendJSONResponse(w, http.StatusOK, rec)
}

// Health answers liveness checks.
func Health(w http.ResponseWriter, _ *http.Request) {
	sendJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}
