package raffle_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-raffle/internal/models"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{models.ErrInvalidNumber, http.StatusBadRequest},
	{models.ErrInvalidAmount, http.StatusBadRequest},
	{models.ErrAmountExceedsTotal, http.StatusBadRequest},
	{models.ErrHolderRequired, http.StatusBadRequest},
	{models.ErrRaffleNotFound, http.StatusNotFound},
	{models.ErrNumberNotFound, http.StatusNotFound},
	{models.ErrNoWinner, http.StatusNotFound},
	{models.ErrAlreadyTaken, http.StatusConflict},
	{models.ErrNotHeldByCaller, http.StatusConflict},
	{models.ErrInvalidTransition, http.StatusConflict},
	{models.ErrWinnerAlreadyExists, http.StatusConflict},
	{models.ErrTicketNotEligible, http.StatusConflict},
	{models.ErrNotPending, http.StatusConflict},
	{models.ErrTicketNotPaid, http.StatusConflict},
	{models.ErrInvalidReceipt, http.StatusUnprocessableEntity},
	{models.ErrRaffleFinalized, http.StatusLocked},
	{models.ErrRaffleCancelled, http.StatusLocked},
}

// statusFor maps a domain error to its HTTP status; anything unknown is a 500.
func statusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := h.logError(r, err)
	sendError(w, status, publicMessage(status, err))
}

// logError logs err at the level its status deserves and returns the status.
func (h *Handler) logError(r *http.Request, err error) int {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s %s -> %d: %v", r.Method, r.URL.Path, status, err))
	}
	return status
}

// publicMessage hides the details of unexpected failures.
func publicMessage(status int, err error) string {
	if status == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

func sendError(w http.ResponseWriter, status int, message string) {
	sendJSONResponse(w, status, map[string]string{"error": message})
}

// sendJSONResponse is a helper function to send JSON responses
func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// the status is already out; an encoding failure can only be dropped
	_ = json.NewEncoder(w).Encode(data)
}
