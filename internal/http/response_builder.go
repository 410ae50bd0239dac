package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// ledgerEventResponse is the wire form of a ledger transaction.
type ledgerEventResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Amount      string    `json:"amount"`
	Direction   string    `json:"direction"`
	Description string    `json:"description,omitempty"`
}

func newLedgerEventResponse(e core.LedgerEvent) ledgerEventResponse {
	return ledgerEventResponse{
		ID:          e.ID,
		UserID:      e.UserID,
		OccurredAt:  e.OccurredAt.UTC(),
		Amount:      core.FormatCredits(e.Amount),
		Direction:   string(e.Direction()),
		Description: e.Description,
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode response", log.FieldError, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorResponse{
		Error:     msg,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

func writeRateLimited(w http.ResponseWriter, r *http.Request) {
	slog.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}
