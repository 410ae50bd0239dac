package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status":  "not_ready",
				"backend": err.Error(),
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready", "backend": "ok"})
}

// handleStats serves the full stats report. ?now= overrides the reference
// instant.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now, err := parseInstant(r, "now", s.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.engine.ComputeAll(ctx, now)
	if err != nil {
		if errors.Is(err, core.ErrInvalidInstant) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log.FromContext(ctx).ErrorContext(ctx, "Stats computation failed",
			log.FieldOperation, log.OpCompute,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "stats unavailable")
		return
	}

	if !report.Complete() {
		w.Header().Set("X-Stats-Partial", "true")
	}
	writeJSON(w, r, http.StatusOK, report)
}

func (s *Server) handleRecordLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := parseRecordRequest(w, r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.ledger.Record(ctx, req)
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyUser),
		errors.Is(err, core.ErrDescriptionLong),
		errors.Is(err, core.ErrInvalidInstant):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		log.FromContext(ctx).ErrorContext(ctx, "Failed to record transaction",
			log.FieldOperation, log.OpCreate,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "could not record transaction")
		return
	}

	writeJSON(w, r, http.StatusCreated, newLedgerEventResponse(e))
}

func (s *Server) handleListLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	from, to, err := parseRange(r, s.now())
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.ledger.List(ctx, from, to)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRange) {
			writeError(w, r, http.StatusBadRequest, "from must not be after to")
			return
		}
		log.FromContext(ctx).ErrorContext(ctx, "Failed to list transactions",
			log.FieldOperation, log.OpList,
			log.FieldError, err)
		writeError(w, r, http.StatusInternalServerError, "could not list transactions")
		return
	}

	out := make([]ledgerEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, newLedgerEventResponse(e))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"from":         from.UTC(),
		"to":           to.UTC(),
		"transactions": out,
	})
}
