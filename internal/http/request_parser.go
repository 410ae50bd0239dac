package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"ecomstudio/internal/services"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

// recordBody is the JSON form of POST /ledger. Amount accepts a JSON string
// or number.
type recordBody struct {
	UserID      string          `json:"user_id"`
	Amount      json.RawMessage `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  string          `json:"occurred_at"`
}

// parseRecordRequest reads a transaction from a JSON or form body.
func parseRecordRequest(w http.ResponseWriter, r *http.Request) (services.RecordRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body recordBody
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			return services.RecordRequest{}, fmt.Errorf("%w: malformed JSON: %v", errBadRequest, err)
		}
		return buildRecordRequest(body.UserID, rawAmount(body.Amount), body.Description, body.OccurredAt)
	}

	if err := r.ParseForm(); err != nil {
		return services.RecordRequest{}, fmt.Errorf("%w: malformed form: %v", errBadRequest, err)
	}
	return buildRecordRequest(
		r.PostForm.Get("user_id"),
		r.PostForm.Get("amount"),
		r.PostForm.Get("description"),
		r.PostForm.Get("occurred_at"),
	)
}

func buildRecordRequest(userID, amount, description, occurredAt string) (services.RecordRequest, error) {
	req := services.RecordRequest{
		UserID:      sanitizeInput(userID),
		Amount:      strings.TrimSpace(amount),
		Description: sanitizeInput(description),
	}
	if v := strings.TrimSpace(occurredAt); v != "" {
		at, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return services.RecordRequest{}, fmt.Errorf("%w: occurred_at must be RFC 3339", errBadRequest)
		}
		req.OccurredAt = at
	}
	return req, nil
}

// rawAmount unquotes a JSON string amount and passes numbers through.
func rawAmount(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseInstant reads an optional RFC 3339 query parameter, returning
// fallback when it is absent.
func parseInstant(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339", errBadRequest, name)
	}
	return t, nil
}

// parseRange reads from/to. A missing to means now; a missing from means one
// day before to.
func parseRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	to, err := parseInstant(r, "to", now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from, err := parseInstant(r, "from", to.Add(-24*time.Hour))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

// sanitizeInput trims whitespace and drops control characters.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
