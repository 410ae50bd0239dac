package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"ecomstudio/internal/core"
)

// Store is an in-process ledger.
type Store struct {
	mu     sync.RWMutex
	events []core.LedgerEvent
}

func New(events ...core.LedgerEvent) *Store {
	s := &Store{}
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		s.events = append(s.events, e)
	}
	return s
}

// NewFromFiles seeds the store from base/seed_ledger.csv when it exists.
// Malformed rows are skipped with a warning.
func NewFromFiles(base string) *Store {
	path := filepath.Join(base, "seed_ledger.csv")
	f, err := os.Open(path)
	if err != nil {
		return New()
	}
	defer f.Close()

	events, err := readSeed(f)
	if err != nil {
		slog.Warn("Ignoring unreadable ledger seed", "path", path, "error", err)
		return New()
	}
	return New(events...)
}

func readSeed(r io.Reader) ([]core.LedgerEvent, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []core.LedgerEvent
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 3 {
			continue
		}
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			slog.Warn("Skipping seed row with bad timestamp", "value", rec[0])
			continue
		}
		amount, err := core.ParseCredits(rec[2])
		if err != nil {
			slog.Warn("Skipping seed row with bad amount", "value", rec[2])
			continue
		}
		e := core.LedgerEvent{UserID: strings.TrimSpace(rec[1]), OccurredAt: at, Amount: amount}
		if len(rec) > 3 {
			e.Description = strings.TrimSpace(rec[3])
		}
		if e.Validate() != nil {
			continue
		}
		out = append(out, e)
	}
}

// Insert stores the transaction and returns its ID.
func (s *Store) Insert(_ context.Context, e core.LedgerEvent) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return e.ID, nil
}

// QueryLedger returns a copy of the matching events, oldest first.
func (s *Store) QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.LedgerEvent
	for _, e := range s.events {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(end) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
