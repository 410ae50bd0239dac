package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ecomstudio/internal/core"
	"ecomstudio/internal/sheets/memory"
)

type errReader struct{}

func (errReader) QueryLedger(context.Context, time.Time, time.Time) ([]core.LedgerEvent, error) {
	return nil, errors.New("boom")
}

func TestInstrumentedReader_PassesThrough(t *testing.T) {
	at := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	store := memory.New(core.LedgerEvent{ID: "a", UserID: "u", OccurredAt: at, Amount: decimal.NewFromInt(-3)})
	r := NewInstrumentedReader(store, "memory")

	events, err := r.QueryLedger(context.Background(), at.Add(-time.Hour), at)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(events) != 1 || events[0].ID != "a" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestInstrumentedReader_PropagatesErrors(t *testing.T) {
	r := NewInstrumentedReader(errReader{}, "sqlite")
	if _, err := r.QueryLedger(context.Background(), time.Now(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}
