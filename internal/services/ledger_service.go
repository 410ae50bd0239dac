// Package services orchestrates ledger writes across storage and messaging.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ecomstudio/internal/amqp"
	"ecomstudio/internal/core"
	"ecomstudio/internal/log"
	"ecomstudio/internal/metrics"
	"ecomstudio/internal/sheets"
)

var ErrInvalidRange = errors.New("invalid time range")

// Publisher announces recorded transactions to other processes.
type Publisher interface {
	PublishLedgerRecorded(ctx context.Context, msg *amqp.LedgerRecordedMessage) error
}

// LedgerStore is the storage side of the ledger.
type LedgerStore interface {
	sheets.LedgerWriter
	sheets.LedgerReader
}

// RecordRequest is an operator-entered transaction. Amount is parsed with
// core.ParseCredits; a zero OccurredAt means now.
type RecordRequest struct {
	UserID      string
	Amount      string
	Description string
	OccurredAt  time.Time
}

// LedgerService saves transactions locally first and then publishes a
// ledger.recorded message. Publishing is best effort.
type LedgerService struct {
	store     LedgerStore
	publisher Publisher
	log       *log.StructuredLogger
	now       func() time.Time
}

// NewLedgerService wires the service. publisher may be nil.
func NewLedgerService(store LedgerStore, publisher Publisher) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		log:       log.NewStructuredLogger(log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentLedger})),
		now:       time.Now,
	}
}

func (s *LedgerService) Record(ctx context.Context, req RecordRequest) (core.LedgerEvent, error) {
	amount, err := core.ParseCredits(req.Amount)
	if err != nil {
		return core.LedgerEvent{}, err
	}
	at := req.OccurredAt
	if at.IsZero() {
		at = s.now()
	}

	e := core.LedgerEvent{
		ID:          uuid.NewString(),
		UserID:      strings.TrimSpace(req.UserID),
		OccurredAt:  at,
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
	}
	if err := e.Validate(); err != nil {
		return core.LedgerEvent{}, err
	}

	id, err := s.store.Insert(ctx, e)
	if err != nil {
		return core.LedgerEvent{}, fmt.Errorf("save transaction: %w", err)
	}
	e.ID = id

	metrics.LedgerEventsRecorded.WithLabelValues(string(e.Direction())).Inc()
	s.log.LogTransactionRecorded(ctx, e.ID, e.UserID, core.FormatCredits(e.Amount), string(e.Direction()))

	if err := s.publish(ctx, e); err != nil {
		// The transaction is stored; snapshots catch up on the next schedule.
		s.log.LogError(ctx, "Failed to publish ledger.recorded", err, log.ComponentAMQP, log.OpPublish)
	}

	return e, nil
}

func (s *LedgerService) publish(ctx context.Context, e core.LedgerEvent) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger.recorded")
		return nil
	}
	return s.publisher.PublishLedgerRecorded(ctx, amqp.NewLedgerRecordedMessage(e))
}

// List returns transactions with from <= occurredAt <= to.
func (s *LedgerService) List(ctx context.Context, from, to time.Time) ([]core.LedgerEvent, error) {
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, ErrInvalidRange
	}
	events, err := s.store.QueryLedger(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return events, nil
}

// Close closes the store and publisher when they hold resources.
func (s *LedgerService) Close() error {
	var errs []error
	if c, ok := s.store.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
