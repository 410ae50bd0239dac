package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ecomstudio/internal/core"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("ledger transaction not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Insert stores a validated transaction and returns its ID. An empty ID is
// replaced with a fresh UUID.
func (r *SQLiteRepository) Insert(ctx context.Context, e core.LedgerEvent) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO ledger_transactions (id, user_id, occurred_at, amount, description)
		 VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.OccurredAt.UTC().UnixNano(), core.FormatCredits(e.Amount), e.Description)
	if err != nil {
		return "", fmt.Errorf("insert ledger transaction: %w", err)
	}

	slog.DebugContext(ctx, "Ledger transaction saved to SQLite",
		"id", e.ID,
		"user_id", e.UserID,
		"amount", core.FormatCredits(e.Amount))

	return e.ID, nil
}

// QueryLedger returns every transaction with start <= occurred_at <= end,
// oldest first.
func (r *SQLiteRepository) QueryLedger(ctx context.Context, start, end time.Time) ([]core.LedgerEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, occurred_at, amount, description
		   FROM ledger_transactions
		  WHERE occurred_at >= ? AND occurred_at <= ?
		  ORDER BY occurred_at, id`,
		start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query ledger range: %w", err)
	}
	defer rows.Close()

	var events []core.LedgerEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return events, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (core.LedgerEvent, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, occurred_at, amount, description
		   FROM ledger_transactions WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEvent{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(s scanner) (core.LedgerEvent, error) {
	var (
		e          core.LedgerEvent
		occurredAt int64
		amount     string
	)
	if err := s.Scan(&e.ID, &e.UserID, &occurredAt, &amount, &e.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scan ledger row: %w", err)
	}
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return e, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	e.Amount = v
	e.OccurredAt = time.Unix(0, occurredAt).UTC()
	return e, nil
}
