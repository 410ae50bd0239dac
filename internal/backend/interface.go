package backend

import (
	"context"

	"ecomstudio/internal/amqp"
	"ecomstudio/internal/services"
	"ecomstudio/internal/sheets"
)

// Backend is the ledger store a process reads and writes.
type Backend interface {
	services.LedgerStore
}

type CleanupFunc func() error

// BackendResult bundles the ledger store with the services built on it.
type BackendResult struct {
	Backend Backend
	// Reader is Backend wrapped with query instrumentation; feed it to the
	// stats engine.
	Reader sheets.LedgerReader
	Ledger *services.LedgerService
	// AMQP is nil when AMQP is not configured or unreachable.
	AMQP    *amqp.Client
	Ready   func(ctx context.Context) error
	Cleanup CleanupFunc
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional ledger.recorded publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory backend seed directory
	DataDirectory string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
