package backend

import (
	"context"
	"fmt"
	"log/slog"

	"ecomstudio/internal/adapters"
	"ecomstudio/internal/amqp"
	"ecomstudio/internal/services"
	"ecomstudio/internal/sheets/memory"
	"ecomstudio/internal/storage"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store Backend
		ready func(context.Context) error
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store, ready = repo, repo.Ping
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		mem := memory.NewFromFiles(dataDir)
		store, ready = mem, func(context.Context) error { return nil }
		f.logger.InfoContext(ctx, "Initialized memory backend",
			"data_directory", dataDir,
			"seeded_transactions", mem.Len())
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	client := f.connectPublisher(ctx, config)
	// Keep the interface nil when there is no client.
	var publisher services.Publisher
	if client != nil {
		publisher = client
	}
	svc := services.NewLedgerService(store, publisher)

	result := &BackendResult{
		Backend: store,
		Reader:  adapters.NewInstrumentedReader(store, config.Type.String()),
		Ledger:  svc,
		AMQP:    client,
		Ready:   ready,
		Cleanup: svc.Close,
	}
	return result, nil
}

// connectPublisher dials AMQP when configured. Failure is logged and the
// backend runs without publishing.
func (f *DefaultFactory) connectPublisher(ctx context.Context, config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without ledger notifications", "error", err)
		return nil
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
