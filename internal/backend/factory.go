package backend

import (
	"context"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/prefs"
	"kopilka/internal/remote/memory"
	"kopilka/internal/remote/rest"
	"kopilka/internal/services"
	"kopilka/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case RESTBackend:
		return f.createRESTBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// sqliteAdapter routes operation writes through the operation service so
// every local change lands in the sync queue; reads go straight to the
// repository.
type sqliteAdapter struct {
	*storage.SQLiteRepository
	ops *services.OperationService
}

func (a *sqliteAdapter) CreateOperation(ctx context.Context, o core.Operation) (string, error) {
	return a.ops.CreateOperation(ctx, o)
}

func (a *sqliteAdapter) UpdateOperation(ctx context.Context, o core.Operation) error {
	return a.ops.UpdateOperation(ctx, o)
}

func (a *sqliteAdapter) DeleteOperation(ctx context.Context, id string) error {
	return a.ops.DeleteOperation(ctx, id)
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; without it changes still queue locally.
	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
			amqpClient = nil
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	operationService := services.NewOperationService(sqliteRepo, amqpClient)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Backend: &sqliteAdapter{SQLiteRepository: sqliteRepo, ops: operationService},
		Prefs:   sqliteRepo,
		Cleanup: operationService.Close,
	}, nil
}

func (f *DefaultFactory) createRESTBackend(config Config) (*BackendResult, error) {
	client, err := rest.New(config.RemoteBaseURL, config.RemoteToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize REST client: %w", err)
	}

	f.logger.Info("Initialized REST backend", "base_url", config.RemoteBaseURL)

	// Preferences stay local; the remote API has no prefs surface.
	return &BackendResult{
		Backend: client,
		Prefs:   prefs.NewMemoryStore(),
		Cleanup: nil,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	store := memory.New()
	store.Seed(defaultWallets(), defaultCategories())

	f.logger.Info("Initialized memory backend")

	return &BackendResult{
		Backend: store,
		Prefs:   prefs.NewMemoryStore(),
		Cleanup: nil,
	}, nil
}

// Starter directories for the dev backend.
func defaultWallets() []core.Wallet {
	return []core.Wallet{
		{ID: "wallet-cash", Name: "Cash", Icon: "banknote"},
		{ID: "wallet-card", Name: "Card", Icon: "credit-card"},
	}
}

func defaultCategories() []core.Category {
	return []core.Category{
		{ID: "cat-groceries", Name: "Groceries", Kind: core.Expense, Icon: "cart"},
		{ID: "cat-transport", Name: "Transport", Kind: core.Expense, Icon: "bus"},
		{ID: "cat-salary", Name: "Salary", Kind: core.Income, Icon: "briefcase"},
	}
}
