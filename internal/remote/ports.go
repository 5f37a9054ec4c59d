// Package remote defines the ports to the external data collaborators and
// holds their adapters: the REST backend, the in-memory store and the Google
// Sheets exporter.
package remote

import (
	"context"
	"errors"

	"kopilka/internal/core"
)

// ErrNotFound is returned when a record does not exist in the store.
var ErrNotFound = errors.New("record not found")

// Ports for outbound adapters.
type (
	// OperationStore persists operations. Create and Update accept partial
	// records; the store fills what the caller omitted.
	OperationStore interface {
		ListOperations(ctx context.Context) ([]core.Operation, error)
		GetOperation(ctx context.Context, id string) (core.Operation, error)
		// CreateOperation returns the id assigned by the store; the caller's
		// record stops being pending once it adopts the id.
		CreateOperation(ctx context.Context, o core.Operation) (string, error)
		UpdateOperation(ctx context.Context, o core.Operation) error
		DeleteOperation(ctx context.Context, id string) error
	}

	// WalletDirectory lists the lightweight wallet records.
	WalletDirectory interface {
		ListWallets(ctx context.Context) ([]core.Wallet, error)
	}

	// CategoryDirectory lists the lightweight category records.
	CategoryDirectory interface {
		ListCategories(ctx context.Context) ([]core.Category, error)
	}

	// GoalStore persists savings goals together with their operation lists.
	GoalStore interface {
		ListGoals(ctx context.Context) ([]core.SavingsGoal, error)
		GetGoal(ctx context.Context, id string) (core.SavingsGoal, error)
		SaveGoal(ctx context.Context, g core.SavingsGoal) (string, error)
		DeleteGoal(ctx context.Context, id string) error
	}

	// OperationExporter appends operations to an external append-only target
	// (the Sheets exporter). Export targets never serve reads.
	OperationExporter interface {
		ExportOperation(ctx context.Context, o core.Operation) (ref string, err error)
	}
)
