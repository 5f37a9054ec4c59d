// Package memory is the in-memory adapter for the remote ports. It backs the
// default dev configuration and the tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kopilka/internal/core"
	"kopilka/internal/remote"
)

type Store struct {
	mu         sync.Mutex
	ops        []core.Operation
	wallets    []core.Wallet
	categories []core.Category
	goals      []core.SavingsGoal
}

// Interface conformance
var (
	_ remote.OperationStore    = (*Store)(nil)
	_ remote.WalletDirectory   = (*Store)(nil)
	_ remote.CategoryDirectory = (*Store)(nil)
	_ remote.GoalStore         = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Seed replaces the wallet and category directories.
func (s *Store) Seed(wallets []core.Wallet, categories []core.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets = append([]core.Wallet(nil), wallets...)
	s.categories = append([]core.Category(nil), categories...)
}

func (s *Store) ListOperations(_ context.Context) ([]core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Operation(nil), s.ops...), nil
}

func (s *Store) GetOperation(_ context.Context, id string) (core.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.ops {
		if o.ID == id {
			return o, nil
		}
	}
	return core.Operation{}, remote.ErrNotFound
}

// CreateOperation validates the record, assigns an id and stores it. The
// assigned id turns the caller's pending record into a persisted one.
func (s *Store) CreateOperation(_ context.Context, o core.Operation) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = uuid.NewString()
	s.ops = append(s.ops, o)
	return o.ID, nil
}

func (s *Store) UpdateOperation(_ context.Context, o core.Operation) error {
	if err := o.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ops {
		if s.ops[i].ID == o.ID {
			s.ops[i] = o
			return nil
		}
	}
	return remote.ErrNotFound
}

func (s *Store) DeleteOperation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ops {
		if s.ops[i].ID == id {
			s.ops = append(s.ops[:i], s.ops[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

func (s *Store) ListWallets(_ context.Context) ([]core.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Wallet(nil), s.wallets...), nil
}

func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Category(nil), s.categories...), nil
}

func (s *Store) ListGoals(_ context.Context) ([]core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.SavingsGoal, len(s.goals))
	for i, g := range s.goals {
		out[i] = copyGoal(g)
	}
	return out, nil
}

func (s *Store) GetGoal(_ context.Context, id string) (core.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.goals {
		if g.ID == id {
			return copyGoal(g), nil
		}
	}
	return core.SavingsGoal{}, remote.ErrNotFound
}

func (s *Store) SaveGoal(_ context.Context, g core.SavingsGoal) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	for i := range s.goals {
		if s.goals[i].ID == g.ID {
			s.goals[i] = copyGoal(g)
			return g.ID, nil
		}
	}
	s.goals = append(s.goals, copyGoal(g))
	return g.ID, nil
}

func (s *Store) DeleteGoal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.goals {
		if s.goals[i].ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return nil
		}
	}
	return remote.ErrNotFound
}

// copyGoal detaches the operations slice so callers cannot alias the store.
func copyGoal(g core.SavingsGoal) core.SavingsGoal {
	g.Operations = append([]core.Operation(nil), g.Operations...)
	return g
}
