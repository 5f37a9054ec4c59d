package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"kopilka/internal/clock"
	"kopilka/internal/core"
	"kopilka/internal/remote"
)

// ErrRowOutOfRange is returned when an operation row index does not exist on
// the goal.
var ErrRowOutOfRange = errors.New("operation row out of range")

// GoalView is a goal decorated with its derived numbers, ready for rendering.
type GoalView struct {
	core.SavingsGoal
	PendingDelta    core.Money
	PreviewAmount   core.Money
	ProgressPercent float64
	PreviewPercent  float64
	HasPending      bool
}

func viewOf(g core.SavingsGoal) GoalView {
	preview := core.PreviewAmount(g)
	return GoalView{
		SavingsGoal:     g,
		PendingDelta:    core.PendingDelta(g.Operations),
		PreviewAmount:   preview,
		ProgressPercent: g.Progress(),
		PreviewPercent:  core.ProgressPercent(preview, g.TargetAmount),
		HasPending:      core.HasPending(g.Operations),
	}
}

// GoalService orchestrates savings goals: persistence, derived numbers, and
// the per-goal row editing state. Editor state is in-process only; it is
// never persisted.
type GoalService struct {
	store remote.GoalStore
	ops   remote.OperationStore
	clk   clock.Clock

	mu      sync.Mutex
	editors map[string]*core.GoalEditor
}

// NewGoalService creates a goal service. ops may be nil; committing pending
// rows then only updates the goal itself.
func NewGoalService(store remote.GoalStore, ops remote.OperationStore, clk clock.Clock) *GoalService {
	return &GoalService{
		store:   store,
		ops:     ops,
		clk:     clk,
		editors: make(map[string]*core.GoalEditor),
	}
}

func (s *GoalService) List(ctx context.Context) ([]GoalView, error) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	views := make([]GoalView, len(goals))
	for i, g := range goals {
		views[i] = viewOf(g)
	}
	return views, nil
}

func (s *GoalService) Get(ctx context.Context, id string) (GoalView, error) {
	g, err := s.store.GetGoal(ctx, id)
	if err != nil {
		return GoalView{}, err
	}
	return viewOf(g), nil
}

func (s *GoalService) Save(ctx context.Context, g core.SavingsGoal) (string, error) {
	return s.store.SaveGoal(ctx, g)
}

func (s *GoalService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteGoal(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.editors, id)
	s.mu.Unlock()
	return nil
}

// AddOperation appends a pending row with the kind's default description and
// puts it into editing. The row stays pending until committed.
func (s *GoalService) AddOperation(ctx context.Context, goalID string, kind core.OperationKind) (int, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return 0, err
	}
	g.Operations = append(g.Operations, core.Operation{
		Kind:        kind,
		Description: core.DefaultDescription(kind),
		Date:        core.DateOf(s.clk.Now()),
	})
	if _, err := s.store.SaveGoal(ctx, g); err != nil {
		return 0, err
	}
	row := len(g.Operations) - 1
	s.editor(goalID).StartEdit(row)
	return row, nil
}

// ToggleOperationKind flips a row between income and expense, resetting an
// auto-generated description to the new kind's default.
func (s *GoalService) ToggleOperationKind(ctx context.Context, goalID string, row int) error {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(g.Operations) {
		return ErrRowOutOfRange
	}
	core.ToggleKind(&g.Operations[row])
	_, err = s.store.SaveGoal(ctx, g)
	return err
}

// UpdateOperation replaces a row and finishes editing it.
func (s *GoalService) UpdateOperation(ctx context.Context, goalID string, row int, op core.Operation) error {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(g.Operations) {
		return ErrRowOutOfRange
	}
	if err := op.Amount.Validate(); err != nil {
		return err
	}
	op.ID = g.Operations[row].ID
	g.Operations[row] = op
	if _, err := s.store.SaveGoal(ctx, g); err != nil {
		return err
	}
	s.editor(goalID).Finish()
	return nil
}

// RemoveOperation deletes a row and finishes editing.
func (s *GoalService) RemoveOperation(ctx context.Context, goalID string, row int) error {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(g.Operations) {
		return ErrRowOutOfRange
	}
	g.Operations = append(g.Operations[:row], g.Operations[row+1:]...)
	if _, err := s.store.SaveGoal(ctx, g); err != nil {
		return err
	}
	s.editor(goalID).Finish()
	return nil
}

// Commit materializes all pending rows: each is created in the operation
// store, the goal's current amount absorbs the pending delta, and the rows
// stop being pending.
func (s *GoalService) Commit(ctx context.Context, goalID string) (GoalView, error) {
	g, err := s.store.GetGoal(ctx, goalID)
	if err != nil {
		return GoalView{}, err
	}

	var delta core.Money
	for i := range g.Operations {
		if !g.Operations[i].Pending() {
			continue
		}
		// Half-filled rows contribute nothing and stay pending.
		if err := g.Operations[i].Validate(); err != nil {
			continue
		}
		delta = delta.Add(core.PendingDelta(g.Operations[i : i+1]))
		if s.ops != nil {
			id, err := s.ops.CreateOperation(ctx, g.Operations[i])
			if err != nil {
				return GoalView{}, fmt.Errorf("commit pending operation: %w", err)
			}
			g.Operations[i].ID = id
		} else {
			g.Operations[i].ID = uuid.NewString()
		}
	}
	g.CurrentAmount = g.CurrentAmount.Add(delta)

	if _, err := s.store.SaveGoal(ctx, g); err != nil {
		return GoalView{}, err
	}
	s.editor(goalID).Finish()
	return viewOf(g), nil
}

// StartEditing marks a row as the single one being edited; any previously
// editing row silently returns to idle.
func (s *GoalService) StartEditing(goalID string, row int) {
	s.editor(goalID).StartEdit(row)
}

func (s *GoalService) FinishEditing(goalID string) {
	s.editor(goalID).Finish()
}

func (s *GoalService) EditingRow(goalID string) int {
	return s.editor(goalID).EditingRow()
}

func (s *GoalService) editor(goalID string) *core.GoalEditor {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.editors[goalID]
	if !ok {
		e = core.NewGoalEditor()
		s.editors[goalID] = e
	}
	return e
}
