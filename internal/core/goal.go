package core

// Goal progress calculator: live preview of a savings goal balance while some
// of its operations are still pending (unsaved), plus the edit-row state
// machine used while a goal's operation list is being edited.

// Auto-generated default descriptions per kind. The localized variants appear
// in legacy records; both sets count as "auto" when deciding whether a kind
// toggle may rewrite the description.
const (
	defaultIncomeDescription  = "New income"
	defaultExpenseDescription = "New expense"

	legacyIncomeDescription  = "Новый доход"
	legacyExpenseDescription = "Новый расход"
)

// DefaultDescription returns the auto-generated description for a kind.
func DefaultDescription(k OperationKind) string {
	if k == Expense {
		return defaultExpenseDescription
	}
	return defaultIncomeDescription
}

// IsDefaultDescription reports whether s is one of the auto-generated
// defaults, for either kind, in either token set.
func IsDefaultDescription(s string) bool {
	switch s {
	case defaultIncomeDescription, defaultExpenseDescription,
		legacyIncomeDescription, legacyExpenseDescription:
		return true
	}
	return false
}

// PendingDelta sums the not-yet-persisted operations: +amount for income,
// -amount for expense. Order of the input list does not matter.
func PendingDelta(ops []Operation) Money {
	var delta Money
	for _, o := range ops {
		if !o.Pending() {
			continue
		}
		switch o.Kind {
		case Income:
			delta = delta.Add(o.Amount)
		case Expense:
			delta = delta.Add(o.Amount.Neg())
		}
	}
	return delta
}

// HasPending reports whether at least one operation lacks a persisted id.
func HasPending(ops []Operation) bool {
	for _, o := range ops {
		if o.Pending() {
			return true
		}
	}
	return false
}

// PreviewAmount is the goal balance the store would hold once every pending
// operation is saved.
func PreviewAmount(g SavingsGoal) Money {
	return g.CurrentAmount.Add(PendingDelta(g.Operations))
}

// ProgressPercent returns current/target as a percentage capped at 100, or 0
// when target is not positive. A negative current passes through uncapped;
// the source behavior clamps only the upper bound.
func ProgressPercent(current, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	pct := float64(current.Cents) / float64(target.Cents) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Progress is the goal's persisted progress percentage.
func (g SavingsGoal) Progress() float64 {
	return ProgressPercent(g.CurrentAmount, g.TargetAmount)
}

// ToggleKind flips an operation between income and expense. The description
// is reset to the new kind's default only when the current one is empty or is
// itself an auto-generated default; user-entered text is never overwritten.
func ToggleKind(o *Operation) {
	if o.Kind == Income {
		o.Kind = Expense
	} else {
		o.Kind = Income
	}
	if o.Description == "" || IsDefaultDescription(o.Description) {
		o.Description = DefaultDescription(o.Kind)
	}
}

// GoalEditor tracks which row of a goal's operation list is being edited. At
// most one row is in the editing state; starting an edit elsewhere implicitly
// returns the previous row to idle. Rows are mutated in place, so leaving a
// row needs no explicit discard.
type GoalEditor struct {
	editing int
}

func NewGoalEditor() *GoalEditor {
	return &GoalEditor{editing: -1}
}

// StartEdit moves the given row into the editing state.
func (e *GoalEditor) StartEdit(row int) {
	e.editing = row
}

// Finish returns the current row to idle. Called on save or delete.
func (e *GoalEditor) Finish() {
	e.editing = -1
}

// IsEditing reports whether the given row is the one being edited.
func (e *GoalEditor) IsEditing(row int) bool {
	return e.editing >= 0 && e.editing == row
}

// EditingRow returns the row in the editing state, or -1 when idle.
func (e *GoalEditor) EditingRow() int {
	return e.editing
}
