package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  OperationKind = "income"
	Expense OperationKind = "expense"
)

type (
	// OperationKind is the canonical direction of an operation. Source data
	// may carry localized tokens; ParseKind is the only place they are mapped.
	OperationKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Operation is a single income or expense record. An empty ID marks a
	// pending operation that the external store has not confirmed yet.
	Operation struct {
		ID          string
		Kind        OperationKind
		Amount      Money
		Description string
		Date        Date
		Wallet      Ref
		Category    Ref
	}

	Wallet struct {
		ID    string
		Name  string
		Color string
		Icon  string
	}

	Category struct {
		ID    string
		Name  string
		Color string
		Icon  string
		Kind  OperationKind // empty when the category serves both kinds
	}

	// SavingsGoal tracks a target amount against a persisted baseline plus
	// a working list of operations, some of which may still be pending.
	SavingsGoal struct {
		ID            string
		Name          string
		TargetAmount  Money
		CurrentAmount Money
		Operations    []Operation
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidKind   = errors.New("invalid operation kind")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidTarget = errors.New("invalid goal target")
	ErrEmptyName     = errors.New("empty name")
)

// kindTokens maps every accepted representation, lowercased, to its canonical
// kind. The Cyrillic tokens come from legacy records. Comparisons elsewhere
// must use the canonical value, never these strings.
var kindTokens = map[string]OperationKind{
	"income":  Income,
	"expense": Expense,
	"доход":   Income,
	"расход":  Expense,
}

// ParseKind canonicalizes an operation kind token. It accepts the English and
// localized representations case-insensitively.
func ParseKind(s string) (OperationKind, error) {
	k, ok := kindTokens[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidKind
	}
	return k, nil
}

func (k OperationKind) Valid() bool {
	return k == Income || k == Expense
}

// NewDate creates a Date from year, month, day at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// SameDay reports whether two dates fall on the same calendar day.
func (d Date) SameDay(other Date) bool {
	y1, m1, d1 := d.Date()
	y2, m2, d2 := other.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Pending reports whether the operation has not been persisted yet.
func (o Operation) Pending() bool {
	return o.ID == ""
}

// Validate checks an operation at the point of commit. The description may be
// empty; malformed kinds, dates and non-positive amounts are rejected here so
// no state is mutated for them.
func (o Operation) Validate() error {
	if !o.Kind.Valid() {
		return ErrInvalidKind
	}
	if err := o.Date.Validate(); err != nil {
		return err
	}
	if len(o.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	return o.Amount.Validate()
}

func (g SavingsGoal) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return ErrEmptyName
	}
	if g.TargetAmount.Cents <= 0 {
		return ErrInvalidTarget
	}
	return nil
}
