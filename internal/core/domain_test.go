package core

import (
	"testing"
	"time"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want OperationKind
		ok   bool
	}{
		{"income", Income, true},
		{"Income", Income, true},
		{"EXPENSE", Expense, true},
		{" expense ", Expense, true},
		{"Доход", Income, true},
		{"расход", Expense, true},
		{"РАСХОД", Expense, true},
		{"transfer", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestOperationValidate(t *testing.T) {
	good := Operation{
		Kind:        Expense,
		Amount:      Money{Cents: 100},
		Description: "groceries",
		Date:        NewDate(2026, 8, 30),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// An empty description is allowed.
	noDesc := good
	noDesc.Description = ""
	if err := noDesc.Validate(); err != nil {
		t.Fatalf("empty description should validate, got %v", err)
	}

	bads := []Operation{
		{Kind: "transfer", Amount: Money{Cents: 1}, Date: NewDate(2026, 1, 1)},
		{Kind: Income, Amount: Money{Cents: 0}, Date: NewDate(2026, 1, 1)},
		{Kind: Income, Amount: Money{Cents: -5}, Date: NewDate(2026, 1, 1)},
		{Kind: Income, Amount: Money{Cents: 1}, Date: Date{Time: time.Time{}}},
	}
	for i, o := range bads {
		if err := o.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestSavingsGoalValidate(t *testing.T) {
	if err := (SavingsGoal{Name: "Vacation", TargetAmount: Money{Cents: 120000}}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (SavingsGoal{Name: "", TargetAmount: Money{Cents: 1}}).Validate(); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := (SavingsGoal{Name: "x", TargetAmount: Money{Cents: 0}}).Validate(); err == nil {
		t.Fatal("expected error for zero target")
	}
}

func TestNewDate(t *testing.T) {
	// Month is a time.Month so both named constants and numeric literals
	// work at the call site, same shape as time.Date.
	d := NewDate(2026, time.February, 28)
	if !d.SameDay(NewDate(2026, 2, 28)) {
		t.Fatal("named and numeric month forms disagree")
	}
	y, m, day := d.Date()
	if y != 2026 || m != time.February || day != 28 {
		t.Fatalf("got %d-%v-%d", y, m, day)
	}
	if h, min, sec := d.Clock(); h != 0 || min != 0 || sec != 0 {
		t.Fatal("date not truncated to midnight")
	}
}

func TestDateSameDay(t *testing.T) {
	a := NewDate(2026, 8, 31)
	b := DateOf(time.Date(2026, 8, 31, 23, 59, 0, 0, time.UTC))
	if !a.SameDay(b) {
		t.Fatal("expected same day")
	}
	if a.SameDay(NewDate(2026, 9, 1)) {
		t.Fatal("expected different day")
	}
}
