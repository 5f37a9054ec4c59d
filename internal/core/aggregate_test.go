package core

import (
	"reflect"
	"testing"
	"time"
)

// fixed evaluation instant for every aggregation test
var testNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type testLabels struct{}

func (testLabels) DayLabel(d Date, now time.Time) string {
	switch {
	case d.IsZero():
		return "Unknown"
	case d.SameDay(DateOf(now)):
		return "Today"
	case d.SameDay(DateOf(now.AddDate(0, 0, -1))):
		return "Yesterday"
	default:
		return d.Format("02.01.2006")
	}
}

func op(id string, kind OperationKind, cents int64, desc string, d Date) Operation {
	return Operation{ID: id, Kind: kind, Amount: Money{Cents: cents}, Description: desc, Date: d}
}

func countOps(p FeedPage) int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Operations)
	}
	return n
}

func TestAggregateIdentityReturnsEverything(t *testing.T) {
	ops := []Operation{
		op("1", Expense, 100, "coffee", NewDate(2026, 8, 31)),
		op("2", Income, 5000, "salary", NewDate(2026, 8, 1)),
		op("", Expense, 300, "pending", NewDate(2026, 8, 30)),
		op("4", Income, 50, "", Date{}), // malformed date
	}
	a := NewAggregator(testLabels{})

	page := a.Aggregate(ops, FilterCriteria{}, 0, 0, testNow)
	if got := countOps(page); got != len(ops) {
		t.Fatalf("identity filter must keep all %d operations, got %d", len(ops), got)
	}
	if page.HasMore {
		t.Fatal("unbounded page must not report more")
	}
}

func TestAggregateDeterministic(t *testing.T) {
	ops := []Operation{
		op("1", Expense, 100, "a", NewDate(2026, 8, 31)),
		op("2", Income, 200, "b", NewDate(2026, 8, 30)),
		op("3", Expense, 300, "c", NewDate(2026, 8, 30)),
	}
	a := NewAggregator(testLabels{})
	first := a.Aggregate(ops, FilterCriteria{Query: "a"}, 10, 1, testNow)
	second := a.Aggregate(ops, FilterCriteria{Query: "a"}, 10, 1, testNow)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same inputs must yield identical output")
	}
}

func TestAggregateGroupingLaw(t *testing.T) {
	ops := []Operation{
		op("1", Expense, 1, "x", NewDate(2026, 8, 29)),
		op("2", Income, 2, "x", NewDate(2026, 8, 31)),
		op("3", Expense, 3, "x", NewDate(2026, 8, 30)),
		op("4", Income, 4, "x", NewDate(2026, 8, 31)),
		op("5", Income, 5, "x", Date{}),
	}
	a := NewAggregator(testLabels{})
	page := a.Aggregate(ops, FilterCriteria{}, 0, 0, testNow)

	var flat []Operation
	for _, g := range page.Groups {
		for _, o := range g.Operations {
			if !g.Date.SameDay(o.Date) {
				t.Fatalf("operation %s landed in group %s", o.ID, g.Label)
			}
			flat = append(flat, o)
		}
	}
	for i := 1; i < len(flat); i++ {
		if flat[i].Date.After(flat[i-1].Date.Time) {
			t.Fatalf("concatenated groups not descending at %d", i)
		}
	}
	// ties keep input order: ops 2 and 4 share a day
	if flat[0].ID != "2" || flat[1].ID != "4" {
		t.Fatalf("same-day order not stable: got %s,%s", flat[0].ID, flat[1].ID)
	}
	if last := flat[len(flat)-1]; last.ID != "5" {
		t.Fatalf("malformed date must sort last, got %s", last.ID)
	}
}

func TestAggregateKindFilterScenario(t *testing.T) {
	ops := []Operation{
		op("1", Expense, 10000, "", DateOf(testNow)),
		op("2", Income, 5000, "", DateOf(testNow.AddDate(0, 0, -1))),
	}
	a := NewAggregator(testLabels{})
	page := a.Aggregate(ops, FilterCriteria{Kind: Expense}, 0, 0, testNow)

	if len(page.Groups) != 1 {
		t.Fatalf("expected one group, got %d", len(page.Groups))
	}
	g := page.Groups[0]
	if g.Label != "Today" {
		t.Fatalf("expected label Today, got %q", g.Label)
	}
	if len(g.Operations) != 1 || g.Operations[0].Kind != Expense {
		t.Fatalf("expected the single expense, got %+v", g.Operations)
	}
}

func TestAggregateTextFilter(t *testing.T) {
	ops := []Operation{
		op("1", Expense, 1, "Coffee beans", NewDate(2026, 8, 31)),
		{ID: "2", Kind: Expense, Amount: Money{Cents: 2}, Date: NewDate(2026, 8, 31),
			Category: Ref{ID: "c1", Name: "Products"}},
		op("3", Income, 3, "salary", NewDate(2026, 8, 31)),
	}
	a := NewAggregator(testLabels{})

	cases := []struct {
		query string
		want  []string
	}{
		{"coffee", []string{"1"}},
		{"PRODUCT", []string{"2"}},
		{"", []string{"1", "2", "3"}},
		{"nothing-matches", nil},
	}
	for _, tc := range cases {
		page := a.Aggregate(ops, FilterCriteria{Query: tc.query}, 0, 0, testNow)
		var got []string
		for _, g := range page.Groups {
			for _, o := range g.Operations {
				got = append(got, o.ID)
			}
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("query %q: expected %v, got %v", tc.query, tc.want, got)
		}
	}
}

func TestAggregateWalletFilter(t *testing.T) {
	ops := []Operation{
		{ID: "1", Kind: Expense, Amount: Money{Cents: 1}, Date: NewDate(2026, 8, 31), Wallet: NewRef("w1")},
		{ID: "2", Kind: Expense, Amount: Money{Cents: 2}, Date: NewDate(2026, 8, 31), Wallet: Ref{ID: "w2", Name: "Cash"}},
		{ID: "3", Kind: Expense, Amount: Money{Cents: 3}, Date: NewDate(2026, 8, 31)}, // no wallet
	}
	a := NewAggregator(testLabels{})

	page := a.Aggregate(ops, FilterCriteria{WalletID: "w2"}, 0, 0, testNow)
	if countOps(page) != 1 || page.Groups[0].Operations[0].ID != "2" {
		t.Fatalf("embedded-object wallet did not match: %+v", page.Groups)
	}
	page = a.Aggregate(ops, FilterCriteria{WalletID: "w1"}, 0, 0, testNow)
	if countOps(page) != 1 || page.Groups[0].Operations[0].ID != "1" {
		t.Fatalf("bare-id wallet did not match: %+v", page.Groups)
	}
}

func TestAggregateTimeWindow(t *testing.T) {
	ops := []Operation{
		op("today", Expense, 1, "", DateOf(testNow)),
		op("6d", Expense, 1, "", DateOf(testNow.AddDate(0, 0, -6))),
		op("8d", Expense, 1, "", DateOf(testNow.AddDate(0, 0, -8))),
		op("40d", Expense, 1, "", DateOf(testNow.AddDate(0, 0, -40))),
		op("bad", Expense, 1, "", Date{}),
	}
	a := NewAggregator(testLabels{})

	cases := []struct {
		window TimeWindow
		want   int
	}{
		{AllTime, 5},
		{LastWeek, 2},
		{LastMonth, 3},
	}
	for _, tc := range cases {
		page := a.Aggregate(ops, FilterCriteria{Window: tc.window}, 0, 0, testNow)
		if got := countOps(page); got != tc.want {
			t.Fatalf("window %s: expected %d operations, got %d", tc.window, tc.want, got)
		}
	}
}

func TestLastMonthClampsDayOfMonth(t *testing.T) {
	// March 31 minus one month must clamp to the last day of February,
	// not normalize into March.
	now := time.Date(2026, 3, 31, 10, 0, 0, 0, time.UTC)
	checker := LastMonthChecker{}

	if !checker.Contains(NewDate(2026, 2, 28), now) {
		t.Fatal("Feb 28 must be inside the window from Mar 31")
	}
	if checker.Contains(NewDate(2026, 2, 27), now) {
		t.Fatal("Feb 27 must be outside the window from Mar 31")
	}

	// Leap year: Mar 31 2024 -> Feb 29 2024.
	leapNow := time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)
	if !checker.Contains(NewDate(2024, 2, 29), leapNow) {
		t.Fatal("Feb 29 must be inside the window in a leap year")
	}
	if checker.Contains(NewDate(2024, 2, 28), leapNow) {
		t.Fatal("Feb 28 must be outside the window in a leap year")
	}

	// January wraps into December of the previous year.
	jan := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !checker.Contains(NewDate(2025, 12, 15), jan) {
		t.Fatal("Dec 15 must be inside the window from Jan 15")
	}
}

func TestAggregatePagination(t *testing.T) {
	var ops []Operation
	for day := 1; day <= 9; day++ {
		ops = append(ops, op(string(rune('0'+day)), Expense, 1, "", NewDate(2026, 8, day)))
	}
	a := NewAggregator(testLabels{})

	page := a.Aggregate(ops, FilterCriteria{}, 4, 1, testNow)
	if got := countOps(page); got != 4 {
		t.Fatalf("expected window of 4, got %d", got)
	}
	if !page.HasMore {
		t.Fatal("expected more pages")
	}
	if page.Total != 9 {
		t.Fatalf("expected total 9, got %d", page.Total)
	}

	page = a.Aggregate(ops, FilterCriteria{}, 4, 3, testNow)
	if got := countOps(page); got != 9 {
		t.Fatalf("expected all 9 on the last window, got %d", got)
	}
	if page.HasMore {
		t.Fatal("window covers everything, HasMore must be false")
	}
}

func TestFilterCriteriaIsIdentity(t *testing.T) {
	if !(FilterCriteria{}).IsIdentity() {
		t.Fatal("zero criteria must be the identity filter")
	}
	if (FilterCriteria{Kind: Income}).IsIdentity() {
		t.Fatal("kind filter is not identity")
	}
	if !(FilterCriteria{Window: AllTime}).IsIdentity() {
		t.Fatal("explicit AllTime is still identity")
	}
}
