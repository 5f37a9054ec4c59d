package core

import (
	"sort"
	"strings"
	"time"
)

type (
	// FilterCriteria narrows the operation feed. The zero value is the
	// identity filter and passes every record. All terms AND-compose.
	FilterCriteria struct {
		// Query is matched case-insensitively against the description and
		// the resolved category display name.
		Query string
		// Kind keeps only one direction; empty means both.
		Kind OperationKind
		// Window keeps only recent operations, relative to evaluation time.
		Window TimeWindow
		// WalletID keeps only operations of one wallet; empty means all.
		WalletID string
	}

	// DateGroup is a bucket of operations sharing a calendar day, newest
	// first, labeled for display.
	DateGroup struct {
		Label      string
		Date       Date
		Operations []Operation
	}

	// FeedPage is one paginated view of the filtered feed.
	FeedPage struct {
		Groups  []DateGroup
		Total   int
		HasMore bool
	}

	// DayLabeler renders the display label for a group's calendar day
	// ("Today", "Yesterday", or a localized short date). Implementations are
	// pure string producers.
	DayLabeler interface {
		DayLabel(d Date, now time.Time) string
	}

	// Aggregator turns a raw operation snapshot into a filtered, paginated,
	// date-grouped feed. It is stateless: identical inputs yield identical
	// output.
	Aggregator struct {
		labels DayLabeler
	}
)

func NewAggregator(labels DayLabeler) *Aggregator {
	return &Aggregator{labels: labels}
}

// IsIdentity reports whether the criteria pass every operation.
func (c FilterCriteria) IsIdentity() bool {
	return c.Query == "" && c.Kind == "" && (c.Window == "" || c.Window == AllTime) && c.WalletID == ""
}

// Matches applies every filter term to one operation. Kind comparison happens
// on canonical values only; callers are expected to have parsed raw tokens
// through ParseKind already.
func (c FilterCriteria) Matches(o Operation, now time.Time) bool {
	if !c.matchesQuery(o) {
		return false
	}
	if c.Kind != "" && o.Kind != c.Kind {
		return false
	}
	if !CheckerFor(c.Window).Contains(o.Date, now) {
		return false
	}
	if c.WalletID != "" && !o.Wallet.Matches(c.WalletID) {
		return false
	}
	return true
}

func (c FilterCriteria) matchesQuery(o Operation) bool {
	q := strings.ToLower(strings.TrimSpace(c.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(o.Description), q) {
		return true
	}
	return strings.Contains(strings.ToLower(o.Category.DisplayName()), q)
}

// Aggregate runs the feed pipeline: filter, sort newest first, cut the
// pagination window, group by calendar day. Non-positive pageSize or
// pageCount disables pagination. Operations with a malformed (zero) date sort
// last, never match a window narrower than AllTime, and are still returned on
// the identity path.
func (a *Aggregator) Aggregate(ops []Operation, c FilterCriteria, pageSize, pageCount int, now time.Time) FeedPage {
	filtered := make([]Operation, 0, len(ops))
	for _, o := range ops {
		if c.Matches(o, now) {
			filtered = append(filtered, o)
		}
	}

	// Zero dates are the time minimum, so descending order puts them last.
	// Ties keep input order.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date.Time)
	})

	total := len(filtered)
	page := filtered
	hasMore := false
	if pageSize > 0 && pageCount > 0 {
		window := pageSize * pageCount
		if window < total {
			page = filtered[:window]
			hasMore = true
		}
	}

	return FeedPage{
		Groups:  a.group(page, now),
		Total:   total,
		HasMore: hasMore,
	}
}

// group buckets a date-sorted slice by calendar day. Group order follows from
// the sort: each group inherits the position of its newest operation.
func (a *Aggregator) group(ops []Operation, now time.Time) []DateGroup {
	var groups []DateGroup
	for _, o := range ops {
		if n := len(groups); n > 0 && groups[n-1].Date.SameDay(o.Date) {
			groups[n-1].Operations = append(groups[n-1].Operations, o)
			continue
		}
		groups = append(groups, DateGroup{
			Label:      a.labels.DayLabel(o.Date, now),
			Date:       DateOf(o.Date.Time),
			Operations: []Operation{o},
		})
	}
	return groups
}
