// Request parsing utilities: the feed query string maps onto filter criteria
// here, in one place, so handlers and cache keys agree on the shape.
package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"kopilka/internal/core"
)

// FeedQuery is the parsed form of the feed endpoint's query string.
type FeedQuery struct {
	Criteria  core.FilterCriteria
	PageCount int
}

// ParseFeedQuery extracts filter criteria and the paging position from query
// parameters. Unknown kind or window tokens degrade to "no filter" rather
// than failing the request; the raw values were user-facing UI state, not an
// API contract.
func ParseFeedQuery(query url.Values) FeedQuery {
	criteria := core.FilterCriteria{
		Query:    sanitizeInput(query.Get("q")),
		Window:   core.ParseTimeWindow(strings.TrimSpace(query.Get("window"))),
		WalletID: strings.TrimSpace(query.Get("wallet")),
	}

	if raw := strings.TrimSpace(query.Get("kind")); raw != "" {
		if kind, err := core.ParseKind(raw); err == nil {
			criteria.Kind = kind
		}
	}

	pageCount := 1
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			pageCount = n
		}
	}

	return FeedQuery{Criteria: criteria, PageCount: pageCount}
}

// CacheKey renders the query into a stable string for response caching.
func (q FeedQuery) CacheKey() string {
	return fmt.Sprintf("q=%s|kind=%s|window=%s|wallet=%s|page=%d",
		strings.ToLower(q.Criteria.Query),
		q.Criteria.Kind,
		q.Criteria.Window,
		q.Criteria.WalletID,
		q.PageCount)
}
