package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kopilka/internal/backend"
	"kopilka/internal/clock"
	"kopilka/internal/core"
	"kopilka/internal/prefs"
	"kopilka/internal/remote/memory"
	"kopilka/internal/services"
)

type isoLabels struct{}

func (isoLabels) DayLabel(d core.Date, _ time.Time) string { return d.Format("2006-01-02") }

func newTestServer(t *testing.T) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.Seed(
		[]core.Wallet{{ID: "w1", Name: "Cash"}},
		[]core.Category{{ID: "c1", Name: "Groceries"}},
	)

	feed := services.NewFeedService(store, store, store,
		core.NewAggregator(isoLabels{}), clock.System{},
		services.FeedConfig{PageSize: 2})
	goals := services.NewGoalService(store, store, clock.System{})
	preferences := prefs.NewService(prefs.NewMemoryStore())

	var _ backend.Backend = store
	srv := NewServer(":0", Deps{Backend: store, Feed: feed, Goals: goals, Prefs: preferences})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
}

type feedBody struct {
	Groups []struct {
		Label      string `json:"label"`
		Operations []struct {
			ID          string `json:"id"`
			Kind        string `json:"kind"`
			Description string `json:"description"`
		} `json:"operations"`
	} `json:"groups"`
	Total   int  `json:"total"`
	HasMore bool `json:"has_more"`
}

func (b feedBody) visible() int {
	n := 0
	for _, g := range b.Groups {
		n += len(g.Operations)
	}
	return n
}

type goalBody struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TargetCents  int64  `json:"target_cents"`
	CurrentCents int64  `json:"current_cents"`
	TargetLabel  string `json:"target_label"`
	CurrentLabel string `json:"current_label"`
	PreviewLabel string `json:"preview_label"`
	Operations   []struct {
		ID          string `json:"id"`
		Kind        string `json:"kind"`
		Description string `json:"description"`
	} `json:"operations"`
	PendingDeltaCents int64   `json:"pending_delta_cents"`
	PreviewCents      int64   `json:"preview_cents"`
	ProgressPercent   float64 `json:"progress_percent"`
	PreviewPercent    float64 `json:"preview_percent"`
	HasPending        bool    `json:"has_pending"`
	EditingRow        int     `json:"editing_row"`
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "")
		if rr.Code != 200 {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateOperationAndFeed(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/operations",
		`{"kind":"expense","amount":12.50,"date":"2026-08-30","description":"Coffee beans","wallet":"w1","category":"c1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decodeBody(t, rr, &created)
	if created["id"] == "" {
		t.Fatal("expected assigned id")
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/feed", "")
	if rr.Code != 200 {
		t.Fatalf("feed status=%d", rr.Code)
	}
	var feed feedBody
	decodeBody(t, rr, &feed)
	if feed.Total != 1 || feed.visible() != 1 {
		t.Fatalf("feed total=%d visible=%d, want 1/1", feed.Total, feed.visible())
	}
	if got := feed.Groups[0].Operations[0].Description; got != "Coffee beans" {
		t.Fatalf("description=%q", got)
	}

	// Kind filter excludes the only operation.
	rr = doJSON(t, srv, http.MethodGet, "/api/feed?kind=income", "")
	decodeBody(t, rr, &feed)
	if feed.Total != 0 {
		t.Fatalf("filtered total=%d, want 0", feed.Total)
	}
}

func TestCreateOperationValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{`, http.StatusBadRequest},
		{"zero amount", `{"kind":"expense","amount":0,"date":"2026-08-30"}`, http.StatusUnprocessableEntity},
		{"bad kind", `{"kind":"transfer","amount":5.00,"date":"2026-08-30"}`, http.StatusUnprocessableEntity},
		{"missing date", `{"kind":"expense","amount":5.00}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/operations", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d (body=%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	// Nothing was persisted by the rejected requests.
	rr := doJSON(t, srv, http.MethodGet, "/api/feed", "")
	var feed feedBody
	decodeBody(t, rr, &feed)
	if feed.Total != 0 {
		t.Fatalf("total=%d after rejected writes, want 0", feed.Total)
	}
}

func TestUpdateAndDeleteOperation(t *testing.T) {
	srv, store := newTestServer(t)

	id, err := store.CreateOperation(context.Background(), core.Operation{
		Kind:   core.Expense,
		Amount: core.Money{Cents: 700},
		Date:   core.NewDate(2026, 8, 29),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := doJSON(t, srv, http.MethodPut, "/api/operations/"+id,
		`{"kind":"expense","amount":9.00,"date":"2026-08-29","description":"Taxi"}`)
	if rr.Code != 200 {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated, err := store.GetOperation(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.Amount.Cents != 900 || updated.Description != "Taxi" {
		t.Fatalf("updated=%+v", updated)
	}

	rr = doJSON(t, srv, http.MethodPut, "/api/operations/no-such",
		`{"kind":"expense","amount":9.00,"date":"2026-08-29"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("update missing status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/operations/"+id, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if _, err := store.GetOperation(context.Background(), id); err == nil {
		t.Fatal("operation still present after delete")
	}
}

func TestFeedPaging(t *testing.T) {
	srv, store := newTestServer(t)

	for i := 0; i < 5; i++ {
		_, err := store.CreateOperation(context.Background(), core.Operation{
			Kind:        core.Expense,
			Amount:      core.Money{Cents: 100},
			Date:        core.NewDate(2026, 8, 25+i),
			Description: fmt.Sprintf("op %d", i),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	var feed feedBody
	rr := doJSON(t, srv, http.MethodGet, "/api/feed", "")
	decodeBody(t, rr, &feed)
	if feed.visible() != 2 || feed.Total != 5 || !feed.HasMore {
		t.Fatalf("page 1: visible=%d total=%d hasMore=%v", feed.visible(), feed.Total, feed.HasMore)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/feed?page=2", "")
	decodeBody(t, rr, &feed)
	if feed.visible() != 4 || !feed.HasMore {
		t.Fatalf("page 2: visible=%d hasMore=%v", feed.visible(), feed.HasMore)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/feed?page=3", "")
	decodeBody(t, rr, &feed)
	if feed.visible() != 5 || feed.HasMore {
		t.Fatalf("page 3: visible=%d hasMore=%v", feed.visible(), feed.HasMore)
	}

	// LoadMore widens the server-side window.
	rr = doJSON(t, srv, http.MethodPost, "/api/feed/more", "")
	decodeBody(t, rr, &feed)
	if feed.visible() != 4 {
		t.Fatalf("after load more: visible=%d, want 4", feed.visible())
	}
}

func TestGoalLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/goals",
		`{"name":"Vacation","target_cents":50000,"current_cents":10000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decodeBody(t, rr, &created)
	goalID := created["id"]

	// Add a pending income row: it gets the default description and starts
	// in editing.
	rr = doJSON(t, srv, http.MethodPost, "/api/goals/"+goalID+"/operations", `{"kind":"income"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("add row status=%d body=%s", rr.Code, rr.Body.String())
	}

	var goal goalBody
	rr = doJSON(t, srv, http.MethodGet, "/api/goals/"+goalID, "")
	decodeBody(t, rr, &goal)
	if !goal.HasPending || goal.EditingRow != 0 {
		t.Fatalf("after add: hasPending=%v editingRow=%d", goal.HasPending, goal.EditingRow)
	}
	if goal.Operations[0].Description != "New income" {
		t.Fatalf("default description=%q", goal.Operations[0].Description)
	}

	// Toggling resets the auto-generated description to the new kind.
	rr = doJSON(t, srv, http.MethodPost, "/api/goals/"+goalID+"/operations/0/toggle", "")
	decodeBody(t, rr, &goal)
	if goal.Operations[0].Kind != "expense" || goal.Operations[0].Description != "New expense" {
		t.Fatalf("after toggle: %+v", goal.Operations[0])
	}

	// Fill the row: +50.00 income pending against 100.00/500.00.
	rr = doJSON(t, srv, http.MethodPut, "/api/goals/"+goalID+"/operations/0",
		`{"kind":"income","amount":50.00,"date":"2026-08-30","description":"Bonus"}`)
	if rr.Code != 200 {
		t.Fatalf("update row status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &goal)
	if goal.PendingDeltaCents != 5000 || goal.PreviewCents != 15000 {
		t.Fatalf("pendingDelta=%d preview=%d", goal.PendingDeltaCents, goal.PreviewCents)
	}
	if goal.ProgressPercent != 20 || goal.PreviewPercent != 30 {
		t.Fatalf("progress=%v preview=%v", goal.ProgressPercent, goal.PreviewPercent)
	}
	if goal.EditingRow != -1 {
		t.Fatalf("editingRow=%d after update, want -1", goal.EditingRow)
	}

	// Commit folds the pending delta into the stored amount.
	rr = doJSON(t, srv, http.MethodPost, "/api/goals/"+goalID+"/commit", "")
	if rr.Code != 200 {
		t.Fatalf("commit status=%d body=%s", rr.Code, rr.Body.String())
	}
	decodeBody(t, rr, &goal)
	if goal.CurrentCents != 15000 || goal.HasPending {
		t.Fatalf("after commit: current=%d hasPending=%v", goal.CurrentCents, goal.HasPending)
	}
	if goal.Operations[0].ID == "" {
		t.Fatal("committed row still pending")
	}

	// The committed operation is now visible in the feed.
	var feed feedBody
	rr = doJSON(t, srv, http.MethodGet, "/api/feed", "")
	decodeBody(t, rr, &feed)
	if feed.Total != 1 {
		t.Fatalf("feed total=%d after commit, want 1", feed.Total)
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/goals/"+goalID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete goal status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/goals/"+goalID, "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get deleted goal status=%d", rr.Code)
	}
}

func TestGoalAmountLabels(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/goals",
		`{"name":"Vacation","target_cents":50000,"current_cents":10000}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	var created map[string]string
	decodeBody(t, rr, &created)

	var goal goalBody
	rr = doJSON(t, srv, http.MethodGet, "/api/goals/"+created["id"], "")
	decodeBody(t, rr, &goal)
	if goal.TargetLabel == "" || !strings.Contains(goal.TargetLabel, "500") {
		t.Fatalf("target label=%q", goal.TargetLabel)
	}
	if goal.CurrentLabel == "" || !strings.Contains(goal.CurrentLabel, "100") {
		t.Fatalf("current label=%q", goal.CurrentLabel)
	}
	// No pending rows: preview matches the stored amount.
	if goal.PreviewLabel != goal.CurrentLabel {
		t.Fatalf("preview label=%q, current label=%q", goal.PreviewLabel, goal.CurrentLabel)
	}
}

func TestGoalValidationAndRowBounds(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPost, "/api/goals",
		`{"name":"","target_cents":50000}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPost, "/api/goals",
		`{"name":"Car","target_cents":0}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero target status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/goals", `{"name":"Car","target_cents":1000}`)
	var created map[string]string
	decodeBody(t, rr, &created)
	goalID := created["id"]

	rr = doJSON(t, srv, http.MethodPost, "/api/goals/"+goalID+"/operations/7/toggle", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("toggle out of range status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPut, "/api/goals/"+goalID+"/operations/abc", `{"amount":1.00}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric row status=%d", rr.Code)
	}
}

func TestPreferences(t *testing.T) {
	srv, _ := newTestServer(t)

	rr := doJSON(t, srv, http.MethodPut, "/api/prefs/pin", `{"value":"12"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("short pin status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPut, "/api/prefs/pin", `{"value":"1234"}`)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("set pin status=%d", rr.Code)
	}

	// The stored PIN is reported as set but never echoed.
	var pref prefPayload
	rr = doJSON(t, srv, http.MethodGet, "/api/prefs/pin", "")
	decodeBody(t, rr, &pref)
	if !pref.Set || pref.Value != "" {
		t.Fatalf("pin payload=%+v", pref)
	}

	for pin, want := range map[string]bool{"1234": true, "9999": false} {
		rr = doJSON(t, srv, http.MethodPost, "/api/prefs/pin/check", `{"pin":"`+pin+`"}`)
		var result map[string]bool
		decodeBody(t, rr, &result)
		if result["ok"] != want {
			t.Fatalf("check %s: ok=%v, want %v", pin, result["ok"], want)
		}
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/prefs/bogus", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown key status=%d", rr.Code)
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	var wallets []walletPayload
	rr := doJSON(t, srv, http.MethodGet, "/api/wallets", "")
	if rr.Code != 200 {
		t.Fatalf("wallets status=%d", rr.Code)
	}
	decodeBody(t, rr, &wallets)
	if len(wallets) != 1 || wallets[0].Name != "Cash" {
		t.Fatalf("wallets = %+v", wallets)
	}

	var categories []categoryPayload
	rr = doJSON(t, srv, http.MethodGet, "/api/categories", "")
	if rr.Code != 200 {
		t.Fatalf("categories status=%d", rr.Code)
	}
	decodeBody(t, rr, &categories)
	if len(categories) != 1 || categories[0].Name != "Groceries" {
		t.Fatalf("categories = %+v", categories)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	srv, _ := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/api/wallets", "")
	if rr.Code != 200 {
		t.Fatalf("wallets status=%d", rr.Code)
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatal("missing Content-Security-Policy header")
	}
}
