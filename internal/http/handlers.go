package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/prefs"
	"kopilka/internal/remote"
	"kopilka/internal/services"
)

// Wire shapes. Operations carry their own JSON codec in core; everything else
// is assembled here. Money travels as integer cents to keep clients away from
// float arithmetic.
type (
	feedGroup struct {
		Label      string           `json:"label"`
		Date       core.Date        `json:"date"`
		Operations []core.Operation `json:"operations"`
	}

	feedResponse struct {
		Groups      []feedGroup `json:"groups"`
		Total       int         `json:"total"`
		HasMore     bool        `json:"has_more"`
		LastFetched *time.Time  `json:"last_fetched,omitempty"`
	}

	goalPayload struct {
		ID                string           `json:"id"`
		Name              string           `json:"name"`
		TargetCents       int64            `json:"target_cents"`
		CurrentCents      int64            `json:"current_cents"`
		TargetLabel       string           `json:"target_label"`
		CurrentLabel      string           `json:"current_label"`
		PreviewLabel      string           `json:"preview_label"`
		Operations        []core.Operation `json:"operations"`
		PendingDeltaCents int64            `json:"pending_delta_cents"`
		PreviewCents      int64            `json:"preview_cents"`
		ProgressPercent   float64          `json:"progress_percent"`
		PreviewPercent    float64          `json:"preview_percent"`
		HasPending        bool             `json:"has_pending"`
		EditingRow        int              `json:"editing_row"`
	}

	goalRequest struct {
		Name         string `json:"name"`
		TargetCents  int64  `json:"target_cents"`
		CurrentCents int64  `json:"current_cents"`
	}

	walletPayload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color,omitempty"`
		Icon  string `json:"icon,omitempty"`
	}

	categoryPayload struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Color string `json:"color,omitempty"`
		Icon  string `json:"icon,omitempty"`
		Kind  string `json:"kind,omitempty"`
	}
)

func (s *Server) goalPayload(v services.GoalView) goalPayload {
	ops := v.Operations
	if ops == nil {
		ops = []core.Operation{}
	}
	return goalPayload{
		ID:                v.ID,
		Name:              v.Name,
		TargetCents:       v.TargetAmount.Cents,
		CurrentCents:      v.CurrentAmount.Cents,
		TargetLabel:       s.format.Amount(v.TargetAmount),
		CurrentLabel:      s.format.Amount(v.CurrentAmount),
		PreviewLabel:      s.format.Amount(v.PreviewAmount),
		Operations:        ops,
		PendingDeltaCents: v.PendingDelta.Cents,
		PreviewCents:      v.PreviewAmount.Cents,
		ProgressPercent:   v.ProgressPercent,
		PreviewPercent:    v.PreviewPercent,
		HasPending:        v.HasPending,
		EditingRow:        s.goals.EditingRow(v.ID),
	}
}

func (s *Server) feedResponse(page core.FeedPage) feedResponse {
	groups := make([]feedGroup, 0, len(page.Groups))
	for _, g := range page.Groups {
		groups = append(groups, feedGroup{
			Label:      g.Label,
			Date:       g.Date,
			Operations: g.Operations,
		})
	}
	resp := feedResponse{
		Groups:  groups,
		Total:   page.Total,
		HasMore: page.HasMore,
	}
	if fetched := s.feed.LastFetched(); !fetched.IsZero() {
		resp.LastFetched = &fetched
	}
	return resp
}

// decodeJSON reads a bounded request body. A failure here means malformed
// input, never a validation problem.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

var validationErrs = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidKind,
	core.ErrInvalidDate,
	core.ErrInvalidTarget,
	core.ErrEmptyName,
	prefs.ErrInvalidPIN,
}

func isValidationError(err error) bool {
	for _, sentinel := range validationErrs {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// writeError maps service errors onto status codes. Anything unexpected is a
// backend failure: logged with the request id and reported as 502.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		NotFoundError("record not found").Write(w)
	case errors.Is(err, services.ErrRowOutOfRange):
		NotFoundError("operation row not found").Write(w)
	case isValidationError(err):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, prefs.ErrUnknownKey):
		BadRequestError(err.Error()).Write(w)
	default:
		slog.ErrorContext(r.Context(), "Backend request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path)
		BadGatewayError("backend unavailable").Write(w)
	}
}

// invalidateFeed drops cached pages and re-pulls the snapshot after a write.
// A failed refresh is logged, not surfaced: the write itself already landed.
func (s *Server) invalidateFeed(r *http.Request) {
	s.feedCache.Purge()
	if err := s.feed.Refresh(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "Feed refresh after write failed", "error", err)
	}
}

// ensureSnapshot lazily performs the first fetch so a fresh process serves
// reads without an explicit refresh call.
func (s *Server) ensureSnapshot(r *http.Request) error {
	if !s.feed.LastFetched().IsZero() {
		return nil
	}
	return s.feed.Refresh(r.Context())
}

// --- Feed ---

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureSnapshot(r); err != nil {
		s.writeError(w, r, err)
		return
	}

	q := ParseFeedQuery(r.URL.Query())
	if q.Criteria != s.feed.Criteria() {
		s.feed.SetCriteria(q.Criteria)
		s.feedCache.Purge()
	}

	key := q.CacheKey()
	if page, ok := s.feedCache.Get(key); ok {
		NewJSONResponse().Body(s.feedResponse(page)).Write(w)
		return
	}

	page := s.feed.PageAt(q.PageCount)
	s.feedCache.Set(key, page)
	NewJSONResponse().Body(s.feedResponse(page)).Write(w)
}

func (s *Server) handleFeedRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.feed.Refresh(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.feedCache.Purge()
	NewJSONResponse().Body(s.feedResponse(s.feed.Page())).Write(w)
}

func (s *Server) handleFeedMore(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureSnapshot(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.feed.LoadMore(r.Context()); err != nil {
		// Only context cancellation reaches here; the client is gone.
		return
	}
	NewJSONResponse().Body(s.feedResponse(s.feed.Page())).Write(w)
}

// The directory endpoints serve from the feed snapshot so wallets, categories
// and the operations referencing them always come from the same fetch.
func (s *Server) handleWallets(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureSnapshot(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	wallets := s.feed.Wallets()
	payload := make([]walletPayload, 0, len(wallets))
	for _, wl := range wallets {
		payload = append(payload, walletPayload{ID: wl.ID, Name: wl.Name, Color: wl.Color, Icon: wl.Icon})
	}
	NewJSONResponse().Body(payload).Write(w)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureSnapshot(r); err != nil {
		s.writeError(w, r, err)
		return
	}
	categories := s.feed.Categories()
	payload := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		payload = append(payload, categoryPayload{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon, Kind: string(c.Kind)})
	}
	NewJSONResponse().Body(payload).Write(w)
}

// --- Operations ---

func (s *Server) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	var op core.Operation
	if err := decodeJSON(r, &op); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	op.ID = ""
	op.Description = sanitizeInput(op.Description)
	if err := op.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	id, err := s.backend.CreateOperation(r.Context(), op)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidateFeed(r)
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]string{"id": id}).Write(w)
}

func (s *Server) handleUpdateOperation(w http.ResponseWriter, r *http.Request) {
	var op core.Operation
	if err := decodeJSON(r, &op); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	op.ID = r.PathValue("id")
	op.Description = sanitizeInput(op.Description)
	if err := op.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if err := s.backend.UpdateOperation(r.Context(), op); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidateFeed(r)
	NewJSONResponse().Body(map[string]string{"id": op.ID}).Write(w)
}

func (s *Server) handleDeleteOperation(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.DeleteOperation(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.invalidateFeed(r)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// --- Goals ---

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	views, err := s.goals.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	payload := make([]goalPayload, 0, len(views))
	for _, v := range views {
		payload = append(payload, s.goalPayload(v))
	}
	NewJSONResponse().Body(payload).Write(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	g := core.SavingsGoal{
		Name:          sanitizeInput(req.Name),
		TargetAmount:  core.Money{Cents: req.TargetCents},
		CurrentAmount: core.Money{Cents: req.CurrentCents},
	}
	if err := g.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	id, err := s.goals.Save(r.Context(), g)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]string{"id": id}).Write(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	view, err := s.goals.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(s.goalPayload(view)).Write(w)
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	view, err := s.goals.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	g := view.SavingsGoal
	g.Name = sanitizeInput(req.Name)
	g.TargetAmount = core.Money{Cents: req.TargetCents}
	g.CurrentAmount = core.Money{Cents: req.CurrentCents}
	if err := g.Validate(); err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	if _, err := s.goals.Save(r.Context(), g); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.goals.Get(r.Context(), g.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(s.goalPayload(updated)).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// --- Goal operation rows ---

func goalRow(r *http.Request) (int, error) {
	return strconv.Atoi(r.PathValue("row"))
}

func (s *Server) handleAddGoalOperation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind string `json:"kind"`
	}
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	row, err := s.goals.AddOperation(r.Context(), r.PathValue("id"), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]int{"row": row}).Write(w)
}

func (s *Server) handleUpdateGoalOperation(w http.ResponseWriter, r *http.Request) {
	row, err := goalRow(r)
	if err != nil {
		BadRequestError("invalid row index").Write(w)
		return
	}
	var op core.Operation
	if err := decodeJSON(r, &op); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}
	op.Description = sanitizeInput(op.Description)

	goalID := r.PathValue("id")
	if err := s.goals.UpdateOperation(r.Context(), goalID, row, op); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.goals.Get(r.Context(), goalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(s.goalPayload(view)).Write(w)
}

func (s *Server) handleRemoveGoalOperation(w http.ResponseWriter, r *http.Request) {
	row, err := goalRow(r)
	if err != nil {
		BadRequestError("invalid row index").Write(w)
		return
	}
	if err := s.goals.RemoveOperation(r.Context(), r.PathValue("id"), row); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleToggleGoalOperation(w http.ResponseWriter, r *http.Request) {
	row, err := goalRow(r)
	if err != nil {
		BadRequestError("invalid row index").Write(w)
		return
	}

	goalID := r.PathValue("id")
	if err := s.goals.ToggleOperationKind(r.Context(), goalID, row); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.goals.Get(r.Context(), goalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(s.goalPayload(view)).Write(w)
}

func (s *Server) handleStartEditing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Row int `json:"row"`
	}
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	goalID := r.PathValue("id")
	view, err := s.goals.Get(r.Context(), goalID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Row < 0 || req.Row >= len(view.Operations) {
		NotFoundError("operation row not found").Write(w)
		return
	}

	s.goals.StartEditing(goalID, req.Row)
	NewJSONResponse().Body(map[string]int{"editing_row": req.Row}).Write(w)
}

func (s *Server) handleFinishEditing(w http.ResponseWriter, r *http.Request) {
	s.goals.FinishEditing(r.PathValue("id"))
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCommitGoal(w http.ResponseWriter, r *http.Request) {
	view, err := s.goals.Commit(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Committed rows become real operations; the feed must see them.
	s.invalidateFeed(r)
	NewJSONResponse().Body(s.goalPayload(view)).Write(w)
}

// --- Preferences ---

type prefPayload struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
	Set   bool   `json:"set"`
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	value, ok, err := s.prefs.Get(r.Context(), key)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	payload := prefPayload{Key: key, Value: value, Set: ok}
	if key == prefs.KeyPIN {
		// The PIN itself never leaves the server.
		payload.Value = ""
		payload.Set = ok && value != ""
	}
	NewJSONResponse().Body(payload).Write(w)
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	if err := s.prefs.Set(r.Context(), r.PathValue("key"), req.Value); err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCheckPIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(r, &req); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	ok, err := s.prefs.CheckPIN(r.Context(), req.PIN)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Body(map[string]bool{"ok": ok}).Write(w)
}
