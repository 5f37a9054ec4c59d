// Package http exposes the JSON API: the operation feed with filtering and
// paging, savings goals with their pending rows, directories and preferences.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kopilka/internal/backend"
	"kopilka/internal/cache"
	"kopilka/internal/core"
	"kopilka/internal/format"
	"kopilka/internal/middleware/ratelimit"
	"kopilka/internal/middleware/security"
	"kopilka/internal/middleware/trace"
	"kopilka/internal/prefs"
	"kopilka/internal/services"
)

// Deps carries the collaborators a Server needs.
type Deps struct {
	Backend backend.Backend
	Feed    *services.FeedService
	Goals   *services.GoalService
	Prefs   *prefs.Service
	// Format renders the human-readable amount labels in goal payloads.
	// Optional; defaults to English/USD.
	Format *format.Formatter
}

type Server struct {
	http.Server
	backend backend.Backend
	feed    *services.FeedService
	goals   *services.GoalService
	prefs   *prefs.Service
	format  *format.Formatter

	// Feed pages are cached per filter-and-page key; any write or refresh
	// purges the whole cache since every key reads the same snapshot.
	feedCache *cache.LRUCache[core.FeedPage]

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Format == nil {
		deps.Format = format.New("en", "USD")
	}

	root := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      root,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		backend:          deps.Backend,
		feed:             deps.Feed,
		goals:            deps.Goals,
		prefs:            deps.Prefs,
		format:           deps.Format,
		feedCache:        cache.NewLRUCache[core.FeedPage](100, 5*time.Minute),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:           trace.NewMiddleware(clientIP),
		stopCacheCleanup: make(chan struct{}),
	}

	api := http.NewServeMux()

	api.HandleFunc("GET /api/feed", s.handleFeed)
	api.HandleFunc("POST /api/feed/refresh", s.handleFeedRefresh)
	api.HandleFunc("POST /api/feed/more", s.handleFeedMore)
	api.HandleFunc("GET /api/wallets", s.handleWallets)
	api.HandleFunc("GET /api/categories", s.handleCategories)

	api.HandleFunc("POST /api/operations", s.handleCreateOperation)
	api.HandleFunc("PUT /api/operations/{id}", s.handleUpdateOperation)
	api.HandleFunc("DELETE /api/operations/{id}", s.handleDeleteOperation)

	api.HandleFunc("GET /api/goals", s.handleListGoals)
	api.HandleFunc("POST /api/goals", s.handleCreateGoal)
	api.HandleFunc("GET /api/goals/{id}", s.handleGetGoal)
	api.HandleFunc("PUT /api/goals/{id}", s.handleUpdateGoal)
	api.HandleFunc("DELETE /api/goals/{id}", s.handleDeleteGoal)
	api.HandleFunc("POST /api/goals/{id}/operations", s.handleAddGoalOperation)
	api.HandleFunc("PUT /api/goals/{id}/operations/{row}", s.handleUpdateGoalOperation)
	api.HandleFunc("DELETE /api/goals/{id}/operations/{row}", s.handleRemoveGoalOperation)
	api.HandleFunc("POST /api/goals/{id}/operations/{row}/toggle", s.handleToggleGoalOperation)
	api.HandleFunc("PUT /api/goals/{id}/editing", s.handleStartEditing)
	api.HandleFunc("DELETE /api/goals/{id}/editing", s.handleFinishEditing)
	api.HandleFunc("POST /api/goals/{id}/commit", s.handleCommitGoal)

	api.HandleFunc("GET /api/prefs/{key}", s.handleGetPref)
	api.HandleFunc("PUT /api/prefs/{key}", s.handleSetPref)
	api.HandleFunc("POST /api/prefs/pin/check", s.handleCheckPIN)

	onLimit := func(w http.ResponseWriter, _ *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").
			Header("Retry-After", "60").
			Write(w)
	}

	chained := s.tracer.Middleware(
		s.rateLimiter.Middleware(clientIP, onLimit)(
			security.Middleware(security.DefaultHeadersConfig())(api)))

	// Health endpoints bypass rate limiting and tracing.
	root.HandleFunc("GET /healthz", handleHealth)
	root.HandleFunc("GET /readyz", handleReady)
	root.Handle("/api/", chained)

	go s.startCacheCleanup()

	return s
}

// startCacheCleanup periodically drops expired feed pages.
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.feedCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
