package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kopilka/internal/clock"
	"kopilka/internal/core"
	"kopilka/internal/remote"
)

// FeedConfig tunes the feed behaviour.
type FeedConfig struct {
	// PageSize is the number of operations added per page.
	PageSize int

	// LoadMoreDelay simulates the old client's paging latency so the UI
	// layer can exercise its pending state. Zero disables it.
	LoadMoreDelay time.Duration
}

// snapshot is one consistent view of the remote data. Refresh swaps the whole
// value; readers never see a partial fetch.
type snapshot struct {
	operations []core.Operation
	wallets    []core.Wallet
	categories []core.Category
	fetchedAt  time.Time
}

// FeedService owns the operation snapshot, the active filter criteria and the
// paging position. A refresh that fails leaves the previous snapshot visible.
type FeedService struct {
	ops        remote.OperationStore
	wallets    remote.WalletDirectory
	categories remote.CategoryDirectory
	agg        *core.Aggregator
	clk        clock.Clock
	config     FeedConfig

	mu        sync.RWMutex
	snap      snapshot
	criteria  core.FilterCriteria
	pageCount int
}

func NewFeedService(
	ops remote.OperationStore,
	wallets remote.WalletDirectory,
	categories remote.CategoryDirectory,
	agg *core.Aggregator,
	clk clock.Clock,
	config FeedConfig,
) *FeedService {
	if config.PageSize <= 0 {
		config.PageSize = 10
	}
	return &FeedService{
		ops:        ops,
		wallets:    wallets,
		categories: categories,
		agg:        agg,
		clk:        clk,
		config:     config,
		criteria:   core.FilterCriteria{Window: core.AllTime},
		pageCount:  1,
	}
}

// Refresh fetches operations and both directories concurrently and swaps the
// snapshot in one step. Any fetch error keeps the old snapshot untouched.
// Concurrent refreshes are not deduplicated; the last writer wins.
func (s *FeedService) Refresh(ctx context.Context) error {
	var next snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ops, err := s.ops.ListOperations(gctx)
		if err != nil {
			return fmt.Errorf("list operations: %w", err)
		}
		next.operations = ops
		return nil
	})
	g.Go(func() error {
		wallets, err := s.wallets.ListWallets(gctx)
		if err != nil {
			return fmt.Errorf("list wallets: %w", err)
		}
		next.wallets = wallets
		return nil
	})
	g.Go(func() error {
		categories, err := s.categories.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}
		next.categories = categories
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.ErrorContext(ctx, "Feed refresh failed, keeping previous snapshot", "error", err)
		return err
	}

	resolveRefs(next.operations, next.wallets, next.categories)
	next.fetchedAt = s.clk.Now()

	s.mu.Lock()
	s.snap = next
	s.pageCount = 1
	s.mu.Unlock()

	slog.InfoContext(ctx, "Feed refreshed",
		"operations", len(next.operations),
		"wallets", len(next.wallets),
		"categories", len(next.categories))
	return nil
}

// resolveRefs fills display fields on bare-id references from the fetched
// directories. Text search matches against the category display name, which
// source records often carry only as an id.
func resolveRefs(ops []core.Operation, wallets []core.Wallet, categories []core.Category) {
	walletNames := make(map[string]string, len(wallets))
	for _, w := range wallets {
		walletNames[w.ID] = w.Name
	}
	categoryNames := make(map[string]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	for i := range ops {
		if ops[i].Wallet.Name == "" {
			ops[i].Wallet.Name = walletNames[ops[i].Wallet.ID]
		}
		if ops[i].Category.Name == "" {
			ops[i].Category.Name = categoryNames[ops[i].Category.ID]
		}
	}
}

// SetCriteria installs a new filter and rewinds paging to the first page.
func (s *FeedService) SetCriteria(c core.FilterCriteria) {
	s.mu.Lock()
	s.criteria = c
	s.pageCount = 1
	s.mu.Unlock()
}

func (s *FeedService) Criteria() core.FilterCriteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

// LoadMore widens the visible window by one page after the configured delay.
// The delayed completion applies to whatever criteria are current by then.
func (s *FeedService) LoadMore(ctx context.Context) error {
	if s.config.LoadMoreDelay > 0 {
		timer := time.NewTimer(s.config.LoadMoreDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	s.pageCount++
	s.mu.Unlock()
	return nil
}

// Page assembles the current feed page from the snapshot.
func (s *FeedService) Page() core.FeedPage {
	s.mu.RLock()
	snap, criteria, pageCount := s.snap, s.criteria, s.pageCount
	s.mu.RUnlock()

	return s.agg.Aggregate(snap.operations, criteria, s.config.PageSize, pageCount, s.clk.Now())
}

// PageAt assembles a feed page for an explicit window size without touching
// the paging state. Used by read paths that carry the page count themselves.
func (s *FeedService) PageAt(pageCount int) core.FeedPage {
	if pageCount <= 0 {
		pageCount = 1
	}
	s.mu.RLock()
	snap, criteria := s.snap, s.criteria
	s.mu.RUnlock()

	return s.agg.Aggregate(snap.operations, criteria, s.config.PageSize, pageCount, s.clk.Now())
}

// Wallets returns the directory from the last successful refresh.
func (s *FeedService) Wallets() []core.Wallet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.wallets
}

// Categories returns the directory from the last successful refresh.
func (s *FeedService) Categories() []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.categories
}

// LastFetched reports when the snapshot was taken; zero before the first
// successful refresh.
func (s *FeedService) LastFetched() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.fetchedAt
}
