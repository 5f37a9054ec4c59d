package services

import (
	"context"
	"testing"
	"time"

	"kopilka/internal/core"
	"kopilka/internal/remote/memory"
	"kopilka/internal/storage"
)

func TestNewSyncProcessor(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	processor := NewSyncProcessor(nil, nil, nil, config)

	if processor == nil {
		t.Error("NewSyncProcessor should return non-nil processor")
	}
	if processor.storage != nil {
		t.Error("storage should be nil when passed nil")
	}
	if processor.target != nil {
		t.Error("target should be nil when passed nil")
	}
	if processor.exporter != nil {
		t.Error("exporter should be nil when passed nil")
	}
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.CleanupInterval != 1*time.Hour {
		t.Errorf("expected CleanupInterval 1h, got %v", config.CleanupInterval)
	}
	if config.CleanupAge != 24*time.Hour {
		t.Errorf("expected CleanupAge 24h, got %v", config.CleanupAge)
	}
}

func TestSyncProcessor_IsRunning(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, nil, DefaultSyncProcessorConfig())

	if processor.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	config := DefaultSyncProcessorConfig()
	config.PollInterval = 100 * time.Millisecond
	processor := NewSyncProcessor(nil, nil, nil, config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor.mu.Lock()
	processor.running = true
	processor.mu.Unlock()

	err := processor.Start(ctx)
	if err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	processor := NewSyncProcessor(nil, nil, nil, DefaultSyncProcessorConfig())

	if err := processor.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}

func newSyncFixture(t *testing.T) (*storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(t.TempDir() + "/sync.db")
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo, memory.New()
}

func TestSyncProcessor_ProcessBatchPushesCreates(t *testing.T) {
	repo, target := newSyncFixture(t)
	ctx := context.Background()

	id, err := repo.CreateOperation(ctx, core.Operation{
		Kind:        core.Expense,
		Amount:      core.Money{Cents: 2500},
		Description: "Lunch",
		Date:        core.NewDate(2026, time.August, 30),
	})
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if err := repo.EnqueueSync(ctx, storage.EntityOperation, id, storage.ActionCreate); err != nil {
		t.Fatalf("EnqueueSync() error = %v", err)
	}

	processor := NewSyncProcessor(repo, target, nil, DefaultSyncProcessorConfig())
	processor.ProcessBatch(ctx)

	ops, err := target.ListOperations(ctx)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Description != "Lunch" {
		t.Fatalf("remote store after batch = %+v", ops)
	}

	stats, err := processor.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Done != 1 || stats.Pending != 0 {
		t.Errorf("queue stats = %+v, want 1 done", stats)
	}
}

func TestSyncProcessor_SkipsVanishedOperations(t *testing.T) {
	repo, target := newSyncFixture(t)
	ctx := context.Background()

	// Enqueue an id that no longer resolves locally.
	if err := repo.EnqueueSync(ctx, storage.EntityOperation, "gone", storage.ActionUpdate); err != nil {
		t.Fatalf("EnqueueSync() error = %v", err)
	}

	processor := NewSyncProcessor(repo, target, nil, DefaultSyncProcessorConfig())
	processor.ProcessBatch(ctx)

	stats, err := processor.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Done != 1 {
		t.Errorf("vanished operation should complete the queue item, stats = %+v", stats)
	}
}

func TestSyncProcessor_FailureRetriesThenParks(t *testing.T) {
	repo, target := newSyncFixture(t)
	ctx := context.Background()

	// Updating a row the remote never saw fails every attempt.
	id, err := repo.CreateOperation(ctx, core.Operation{
		Kind:        core.Income,
		Amount:      core.Money{Cents: 100},
		Description: "Refund",
		Date:        core.NewDate(2026, time.August, 30),
	})
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	if err := repo.EnqueueSync(ctx, storage.EntityOperation, id, storage.ActionUpdate); err != nil {
		t.Fatalf("EnqueueSync() error = %v", err)
	}

	config := DefaultSyncProcessorConfig()
	config.MaxRetries = 2
	processor := NewSyncProcessor(repo, target, nil, config)

	processor.ProcessBatch(ctx)
	stats, _ := processor.Stats(ctx)
	if stats.Pending != 1 || stats.Failed != 0 {
		t.Fatalf("after first failure stats = %+v, want 1 pending", stats)
	}

	processor.ProcessBatch(ctx)
	stats, _ = processor.Stats(ctx)
	if stats.Failed != 1 {
		t.Fatalf("after exhausting retries stats = %+v, want 1 failed", stats)
	}

	// RetryFailed puts it back for another round.
	if err := processor.RetryFailed(ctx); err != nil {
		t.Fatalf("RetryFailed() error = %v", err)
	}
	stats, _ = processor.Stats(ctx)
	if stats.Pending != 1 {
		t.Errorf("after RetryFailed stats = %+v, want 1 pending", stats)
	}
}

func TestSyncProcessor_StartStop(t *testing.T) {
	repo, target := newSyncFixture(t)

	config := DefaultSyncProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	processor := NewSyncProcessor(repo, target, nil, config)

	ctx := context.Background()
	if err := processor.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !processor.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := processor.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if processor.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}
