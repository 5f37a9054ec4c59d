package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kopilka/internal/remote"
	"kopilka/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum retry attempts before marking as failed (default: 3)
	MaxRetries int

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the SQLite sync queue, pushing each local change to
// the remote operation store and, when configured, mirroring creates to the
// spreadsheet exporter.
type SyncProcessor struct {
	storage  *storage.SQLiteRepository
	target   remote.OperationStore
	exporter remote.OperationExporter
	config   SyncProcessorConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor
func NewSyncProcessor(
	storage *storage.SQLiteRepository,
	target remote.OperationStore,
	exporter remote.OperationExporter,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		storage:  storage,
		target:   target,
		exporter: exporter,
		config:   config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Reset any stale processing items from previous crashes
	if err := p.storage.ResetStaleProcessing(ctx); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Process immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessBatch claims and processes one batch of pending items.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) {
	items, err := p.storage.ClaimPendingSync(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to claim sync batch", "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.DebugContext(ctx, "Processing sync batch", "count", len(items))

	for _, item := range items {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		var processErr error
		switch item.Action {
		case storage.ActionCreate, storage.ActionUpdate:
			processErr = p.pushItem(ctx, item)
		case storage.ActionDelete:
			processErr = p.deleteItem(ctx, item)
		default:
			processErr = fmt.Errorf("unknown action: %s", item.Action)
		}

		if processErr != nil {
			p.handleFailure(ctx, item, processErr)
		} else {
			p.handleSuccess(ctx, item)
		}
	}
}

// pushItem sends a created or updated operation to the remote store.
func (p *SyncProcessor) pushItem(ctx context.Context, item storage.SyncItem) error {
	op, err := p.storage.GetOperation(ctx, item.EntityID)
	if errors.Is(err, remote.ErrNotFound) {
		// Deleted locally before the queue caught up; nothing to push.
		slog.WarnContext(ctx, "Operation gone before sync, skipping",
			"operation_id", item.EntityID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get operation %s: %w", item.EntityID, err)
	}

	switch item.Action {
	case storage.ActionCreate:
		remoteID, err := p.target.CreateOperation(ctx, op)
		if err != nil {
			return fmt.Errorf("create on remote: %w", err)
		}
		slog.InfoContext(ctx, "Operation pushed to remote",
			"operation_id", op.ID, "remote_ref", remoteID)
	case storage.ActionUpdate:
		if err := p.target.UpdateOperation(ctx, op); err != nil {
			return fmt.Errorf("update on remote: %w", err)
		}
	}

	if p.exporter != nil && item.Action == storage.ActionCreate {
		ref, err := p.exporter.ExportOperation(ctx, op)
		if err != nil {
			// Export is best effort; the remote push already succeeded.
			slog.WarnContext(ctx, "Failed to export operation",
				"operation_id", op.ID, "error", err)
		} else {
			slog.InfoContext(ctx, "Operation exported",
				"operation_id", op.ID, "export_ref", ref)
		}
	}

	return nil
}

// deleteItem removes an operation from the remote store.
func (p *SyncProcessor) deleteItem(ctx context.Context, item storage.SyncItem) error {
	err := p.target.DeleteOperation(ctx, item.EntityID)
	if errors.Is(err, remote.ErrNotFound) {
		return nil // already gone
	}
	if err != nil {
		return fmt.Errorf("delete on remote: %w", err)
	}

	slog.InfoContext(ctx, "Operation deleted on remote", "operation_id", item.EntityID)
	return nil
}

// handleSuccess marks an item as completed
func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncItem) {
	if err := p.storage.MarkSyncDone(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark sync done",
			"id", item.ID, "error", err)
	}
}

// handleFailure records the attempt; the item returns to pending until
// MaxRetries is exhausted.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	slog.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"action", item.Action,
		"attempt", item.Attempts+1,
		"error", processErr)

	if err := p.storage.MarkSyncFailed(ctx, item.ID, processErr.Error(), p.config.MaxRetries); err != nil {
		slog.ErrorContext(ctx, "Failed to record sync failure",
			"id", item.ID, "error", err)
		return
	}

	if item.Attempts+1 >= p.config.MaxRetries {
		slog.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			"operation_id", item.EntityID,
			"attempts", item.Attempts+1)
	}
}

// cleanupCompleted removes old completed items
func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	if err := p.storage.CleanupCompletedSyncs(ctx, cutoff); err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed syncs", "error", err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncQueueStats, error) {
	return p.storage.SyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.storage.RetryFailedSyncs(ctx)
}
