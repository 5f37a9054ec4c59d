// Package worker pushes locally recorded changes to the remote backend in
// response to AMQP sync messages.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/remote"
	"kopilka/internal/storage"
)

// SyncWorker applies one sync message at a time: it resolves the operation in
// local storage and mirrors the change to the remote store, optionally
// exporting creates to a spreadsheet.
type SyncWorker struct {
	storage  *storage.SQLiteRepository
	target   remote.OperationStore
	exporter remote.OperationExporter
}

func NewSyncWorker(storage *storage.SQLiteRepository, target remote.OperationStore, exporter remote.OperationExporter) *SyncWorker {
	return &SyncWorker{
		storage:  storage,
		target:   target,
		exporter: exporter,
	}
}

// HandleMessage processes a single operation sync message from AMQP. A
// returned error makes the consumer nack and requeue the delivery.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.OperationSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"action", msg.Action)

	switch msg.Action {
	case storage.ActionCreate:
		return w.handleCreate(ctx, msg.ID)
	case storage.ActionUpdate:
		return w.handleUpdate(ctx, msg.ID)
	case storage.ActionDelete:
		return w.handleDelete(ctx, msg.ID)
	default:
		// Unknown actions are dropped, requeueing them forever helps nobody.
		slog.WarnContext(ctx, "Unknown sync action, dropping message",
			"id", msg.ID, "action", msg.Action)
		return nil
	}
}

func (w *SyncWorker) handleCreate(ctx context.Context, id string) error {
	op, err := w.storage.GetOperation(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		slog.WarnContext(ctx, "Operation deleted before sync, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get operation from storage: %w", err)
	}

	remoteID, err := w.target.CreateOperation(ctx, op)
	if err != nil {
		return fmt.Errorf("create operation on remote: %w", err)
	}

	if w.exporter != nil {
		ref, err := w.exporter.ExportOperation(ctx, op)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export operation",
				"id", id, "error", err)
			// Export is best effort, the remote create already happened.
		} else {
			slog.InfoContext(ctx, "Operation exported", "id", id, "export_ref", ref)
		}
	}

	slog.InfoContext(ctx, "Operation created on remote",
		"id", id, "remote_ref", remoteID)
	return nil
}

func (w *SyncWorker) handleUpdate(ctx context.Context, id string) error {
	op, err := w.storage.GetOperation(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		slog.WarnContext(ctx, "Operation deleted before sync, skipping", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get operation from storage: %w", err)
	}

	if err := w.target.UpdateOperation(ctx, op); err != nil {
		return fmt.Errorf("update operation on remote: %w", err)
	}

	slog.InfoContext(ctx, "Operation updated on remote", "id", id)
	return nil
}

func (w *SyncWorker) handleDelete(ctx context.Context, id string) error {
	err := w.target.DeleteOperation(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		slog.WarnContext(ctx, "Operation already gone on remote", "id", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete operation on remote: %w", err)
	}

	slog.InfoContext(ctx, "Operation deleted on remote", "id", id)
	return nil
}
