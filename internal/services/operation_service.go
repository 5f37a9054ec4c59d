package services

import (
	"context"
	"fmt"
	"log/slog"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/storage"
)

// OperationService orchestrates operation writes across SQLite and AMQP
type OperationService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewOperationService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *OperationService {
	return &OperationService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

// CreateOperation saves an operation locally, queues it for sync and
// publishes a sync message
func (s *OperationService) CreateOperation(ctx context.Context, o core.Operation) (string, error) {
	// Save to SQLite first (fast, reliable)
	id, err := s.storage.CreateOperation(ctx, o)
	if err != nil {
		return "", fmt.Errorf("save operation: %w", err)
	}

	s.queueAndPublish(ctx, id, storage.ActionCreate)
	return id, nil
}

// UpdateOperation updates an operation locally and publishes a sync message
func (s *OperationService) UpdateOperation(ctx context.Context, o core.Operation) error {
	if err := s.storage.UpdateOperation(ctx, o); err != nil {
		return fmt.Errorf("update operation: %w", err)
	}

	s.queueAndPublish(ctx, o.ID, storage.ActionUpdate)
	return nil
}

// DeleteOperation soft deletes an operation locally and publishes a delete message
func (s *OperationService) DeleteOperation(ctx context.Context, id string) error {
	if err := s.storage.DeleteOperation(ctx, id); err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}

	s.queueAndPublish(ctx, id, storage.ActionDelete)
	return nil
}

// queueAndPublish records the change in the sync queue and notifies the
// worker. Neither step may fail the request - the local write already
// succeeded.
func (s *OperationService) queueAndPublish(ctx context.Context, id, action string) {
	if err := s.storage.EnqueueSync(ctx, storage.EntityOperation, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to enqueue sync item",
			"id", id, "action", action, "error", err)
	}

	if s.amqpClient == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync message")
		return
	}
	if err := s.amqpClient.PublishOperationSync(ctx, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "action", action, "error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *OperationService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close operation service: %v", errs)
	}

	return nil
}
