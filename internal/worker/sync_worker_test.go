package worker

import (
	"context"
	"testing"
	"time"

	"kopilka/internal/amqp"
	"kopilka/internal/core"
	"kopilka/internal/remote/memory"
	"kopilka/internal/storage"
)

func newWorkerFixture(t *testing.T) (*SyncWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(t.TempDir() + "/worker.db")
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	target := memory.New()
	return NewSyncWorker(repo, target, nil), repo, target
}

func seedLocal(t *testing.T, repo *storage.SQLiteRepository) string {
	t.Helper()
	id, err := repo.CreateOperation(context.Background(), core.Operation{
		Kind:        core.Expense,
		Amount:      core.Money{Cents: 4200},
		Description: "Taxi",
		Date:        core.NewDate(2026, time.August, 28),
	})
	if err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}
	return id
}

func TestHandleMessageCreate(t *testing.T) {
	w, repo, target := newWorkerFixture(t)
	ctx := context.Background()
	id := seedLocal(t, repo)

	msg := amqp.NewOperationSyncMessage(id, storage.ActionCreate)
	if err := w.HandleMessage(ctx, msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	ops, err := target.ListOperations(ctx)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Description != "Taxi" {
		t.Errorf("remote store = %+v", ops)
	}
}

func TestHandleMessageCreateForVanishedOperation(t *testing.T) {
	w, _, target := newWorkerFixture(t)

	msg := amqp.NewOperationSyncMessage("never-existed", storage.ActionCreate)
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage() should skip vanished operations, got %v", err)
	}
	if ops, _ := target.ListOperations(context.Background()); len(ops) != 0 {
		t.Errorf("remote store = %+v, want empty", ops)
	}
}

func TestHandleMessageDeleteTolerant(t *testing.T) {
	w, _, _ := newWorkerFixture(t)

	// Deleting something the remote never had is not an error.
	msg := amqp.NewOperationSyncMessage("never-existed", storage.ActionDelete)
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
}

func TestHandleMessageUnknownActionDropped(t *testing.T) {
	w, repo, _ := newWorkerFixture(t)
	id := seedLocal(t, repo)

	msg := amqp.NewOperationSyncMessage(id, "reticulate")
	if err := w.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("unknown action should be dropped, got %v", err)
	}
}
