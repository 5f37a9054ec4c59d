package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kopilka/internal/core"
	"kopilka/internal/remote"
)

// Sync queue states and actions.
const (
	SyncPending    = "pending"
	SyncProcessing = "processing"
	SyncDone       = "done"
	SyncFailed     = "failed"

	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"

	EntityOperation = "operation"
)

// SyncItem is one queued change waiting to be pushed to a remote target.
type SyncItem struct {
	ID       int64
	Entity   string
	EntityID string
	Action   string
	Attempts int
}

// SQLiteRepository is the local store. It implements the remote ports so the
// backend factory can serve reads and writes from disk, and additionally owns
// the preference table and the sync queue.
type SQLiteRepository struct {
	db *sql.DB
}

// Interface conformance
var (
	_ remote.OperationStore    = (*SQLiteRepository)(nil)
	_ remote.WalletDirectory   = (*SQLiteRepository)(nil)
	_ remote.CategoryDirectory = (*SQLiteRepository)(nil)
	_ remote.GoalStore         = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// dateToText stores a calendar day as YYYY-MM-DD; the zero (malformed) date
// stores as the empty string and round-trips back to zero.
func dateToText(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

func textToDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return core.Date{}
	}
	return core.DateOf(t)
}

const operationColumns = `id, kind, amount_cents, description, occurred_on,
	wallet_id, wallet_name, category_id, category_name`

func scanOperation(row interface{ Scan(...any) error }) (core.Operation, error) {
	var (
		o                        core.Operation
		kind, occurredOn         string
		walletID, walletName     string
		categoryID, categoryName string
	)
	err := row.Scan(&o.ID, &kind, &o.Amount.Cents, &o.Description, &occurredOn,
		&walletID, &walletName, &categoryID, &categoryName)
	if err != nil {
		return core.Operation{}, err
	}
	if k, err := core.ParseKind(kind); err == nil {
		o.Kind = k
	}
	o.Date = textToDate(occurredOn)
	o.Wallet = core.Ref{ID: walletID, Name: walletName}
	o.Category = core.Ref{ID: categoryID, Name: categoryName}
	return o, nil
}

func (r *SQLiteRepository) ListOperations(ctx context.Context) ([]core.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE deleted_at IS NULL ORDER BY occurred_on DESC, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []core.Operation
	for rows.Next() {
		o, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

func (r *SQLiteRepository) GetOperation(ctx context.Context, id string) (core.Operation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE id = ? AND deleted_at IS NULL`, id)
	o, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Operation{}, remote.ErrNotFound
	}
	if err != nil {
		return core.Operation{}, fmt.Errorf("get operation: %w", err)
	}
	return o, nil
}

func (r *SQLiteRepository) CreateOperation(ctx context.Context, o core.Operation) (string, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}
	o.ID = uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO operations (id, kind, amount_cents, description, occurred_on,
			wallet_id, wallet_name, category_id, category_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Kind), o.Amount.Cents, o.Description, dateToText(o.Date),
		o.Wallet.ID, o.Wallet.Name, o.Category.ID, o.Category.Name)
	if err != nil {
		return "", fmt.Errorf("create operation: %w", err)
	}
	return o.ID, nil
}

func (r *SQLiteRepository) UpdateOperation(ctx context.Context, o core.Operation) error {
	if err := o.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE operations SET kind = ?, amount_cents = ?, description = ?, occurred_on = ?,
			wallet_id = ?, wallet_name = ?, category_id = ?, category_name = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		string(o.Kind), o.Amount.Cents, o.Description, dateToText(o.Date),
		o.Wallet.ID, o.Wallet.Name, o.Category.ID, o.Category.Name, o.ID)
	if err != nil {
		return fmt.Errorf("update operation: %w", err)
	}
	return ensureAffected(res)
}

// DeleteOperation soft deletes so the sync worker can still resolve the row.
func (r *SQLiteRepository) DeleteOperation(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE operations SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete operation: %w", err)
	}
	return ensureAffected(res)
}

func ensureAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return remote.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListWallets(ctx context.Context) ([]core.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, icon FROM wallets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		var w core.Wallet
		if err := rows.Scan(&w.ID, &w.Name, &w.Color, &w.Icon); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color, icon, kind FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c    core.Category
			kind string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &kind); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		if k, err := core.ParseKind(kind); err == nil {
			c.Kind = k
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ReplaceWallets swaps the wallet directory for a freshly fetched one.
func (r *SQLiteRepository) ReplaceWallets(ctx context.Context, wallets []core.Wallet) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM wallets`); err != nil {
			return err
		}
		for _, w := range wallets {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO wallets (id, name, color, icon) VALUES (?, ?, ?, ?)`,
				w.ID, w.Name, w.Color, w.Icon); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceCategories swaps the category directory for a freshly fetched one.
func (r *SQLiteRepository) ReplaceCategories(ctx context.Context, categories []core.Category) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM categories`); err != nil {
			return err
		}
		for _, c := range categories {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO categories (id, name, color, icon, kind) VALUES (?, ?, ?, ?, ?)`,
				c.ID, c.Name, c.Color, c.Icon, string(c.Kind)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) ListGoals(ctx context.Context) ([]core.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, target_cents, current_cents FROM goals ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var goals []core.SavingsGoal
	for rows.Next() {
		var g core.SavingsGoal
		if err := rows.Scan(&g.ID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range goals {
		ops, err := r.goalOperations(ctx, goals[i].ID)
		if err != nil {
			return nil, err
		}
		goals[i].Operations = ops
	}
	return goals, nil
}

func (r *SQLiteRepository) GetGoal(ctx context.Context, id string) (core.SavingsGoal, error) {
	var g core.SavingsGoal
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, target_cents, current_cents FROM goals WHERE id = ?`, id).
		Scan(&g.ID, &g.Name, &g.TargetAmount.Cents, &g.CurrentAmount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SavingsGoal{}, remote.ErrNotFound
	}
	if err != nil {
		return core.SavingsGoal{}, fmt.Errorf("get goal: %w", err)
	}
	g.Operations, err = r.goalOperations(ctx, id)
	if err != nil {
		return core.SavingsGoal{}, err
	}
	return g, nil
}

func (r *SQLiteRepository) goalOperations(ctx context.Context, goalID string) ([]core.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT operation_id, kind, amount_cents, description, occurred_on
		 FROM goal_operations WHERE goal_id = ? ORDER BY position`, goalID)
	if err != nil {
		return nil, fmt.Errorf("list goal operations: %w", err)
	}
	defer rows.Close()

	var ops []core.Operation
	for rows.Next() {
		var (
			o                core.Operation
			kind, occurredOn string
		)
		if err := rows.Scan(&o.ID, &kind, &o.Amount.Cents, &o.Description, &occurredOn); err != nil {
			return nil, fmt.Errorf("scan goal operation: %w", err)
		}
		if k, err := core.ParseKind(kind); err == nil {
			o.Kind = k
		}
		o.Date = textToDate(occurredOn)
		ops = append(ops, o)
	}
	return ops, rows.Err()
}

// SaveGoal upserts the goal row and rewrites its operation list in one
// transaction, preserving list order.
func (r *SQLiteRepository) SaveGoal(ctx context.Context, g core.SavingsGoal) (string, error) {
	if err := g.Validate(); err != nil {
		return "", err
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO goals (id, name, target_cents, current_cents) VALUES (?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name,
				target_cents = excluded.target_cents,
				current_cents = excluded.current_cents,
				updated_at = CURRENT_TIMESTAMP`,
			g.ID, g.Name, g.TargetAmount.Cents, g.CurrentAmount.Cents); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM goal_operations WHERE goal_id = ?`, g.ID); err != nil {
			return err
		}
		for i, o := range g.Operations {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO goal_operations (goal_id, position, operation_id, kind, amount_cents, description, occurred_on)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				g.ID, i, o.ID, string(o.Kind), o.Amount.Cents, o.Description, dateToText(o.Date)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	return g.ID, nil
}

func (r *SQLiteRepository) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if err := ensureAffected(res); err != nil {
		return err
	}
	// goal_operations has ON DELETE CASCADE, but sqlite only honors it with
	// foreign keys on; clean up explicitly.
	_, err = r.db.ExecContext(ctx, `DELETE FROM goal_operations WHERE goal_id = ?`, id)
	return err
}

// GetPref returns the stored preference value, or ok=false when unset.
func (r *SQLiteRepository) GetPref(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get pref: %w", err)
	}
	return value, true, nil
}

// SetPref stores a preference value.
func (r *SQLiteRepository) SetPref(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO prefs (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("set pref: %w", err)
	}
	return nil
}

// EnqueueSync records a change for the background sync pipeline.
func (r *SQLiteRepository) EnqueueSync(ctx context.Context, entity, entityID, action string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_queue (entity, entity_id, action) VALUES (?, ?, ?)`,
		entity, entityID, action)
	if err != nil {
		return fmt.Errorf("enqueue sync: %w", err)
	}
	return nil
}

// ClaimPendingSync marks up to limit pending items as processing and returns
// them, oldest first.
func (r *SQLiteRepository) ClaimPendingSync(ctx context.Context, limit int) ([]SyncItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, entity, entity_id, action, attempts FROM sync_queue
		 WHERE status = ? ORDER BY id LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending sync: %w", err)
	}
	defer rows.Close()

	var items []SyncItem
	for rows.Next() {
		var it SyncItem
		if err := rows.Scan(&it.ID, &it.Entity, &it.EntityID, &it.Action, &it.Attempts); err != nil {
			return nil, fmt.Errorf("scan sync item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, it := range items {
		if _, err := r.db.ExecContext(ctx,
			`UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
			SyncProcessing, it.ID); err != nil {
			return nil, fmt.Errorf("mark processing: %w", err)
		}
	}
	return items, nil
}

// MarkSyncDone finishes a queue item.
func (r *SQLiteRepository) MarkSyncDone(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, SyncDone, id)
	return err
}

// MarkSyncFailed records a failed attempt: the item returns to pending until
// maxRetries is exhausted, then it is parked as failed.
func (r *SQLiteRepository) MarkSyncFailed(ctx context.Context, id int64, cause string, maxRetries int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET
			attempts = attempts + 1,
			last_error = ?,
			status = CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		cause, maxRetries, SyncFailed, SyncPending, id)
	return err
}

// CleanupCompletedSyncs removes done items older than the cutoff.
func (r *SQLiteRepository) CleanupCompletedSyncs(ctx context.Context, cutoff time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE status = ? AND updated_at < ?`,
		SyncDone, cutoff.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// RetryFailedSyncs puts permanently failed items back into the pending pool.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, attempts = 0, last_error = '', updated_at = CURRENT_TIMESTAMP
		 WHERE status = ?`, SyncPending, SyncFailed)
	return err
}

// SyncQueueStats counts queue items by status.
type SyncQueueStats struct {
	Pending    int64
	Processing int64
	Done       int64
	Failed     int64
}

func (r *SQLiteRepository) SyncQueueStats(ctx context.Context) (SyncQueueStats, error) {
	var stats SyncQueueStats
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return stats, fmt.Errorf("sync queue stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan stats: %w", err)
		}
		switch status {
		case SyncPending:
			stats.Pending = count
		case SyncProcessing:
			stats.Processing = count
		case SyncDone:
			stats.Done = count
		case SyncFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// ResetStaleProcessing returns items stuck in processing (e.g. after a crash)
// to the pending state.
func (r *SQLiteRepository) ResetStaleProcessing(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		SyncPending, SyncProcessing)
	return err
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}
