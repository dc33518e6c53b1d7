package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"derush/internal/config"
)

// Store manages queue persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the queue database and applies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the queue database.
func (s *Store) Path() string {
	return s.path
}

// NewRemote enqueues a share URL awaiting manifest resolution.
func (s *Store) NewRemote(ctx context.Context, sourceURL string, downloadOnly bool) (*Item, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, errors.New("source URL is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            source_url, title, status, download_only, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, 0)`,
		sourceURL,
		TitleFromSource(sourceURL),
		StatusPending,
		boolToInt(downloadOnly),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert remote source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// NewLocalFile enqueues an already-muxed local file, which skips acquisition
// and begins at the analysis stage.
func (s *Store) NewLocalFile(ctx context.Context, sourcePath string) (*Item, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, errors.New("source path is required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            source_path, title, status, muxed_path, created_at, updated_at, progress_percent
        ) VALUES (?, ?, ?, ?, ?, ?, 0)`,
		sourcePath,
		TitleFromSource(sourcePath),
		StatusMuxed,
		sourcePath,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert local file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a single item.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item %d: %w", id, err)
	}
	return item, nil
}

// Update persists all mutable fields of the item.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is required")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items SET
            source_url = ?, source_path = ?, title = ?, status = ?, download_only = ?,
            scratch_dir = ?, manifest_json = ?, audio_stream_path = ?, video_stream_path = ?,
            muxed_path = ?, silence_json = ?, clips_json = ?, output_path = ?,
            error_message = ?, updated_at = ?, progress_stage = ?, progress_percent = ?,
            progress_message = ?
        WHERE id = ?`,
		nullableString(item.SourceURL),
		nullableString(item.SourcePath),
		item.Title,
		string(item.Status),
		boolToInt(item.DownloadOnly),
		nullableString(item.ScratchDir),
		nullableString(item.ManifestJSON),
		nullableString(item.AudioStreamPath),
		nullableString(item.VideoStreamPath),
		nullableString(item.MuxedPath),
		nullableString(item.SilenceJSON),
		nullableString(item.ClipsJSON),
		nullableString(item.OutputPath),
		nullableString(item.ErrorMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		nullableString(item.ProgressStage),
		item.ProgressPercent,
		nullableString(item.ProgressMessage),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item %d: %w", item.ID, err)
	}
	return nil
}

// List returns all items ordered by creation.
func (s *Store) List(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+itemColumns+" FROM queue_items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListByStatus returns items matching any of the provided statuses, oldest first.
func (s *Store) ListByStatus(ctx context.Context, statuses ...Status) ([]*Item, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}
	query := "SELECT " + itemColumns + " FROM queue_items WHERE status IN (" +
		strings.Join(placeholders, ",") + ") ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ClaimNext atomically claims the oldest item whose status matches one of the
// transitions and moves it to the paired processing status. Returns nil when
// no item is ready.
func (s *Store) ClaimNext(ctx context.Context, transitions ...Transition) (*Item, error) {
	if len(transitions) == 0 {
		return nil, nil
	}
	var claimed *Item
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		placeholders := make([]string, len(transitions))
		args := make([]any, len(transitions))
		byFrom := make(map[Status]Status, len(transitions))
		for i, tr := range transitions {
			placeholders[i] = "?"
			args[i] = string(tr.From)
			byFrom[tr.From] = tr.To
		}
		query := "SELECT " + itemColumns + " FROM queue_items WHERE status IN (" +
			strings.Join(placeholders, ",") + ") ORDER BY id LIMIT 1"
		item, err := scanItem(tx.QueryRowContext(ctx, query, args...))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		next, ok := byFrom[item.Status]
		if !ok {
			return fmt.Errorf("no transition for status %q", item.Status)
		}
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			"UPDATE queue_items SET status = ?, error_message = NULL, updated_at = ? WHERE id = ?",
			string(next), now.Format(time.RFC3339Nano), item.ID,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		item.Status = next
		item.ErrorMessage = ""
		item.UpdatedAt = now
		claimed = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim next item: %w", err)
	}
	return claimed, nil
}

// ResetStaleProcessing rolls interrupted processing statuses back to the
// ready status they were claimed from. Called on startup so items orphaned by
// a crash are picked up again.
func (s *Store) ResetStaleProcessing(ctx context.Context) (int, error) {
	total := 0
	for _, tr := range stageRollbackTransitions {
		res, err := s.execWithRetry(
			ctx,
			"UPDATE queue_items SET status = ?, updated_at = ? WHERE status = ?",
			string(tr.To),
			time.Now().UTC().Format(time.RFC3339Nano),
			string(tr.From),
		)
		if err != nil {
			return total, fmt.Errorf("reset %s: %w", tr.From, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			total += int(affected)
		}
	}
	return total, nil
}

// Retry moves a failed item back to the status implied by its recorded
// artifacts and clears the failure.
func (s *Store) Retry(ctx context.Context, id int64) (*Item, error) {
	item, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("item %d not found", id)
	}
	if item.Status != StatusFailed {
		return nil, fmt.Errorf("item %d is %s, only failed items can be retried", id, item.Status)
	}
	item.Status = item.RetryStatus()
	item.ErrorMessage = ""
	item.SetProgress("", "", 0)
	if err := s.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Remove deletes a single item.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM queue_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("remove item %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("item %d not found", id)
	}
	return nil
}

// Clear deletes terminal items; with includeActive it deletes everything.
func (s *Store) Clear(ctx context.Context, includeActive bool) (int, error) {
	query := "DELETE FROM queue_items WHERE status IN (?, ?)"
	args := []any{string(StatusCompleted), string(StatusFailed)}
	if includeActive {
		query = "DELETE FROM queue_items"
		args = nil
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Stats reports item counts per status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM queue_items GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[Status(status)] = count
	}
	return stats, rows.Err()
}

func collectItems(rows *sql.Rows) ([]*Item, error) {
	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
