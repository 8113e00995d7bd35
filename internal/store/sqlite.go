// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides thread/item persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store and FactStore interfaces using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			metadata_json TEXT
		);

		CREATE TABLE IF NOT EXISTS thread_items (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (thread_id) REFERENCES threads(id),

			UNIQUE(thread_id, seq),
			CHECK (kind IN ('user_message', 'assistant_message', 'hidden_context'))
		);

		CREATE INDEX IF NOT EXISTS idx_thread_items_thread_seq
			ON thread_items(thread_id, seq);

		CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,

			CHECK (status IN ('pending', 'saved', 'discarded'))
		);

		CREATE INDEX IF NOT EXISTS idx_facts_status ON facts(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// isConstraintViolation checks if the error is a SQLite UNIQUE constraint
// violation. CHECK and foreign key failures carry different messages and are
// not duplicates.
func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateThread creates a new thread in the database.
// Returns ErrDuplicateThread if a thread with the same id already exists.
func (s *SQLiteStore) CreateThread(ctx context.Context, thread *Thread) error {
	metadataJSON, err := marshalMetadata(thread.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	query := `
		INSERT INTO threads (id, created_at, metadata_json)
		VALUES (?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		thread.ID,
		thread.CreatedAt.UTC().Format(time.RFC3339),
		metadataJSON,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateThread
		}
		return fmt.Errorf("inserting thread: %w", err)
	}

	s.logger.Debug("created thread", "id", thread.ID)
	return nil
}

// GetThread retrieves a thread by ID.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*Thread, error) {
	query := `
		SELECT id, created_at, metadata_json
		FROM threads
		WHERE id = ?
	`

	var thread Thread
	var createdAtStr string
	var metadataJSON sql.NullString

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&createdAtStr,
		&metadataJSON,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}

	thread.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	thread.Metadata, err = unmarshalMetadata(metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}

	return &thread, nil
}

// UpdateThreadMetadata replaces a thread's metadata.
// Returns ErrNotFound if the thread doesn't exist.
func (s *SQLiteStore) UpdateThreadMetadata(ctx context.Context, id string, metadata map[string]string) error {
	metadataJSON, err := marshalMetadata(metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE threads SET metadata_json = ? WHERE id = ?`,
		metadataJSON, id,
	)
	if err != nil {
		return fmt.Errorf("updating thread metadata: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated thread metadata", "id", id)
	return nil
}

// ListThreads retrieves threads ordered by creation time, newest first.
// If limit is 0 or negative, a default limit of 100 is used.
func (s *SQLiteStore) ListThreads(ctx context.Context, limit int) ([]*Thread, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, created_at, metadata_json
		FROM threads
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var thread Thread
		var createdAtStr string
		var metadataJSON sql.NullString

		if err := rows.Scan(&thread.ID, &createdAtStr, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning thread row: %w", err)
		}

		thread.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		thread.Metadata, err = unmarshalMetadata(metadataJSON)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata: %w", err)
		}

		threads = append(threads, &thread)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread rows: %w", err)
	}

	return threads, nil
}

// AppendItem appends an item to a thread's log, assigning the next sequence
// number. The seq assignment and insert happen in a single statement, so an
// append is atomic per thread. Returns ErrThreadMismatch when the item's
// thread id disagrees with threadID, ErrDuplicateItem on id reuse, and
// ErrNotFound when the thread doesn't exist.
func (s *SQLiteStore) AppendItem(ctx context.Context, threadID string, item *Item) error {
	if item.ThreadID != threadID {
		return ErrThreadMismatch
	}
	if item.Kind == "" {
		return fmt.Errorf("item kind is required")
	}

	// Verify the thread exists first so a missing thread surfaces as
	// ErrNotFound rather than a foreign key failure.
	if _, err := s.GetThread(ctx, threadID); err != nil {
		return err
	}

	query := `
		INSERT INTO thread_items (id, thread_id, seq, kind, content, created_at)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM thread_items WHERE thread_id = ?
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		threadID,
		string(item.Kind),
		item.Content,
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
		threadID,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateItem
		}
		return fmt.Errorf("inserting item: %w", err)
	}

	// Read back the assigned seq so callers see the committed item.
	err = s.db.QueryRowContext(ctx,
		`SELECT seq FROM thread_items WHERE id = ?`, item.ID,
	).Scan(&item.Seq)
	if err != nil {
		return fmt.Errorf("reading assigned seq: %w", err)
	}

	s.logger.Debug("appended item",
		"id", item.ID,
		"thread_id", threadID,
		"seq", item.Seq,
		"kind", item.Kind)
	return nil
}

// LoadItems returns one page of a thread's items. In ascending order the
// cursor selects items with seq greater than `after`; in descending order,
// items with seq less than `after`. A nil cursor starts from the log's
// beginning (asc) or end (desc).
func (s *SQLiteStore) LoadItems(ctx context.Context, threadID string, after *int64, limit int, order Order) (*ItemPage, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}

	var query string
	args := []any{threadID}
	switch order {
	case OrderDesc:
		query = `
			SELECT id, thread_id, seq, kind, content, created_at
			FROM thread_items
			WHERE thread_id = ?`
		if after != nil {
			query += ` AND seq < ?`
			args = append(args, *after)
		}
		query += ` ORDER BY seq DESC LIMIT ?`
	case OrderAsc, "":
		query = `
			SELECT id, thread_id, seq, kind, content, created_at
			FROM thread_items
			WHERE thread_id = ?`
		if after != nil {
			query += ` AND seq > ?`
			args = append(args, *after)
		}
		query += ` ORDER BY seq ASC LIMIT ?`
	default:
		return nil, fmt.Errorf("invalid order %q", order)
	}

	// Fetch one extra row to determine HasMore without a second query.
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var item Item
		var kindStr, createdAtStr string

		if err := rows.Scan(
			&item.ID,
			&item.ThreadID,
			&item.Seq,
			&kindStr,
			&item.Content,
			&createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("scanning item row: %w", err)
		}

		item.Kind = ItemKind(kindStr)
		item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating item rows: %w", err)
	}

	page := &ItemPage{}
	if len(items) > limit {
		page.HasMore = true
		items = items[:limit]
	}
	page.Data = items
	if len(items) > 0 {
		cursor := items[len(items)-1].Seq
		page.Cursor = &cursor
	}

	return page, nil
}

// marshalMetadata encodes thread metadata to JSON, returning nil for empty maps
func marshalMetadata(metadata map[string]string) (any, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// unmarshalMetadata decodes thread metadata from its JSON column
func unmarshalMetadata(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
