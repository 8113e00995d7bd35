// ABOUTME: Fact persistence methods on SQLiteStore implementing FactStore
// ABOUTME: Facts move through pending -> saved/discarded and never back

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateFact records a new fact in pending status.
func (s *SQLiteStore) CreateFact(ctx context.Context, fact *Fact) error {
	if fact.Status == "" {
		fact.Status = FactStatusPending
	}
	now := time.Now().UTC()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	if fact.UpdatedAt.IsZero() {
		fact.UpdatedAt = fact.CreatedAt
	}

	query := `
		INSERT INTO facts (id, text, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		fact.ID,
		fact.Text,
		string(fact.Status),
		fact.CreatedAt.UTC().Format(time.RFC3339),
		fact.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("fact %s already exists", fact.ID)
		}
		return fmt.Errorf("inserting fact: %w", err)
	}

	s.logger.Debug("created fact", "id", fact.ID, "status", fact.Status)
	return nil
}

// GetFact retrieves a fact by ID.
// Returns ErrNotFound if the fact doesn't exist.
func (s *SQLiteStore) GetFact(ctx context.Context, id string) (*Fact, error) {
	query := `
		SELECT id, text, status, created_at, updated_at
		FROM facts
		WHERE id = ?
	`
	return s.scanFact(s.db.QueryRowContext(ctx, query, id))
}

// MarkFactSaved transitions a fact from pending to saved and returns the
// updated fact. Saving an already-saved fact is a no-op, so retried client
// confirmations are safe.
func (s *SQLiteStore) MarkFactSaved(ctx context.Context, id string) (*Fact, error) {
	return s.updateFactStatus(ctx, id, FactStatusSaved)
}

// DiscardFact transitions a fact to discarded and returns the updated fact.
func (s *SQLiteStore) DiscardFact(ctx context.Context, id string) (*Fact, error) {
	return s.updateFactStatus(ctx, id, FactStatusDiscarded)
}

func (s *SQLiteStore) updateFactStatus(ctx context.Context, id string, status FactStatus) (*Fact, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE facts SET status = ?, updated_at = ? WHERE id = ?`,
		string(status),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating fact status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrNotFound
	}

	s.logger.Debug("updated fact status", "id", id, "status", status)
	return s.GetFact(ctx, id)
}

// ListSavedFacts returns saved facts ordered oldest first, so model context
// built from them reads in the order the user stated them.
func (s *SQLiteStore) ListSavedFacts(ctx context.Context, limit int) ([]*Fact, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, text, status, created_at, updated_at
		FROM facts
		WHERE status = 'saved'
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	var facts []*Fact
	for rows.Next() {
		fact, err := s.scanFactRow(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fact rows: %w", err)
	}

	return facts, nil
}

func (s *SQLiteStore) scanFact(row *sql.Row) (*Fact, error) {
	var fact Fact
	var statusStr, createdAtStr, updatedAtStr string

	err := row.Scan(&fact.ID, &fact.Text, &statusStr, &createdAtStr, &updatedAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning fact: %w", err)
	}

	return fillFactTimes(&fact, statusStr, createdAtStr, updatedAtStr)
}

func (s *SQLiteStore) scanFactRow(rows *sql.Rows) (*Fact, error) {
	var fact Fact
	var statusStr, createdAtStr, updatedAtStr string

	if err := rows.Scan(&fact.ID, &fact.Text, &statusStr, &createdAtStr, &updatedAtStr); err != nil {
		return nil, fmt.Errorf("scanning fact row: %w", err)
	}

	return fillFactTimes(&fact, statusStr, createdAtStr, updatedAtStr)
}

func fillFactTimes(fact *Fact, statusStr, createdAtStr, updatedAtStr string) (*Fact, error) {
	var err error
	fact.Status = FactStatus(statusStr)
	fact.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	fact.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return fact, nil
}
