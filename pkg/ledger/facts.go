package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AddFact inserts or updates a fact. An empty category defaults to "general".
func (l *Ledger) AddFact(ctx context.Context, key, value, category string) error {
	if category == "" {
		category = "general"
	}
	now := time.Now().Unix()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO facts (key, value, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			updated_at = excluded.updated_at`,
		key, value, category, now, now)
	if err != nil {
		return fmt.Errorf("ledger: add fact: %w", err)
	}

	return nil
}

// Fact returns the value for key. The bool is false when the fact is absent.
func (l *Ledger) Fact(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := l.db.QueryRowContext(ctx, `SELECT value FROM facts WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ledger: get fact: %w", err)
	}

	return value, true, nil
}

// FactsByCategory returns all facts in a category.
func (l *Ledger) FactsByCategory(ctx context.Context, category string) (map[string]string, error) {
	return l.queryFacts(ctx, `SELECT key, value FROM facts WHERE category = ?`, category)
}

// AllFacts returns every stored fact regardless of category. This is the
// source of the memory snapshot injected into requests.
func (l *Ledger) AllFacts(ctx context.Context) (map[string]string, error) {
	return l.queryFacts(ctx, `SELECT key, value FROM facts`)
}

func (l *Ledger) queryFacts(ctx context.Context, query string, args ...any) (map[string]string, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query facts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facts := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("ledger: scan fact: %w", err)
		}
		facts[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: fact rows: %w", err)
	}

	return facts, nil
}

// RemoveFact deletes a fact. Removing an absent key is not an error.
func (l *Ledger) RemoveFact(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM facts WHERE key = ?`, key); err != nil {
		return fmt.Errorf("ledger: remove fact: %w", err)
	}

	return nil
}
