// Package ledger is the durable accounting layer: an append-only usage log
// for cost/budget tracking and a key/value fact store used as long-term
// memory. Both live in one SQLite database and survive restarts.
//
// Usage records are whole-row appends and are never mutated, so interleaved
// writers cannot corrupt the log. Budget enforcement compares an estimate
// against range sums over the log before dispatch; the check-then-dispatch
// sequence is not atomic across concurrent requests, which is an accepted
// and documented race.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver.
)

// Ledger provides durable usage tracking and fact storage.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if necessary) the ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("ledger: create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ledger: %s: %w", pragma, err)
		}
	}

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return l, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS usage_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			model TEXT NOT NULL,
			provider TEXT NOT NULL,
			cost REAL NOT NULL,
			tokens INTEGER NOT NULL,
			request_type TEXT NOT NULL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_ts ON usage_records(ts)`,
		`CREATE TABLE IF NOT EXISTS facts (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			category TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, stmt := range schema {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("ledger: init schema: %w", err)
		}
	}

	return nil
}

// UsageRecord is one completed request's accounting entry.
type UsageRecord struct {
	Timestamp   time.Time
	Model       string
	Provider    string
	Cost        float64
	Tokens      int
	RequestType string
	Metadata    map[string]string
}

// AddUsageRecord appends a usage record to the durable log. A zero timestamp
// is filled with the current time; the request type defaults to "chat".
func (l *Ledger) AddUsageRecord(ctx context.Context, rec UsageRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	requestType := rec.RequestType
	if requestType == "" {
		requestType = "chat"
	}

	var metadata []byte
	if len(rec.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("ledger: encode metadata: %w", err)
		}
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO usage_records (ts, model, provider, cost, tokens, request_type, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts.Unix(), rec.Model, rec.Provider, rec.Cost, rec.Tokens, requestType, string(metadata))
	if err != nil {
		return fmt.Errorf("ledger: add usage record: %w", err)
	}

	return nil
}

// DailyCost returns the total cost for the calendar day containing date.
func (l *Ledger) DailyCost(ctx context.Context, date time.Time) (float64, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1)

	return l.rangeCost(ctx, start, end)
}

// MonthlyCost returns the total cost for the given month.
func (l *Ledger) MonthlyCost(ctx context.Context, year int, month time.Month) (float64, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	return l.rangeCost(ctx, start, end)
}

func (l *Ledger) rangeCost(ctx context.Context, start, end time.Time) (float64, error) {
	var cost sql.NullFloat64
	err := l.db.QueryRowContext(ctx, `
		SELECT SUM(cost) FROM usage_records WHERE ts >= ? AND ts < ?`,
		start.Unix(), end.Unix()).Scan(&cost)
	if err != nil {
		return 0, fmt.Errorf("ledger: range cost: %w", err)
	}

	return cost.Float64, nil
}

// MostUsedModel returns the model with the most requests in the last
// windowDays days, or "unknown" when the window is empty. Tie order is
// whatever the aggregation yields; it is not a contract.
func (l *Ledger) MostUsedModel(ctx context.Context, windowDays int) (string, error) {
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	var model string
	err := l.db.QueryRowContext(ctx, `
		SELECT model FROM usage_records
		WHERE ts >= ?
		GROUP BY model
		ORDER BY COUNT(*) DESC
		LIMIT 1`, cutoff.Unix()).Scan(&model)
	if err == sql.ErrNoRows {
		return "unknown", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: most used model: %w", err)
	}

	return model, nil
}

// ModelUsage summarizes one model's (or provider's) share of the window.
type ModelUsage struct {
	Name     string
	Requests int
	Cost     float64
}

// Stats aggregates usage over a trailing window.
type Stats struct {
	PeriodDays    int
	TotalCost     float64
	TotalRequests int
	TotalTokens   int
	ByModel       []ModelUsage
	ByProvider    []ModelUsage
}

// UsageStats returns aggregate usage for the last days days.
func (l *Ledger) UsageStats(ctx context.Context, days int) (Stats, error) {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	stats := Stats{PeriodDays: days}

	var cost sql.NullFloat64
	var requests, tokens sql.NullInt64
	err := l.db.QueryRowContext(ctx, `
		SELECT SUM(cost), COUNT(*), SUM(tokens) FROM usage_records WHERE ts >= ?`,
		cutoff).Scan(&cost, &requests, &tokens)
	if err != nil {
		return Stats{}, fmt.Errorf("ledger: usage totals: %w", err)
	}
	stats.TotalCost = cost.Float64
	stats.TotalRequests = int(requests.Int64)
	stats.TotalTokens = int(tokens.Int64)

	for _, group := range []struct {
		column string
		dest   *[]ModelUsage
	}{
		{"model", &stats.ByModel},
		{"provider", &stats.ByProvider},
	} {
		rows, err := l.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT %s, COUNT(*), SUM(cost) FROM usage_records
			WHERE ts >= ?
			GROUP BY %s
			ORDER BY COUNT(*) DESC`, group.column, group.column), cutoff)
		if err != nil {
			return Stats{}, fmt.Errorf("ledger: usage by %s: %w", group.column, err)
		}

		for rows.Next() {
			var u ModelUsage
			if err := rows.Scan(&u.Name, &u.Requests, &u.Cost); err != nil {
				_ = rows.Close()
				return Stats{}, fmt.Errorf("ledger: scan usage row: %w", err)
			}
			*group.dest = append(*group.dest, u)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return Stats{}, fmt.Errorf("ledger: usage rows: %w", err)
		}
		_ = rows.Close()
	}

	return stats, nil
}

// CleanOldRecords deletes usage records older than daysToKeep days and
// returns how many were removed.
func (l *Ledger) CleanOldRecords(ctx context.Context, daysToKeep int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -daysToKeep).Unix()

	res, err := l.db.ExecContext(ctx, `DELETE FROM usage_records WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("ledger: clean old records: %w", err)
	}

	return res.RowsAffected()
}
