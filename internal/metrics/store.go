package metrics

import (
	"context"
	"database/sql"
	"time"
)

// Outcomes of a store mutation.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const timestampLayout = "2006-01-02 15:04:05"

// MutationMetric records one create, move, edit or delete sent to the
// Schedule Store.
type MutationMetric struct {
	Operation string
	Outcome   string
	LatencyMS int64
	Timestamp time.Time
}

// Store handles persistence of metrics to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore initializes the Store with an existing database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record saves a metric to the database.
func (s *Store) Record(m MutationMetric) error {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO mutation_metrics (operation, outcome, latency_ms, timestamp) VALUES (?, ?, ?, ?)`,
		m.Operation, m.Outcome, m.LatencyMS, ts.UTC().Format(timestampLayout))
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DailySummary aggregates one operation over one day.
type DailySummary struct {
	Date         string  `json:"date"`
	Operation    string  `json:"operation"`
	Total        int     `json:"total"`
	Failed       int     `json:"failed"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// GetDailySummary retrieves per-day, per-operation totals for the last N
// days, newest day first.
func (s *Store) GetDailySummary(days int) ([]DailySummary, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Format(timestampLayout)
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT substr(timestamp, 1, 10) AS day,
		       operation,
		       COUNT(*),
		       SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
		       AVG(latency_ms)
		FROM mutation_metrics
		WHERE timestamp >= ?
		GROUP BY day, operation
		ORDER BY day DESC, operation`, OutcomeFailure, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []DailySummary
	for rows.Next() {
		var d DailySummary
		if err := rows.Scan(&d.Date, &d.Operation, &d.Total, &d.Failed, &d.AvgLatencyMS); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays).Format(timestampLayout)
	res, err := s.db.ExecContext(context.Background(), `DELETE FROM mutation_metrics WHERE timestamp < ?`, threshold)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
