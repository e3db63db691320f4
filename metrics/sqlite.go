package metrics

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteSink mirrors persisted metric series into a single queryable
// database file, one row per appended value. It complements the per-metric
// JSON artifacts; both are plain overwrite-style writes owned by the
// orchestrating goroutine.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (or creates) the metrics database at path and prepares
// the schema. runID scopes the rows to one training or evaluation run.
func NewSQLiteSink(path, runID string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metrics database: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metrics (
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			value DOUBLE NOT NULL,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, name, position)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create metrics schema: %v", err)
	}

	return &SQLiteSink{db: db, runID: runID}, nil
}

// Write replaces the run's rows with the current contents of the store.
func (s *SQLiteSink) Write(store *Store) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin metrics transaction: %v", err)
	}

	if _, err := tx.Exec("DELETE FROM metrics WHERE run_id = ?", s.runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear run metrics: %v", err)
	}

	stmt, err := tx.Prepare("INSERT INTO metrics (run_id, name, position, value) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare metrics insert: %v", err)
	}
	defer stmt.Close()

	for _, name := range store.Names() {
		values, err := store.Values(name)
		if err != nil {
			tx.Rollback()
			return err
		}
		for position, value := range values {
			if _, err := stmt.Exec(s.runID, name, position, value); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to insert metric %q: %v", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metrics: %v", err)
	}
	return nil
}

// Series reads one metric series for the sink's run back in append order.
func (s *SQLiteSink) Series(name string) ([]float64, error) {
	rows, err := s.db.Query(
		"SELECT value FROM metrics WHERE run_id = ? AND name = ? ORDER BY position",
		s.runID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric %q: %v", name, err)
	}
	defer rows.Close()

	var values []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan metric %q: %v", name, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read metric %q: %v", name, err)
	}
	return values, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
