// Package metrics keeps best-effort activity counters in an embedded
// sqlite database. Counter failures are logged and never surfaced to a
// request; losing a count must not affect any response.
package metrics

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/drewster99/FishIdentifierCam/internal/utils"
)

type CounterStore struct {
	db *sql.DB
}

func NewCounterStore(path string) (*CounterStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening counter db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS counters (
		name TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating counters table: %w", err)
	}

	return &CounterStore{db: db}, nil
}

func (s *CounterStore) Close() {
	if s != nil && s.db != nil {
		_ = s.db.Close()
	}
}

// Increment bumps a named counter, fire-and-forget. Empty names are
// dropped. Errors are logged, never returned.
func (s *CounterStore) Increment(name string) {
	if s == nil || name == "" {
		return
	}
	_, err := s.db.Exec(
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1`, name)
	if err != nil {
		utils.Logger.WithError(err).Warnf("Failed to increment counter %s", name)
	}
}

// Value reads a counter. Missing counters read as zero.
func (s *CounterStore) Value(name string) (int64, error) {
	var v int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading counter %s: %w", name, err)
	}
	return v, nil
}

// LogRollup writes every counter to the log at info level. Scheduled
// daily from the api binary.
func (s *CounterStore) LogRollup() {
	rows, err := s.db.Query(`SELECT name, value FROM counters ORDER BY name`)
	if err != nil {
		utils.Logger.WithError(err).Warn("Failed to read counters for rollup")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			utils.Logger.WithError(err).Warn("Failed to scan counter row")
			return
		}
		utils.Logger.Infof("COUNTER %s = %d", name, value)
	}
	if err := rows.Err(); err != nil {
		utils.Logger.WithError(err).Warn("Counter rollup iteration failed")
	}
}
