package metrics

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// store keeps the ladder's lifetime counters (announcements, refreshes, AFK
// flags) in the metrics table. The Prometheus Service resets on restart;
// these do not.
type store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a MetricsStore over the ladder database.
func New(db *sql.DB) MetricsStore {
	return &store{
		db: db,
	}
}

// Increment bumps a counter, creating it on first use. Failures are logged
// and swallowed so an announcement never fails on bookkeeping.
func (s *store) Increment(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO metrics (key, value) VALUES (?, 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1`, key)
	if err != nil {
		log.Error("Failed to increment counter", "error", err, "key", key)
		return
	}
	log.Debug("Incremented counter", "key", key)
}

// GetAll returns every stored counter. LadderKeys are always present, at
// zero until first incremented.
func (s *store) GetAll() (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counters := make(map[string]int, len(LadderKeys))
	for _, key := range LadderKeys {
		counters[key] = 0
	}

	rows, err := s.db.Query("SELECT key, value FROM metrics")
	if err != nil {
		return nil, fmt.Errorf("failed to query counters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key   string
			value int
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan counter: %w", err)
		}
		counters[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate counters: %w", err)
	}
	return counters, nil
}
