// Package performance persists signal outcomes to PostgreSQL and serves
// per-pattern win rates back to the confidence scorer, plus per-symbol
// kill-zone statistics.
package performance

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/internal/engine/killzone"
)

// Tracker records signal outcomes. Implements the scorer's win-rate hook.
type Tracker struct {
	db     *sql.DB
	logger zerolog.Logger
}

// ZoneStats aggregates outcomes for one symbol and session window.
type ZoneStats struct {
	Symbol      string
	Zone        killzone.Zone
	Total       int
	Wins        int
	Losses      int
	WinRate     float64
	AvgStrength float64
}

// New opens a PostgreSQL connection and ensures the schema exists.
func New(databaseURL string) (*Tracker, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &Tracker{
		db:     db,
		logger: log.With().Str("component", "performance_tracker").Logger(),
	}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signal_outcomes (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			pattern_type TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			zone TEXT NOT NULL,
			strength DOUBLE PRECISION NOT NULL,
			success BOOLEAN NOT NULL,
			return_r DOUBLE PRECISION NOT NULL,
			signaled_at TIMESTAMP NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_signal_outcomes_pattern
		ON signal_outcomes (pattern_type, symbol, timeframe)
	`)
	return err
}

// Close releases the database connection.
func (t *Tracker) Close() error {
	return t.db.Close()
}

// RecordOutcome stores one completed signal outcome. The session window is
// derived from the signal timestamp.
func (t *Tracker) RecordOutcome(symbol, patternType, timeframe string, signaledAt time.Time, strength float64, success bool, returnR float64) error {
	zone := killzone.Classify(signaledAt).Zone

	_, err := t.db.Exec(`
		INSERT INTO signal_outcomes (
			symbol, pattern_type, timeframe, zone, strength, success, return_r, signaled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, symbol, patternType, timeframe, string(zone), strength, success, returnR, signaledAt.UTC())

	if err != nil {
		t.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to record outcome")
		return err
	}
	return nil
}

// WinRate returns the historical win rate for a pattern on a symbol and
// timeframe. ok is false when no outcomes are recorded, letting the scorer
// fall back to its neutral default.
func (t *Tracker) WinRate(patternType, symbol, timeframe string) (rate float64, samples int, ok bool) {
	var total, wins int
	err := t.db.QueryRow(`
		SELECT COUNT(*), COUNT(*) FILTER (WHERE success)
		FROM signal_outcomes
		WHERE pattern_type = $1 AND symbol = $2 AND timeframe = $3
	`, patternType, symbol, timeframe).Scan(&total, &wins)

	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			t.logger.Error().Err(err).Msg("Failed to query win rate")
		}
		return 0, 0, false
	}
	if total == 0 {
		return 0, 0, false
	}
	return float64(wins) / float64(total) * 100, total, true
}

// ZoneProfile returns per-zone statistics for a symbol, best zone first.
func (t *Tracker) ZoneProfile(symbol string) ([]ZoneStats, error) {
	rows, err := t.db.Query(`
		SELECT zone,
			COUNT(*),
			COUNT(*) FILTER (WHERE success),
			AVG(strength)
		FROM signal_outcomes
		WHERE symbol = $1
		GROUP BY zone
		ORDER BY COUNT(*) FILTER (WHERE success)::float / COUNT(*) DESC
	`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ZoneStats
	for rows.Next() {
		var s ZoneStats
		var zone string
		if err := rows.Scan(&zone, &s.Total, &s.Wins, &s.AvgStrength); err != nil {
			return nil, err
		}
		s.Symbol = symbol
		s.Zone = killzone.Zone(zone)
		s.Losses = s.Total - s.Wins
		if s.Total > 0 {
			s.WinRate = float64(s.Wins) / float64(s.Total) * 100
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
