// Package history persists one row per decision cycle: the surviving votes
// and the resolved action. It exists for later inspection only; the trading
// path never reads it back.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scalper/internal/consensus"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycles (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	cycle_id TEXT NOT NULL,
	ts INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	action TEXT NOT NULL,
	buy_votes INTEGER NOT NULL,
	sell_votes INTEGER NOT NULL,
	wait_votes INTEGER NOT NULL,
	dropped INTEGER NOT NULL,
	votes TEXT
);
CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(ts);
`

// CycleRecord is one persisted decision cycle.
type CycleRecord struct {
	CycleID   string             `json:"cycle_id"`
	Timestamp int64              `json:"ts"`
	Symbol    string             `json:"symbol"`
	Decision  consensus.Decision `json:"decision"`
	Votes     []consensus.Vote   `json:"votes,omitempty"`
}

// Store wraps a single sqlite file. Appends are serialized; the file may be
// read concurrently by the status server.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history store: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) RecordCycle(ctx context.Context, rec CycleRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	votes, _ := json.Marshal(rec.Votes)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles (cycle_id, ts, symbol, action, buy_votes, sell_votes, wait_votes, dropped, votes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.CycleID, rec.Timestamp, rec.Symbol, string(rec.Decision.Action),
		rec.Decision.BuyVotes, rec.Decision.SellVotes, rec.Decision.WaitVotes,
		rec.Decision.Dropped, string(votes))
	if err != nil {
		return fmt.Errorf("recording cycle: %w", err)
	}
	return nil
}

// RecentCycles returns the latest n cycles, newest first.
func (s *Store) RecentCycles(ctx context.Context, n int) ([]CycleRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if n <= 0 {
		n = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT cycle_id, ts, symbol, action, buy_votes, sell_votes, wait_votes, dropped, votes
		 FROM cycles ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CycleRecord
	for rows.Next() {
		var rec CycleRecord
		var action, votes string
		if err := rows.Scan(&rec.CycleID, &rec.Timestamp, &rec.Symbol, &action,
			&rec.Decision.BuyVotes, &rec.Decision.SellVotes, &rec.Decision.WaitVotes,
			&rec.Decision.Dropped, &votes); err != nil {
			return nil, err
		}
		rec.Decision.Action = consensus.Action(action)
		if votes != "" {
			_ = json.Unmarshal([]byte(votes), &rec.Votes)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
