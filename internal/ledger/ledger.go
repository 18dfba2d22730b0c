// Package ledger keeps the durable, append-only record of closed trades.
// Rows are only ever appended, and only after the venue confirmed a close.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"scalper/internal/venue"
)

// header is the fixed on-disk schema. It is written exactly once, when the
// file is first created; reopening an existing ledger never rewrites it.
var header = []string{"ticket", "order_type", "profit", "last_closed_at"}

const timeLayout = "2006-01-02 15:04:05"

// Record is one closed-position outcome.
type Record struct {
	Ticket    int64
	Direction venue.Direction
	Profit    float64
	ClosedAt  time.Time
}

// Ledger serializes appends to a single CSV file. Concurrent closes in the
// same cycle may append in either order; none may be lost or interleaved.
type Ledger struct {
	mu   sync.Mutex
	path string
}

// Open ensures the ledger file exists with its header and returns a handle.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	l := &Ledger{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := l.writeHeader(); err != nil {
			return nil, fmt.Errorf("initializing ledger: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

// Append writes one record. The row is flushed and synced before returning;
// an error here means the trade is not durably recorded and the caller must
// escalate rather than swallow it.
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	row := []string{
		strconv.FormatInt(rec.Ticket, 10),
		string(rec.Direction),
		strconv.FormatFloat(rec.Profit, 'f', 2, 64),
		rec.ClosedAt.Format(timeLayout),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("writing ledger row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing ledger row: %w", err)
	}
	return f.Sync()
}

// Tail returns up to n most recent records, oldest first.
func (l *Ledger) Tail(n int) ([]Record, error) {
	recs, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs, nil
}

// ReadAll parses every row of the ledger. Used by the status server and the
// profit report; the trading path never reads the ledger back.
func (l *Ledger) ReadAll() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) != 4 {
			continue
		}
		ticket, _ := strconv.ParseInt(row[0], 10, 64)
		profit, _ := strconv.ParseFloat(row[2], 64)
		closedAt, _ := time.ParseInLocation(timeLayout, row[3], time.Local)
		out = append(out, Record{
			Ticket:    ticket,
			Direction: venue.Direction(row[1]),
			Profit:    profit,
			ClosedAt:  closedAt,
		})
	}
	return out, nil
}

func (l *Ledger) writeHeader() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}
