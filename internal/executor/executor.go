// Package executor translates a resolved decision into venue operations with
// netting-before-opening semantics. Every operation re-reads the venue
// immediately before acting; there is no local position cache.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scalper/internal/config"
	"scalper/internal/ledger"
	"scalper/internal/logger"
	"scalper/internal/sizing"
	"scalper/internal/store/model"
	"scalper/internal/store/sqlite"
	"scalper/internal/venue"

	"golang.org/x/sync/errgroup"
)

// maxWorkers bounds concurrent order submissions within one sub-step.
const maxWorkers = 4

// Executor owns the position lifecycle against one instrument. It is
// best-effort and non-transactional: a rejected order is reported, never
// retried, and the cycle proceeds.
type Executor struct {
	venue  venue.Venue
	ledger *ledger.Ledger
	events *sqlite.Store // optional order-event store, nil-safe
	policy sizing.Policy

	symbol    string
	deviation int
	magic     int
}

func New(v venue.Venue, l *ledger.Ledger, events *sqlite.Store, cfg config.TradingConfig) *Executor {
	return &Executor{
		venue:  v,
		ledger: l,
		events: events,
		policy: sizing.Policy{
			BaseVolume: cfg.BaseVolume,
			Martingale: cfg.Martingale,
			Multiplier: cfg.Multiplier,
		},
		symbol:    cfg.Symbol,
		deviation: cfg.Deviation,
		magic:     cfg.Magic,
	}
}

// Closed is one confirmed close, already appended to the ledger.
type Closed struct {
	Ticket    int64
	Direction venue.Direction
	Profit    float64
}

// Rejection is one venue-rejected order. The position (for closes) stays in
// its prior state.
type Rejection struct {
	Ticket  int64
	Retcode int
	Comment string
}

// CloseReport is the per-position outcome of a netting pass.
type CloseReport struct {
	Closed   []Closed
	Rejected []Rejection
}

// OpenReport is the per-submission outcome of an opening pass. Partial
// success is an accepted outcome, not an error.
type OpenReport struct {
	Opened   []int64 // tickets
	Rejected []Rejection
	Errors   []error // submissions that never reached the venue
}

// CloseOpposing nets every open position whose direction opposes dir. Each
// close is an independent concurrent task; completion order is unspecified.
// Venue rejections are collected in the report. A ledger failure after a
// confirmed close is retried once and then escalated as the returned error:
// a realized trade must never be dropped silently.
func (e *Executor) CloseOpposing(ctx context.Context, cycleID string, dir venue.Direction) (CloseReport, error) {
	positions, err := e.venue.Positions(ctx, e.symbol)
	if err != nil {
		return CloseReport{}, fmt.Errorf("reading positions: %w", err)
	}
	opposing := make([]venue.Position, 0, len(positions))
	for _, pos := range positions {
		if pos.Direction == dir.Opposite() {
			opposing = append(opposing, pos)
		}
	}
	if len(opposing) == 0 {
		return CloseReport{}, nil
	}

	var (
		mu     sync.Mutex
		report CloseReport
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxWorkers)
	for _, pos := range opposing {
		pos := pos
		eg.Go(func() error {
			closed, rej, err := e.closeOne(egCtx, cycleID, pos)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				return err
			case rej != nil:
				report.Rejected = append(report.Rejected, *rej)
			default:
				report.Closed = append(report.Closed, *closed)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return report, err
	}
	return report, nil
}

func (e *Executor) closeOne(ctx context.Context, cycleID string, pos venue.Position) (*Closed, *Rejection, error) {
	closeDir := pos.Direction.Opposite()
	tick, err := e.venue.Tick(ctx, e.symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("reading tick for close of #%d: %w", pos.Ticket, err)
	}
	req := venue.OrderRequest{
		Action:    venue.ActionDeal,
		Symbol:    e.symbol,
		Volume:    pos.Volume,
		Direction: closeDir,
		Price:     tick.Price(closeDir),
		Deviation: e.deviation,
		Magic:     e.magic,
		Position:  pos.Ticket,
		TypeTime:  venue.TimeGTC,
		Filling:   venue.FillingIOC,
	}
	result, err := e.venue.SendOrder(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("closing #%d: %w", pos.Ticket, err)
	}
	e.recordEvent(ctx, cycleID, model.OpClose, req, result)
	if !result.OK() {
		logger.Errorf("close rejected symbol=%s ticket=%d retcode=%d comment=%q",
			e.symbol, pos.Ticket, result.Retcode, result.Comment)
		return nil, &Rejection{Ticket: pos.Ticket, Retcode: result.Retcode, Comment: result.Comment}, nil
	}

	rec := ledger.Record{
		Ticket:    pos.Ticket,
		Direction: pos.Direction,
		Profit:    pos.Profit,
		ClosedAt:  time.Now(),
	}
	if err := e.appendWithRetry(rec); err != nil {
		return nil, nil, fmt.Errorf("ledger append for closed #%d: %w", pos.Ticket, err)
	}
	logger.Infof("closed symbol=%s ticket=%d direction=%s profit=%.2f",
		e.symbol, pos.Ticket, pos.Direction, pos.Profit)
	return &Closed{Ticket: pos.Ticket, Direction: pos.Direction, Profit: pos.Profit}, nil, nil
}

// OpenPositions submits count independent opening deals. Each task re-reads
// the tick and the losing-position count immediately before submitting, so
// sizing reflects the venue state at submission time. One task failing does
// not roll back or stop the others.
func (e *Executor) OpenPositions(ctx context.Context, cycleID string, dir venue.Direction, count int) OpenReport {
	var (
		mu     sync.Mutex
		report OpenReport
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxWorkers)
	for i := 0; i < count; i++ {
		eg.Go(func() error {
			ticket, rej, err := e.openOne(egCtx, cycleID, dir)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Errorf("open failed symbol=%s direction=%s: %v", e.symbol, dir, err)
				report.Errors = append(report.Errors, err)
			case rej != nil:
				report.Rejected = append(report.Rejected, *rej)
			default:
				report.Opened = append(report.Opened, ticket)
			}
			return nil
		})
	}
	_ = eg.Wait()
	return report
}

func (e *Executor) openOne(ctx context.Context, cycleID string, dir venue.Direction) (int64, *Rejection, error) {
	positions, err := e.venue.Positions(ctx, e.symbol)
	if err != nil {
		return 0, nil, fmt.Errorf("reading positions for sizing: %w", err)
	}
	volume := e.policy.Volume(sizing.LosingCount(positions))

	tick, err := e.venue.Tick(ctx, e.symbol)
	if err != nil {
		return 0, nil, fmt.Errorf("reading tick: %w", err)
	}
	req := venue.OrderRequest{
		Action:    venue.ActionDeal,
		Symbol:    e.symbol,
		Volume:    volume,
		Direction: dir,
		Price:     tick.Price(dir),
		Deviation: e.deviation,
		Magic:     e.magic,
		Comment:   cycleID,
		TypeTime:  venue.TimeGTC,
		Filling:   venue.FillingIOC,
	}
	result, err := e.venue.SendOrder(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	e.recordEvent(ctx, cycleID, model.OpOpen, req, result)
	if !result.OK() {
		logger.Errorf("open rejected symbol=%s direction=%s volume=%.2f retcode=%d comment=%q",
			e.symbol, dir, volume, result.Retcode, result.Comment)
		return 0, &Rejection{Retcode: result.Retcode, Comment: result.Comment}, nil
	}
	logger.Infof("opened symbol=%s direction=%s volume=%.2f ticket=%d price=%.5f",
		e.symbol, dir, volume, result.Order, result.Price)
	return result.Order, nil, nil
}

func (e *Executor) appendWithRetry(rec ledger.Record) error {
	err := e.ledger.Append(rec)
	if err == nil {
		return nil
	}
	logger.Warnf("ledger append failed for ticket=%d, retrying once: %v", rec.Ticket, err)
	if err := e.ledger.Append(rec); err != nil {
		return err
	}
	return nil
}

func (e *Executor) recordEvent(ctx context.Context, cycleID string, op model.OrderOp, req venue.OrderRequest, result venue.OrderResult) {
	if err := e.events.RecordOrder(ctx, cycleID, op, req, result); err != nil {
		logger.Warnf("order event not recorded cycle=%s op=%s: %v", cycleID, op, err)
	}
}
