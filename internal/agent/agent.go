// Package agent drives the decision cycle: collect features, ask the oracle
// panel, resolve consensus, then net and open positions. One agent instance
// owns one symbol.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"scalper/internal/config"
	"scalper/internal/consensus"
	"scalper/internal/executor"
	"scalper/internal/feature"
	"scalper/internal/history"
	"scalper/internal/logger"
	"scalper/internal/notifier"
	"scalper/internal/oracle"
	"scalper/internal/prompt"
	"scalper/internal/venue"
)

// idleSleep is how long the loop parks outside active hours before
// re-checking the clock.
const idleSleep = time.Hour

// Agent wires the cycle pipeline together and runs it on the configured
// schedule. All collaborators are constructed by the caller.
type Agent struct {
	cfg        config.Config
	aggregator *consensus.Aggregator
	exec       *executor.Executor
	features   *feature.Builder
	prompts    *prompt.Library
	cycles     *history.Store
	notify     notifier.TextNotifier

	// nowFn is swappable in tests.
	nowFn func() time.Time

	mu     sync.RWMutex
	status Status
}

// Status is the loop's observable state, served by the HTTP endpoints.
type Status struct {
	CycleCount   int                `json:"cycle_count"`
	LastCycleID  string             `json:"last_cycle_id,omitempty"`
	LastCycleAt  time.Time          `json:"last_cycle_at,omitempty"`
	LastDecision consensus.Decision `json:"last_decision,omitempty"`
	LastError    string             `json:"last_error,omitempty"`
	Idle         bool               `json:"idle"`
}

func New(cfg config.Config, agg *consensus.Aggregator, exec *executor.Executor,
	features *feature.Builder, prompts *prompt.Library, cycles *history.Store,
	notify notifier.TextNotifier) *Agent {
	if notify == nil {
		notify = notifier.Nop{}
	}
	return &Agent{
		cfg:        cfg,
		aggregator: agg,
		exec:       exec,
		features:   features,
		prompts:    prompts,
		cycles:     cycles,
		notify:     notify,
		nowFn:      time.Now,
	}
}

// Status returns a snapshot of the loop state.
func (a *Agent) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// Run executes cycles until ctx is canceled. Outside the active window the
// loop sleeps in one-hour slices; inside it, cycles are separated by the
// configured pause. A failed cycle is logged and the loop continues.
func (a *Agent) Run(ctx context.Context) error {
	pause := time.Duration(a.cfg.Schedule.SleepSeconds) * time.Second
	logger.Infof("agent started symbol=%s hours=%02d-%02d pause=%s",
		a.cfg.Trading.Symbol, a.cfg.Schedule.StartHour, a.cfg.Schedule.EndHour, pause)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		now := a.nowFn()
		if !a.withinActiveHours(now) {
			a.setIdle(true)
			logger.Infof("outside active hours (now=%02d:%02d), sleeping %s",
				now.Hour(), now.Minute(), idleSleep)
			if !sleepCtx(ctx, idleSleep) {
				return ctx.Err()
			}
			continue
		}
		a.setIdle(false)

		if err := a.runCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Errorf("cycle failed: %v", err)
			a.notifyText(fmt.Sprintf("⚠️ cycle failed: %v", err))
		}
		if !sleepCtx(ctx, pause) {
			return ctx.Err()
		}
	}
}

// withinActiveHours reports whether now's local hour is inside
// [start_hour, end_hour].
func (a *Agent) withinActiveHours(now time.Time) bool {
	h := now.Hour()
	return h >= a.cfg.Schedule.StartHour && h <= a.cfg.Schedule.EndHour
}

func (a *Agent) runCycle(ctx context.Context) error {
	cycleID := uuid.NewString()
	start := a.nowFn()
	logger.Infof("cycle %s started", cycleID)

	attachments, err := a.features.Collect(ctx)
	if err != nil {
		a.recordOutcome(cycleID, start, consensus.Decision{}, err)
		return fmt.Errorf("collecting features: %w", err)
	}

	req := oracle.Request{
		System: a.prompts.System(),
		Prompt: a.prompts.Render(map[string]string{
			"symbol": a.cfg.Trading.Symbol,
			"time":   start.UTC().Format(time.RFC3339),
		}),
		Attachments: attachments,
	}
	decision, votes := a.aggregator.Decide(ctx, req)
	logger.Infof("cycle %s decision=%s buy=%d sell=%d wait=%d dropped=%d",
		cycleID, decision.Action, decision.BuyVotes, decision.SellVotes,
		decision.WaitVotes, decision.Dropped)

	if err := a.cycles.RecordCycle(ctx, history.CycleRecord{
		CycleID:   cycleID,
		Timestamp: start.UnixMilli(),
		Symbol:    a.cfg.Trading.Symbol,
		Decision:  decision,
		Votes:     votes,
	}); err != nil {
		logger.Warnf("cycle %s not persisted: %v", cycleID, err)
	}

	if decision.Action == consensus.ActionWait {
		a.recordOutcome(cycleID, start, decision, nil)
		return nil
	}

	dir := venue.Buy
	if decision.Action == consensus.ActionSell {
		dir = venue.Sell
	}

	closeReport, err := a.exec.CloseOpposing(ctx, cycleID, dir)
	if err != nil {
		a.recordOutcome(cycleID, start, decision, err)
		return fmt.Errorf("netting before %s: %w", dir, err)
	}
	openReport := a.exec.OpenPositions(ctx, cycleID, dir, a.cfg.Trading.OpensPerDecision)

	a.recordOutcome(cycleID, start, decision, nil)
	a.notifyText(cycleSummary(a.cfg.Trading.Symbol, decision, dir, closeReport, openReport))
	return nil
}

func (a *Agent) recordOutcome(cycleID string, at time.Time, d consensus.Decision, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.CycleCount++
	a.status.LastCycleID = cycleID
	a.status.LastCycleAt = at
	a.status.LastDecision = d
	if err != nil {
		a.status.LastError = err.Error()
	} else {
		a.status.LastError = ""
	}
}

func (a *Agent) setIdle(idle bool) {
	a.mu.Lock()
	a.status.Idle = idle
	a.mu.Unlock()
}

func (a *Agent) notifyText(text string) {
	if err := a.notify.SendText(text); err != nil {
		logger.Warnf("notification not delivered: %v", err)
	}
}

func cycleSummary(symbol string, d consensus.Decision, dir venue.Direction,
	closes executor.CloseReport, opens executor.OpenReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* %s (buy=%d sell=%d wait=%d dropped=%d)\n",
		symbol, d.Action, d.BuyVotes, d.SellVotes, d.WaitVotes, d.Dropped)
	if n := len(closes.Closed); n > 0 {
		profit := 0.0
		for _, c := range closes.Closed {
			profit += c.Profit
		}
		fmt.Fprintf(&b, "closed %d opposing (%+.2f)\n", n, profit)
	}
	if n := len(closes.Rejected); n > 0 {
		fmt.Fprintf(&b, "%d closes rejected\n", n)
	}
	fmt.Fprintf(&b, "opened %d %s", len(opens.Opened), dir)
	if failed := len(opens.Rejected) + len(opens.Errors); failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", failed)
	}
	return b.String()
}

// sleepCtx waits d unless ctx ends first; it reports whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
