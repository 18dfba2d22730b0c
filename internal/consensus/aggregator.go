// Package consensus reduces concurrent oracle recommendations to a single
// actionable decision under a per-direction quorum rule.
package consensus

import (
	"context"
	"time"

	"scalper/internal/config"
	"scalper/internal/logger"
	"scalper/internal/oracle"
	"scalper/internal/pkg/circuit"

	"golang.org/x/sync/errgroup"
)

// Action is the resolved direction of a cycle.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// Vote is one surviving recommendation, tagged with its origin.
type Vote struct {
	ProviderID     string
	Recommendation oracle.Recommendation
}

// Decision is the cycle's resolved action plus the vote counts it was derived
// from. It is never persisted; the history store keeps its own record.
type Decision struct {
	Action    Action
	BuyVotes  int
	SellVotes int
	WaitVotes int
	// Dropped counts oracle calls that failed or were skipped by an open
	// breaker. They are not Wait votes.
	Dropped int
}

// maxConcurrentCalls bounds the fan-out; oracle calls are I/O bound so the
// pool stays small.
const maxConcurrentCalls = 8

// Aggregator fans a fixed payload out to every enabled provider and counts
// surviving votes against the configured quorums.
type Aggregator struct {
	providers []oracle.Provider
	cfg       config.ConsensusConfig
	timeout   time.Duration
	breakers  map[string]*circuit.Breaker
}

func NewAggregator(providers []oracle.Provider, cfg config.ConsensusConfig, oc config.OracleConfig) *Aggregator {
	breakers := make(map[string]*circuit.Breaker, len(providers))
	cooldown := time.Duration(oc.Breaker.CooldownSeconds) * time.Second
	for _, p := range providers {
		breakers[p.ID()] = circuit.New("oracle:"+p.ID(), oc.Breaker.Threshold, cooldown)
	}
	return &Aggregator{
		providers: providers,
		cfg:       cfg,
		timeout:   time.Duration(oc.TimeoutSeconds) * time.Second,
		breakers:  breakers,
	}
}

// Decide issues one recommendation request per provider concurrently and
// resolves the quorum. Individual failures are dropped votes; if every call
// fails the zero counts resolve to Wait. Buy is checked before Sell, so a tie
// where both directions reach quorum resolves to Buy.
func (a *Aggregator) Decide(ctx context.Context, req oracle.Request) (Decision, []Vote) {
	votes := make([]oracle.Recommendation, len(a.providers))
	ok := make([]bool, len(a.providers))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentCalls)
	for i, p := range a.providers {
		if !p.Enabled() {
			continue
		}
		if br := a.breakers[p.ID()]; br != nil && !br.Allow() {
			logger.Warnf("oracle %s skipped: breaker open", p.ID())
			continue
		}
		i, p := i, p
		eg.Go(func() error {
			callCtx := egCtx
			var cancel context.CancelFunc
			if a.timeout > 0 {
				callCtx, cancel = context.WithTimeout(egCtx, a.timeout)
				defer cancel()
			}
			start := time.Now()
			rec, err := p.Recommend(callCtx, req)
			br := a.breakers[p.ID()]
			if err != nil {
				if br != nil {
					br.RecordFailure()
				}
				logger.Warnf("oracle %s vote dropped after %s: %v",
					p.ID(), time.Since(start).Truncate(time.Millisecond), err)
				return nil
			}
			if br != nil {
				br.RecordSuccess()
			}
			votes[i], ok[i] = rec, true
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]Vote, 0, len(a.providers))
	var d Decision
	for i, p := range a.providers {
		if !ok[i] {
			if p.Enabled() {
				d.Dropped++
			}
			continue
		}
		out = append(out, Vote{ProviderID: p.ID(), Recommendation: votes[i]})
		switch votes[i].Signal {
		case oracle.SignalBuy:
			d.BuyVotes++
		case oracle.SignalSell:
			d.SellVotes++
		default:
			d.WaitVotes++
		}
	}
	d.Action = resolve(d, a.cfg)
	return d, out
}

// resolve applies the quorum rule. Order matters and is part of the contract:
// Buy is evaluated first.
func resolve(d Decision, cfg config.ConsensusConfig) Action {
	if d.BuyVotes >= cfg.BuyQuorum {
		return ActionBuy
	}
	if d.SellVotes >= cfg.SellQuorum {
		return ActionSell
	}
	return ActionWait
}
