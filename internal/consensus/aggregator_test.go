package consensus

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalper/internal/config"
	"scalper/internal/oracle"
)

type stubProvider struct {
	id      string
	enabled bool
	signal  oracle.Signal
	err     error
}

func (p *stubProvider) ID() string    { return p.id }
func (p *stubProvider) Enabled() bool { return p.enabled }
func (p *stubProvider) Recommend(context.Context, oracle.Request) (oracle.Recommendation, error) {
	if p.err != nil {
		return oracle.Recommendation{}, p.err
	}
	return oracle.Recommendation{Signal: p.signal, Confidence: 70}, nil
}

func newTestAggregator(t *testing.T, providers []oracle.Provider, buyQ, sellQ int) *Aggregator {
	t.Helper()
	return NewAggregator(providers, config.ConsensusConfig{BuyQuorum: buyQ, SellQuorum: sellQ},
		config.OracleConfig{TimeoutSeconds: 5, Breaker: config.OracleBreakerConfig{Threshold: 3, CooldownSeconds: 60}})
}

func panel(signals ...oracle.Signal) []oracle.Provider {
	out := make([]oracle.Provider, len(signals))
	for i, s := range signals {
		out[i] = &stubProvider{id: fmt.Sprintf("p%d", i), enabled: true, signal: s}
	}
	return out
}

func TestDecideQuorum(t *testing.T) {
	cases := []struct {
		name    string
		signals []oracle.Signal
		want    Action
	}{
		{"buy quorum met", []oracle.Signal{oracle.SignalBuy, oracle.SignalBuy, oracle.SignalBuy, oracle.SignalWait}, ActionBuy},
		{"sell quorum met", []oracle.Signal{oracle.SignalSell, oracle.SignalSell, oracle.SignalSell}, ActionSell},
		{"below quorum waits", []oracle.Signal{oracle.SignalBuy, oracle.SignalBuy, oracle.SignalSell}, ActionWait},
		{"all wait", []oracle.Signal{oracle.SignalWait, oracle.SignalWait, oracle.SignalWait}, ActionWait},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			agg := newTestAggregator(t, panel(tc.signals...), 3, 3)
			d, votes := agg.Decide(context.Background(), oracle.Request{})
			assert.Equal(t, tc.want, d.Action)
			assert.Len(t, votes, len(tc.signals))
		})
	}
}

func TestDecideTieResolvesToBuy(t *testing.T) {
	// Both directions reach quorum with quorum=2; Buy is evaluated first.
	agg := newTestAggregator(t, panel(oracle.SignalBuy, oracle.SignalBuy, oracle.SignalSell, oracle.SignalSell), 2, 2)
	d, _ := agg.Decide(context.Background(), oracle.Request{})
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 2, d.BuyVotes)
	assert.Equal(t, 2, d.SellVotes)
}

func TestDecideFailuresAreDroppedNotWait(t *testing.T) {
	providers := []oracle.Provider{
		&stubProvider{id: "a", enabled: true, signal: oracle.SignalBuy},
		&stubProvider{id: "b", enabled: true, err: fmt.Errorf("timeout")},
		&stubProvider{id: "c", enabled: true, err: fmt.Errorf("schema mismatch")},
	}
	agg := newTestAggregator(t, providers, 1, 1)
	d, votes := agg.Decide(context.Background(), oracle.Request{})
	assert.Equal(t, ActionBuy, d.Action)
	assert.Equal(t, 2, d.Dropped)
	assert.Equal(t, 0, d.WaitVotes)
	require.Len(t, votes, 1)
	assert.Equal(t, "a", votes[0].ProviderID)
}

func TestDecideAllFailedResolvesWait(t *testing.T) {
	providers := []oracle.Provider{
		&stubProvider{id: "a", enabled: true, err: fmt.Errorf("down")},
		&stubProvider{id: "b", enabled: true, err: fmt.Errorf("down")},
	}
	agg := newTestAggregator(t, providers, 1, 1)
	d, votes := agg.Decide(context.Background(), oracle.Request{})
	assert.Equal(t, ActionWait, d.Action)
	assert.Equal(t, 2, d.Dropped)
	assert.Empty(t, votes)
}

func TestDecideSkipsDisabledProviders(t *testing.T) {
	providers := []oracle.Provider{
		&stubProvider{id: "a", enabled: true, signal: oracle.SignalSell},
		&stubProvider{id: "b", enabled: false, signal: oracle.SignalSell},
	}
	agg := newTestAggregator(t, providers, 2, 2)
	d, votes := agg.Decide(context.Background(), oracle.Request{})
	assert.Equal(t, ActionWait, d.Action)
	assert.Equal(t, 1, d.SellVotes)
	assert.Len(t, votes, 1)
	// A disabled provider is neither a vote nor a dropped call.
	assert.Equal(t, 0, d.Dropped)
}

func TestDecideAsymmetricQuorums(t *testing.T) {
	signals := panel(oracle.SignalSell, oracle.SignalSell, oracle.SignalBuy)
	agg := newTestAggregator(t, signals, 1, 3)
	d, _ := agg.Decide(context.Background(), oracle.Request{})
	// Buy quorum of 1 wins even though sells outnumber buys.
	assert.Equal(t, ActionBuy, d.Action)
}
