package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalper/internal/config"
	"scalper/internal/ledger"
	"scalper/internal/market"
	"scalper/internal/venue"
)

// fakeVenue is an in-memory venue.Venue. Orders mutate the position book the
// way the terminal would: accepted closes remove the position, accepted opens
// add one.
type fakeVenue struct {
	mu        sync.Mutex
	tick      venue.Tick
	positions []venue.Position
	// rejectTickets forces a rejection retcode for closes of these tickets.
	rejectTickets map[int64]bool
	// rejectOpens forces the first n opens to be rejected.
	rejectOpens int
	nextTicket  int64
	requests    []venue.OrderRequest
}

func newFakeVenue(positions ...venue.Position) *fakeVenue {
	return &fakeVenue{
		tick:          venue.Tick{Symbol: "XAUUSD", Bid: 2400.10, Ask: 2400.30},
		positions:     positions,
		rejectTickets: map[int64]bool{},
		nextTicket:    1000,
	}
}

func (f *fakeVenue) Name() string { return "fake" }

func (f *fakeVenue) AccountInfo(context.Context) (venue.Account, error) {
	return venue.Account{Login: 1, Balance: 10000, Currency: "USD"}, nil
}

func (f *fakeVenue) Tick(context.Context, string) (venue.Tick, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick, nil
}

func (f *fakeVenue) Positions(context.Context, string) ([]venue.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]venue.Position, len(f.positions))
	copy(out, f.positions)
	return out, nil
}

func (f *fakeVenue) Rates(context.Context, string, string, int) ([]market.Candle, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeVenue) SendOrder(_ context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	if req.Position != 0 { // close
		if f.rejectTickets[req.Position] {
			return venue.OrderResult{Retcode: venue.RetcodeRequote, Comment: "requote"}, nil
		}
		kept := f.positions[:0]
		for _, pos := range f.positions {
			if pos.Ticket != req.Position {
				kept = append(kept, pos)
			}
		}
		f.positions = kept
		return venue.OrderResult{Retcode: venue.RetcodeDone, Order: req.Position, Volume: req.Volume, Price: req.Price}, nil
	}

	if f.rejectOpens > 0 {
		f.rejectOpens--
		return venue.OrderResult{Retcode: venue.RetcodeNoMoney, Comment: "no money"}, nil
	}
	f.nextTicket++
	f.positions = append(f.positions, venue.Position{
		Ticket:    f.nextTicket,
		Symbol:    req.Symbol,
		Direction: req.Direction,
		Volume:    req.Volume,
		OpenPrice: req.Price,
	})
	return venue.OrderResult{Retcode: venue.RetcodeDone, Order: f.nextTicket, Volume: req.Volume, Price: req.Price}, nil
}

func testConfig() config.TradingConfig {
	return config.TradingConfig{
		Symbol:     "XAUUSD",
		Deviation:  20,
		BaseVolume: 0.01,
		Martingale: true,
		Multiplier: 2,
		Magic:      234000,
	}
}

func newTestExecutor(t *testing.T, v venue.Venue) (*Executor, *ledger.Ledger) {
	t.Helper()
	book, err := ledger.Open(filepath.Join(t.TempDir(), "trade_log.csv"))
	require.NoError(t, err)
	return New(v, book, nil, testConfig()), book
}

func TestCloseOpposingNoOpposingPositions(t *testing.T) {
	fv := newFakeVenue(
		venue.Position{Ticket: 1, Direction: venue.Buy, Volume: 0.01, Profit: 2},
	)
	exec, book := newTestExecutor(t, fv)

	report, err := exec.CloseOpposing(context.Background(), "c1", venue.Buy)
	require.NoError(t, err)
	assert.Empty(t, report.Closed)
	assert.Empty(t, report.Rejected)
	// No orders, no ledger rows.
	assert.Empty(t, fv.requests)
	recs, err := book.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCloseOpposingNetsAllOpposing(t *testing.T) {
	fv := newFakeVenue(
		venue.Position{Ticket: 1, Direction: venue.Sell, Volume: 0.01, Profit: -3},
		venue.Position{Ticket: 2, Direction: venue.Sell, Volume: 0.02, Profit: 1.5},
		venue.Position{Ticket: 3, Direction: venue.Buy, Volume: 0.01, Profit: 0.5},
	)
	exec, book := newTestExecutor(t, fv)

	report, err := exec.CloseOpposing(context.Background(), "c1", venue.Buy)
	require.NoError(t, err)
	assert.Len(t, report.Closed, 2)
	assert.Empty(t, report.Rejected)

	// The surviving book holds only the aligned position.
	positions, _ := fv.Positions(context.Background(), "XAUUSD")
	require.Len(t, positions, 1)
	assert.Equal(t, int64(3), positions[0].Ticket)

	// Each confirmed close is a ledger row with the pre-close profit.
	recs, err := book.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	profits := map[int64]float64{}
	for _, rec := range recs {
		profits[rec.Ticket] = rec.Profit
		assert.Equal(t, venue.Sell, rec.Direction)
	}
	assert.Equal(t, -3.0, profits[1])
	assert.Equal(t, 1.5, profits[2])

	// Closes of sells are buy deals at the ask.
	for _, req := range fv.requests {
		assert.Equal(t, venue.Buy, req.Direction)
		assert.Equal(t, 2400.30, req.Price)
	}
}

func TestCloseOpposingRejectionLeavesPosition(t *testing.T) {
	fv := newFakeVenue(
		venue.Position{Ticket: 7, Direction: venue.Sell, Volume: 0.01, Profit: -1},
	)
	fv.rejectTickets[7] = true
	exec, book := newTestExecutor(t, fv)

	report, err := exec.CloseOpposing(context.Background(), "c1", venue.Buy)
	require.NoError(t, err)
	assert.Empty(t, report.Closed)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, int64(7), report.Rejected[0].Ticket)
	assert.Equal(t, venue.RetcodeRequote, report.Rejected[0].Retcode)

	// Rejected close: position stays, nothing in the ledger.
	positions, _ := fv.Positions(context.Background(), "XAUUSD")
	assert.Len(t, positions, 1)
	recs, err := book.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestCloseOpposingEscalatesLedgerFailure(t *testing.T) {
	fv := newFakeVenue(
		venue.Position{Ticket: 9, Direction: venue.Sell, Volume: 0.01, Profit: -2},
	)
	exec, book := newTestExecutor(t, fv)

	// Append opens the file without creating it, so removing it makes every
	// append fail, including the retry.
	require.NoError(t, os.Remove(book.Path()))

	report, err := exec.CloseOpposing(context.Background(), "c1", venue.Buy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger append for closed #9")
	assert.Empty(t, report.Closed)
	assert.Empty(t, report.Rejected)
}

func TestOpenPositionsSizesFromLosingCount(t *testing.T) {
	fv := newFakeVenue(
		venue.Position{Ticket: 1, Direction: venue.Buy, Volume: 0.01, Profit: -2},
		venue.Position{Ticket: 2, Direction: venue.Buy, Volume: 0.02, Profit: -1},
	)
	exec, _ := newTestExecutor(t, fv)

	report := exec.OpenPositions(context.Background(), "c1", venue.Buy, 1)
	require.Len(t, report.Opened, 1)
	assert.Empty(t, report.Rejected)

	// Two losing positions: 0.01 * 2^2.
	last := fv.requests[len(fv.requests)-1]
	assert.Equal(t, 0.04, last.Volume)
	assert.Equal(t, venue.Buy, last.Direction)
	assert.Equal(t, 2400.30, last.Price)
	assert.Equal(t, "c1", last.Comment)
}

func TestOpenPositionsPartialFailure(t *testing.T) {
	fv := newFakeVenue()
	fv.rejectOpens = 1
	exec, _ := newTestExecutor(t, fv)

	report := exec.OpenPositions(context.Background(), "c1", venue.Sell, 3)
	assert.Len(t, report.Opened, 2)
	assert.Len(t, report.Rejected, 1)
	assert.Empty(t, report.Errors)
}

func TestOpenPositionsSellUsesBid(t *testing.T) {
	fv := newFakeVenue()
	exec, _ := newTestExecutor(t, fv)

	report := exec.OpenPositions(context.Background(), "c1", venue.Sell, 1)
	require.Len(t, report.Opened, 1)
	assert.Equal(t, 2400.10, fv.requests[0].Price)
}
