package venue

import (
	"context"

	"scalper/internal/market"
)

// Venue is the brokerage/execution backend. Implementations must be safe for
// concurrent calls; the executor interleaves submissions from a worker pool.
type Venue interface {
	Name() string

	// AccountInfo verifies the session. A failure here at startup is fatal
	// to the process.
	AccountInfo(ctx context.Context) (Account, error)

	Tick(ctx context.Context, symbol string) (Tick, error)

	// Positions returns the current open positions for symbol. The result is
	// a snapshot; callers re-read immediately before acting on it.
	Positions(ctx context.Context, symbol string) ([]Position, error)

	// Rates returns the most recent count candles for symbol on the given
	// timeframe (e.g. "M1", "M5", "H1").
	Rates(ctx context.Context, symbol, timeframe string, count int) ([]market.Candle, error)

	// SendOrder submits one deal. A non-nil error means the request never
	// reached the venue; a result with a non-success retcode means the venue
	// rejected it.
	SendOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}
