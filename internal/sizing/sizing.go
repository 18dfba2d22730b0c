// Package sizing computes order volume from the current losing-position
// count. It is pure: no I/O, no state.
package sizing

import (
	"github.com/shopspring/decimal"

	"scalper/internal/venue"
)

// Policy selects between a fixed lot and loss-compounding growth.
type Policy struct {
	BaseVolume float64
	Martingale bool
	Multiplier float64
}

// Volume returns the lot size for the next open given losses, the count of
// currently open positions with negative running profit. Fixed policy always
// returns the base volume; martingale returns base * multiplier^losses.
// Decimal math keeps repeated multiplication exact for broker-style lot
// steps (0.01, 0.02, 0.04, ...). No upper bound is enforced here: the
// venue-side margin check is the backstop.
func (p Policy) Volume(losses int) float64 {
	if !p.Martingale || losses <= 0 {
		return p.BaseVolume
	}
	base := decimal.NewFromFloat(p.BaseVolume)
	mult := decimal.NewFromFloat(p.Multiplier)
	vol, _ := base.Mul(mult.Pow(decimal.NewFromInt(int64(losses)))).Float64()
	return vol
}

// LosingCount counts open positions currently in drawdown. The snapshot is
// whatever the venue reported immediately before sizing; staleness between
// the read and the order is accepted.
func LosingCount(positions []venue.Position) int {
	losses := 0
	for _, pos := range positions {
		if pos.Profit < 0 {
			losses++
		}
	}
	return losses
}
