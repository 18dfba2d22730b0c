package feature

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"scalper/internal/market"
)

// IndicatorSettings selects the indicator periods attached to each frame.
// Zero values fall back to the short-horizon defaults.
type IndicatorSettings struct {
	EMAFast   int
	EMASlow   int
	RSIPeriod int
	StochK    int
	StochD    int
	BBPeriod  int
	BBStdDev  float64
}

func (s IndicatorSettings) withDefaults() IndicatorSettings {
	if s.EMAFast <= 0 {
		s.EMAFast = 8
	}
	if s.EMASlow <= 0 {
		s.EMASlow = 21
	}
	if s.RSIPeriod <= 0 {
		s.RSIPeriod = 7
	}
	if s.StochK <= 0 {
		s.StochK = 5
	}
	if s.StochD <= 0 {
		s.StochD = 3
	}
	if s.BBPeriod <= 0 {
		s.BBPeriod = 10
	}
	if s.BBStdDev == 0 {
		s.BBStdDev = 2
	}
	return s
}

// Frame is one timeframe's candles with indicator columns aligned to them.
// Warmup cells hold NaN and render empty.
type Frame struct {
	Timeframe string
	Candles   []market.Candle

	EMAFast  []float64
	EMASlow  []float64
	RSI      []float64
	StochK   []float64
	StochD   []float64
	BBUpper  []float64
	BBMiddle []float64
	BBLower  []float64
}

// Compute derives the indicator columns for one timeframe. The candle count
// must cover the longest warmup or the frame is useless to the oracle.
func Compute(timeframe string, candles []market.Candle, cfg IndicatorSettings) (Frame, error) {
	cfg = cfg.withDefaults()
	if len(candles) < cfg.EMASlow {
		return Frame{}, fmt.Errorf("timeframe %s: %d candles, need at least %d", timeframe, len(candles), cfg.EMASlow)
	}
	closes := market.Closes(candles)
	highs := market.Highs(candles)
	lows := market.Lows(candles)

	f := Frame{Timeframe: timeframe, Candles: candles}
	f.EMAFast = maskWarmup(talib.Ema(closes, cfg.EMAFast), cfg.EMAFast-1)
	f.EMASlow = maskWarmup(talib.Ema(closes, cfg.EMASlow), cfg.EMASlow-1)
	f.RSI = talib.Rsi(closes, cfg.RSIPeriod)
	k, d := talib.Stoch(highs, lows, closes, cfg.StochK, cfg.StochD, talib.SMA, cfg.StochD, talib.SMA)
	f.StochK, f.StochD = k, d
	upper, middle, lower := talib.BBands(closes, cfg.BBPeriod, cfg.BBStdDev, cfg.BBStdDev, talib.SMA)
	f.BBUpper, f.BBMiddle, f.BBLower = upper, middle, lower
	return f, nil
}

// maskWarmup replaces the zero-seeded leading values TALib emits for EMA with
// NaN so they render as empty cells instead of a fake price of 0.
func maskWarmup(series []float64, warmup int) []float64 {
	for i := 0; i < warmup && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}
