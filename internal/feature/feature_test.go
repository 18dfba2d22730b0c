package feature

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalper/internal/config"
	"scalper/internal/market"
)

func syntheticCandles(n int) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		base := 2400 + 5*math.Sin(float64(i)/4)
		out[i] = market.Candle{
			OpenTime:  int64(i) * 60_000,
			CloseTime: int64(i+1) * 60_000,
			Open:      base,
			High:      base + 1.5,
			Low:       base - 1.5,
			Close:     base + 0.5,
			Volume:    100 + float64(i),
		}
	}
	return out
}

func TestComputeColumnsAligned(t *testing.T) {
	candles := syntheticCandles(60)
	frame, err := Compute("M1", candles, IndicatorSettings{})
	require.NoError(t, err)

	assert.Len(t, frame.EMAFast, len(candles))
	assert.Len(t, frame.EMASlow, len(candles))
	assert.Len(t, frame.RSI, len(candles))
	assert.Len(t, frame.BBUpper, len(candles))

	// Warmup cells are NaN, settled cells are not.
	assert.True(t, math.IsNaN(frame.EMASlow[0]))
	last := len(candles) - 1
	assert.False(t, math.IsNaN(frame.EMAFast[last]))
	assert.False(t, math.IsNaN(frame.EMASlow[last]))
	assert.False(t, math.IsNaN(frame.BBUpper[last]))
	assert.GreaterOrEqual(t, frame.RSI[last], 0.0)
	assert.LessOrEqual(t, frame.RSI[last], 100.0)
}

func TestComputeRejectsShortHistory(t *testing.T) {
	_, err := Compute("M1", syntheticCandles(10), IndicatorSettings{})
	assert.Error(t, err)
}

func TestFrameCSV(t *testing.T) {
	candles := syntheticCandles(40)
	frame, err := Compute("M5", candles, IndicatorSettings{})
	require.NoError(t, err)

	text := frame.CSV()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, len(candles)+1)
	assert.Equal(t,
		"time,open,high,low,close,volume,ema_fast,ema_slow,rsi,stoch_k,stoch_d,bb_upper,bb_middle,bb_lower",
		lines[0])

	// Every row keeps the full column count; warmup cells are empty.
	for i, line := range lines[1:] {
		cells := strings.Split(line, ",")
		require.Len(t, cells, 14, "row %d", i)
	}
	firstRow := strings.Split(lines[1], ",")
	assert.Empty(t, firstRow[7]) // ema_slow warmup
	lastRow := strings.Split(lines[len(lines)-1], ",")
	for col, cell := range lastRow {
		assert.NotEmpty(t, cell, "column %d of settled row", col)
	}
}

type stubSource struct {
	candles map[string][]market.Candle
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Candles(_ context.Context, tf string, _ int) ([]market.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.candles[tf], nil
}

func TestCollectOneAttachmentPerTimeframe(t *testing.T) {
	src := &stubSource{candles: map[string][]market.Candle{
		"M1": syntheticCandles(50),
		"M5": syntheticCandles(50),
	}}
	b := NewBuilder(src, []config.TimeframeConfig{{TF: "M1", Count: 50}, {TF: "M5", Count: 50}}, "")

	attachments, err := b.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, attachments, 2)
	assert.Equal(t, "candles_m1.csv", attachments[0].Name)
	assert.Equal(t, "candles_m5.csv", attachments[1].Name)
	assert.Equal(t, "text/csv", attachments[0].MIME)
	assert.Contains(t, string(attachments[0].Data), "ema_fast")
}

func TestCollectFailsWhole(t *testing.T) {
	src := &stubSource{err: fmt.Errorf("feed down")}
	b := NewBuilder(src, []config.TimeframeConfig{{TF: "M1", Count: 50}}, "")
	_, err := b.Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feed down")
}

func TestBinanceIntervalMapping(t *testing.T) {
	iv, err := binanceInterval("M5")
	require.NoError(t, err)
	assert.Equal(t, "5m", iv)

	iv, err = binanceInterval("h1")
	require.NoError(t, err)
	assert.Equal(t, "1h", iv)

	_, err = binanceInterval("W1")
	assert.Error(t, err)
}
