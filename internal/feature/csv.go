package feature

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const frameTimeLayout = "2006-01-02 15:04"

var frameHeader = []string{
	"time", "open", "high", "low", "close", "volume",
	"ema_fast", "ema_slow", "rsi", "stoch_k", "stoch_d",
	"bb_upper", "bb_middle", "bb_lower",
}

// CSV renders the frame as comma-separated text, oldest row first. The text
// is handed to the oracle verbatim, so the column set is a stable contract
// with the prompt.
func (f Frame) CSV() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(frameHeader, ","))
	sb.WriteByte('\n')
	for i, c := range f.Candles {
		ts := c.CloseTime
		if ts == 0 {
			ts = c.OpenTime
		}
		cells := []string{
			time.UnixMilli(ts).UTC().Format(frameTimeLayout),
			cell(c.Open, 5),
			cell(c.High, 5),
			cell(c.Low, 5),
			cell(c.Close, 5),
			cell(c.Volume, 2),
			columnCell(f.EMAFast, i, 5),
			columnCell(f.EMASlow, i, 5),
			columnCell(f.RSI, i, 2),
			columnCell(f.StochK, i, 2),
			columnCell(f.StochD, i, 2),
			columnCell(f.BBUpper, i, 5),
			columnCell(f.BBMiddle, i, 5),
			columnCell(f.BBLower, i, 5),
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteByte('\n')
	}
	return sb.String()
}

func columnCell(series []float64, i, prec int) string {
	if i >= len(series) {
		return ""
	}
	return cell(series[i], prec)
}

func cell(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
