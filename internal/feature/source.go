package feature

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"scalper/internal/config"
	"scalper/internal/market"
	"scalper/internal/venue"
)

const maxBinanceLimit = 1500

// CandleSource fetches one timeframe's recent history. Timeframes use the
// venue notation (M1, M5, H1, ...); each source maps to its own wire format.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, timeframe string, count int) ([]market.Candle, error)
}

// NewSource builds the configured candle source. The venue source reuses the
// trading connection; the binance source is an independent public feed for
// venues with thin history endpoints.
func NewSource(cfg config.FeatureConfig, symbol string, v venue.Venue) (CandleSource, error) {
	switch cfg.Source {
	case "venue":
		return &venueSource{venue: v, symbol: symbol}, nil
	case "binance":
		return newBinanceSource(cfg.Binance)
	default:
		return nil, fmt.Errorf("unknown feature source %q", cfg.Source)
	}
}

type venueSource struct {
	venue  venue.Venue
	symbol string
}

func (s *venueSource) Name() string { return "venue" }

func (s *venueSource) Candles(ctx context.Context, timeframe string, count int) ([]market.Candle, error) {
	return s.venue.Rates(ctx, s.symbol, timeframe, count)
}

type binanceSource struct {
	client *futures.Client
	symbol string
}

func newBinanceSource(cfg config.BinanceSourceConfig) (*binanceSource, error) {
	symbol := strings.ToUpper(strings.TrimSpace(cfg.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("binance symbol is required")
	}
	client := futures.NewClient("", "")
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	return &binanceSource{client: client, symbol: symbol}, nil
}

func (s *binanceSource) Name() string { return "binance" }

func (s *binanceSource) Candles(ctx context.Context, timeframe string, count int) ([]market.Candle, error) {
	interval, err := binanceInterval(timeframe)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		count = 100
	}
	if count > maxBinanceLimit {
		count = maxBinanceLimit
	}
	kls, err := s.client.NewKlinesService().
		Symbol(s.symbol).
		Interval(interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines %s %s: %w", s.symbol, interval, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
		})
	}
	return out, nil
}

var binanceIntervals = map[string]string{
	"M1":  "1m",
	"M5":  "5m",
	"M15": "15m",
	"M30": "30m",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1d",
}

func binanceInterval(timeframe string) (string, error) {
	if iv, ok := binanceIntervals[strings.ToUpper(strings.TrimSpace(timeframe))]; ok {
		return iv, nil
	}
	return "", fmt.Errorf("no binance interval for timeframe %q", timeframe)
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f
}
