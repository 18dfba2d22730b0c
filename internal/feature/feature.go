// Package feature assembles the market evidence sent to the oracle: one CSV
// frame per configured timeframe, each carrying OHLCV plus indicator columns,
// and an optional chart capture image.
package feature

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"scalper/internal/config"
	"scalper/internal/logger"
	"scalper/internal/oracle"
)

// Builder fetches and renders the per-cycle oracle attachments.
type Builder struct {
	source      CandleSource
	timeframes  []config.TimeframeConfig
	settings    IndicatorSettings
	capturePath string
}

func NewBuilder(src CandleSource, timeframes []config.TimeframeConfig, capturePath string) *Builder {
	return &Builder{
		source:      src,
		timeframes:  timeframes,
		capturePath: strings.TrimSpace(capturePath),
	}
}

// Collect fetches every configured timeframe concurrently and renders each as
// a CSV attachment, ordered as configured. Any timeframe failing fails the
// whole collection: a decision made on partial evidence is worse than a
// skipped cycle.
func (b *Builder) Collect(ctx context.Context) ([]oracle.Attachment, error) {
	if len(b.timeframes) == 0 {
		return nil, fmt.Errorf("no timeframes configured")
	}
	frames := make([]Frame, len(b.timeframes))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, tf := range b.timeframes {
		i, tf := i, tf
		eg.Go(func() error {
			candles, err := b.source.Candles(egCtx, tf.TF, tf.Count)
			if err != nil {
				return fmt.Errorf("fetching %s candles: %w", tf.TF, err)
			}
			frame, err := Compute(tf.TF, candles, b.settings)
			if err != nil {
				return err
			}
			frames[i] = frame
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := make([]oracle.Attachment, 0, len(frames)+1)
	for _, frame := range frames {
		out = append(out, oracle.Attachment{
			Name: fmt.Sprintf("candles_%s.csv", strings.ToLower(frame.Timeframe)),
			MIME: "text/csv",
			Data: []byte(frame.CSV()),
		})
	}
	if capture := b.captureAttachment(); capture != nil {
		out = append(out, *capture)
	}
	return out, nil
}

// captureAttachment loads the chart screenshot if one is configured and
// present. A missing or unreadable capture degrades to CSV-only evidence.
func (b *Builder) captureAttachment() *oracle.Attachment {
	if b.capturePath == "" {
		return nil
	}
	data, err := os.ReadFile(b.capturePath)
	if err != nil {
		logger.Warnf("chart capture unavailable at %s: %v", b.capturePath, err)
		return nil
	}
	return &oracle.Attachment{
		Name: "chart.png",
		MIME: "image/png",
		Data: data,
	}
}
