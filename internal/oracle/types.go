// Package oracle talks to the advisory model endpoints. Each endpoint turns a
// feature payload into one structured trade recommendation per cycle.
package oracle

import "context"

// Signal is the advisory direction. The wire values match the schema enum the
// models are constrained to.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalWait Signal = "WAIT & SEE"
)

// Recommendation is one oracle's output. It is immutable once parsed and is
// discarded after the cycle that requested it.
type Recommendation struct {
	Support       float64 `json:"support"`
	Resistance    float64 `json:"resistance"`
	Confidence    int     `json:"confidence"`
	Trend         string  `json:"trend"`
	Momentum      string  `json:"momentum"`
	TakeProfit    float64 `json:"take_profit,omitempty"`
	StopLoss      float64 `json:"stop_loss,omitempty"`
	Signal        Signal  `json:"signal"`
	Justification string  `json:"justification"`
}

// Attachment is an opaque blob handed to the model alongside the prompt,
// typically one CSV feature table per timeframe plus an optional chart image.
type Attachment struct {
	Name string
	MIME string
	Data []byte
}

// Request carries everything one recommendation call needs. The payload is
// shared read-only between concurrent calls.
type Request struct {
	System      string
	Prompt      string
	Attachments []Attachment
}

// Provider is one advisory endpoint. Recommend returns an error for timeouts,
// transport failures and schema-invalid output alike; the caller treats all of
// them as a dropped vote.
type Provider interface {
	ID() string
	Enabled() bool
	Recommend(ctx context.Context, req Request) (Recommendation, error)
}
