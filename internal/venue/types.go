// Package venue defines a common abstraction for order-execution backends.
// The trading core only ever acts on the venue's current snapshot; no local
// position cache is kept.
package venue

import "time"

// Direction is the side of an exposure or order.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Opposite returns the netting side for d.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// Tick is the venue's current top-of-book quote for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Price returns the execution price for an order on the given side:
// buys lift the ask, sells hit the bid.
func (t Tick) Price(d Direction) float64 {
	if d == Buy {
		return t.Ask
	}
	return t.Bid
}

// Position is a venue-side open exposure. Profit is the live running P/L as
// reported by the venue at snapshot time.
type Position struct {
	Ticket    int64     `json:"ticket"`
	Symbol    string    `json:"symbol"`
	Direction Direction `json:"type"`
	Volume    float64   `json:"volume"`
	OpenPrice float64   `json:"open_price"`
	Profit    float64   `json:"profit"`
	OpenedAt  time.Time `json:"opened_at"`
}

// OrderAction distinguishes market deals from pending orders. Only deals are
// used by this system.
type OrderAction string

const ActionDeal OrderAction = "DEAL"

// Filling and time-in-force policies, mirrored from the terminal's order
// routing metadata.
const (
	FillingIOC = "IOC"
	TimeGTC    = "GTC"
)

// OrderRequest encodes one open or close deal. Position is non-zero for
// closing deals and names the ticket being closed.
type OrderRequest struct {
	Action    OrderAction `json:"action"`
	Symbol    string      `json:"symbol"`
	Volume    float64     `json:"volume"`
	Direction Direction   `json:"type"`
	Price     float64     `json:"price"`
	Deviation int         `json:"deviation"`
	Magic     int         `json:"magic"`
	Comment   string      `json:"comment,omitempty"`
	Position  int64       `json:"position,omitempty"`
	TypeTime  string      `json:"type_time"`
	Filling   string      `json:"type_filling"`
}

// Retcodes reported by the venue. Anything other than RetcodeDone is a
// per-request failure, recoverable at the cycle level.
const (
	RetcodeDone     = 10009
	RetcodeRequote  = 10004
	RetcodeRejected = 10006
	RetcodeNoMoney  = 10019
	RetcodeTimeout  = 10012
)

// OrderResult is the venue's reply to an order submission.
type OrderResult struct {
	Retcode int     `json:"retcode"`
	Order   int64   `json:"order"`
	Volume  float64 `json:"volume"`
	Price   float64 `json:"price"`
	Comment string  `json:"comment"`
}

// OK reports whether the deal was accepted and filled.
func (r OrderResult) OK() bool { return r.Retcode == RetcodeDone }

// Account is the subset of account state checked at startup.
type Account struct {
	Login    int64   `json:"login"`
	Balance  float64 `json:"balance"`
	Equity   float64 `json:"equity"`
	Currency string  `json:"currency"`
}
