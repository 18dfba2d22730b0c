// Package notifier pushes cycle outcomes to an operator channel. Delivery is
// best-effort; a failed notification never affects the trading path.
package notifier

// TextNotifier defines a minimal text notification interface.
// It is intentionally small so different components can depend on it without
// importing concrete implementations (e.g. Telegram).
type TextNotifier interface {
	SendText(text string) error
}

// Nop discards every message. Used when no channel is configured.
type Nop struct{}

func (Nop) SendText(string) error { return nil }
