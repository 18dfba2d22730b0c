package notifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// errBadMarkup marks a message Telegram's Markdown parser refused.
var errBadMarkup = errors.New("telegram rejected message markup")

// Telegram pushes cycle summaries to a chat or channel. Summaries carry
// Markdown emphasis; when the parser rejects one (symbol names and oracle
// text can contain characters the legacy dialect chokes on) the message is
// re-sent as plain text so the content still arrives.
type Telegram struct {
	botToken string
	chatID   string

	client  *http.Client
	baseURL string
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  telegramAPIBase,
	}
}

// SendText delivers one message, preferring Markdown formatting and falling
// back to plain text if the markup is rejected.
func (t *Telegram) SendText(text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram bot token and chat id are required")
	}
	err := t.send(text, "Markdown")
	if errors.Is(err, errBadMarkup) {
		return t.send(text, "")
	}
	return err
}

// send posts one sendMessage call, retrying transport errors and 5xx up to 3
// times. A 400 on a formatted message is reported as errBadMarkup rather than
// retried; resending the same markup cannot succeed.
func (t *Telegram) send(text, parseMode string) error {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.botToken)

	var lastErr error
	for i := 0; i < 3; i++ {
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			time.Sleep(time.Duration(i+1) * time.Second)
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		if resp.StatusCode == http.StatusBadRequest {
			if parseMode != "" {
				return errBadMarkup
			}
			return fmt.Errorf("telegram status=%d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	return lastErr
}
