package oracle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scalper/internal/logger"
)

// GeminiClient calls the generateContent endpoint with structured output
// enabled, so the model replies with the recommendation JSON directly.
// Generate never mutates the client, so one instance may serve concurrent
// calls.
type GeminiClient struct {
	BaseURL string
	APIKey  string
	Model   string
	// Limited retry for 429/5xx; defaults to 2 when zero.
	MaxRetries int

	httpClient *http.Client
}

// NewGeminiClient builds a client with its HTTP timeout fixed up front.
// A non-positive timeout falls back to one minute.
func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &GeminiClient{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// responseSchema is the generationConfig schema in Gemini's OpenAPI-subset
// dialect. It mirrors recommendationSchema; the local jsonschema validation
// stays authoritative because not every backend honors the constraint.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"support":       map[string]any{"type": "NUMBER"},
		"resistance":    map[string]any{"type": "NUMBER"},
		"confidence":    map[string]any{"type": "INTEGER"},
		"trend":         map[string]any{"type": "STRING", "enum": []string{"Bullish", "Bearish", "Neutral"}},
		"momentum":      map[string]any{"type": "STRING", "enum": []string{"Oversold", "Overbought", "Neutral"}},
		"take_profit":   map[string]any{"type": "NUMBER"},
		"stop_loss":     map[string]any{"type": "NUMBER"},
		"signal":        map[string]any{"type": "STRING", "enum": []string{"BUY", "SELL", "WAIT & SEE"}},
		"justification": map[string]any{"type": "STRING"},
	},
	"required": []string{"support", "resistance", "confidence", "trend", "momentum", "signal", "justification"},
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = "https://generativelanguage.googleapis.com"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, c.Model)

	parts := make([]map[string]any, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": att.MIME,
				"data":      base64.StdEncoding.EncodeToString(att.Data),
			},
		})
	}
	parts = append(parts, map[string]any{"text": req.Prompt})

	body := map[string]any{
		"contents": []map[string]any{{"parts": parts}},
		"generationConfig": map[string]any{
			"response_mime_type": "application/json",
			"response_schema":    responseSchema,
		},
	}
	if strings.TrimSpace(req.System) != "" {
		body["system_instruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.System}},
		}
	}
	b, _ := json.Marshal(body)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return "", err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.APIKey)

		resp, err := httpClient.Do(httpReq)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			text, derr := decodeGeminiText(resp)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			return text, nil
		}
		var eresp struct {
			Error struct {
				Message string `json:"message"`
				Status  string `json:"status"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()
		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if !retryableStatus(resp.StatusCode) || attempt == maxRetries {
			break
		}
		wait := backoffWait(retryAfter, attempt)
		logger.Debugf("oracle %s retrying in %s after %v", c.Model, wait, lastErr)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

func decodeGeminiText(resp *http.Response) (string, error) {
	var r struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Candidates) == 0 {
		return "", fmt.Errorf("empty candidates")
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("empty model text")
	}
	return text, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func backoffWait(retryAfter string, attempt int) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	wait := 800 * time.Millisecond << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}
