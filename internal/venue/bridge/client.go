// Package bridge is the HTTP client for the terminal sidecar that fronts the
// trading venue. The sidecar exposes the terminal's account, quote, position
// and order primitives as plain JSON endpoints.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"scalper/internal/config"
	"scalper/internal/market"
	"scalper/internal/venue"
)

// Client implements venue.Venue against the bridge REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

// NewClient constructs a bridge client from configuration.
func NewClient(cfg config.VenueConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		return nil, fmt.Errorf("venue.api_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing venue.api_url: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		token:      strings.TrimSpace(cfg.APIToken),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) Name() string { return "bridge" }

func (c *Client) AccountInfo(ctx context.Context) (venue.Account, error) {
	var acc venue.Account
	if err := c.doRequest(ctx, http.MethodGet, "/account", nil, &acc); err != nil {
		return venue.Account{}, err
	}
	if acc.Login == 0 {
		return venue.Account{}, fmt.Errorf("bridge returned no account")
	}
	return acc, nil
}

func (c *Client) Tick(ctx context.Context, symbol string) (venue.Tick, error) {
	var tick venue.Tick
	path := "/tick?symbol=" + url.QueryEscape(symbol)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &tick); err != nil {
		return venue.Tick{}, err
	}
	if tick.Bid <= 0 || tick.Ask <= 0 {
		return venue.Tick{}, fmt.Errorf("bridge returned empty tick for %s", symbol)
	}
	if tick.Symbol == "" {
		tick.Symbol = symbol
	}
	return tick, nil
}

func (c *Client) Positions(ctx context.Context, symbol string) ([]venue.Position, error) {
	var raw json.RawMessage
	path := "/positions?symbol=" + url.QueryEscape(symbol)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var positions []venue.Position
	if err := json.Unmarshal(raw, &positions); err == nil {
		return positions, nil
	}
	// Some sidecar builds wrap the list in an envelope.
	var env struct {
		Positions []venue.Position `json:"positions"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("parsing bridge positions response: %w", err)
	}
	return env.Positions, nil
}

func (c *Client) Rates(ctx context.Context, symbol, timeframe string, count int) ([]market.Candle, error) {
	if count <= 0 {
		count = 100
	}
	path := "/rates?symbol=" + url.QueryEscape(symbol) +
		"&timeframe=" + url.QueryEscape(timeframe) +
		"&count=" + strconv.Itoa(count)
	var candles []market.Candle
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &candles); err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("bridge returned no %s candles for %s", timeframe, symbol)
	}
	return candles, nil
}

func (c *Client) SendOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	var result venue.OrderResult
	if err := c.doRequest(ctx, http.MethodPost, "/order", req, &result); err != nil {
		return venue.OrderResult{}, err
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any, out any) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("bridge client not initialized")
	}
	endpoint, err := c.resolveEndpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling bridge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			return fmt.Errorf("bridge error: %s", resp.Status)
		}
		return fmt.Errorf("bridge error (%s): %s", resp.Status, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing bridge response: %w", err)
	}
	return nil
}

func (c *Client) resolveEndpoint(path string) (*url.URL, error) {
	if c.baseURL == nil {
		return nil, fmt.Errorf("bridge API address not set")
	}
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = "/"
	}
	query := ""
	if idx := strings.Index(trimmed, "?"); idx >= 0 {
		query = trimmed[idx+1:]
		trimmed = trimmed[:idx]
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	base := *c.baseURL
	base.Path = strings.TrimSuffix(base.Path, "/") + trimmed
	base.RawPath = ""
	base.RawQuery = query
	base.Fragment = ""
	return &base, nil
}
