// Package poloniex implements the account balance client for the Poloniex
// trading API.
package poloniex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/crypto"
	"github.com/jfilipcz/netfolio/internal/domain"
)

// DefaultBaseURL is the production Poloniex API root.
const DefaultBaseURL = "https://poloniex.com"

// Client queries one Poloniex account.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
}

// New creates a Poloniex client for the given credentials. An empty baseURL
// selects the production endpoint.
func New(baseURL, apiKey, apiSecret string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		auth:    &crypto.HMACAuth{Key: apiKey, Secret: apiSecret},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the exchange identifier used as the holding's location.
func (c *Client) Name() string {
	return "poloniex"
}

type completeBalance struct {
	Available decimal.Decimal `json:"available"`
	OnOrders  decimal.Decimal `json:"onOrders"`
}

// AccountBalances returns every non-zero asset held in the account.
// Available and on-order amounts are summed per asset.
func (c *Client) AccountBalances(ctx context.Context) (domain.AssetAmounts, error) {
	form := url.Values{}
	form.Set("command", "returnCompleteBalances")
	form.Set("nonce", strconv.FormatInt(time.Now().UnixNano(), 10))
	body := form.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tradingApi", strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("poloniex: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range c.auth.PoloniexHeaders(body) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poloniex: query balances: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("poloniex: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("poloniex: %w", domain.ErrRateLimited)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("poloniex: %w", domain.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("poloniex: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	// Auth failures come back as 200 with an error field.
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("poloniex: api error: %s: %w", apiErr.Error, domain.ErrUnauthorized)
	}

	var balances map[string]completeBalance
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, fmt.Errorf("poloniex: decode balances: %w", err)
	}

	amounts := make(domain.AssetAmounts)
	for symbol, b := range balances {
		total := b.Available.Add(b.OnOrders)
		if total.IsZero() {
			continue
		}
		amounts.Merge(domain.AssetAmounts{domain.Asset(symbol): total})
	}
	return amounts, nil
}
