// Package binance implements the account balance client for the Binance
// REST API.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/crypto"
	"github.com/jfilipcz/netfolio/internal/domain"
)

// DefaultBaseURL is the production Binance API root.
const DefaultBaseURL = "https://api.binance.com"

// Client queries one Binance account.
type Client struct {
	baseURL    string
	auth       *crypto.HMACAuth
	httpClient *http.Client
}

// New creates a Binance client for the given credentials. An empty baseURL
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
	return "binance"
}

type accountResponse struct {
	Balances []struct {
		Asset  string          `json:"asset"`
		Free   decimal.Decimal `json:"free"`
		Locked decimal.Decimal `json:"locked"`
	} `json:"balances"`
}

// AccountBalances returns every non-zero asset held in the account. Free
// and locked amounts are summed per asset.
func (c *Client) AccountBalances(ctx context.Context) (domain.AssetAmounts, error) {
	query := c.auth.BinanceTimestampedQuery("")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v3/account?"+query, nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}
	req.Header.Set("X-MBX-APIKEY", c.auth.Key)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: query account: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusTeapot:
		// 418 is Binance's auto-ban escalation of 429.
		return nil, fmt.Errorf("binance: %w", domain.ErrRateLimited)
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("binance: %w", domain.ErrUnauthorized)
	default:
		return nil, fmt.Errorf("binance: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var account accountResponse
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("binance: decode account: %w", err)
	}

	amounts := make(domain.AssetAmounts)
	for _, b := range account.Balances {
		total := b.Free.Add(b.Locked)
		if total.IsZero() {
			continue
		}
		amounts.Merge(domain.AssetAmounts{domain.Asset(b.Asset): total})
	}
	return amounts, nil
}
