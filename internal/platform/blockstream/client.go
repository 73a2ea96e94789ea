// Package blockstream queries bitcoin address balances from a
// Blockstream-compatible block explorer REST API.
package blockstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// Client is the REST client for a Blockstream Esplora-style API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new explorer client.
//
// baseURL is the API root, e.g. "https://blockstream.info/api".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type addressStats struct {
	FundedTxoSum decimal.Decimal `json:"funded_txo_sum"`
	SpentTxoSum  decimal.Decimal `json:"spent_txo_sum"`
}

type addressInfo struct {
	ChainStats addressStats `json:"chain_stats"`
}

// AddressBalance returns the confirmed balance of a bitcoin address in
// satoshi (funded minus spent outputs).
func (c *Client) AddressBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	path := "/address/" + url.PathEscape(address)

	body, err := c.doGet(ctx, path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("blockstream: address %s: %w", address, err)
	}

	var info addressInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return decimal.Zero, fmt.Errorf("blockstream: decode address %s: %w", address, err)
	}

	return info.ChainStats.FundedTxoSum.Sub(info.ChainStats.SpentTxoSum), nil
}

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
