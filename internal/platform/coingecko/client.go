// Package coingecko implements the price oracle against the CoinGecko REST
// API: unit prices for crypto assets via simple/price and fiat cross rates
// via exchange_rates.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// coinIDs maps the asset symbols the engine knows about to CoinGecko coin
// identifiers. Assets missing from this table are reported as unpriceable.
var coinIDs = map[domain.Asset]string{
	domain.AssetETH: "ethereum",
	domain.AssetBTC: "bitcoin",
	"RDN":           "raiden-network",
	"DAI":           "dai",
	"USDC":          "usd-coin",
	"USDT":          "tether",
}

// fiatCurrencies are quoted through the exchange_rates endpoint rather than
// simple/price.
var fiatCurrencies = map[domain.Asset]string{
	domain.AssetUSD: "usd",
	domain.AssetEUR: "eur",
	"GBP":           "gbp",
	"JPY":           "jpy",
	"CHF":           "chf",
}

// Client is the REST client for the CoinGecko API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new CoinGecko client.
//
// baseURL is the API root, e.g. "https://api.coingecko.com/api/v3".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// QueryPrice returns the current unit price of asset expressed in currency.
// It returns domain.ErrPriceUnavailable when the oracle has no quote for
// the pair.
func (c *Client) QueryPrice(ctx context.Context, asset, currency domain.Asset) (decimal.Decimal, error) {
	if _, isFiat := fiatCurrencies[asset]; isFiat {
		return c.fiatPrice(ctx, asset, currency)
	}

	id, ok := coinIDs[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko: no coin id for %s: %w", asset, domain.ErrPriceUnavailable)
	}
	vs := strings.ToLower(currency.String())

	params := url.Values{}
	params.Set("ids", id)
	params.Set("vs_currencies", vs)
	path := "/simple/price?" + params.Encode()

	body, err := c.doGet(ctx, path)
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: query price %s/%s: %w", asset, currency, err)
	}

	var prices map[string]map[string]decimal.Decimal
	if err := json.Unmarshal(body, &prices); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: decode price %s/%s: %w", asset, currency, err)
	}

	price, ok := prices[id][vs]
	if !ok || price.IsZero() {
		return decimal.Zero, fmt.Errorf("coingecko: no %s quote for %s: %w", currency, asset, domain.ErrPriceUnavailable)
	}
	return price, nil
}

// fiatPrice derives a fiat cross rate from the exchange_rates endpoint,
// whose rates are all expressed against BTC: price of asset in currency is
// rate(currency) / rate(asset).
func (c *Client) fiatPrice(ctx context.Context, asset, currency domain.Asset) (decimal.Decimal, error) {
	if asset == currency {
		return decimal.NewFromInt(1), nil
	}

	assetKey, ok := fiatCurrencies[asset]
	if !ok {
		return decimal.Zero, fmt.Errorf("coingecko: unsupported fiat %s: %w", asset, domain.ErrPriceUnavailable)
	}
	currencyKey, ok := fiatCurrencies[currency]
	if !ok {
		currencyKey = strings.ToLower(currency.String())
	}

	body, err := c.doGet(ctx, "/exchange_rates")
	if err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: exchange rates: %w", err)
	}

	var parsed struct {
		Rates map[string]struct {
			Value decimal.Decimal `json:"value"`
		} `json:"rates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return decimal.Zero, fmt.Errorf("coingecko: decode exchange rates: %w", err)
	}

	assetRate, okA := parsed.Rates[assetKey]
	currencyRate, okC := parsed.Rates[currencyKey]
	if !okA || !okC || assetRate.Value.IsZero() {
		return decimal.Zero, fmt.Errorf("coingecko: no cross rate %s/%s: %w", asset, currency, domain.ErrPriceUnavailable)
	}

	return currencyRate.Value.Div(assetRate.Value), nil
}

// doGet performs a GET request against the API and returns the raw body.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

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
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	return body, nil
}

func truncate(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Client)(nil)
