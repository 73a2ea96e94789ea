// Package domain defines the core types and interfaces of the portfolio
// valuation engine: assets, balances, locations, snapshots, and the
// capability interfaces implemented by the adapter layers.
package domain

import "github.com/shopspring/decimal"

// Asset is a ticker symbol such as "ETH", "BTC" or "EUR".
type Asset string

// Well-known assets referenced throughout the engine.
const (
	AssetETH Asset = "ETH"
	AssetBTC Asset = "BTC"
	AssetEUR Asset = "EUR"
	AssetUSD Asset = "USD"
)

func (a Asset) String() string {
	return string(a)
}

// FromWei converts an amount expressed in wei (10^-18 ETH) to whole ether.
func FromWei(wei decimal.Decimal) decimal.Decimal {
	return wei.Shift(-18)
}

// FromSatoshi converts an amount expressed in satoshi (10^-8 BTC) to whole
// bitcoin.
func FromSatoshi(sats decimal.Decimal) decimal.Decimal {
	return sats.Shift(-8)
}
