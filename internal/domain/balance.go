package domain

import "github.com/shopspring/decimal"

// AssetAmounts maps an asset to its raw amount as reported by one source.
// Amounts are arbitrary-precision decimals; balance math never touches
// floating point.
type AssetAmounts map[Asset]decimal.Decimal

// Merge adds every amount in other into the receiver, summing amounts for
// assets present in both maps. The receiver must be non-nil.
func (a AssetAmounts) Merge(other AssetAmounts) {
	for asset, amount := range other {
		if existing, ok := a[asset]; ok {
			a[asset] = existing.Add(amount)
		} else {
			a[asset] = amount
		}
	}
}

// Copy returns an independent copy of the map.
func (a AssetAmounts) Copy() AssetAmounts {
	out := make(AssetAmounts, len(a))
	for asset, amount := range a {
		out[asset] = amount
	}
	return out
}

// SourceBalances is the outcome of one source fetch: the reporting source,
// the location its holdings belong to, and the asset amounts it returned.
type SourceBalances struct {
	Key      SourceKey
	Location Location
	Amounts  AssetAmounts
}
