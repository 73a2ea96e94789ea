package domain

import "context"

// SourceKind classifies a balance source.
type SourceKind string

const (
	SourceKindBlockchain SourceKind = "blockchain"
	SourceKindExchange   SourceKind = "exchange"
	SourceKindFiat       SourceKind = "fiat"
)

// SourceKey uniquely identifies a configured balance source. It is the key
// of the fetch cache: one entry per (kind, identity) pair.
type SourceKey struct {
	Kind     SourceKind
	Identity string
}

func (k SourceKey) String() string {
	return string(k.Kind) + ":" + k.Identity
}

// Location identifies where holdings live for the per-location breakdown:
// one per connected exchange, plus the synthetic categories below.
type Location string

const (
	LocationBlockchain Location = "blockchain"
	LocationBanks      Location = "banks"
	LocationTotal      Location = "total"
)

func (l Location) String() string {
	return string(l)
}

// LocationPersistOrder returns the fixed order in which location rows are
// persisted and read back: connected exchanges in their configured order,
// then "total", "banks", "blockchain". This ordering is a persistence
// convention the snapshot store relies on for its default read order, not a
// business rule.
func LocationPersistOrder(exchanges []Location) []Location {
	order := make([]Location, 0, len(exchanges)+3)
	order = append(order, exchanges...)
	order = append(order, LocationTotal, LocationBanks, LocationBlockchain)
	return order
}

// BalanceSource is the capability implemented by every balance source
// adapter: fetch the asset amounts currently held at that source. A fetch
// may fail or time out independently of any other source.
type BalanceSource interface {
	// Key returns the cache key identifying this source.
	Key() SourceKey

	// Location returns the location its holdings are attributed to.
	Location() Location

	// FetchBalances queries the source and returns asset -> amount.
	FetchBalances(ctx context.Context) (AssetAmounts, error)
}
