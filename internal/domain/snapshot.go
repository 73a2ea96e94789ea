package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// AssetEntry is one ledger row of a snapshot: the summed raw amount, its
// value in the valuation currency, and its share of net worth. Value and
// Percentage are nil when the price resolver could not price the asset; the
// raw amount is still reported.
type AssetEntry struct {
	Amount     decimal.Decimal
	Value      *decimal.Decimal
	Percentage *decimal.Decimal
}

// LocationEntry is one row of the per-location breakdown.
type LocationEntry struct {
	Value      decimal.Decimal
	Percentage decimal.Decimal
}

// Snapshot is the immutable result of one aggregation run. All of its
// figures derive from a single consistent observation: the per-source fetch
// results and prices captured during that run, timestamped with the run's
// captured start time.
type Snapshot struct {
	Timestamp time.Time
	Assets    map[Asset]AssetEntry
	Locations map[Location]LocationEntry

	// LocationOrder is the fixed persist order of the Locations keys
	// (see LocationPersistOrder).
	LocationOrder []Location

	// NetValue is the sum of all successfully valued asset amounts,
	// expressed in the valuation currency.
	NetValue decimal.Decimal
}

type assetEntryJSON struct {
	Amount     decimal.Decimal  `json:"amount"`
	USDValue   *decimal.Decimal `json:"usd_value"`
	Percentage *decimal.Decimal `json:"percentage_of_net_value"`
}

type locationEntryJSON struct {
	USDValue   decimal.Decimal `json:"usd_value"`
	Percentage decimal.Decimal `json:"percentage_of_net_value"`
}

// MarshalJSON serializes the snapshot to the wire form consumed by API
// clients: one top-level key per asset symbol, plus "location" and
// "net_usd". The total entry is omitted from the location map; it is
// redundant with net_usd.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Assets)+2)
	for asset, entry := range s.Assets {
		out[asset.String()] = assetEntryJSON{
			Amount:     entry.Amount,
			USDValue:   entry.Value,
			Percentage: entry.Percentage,
		}
	}

	locations := make(map[string]locationEntryJSON, len(s.Locations))
	for loc, entry := range s.Locations {
		if loc == LocationTotal {
			continue
		}
		locations[loc.String()] = locationEntryJSON{
			USDValue:   entry.Value,
			Percentage: entry.Percentage,
		}
	}
	out["location"] = locations
	out["net_usd"] = s.NetValue

	return json.Marshal(out)
}
