package source

import (
	"context"
	"fmt"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// FiatSource reports the manually recorded fiat holdings. It reads from the
// fiat store rather than a network API, so it is the one source that only
// fails when the database does. Its location is "banks".
type FiatSource struct {
	store domain.FiatStore
}

// NewFiatSource creates the manual fiat source.
func NewFiatSource(store domain.FiatStore) *FiatSource {
	return &FiatSource{store: store}
}

func (s *FiatSource) Key() domain.SourceKey {
	return domain.SourceKey{Kind: domain.SourceKindFiat, Identity: "manual"}
}

func (s *FiatSource) Location() domain.Location {
	return domain.LocationBanks
}

func (s *FiatSource) FetchBalances(ctx context.Context) (domain.AssetAmounts, error) {
	balances, err := s.store.FiatBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: fiat balances: %w", err)
	}

	amounts := make(domain.AssetAmounts, len(balances))
	for _, b := range balances {
		amounts.Merge(domain.AssetAmounts{b.Currency: b.Amount})
	}
	return amounts, nil
}

// Compile-time interface check.
var _ domain.BalanceSource = (*FiatSource)(nil)
