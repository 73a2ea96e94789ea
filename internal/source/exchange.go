package source

import (
	"context"
	"fmt"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// AccountClient is the capability an exchange API client exposes to the
// exchange source adapter.
type AccountClient interface {
	Name() string
	AccountBalances(ctx context.Context) (domain.AssetAmounts, error)
}

// ExchangeSource reports the holdings of one connected exchange account.
// Its location is the exchange name.
type ExchangeSource struct {
	client AccountClient
}

// NewExchangeSource wraps an exchange account client as a balance source.
func NewExchangeSource(client AccountClient) *ExchangeSource {
	return &ExchangeSource{client: client}
}

func (s *ExchangeSource) Key() domain.SourceKey {
	return domain.SourceKey{Kind: domain.SourceKindExchange, Identity: s.client.Name()}
}

func (s *ExchangeSource) Location() domain.Location {
	return domain.Location(s.client.Name())
}

func (s *ExchangeSource) FetchBalances(ctx context.Context) (domain.AssetAmounts, error) {
	amounts, err := s.client.AccountBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("source: exchange %s: %w", s.client.Name(), err)
	}
	return amounts, nil
}

// Compile-time interface check.
var _ domain.BalanceSource = (*ExchangeSource)(nil)
