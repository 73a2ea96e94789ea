// Package source provides the concrete balance source adapters the
// aggregator fans out to: on-chain accounts, exchange accounts, and
// manually recorded fiat holdings. All adapters implement
// domain.BalanceSource and are assembled into a fixed registry from
// configuration.
package source

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// EthereumClient is the on-chain query capability the Ethereum source needs.
type EthereumClient interface {
	ETHBalance(ctx context.Context, address string) (decimal.Decimal, error)
	TokenBalance(ctx context.Context, tokenContract, holder string) (decimal.Decimal, error)
}

// BitcoinClient is the explorer query capability the Bitcoin source needs.
type BitcoinClient interface {
	AddressBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// TokenContract describes one tracked ERC-20 token.
type TokenContract struct {
	Symbol   domain.Asset
	Address  string
	Decimals int32
}

// EthereumSource reports the ether and tracked token holdings of every
// configured Ethereum address, converted from smallest units.
type EthereumSource struct {
	client    EthereumClient
	addresses []string
	tokens    []TokenContract
	logger    *slog.Logger
}

// NewEthereumSource creates the Ethereum chain source.
func NewEthereumSource(client EthereumClient, addresses []string, tokens []TokenContract, logger *slog.Logger) *EthereumSource {
	return &EthereumSource{
		client:    client,
		addresses: addresses,
		tokens:    tokens,
		logger:    logger.With(slog.String("component", "source_eth")),
	}
}

func (s *EthereumSource) Key() domain.SourceKey {
	return domain.SourceKey{Kind: domain.SourceKindBlockchain, Identity: "ETH"}
}

func (s *EthereumSource) Location() domain.Location {
	return domain.LocationBlockchain
}

// FetchBalances queries every tracked address for its ether balance and for
// each tracked token's balance. Any single query failure fails the whole
// source fetch; partial chain data would distort the merged ledger.
func (s *EthereumSource) FetchBalances(ctx context.Context) (domain.AssetAmounts, error) {
	amounts := make(domain.AssetAmounts)

	for _, addr := range s.addresses {
		wei, err := s.client.ETHBalance(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("source: eth balance of %s: %w", addr, err)
		}
		amounts.Merge(domain.AssetAmounts{domain.AssetETH: domain.FromWei(wei)})

		for _, token := range s.tokens {
			raw, err := s.client.TokenBalance(ctx, token.Address, addr)
			if err != nil {
				return nil, fmt.Errorf("source: %s balance of %s: %w", token.Symbol, addr, err)
			}
			if raw.IsZero() {
				continue
			}
			amounts.Merge(domain.AssetAmounts{token.Symbol: raw.Shift(-token.Decimals)})
		}
	}

	s.logger.Debug("fetched ethereum balances", slog.Int("assets", len(amounts)))
	return amounts, nil
}

// BitcoinSource reports the bitcoin holdings of every configured address.
type BitcoinSource struct {
	client    BitcoinClient
	addresses []string
	logger    *slog.Logger
}

// NewBitcoinSource creates the Bitcoin chain source.
func NewBitcoinSource(client BitcoinClient, addresses []string, logger *slog.Logger) *BitcoinSource {
	return &BitcoinSource{
		client:    client,
		addresses: addresses,
		logger:    logger.With(slog.String("component", "source_btc")),
	}
}

func (s *BitcoinSource) Key() domain.SourceKey {
	return domain.SourceKey{Kind: domain.SourceKindBlockchain, Identity: "BTC"}
}

func (s *BitcoinSource) Location() domain.Location {
	return domain.LocationBlockchain
}

func (s *BitcoinSource) FetchBalances(ctx context.Context) (domain.AssetAmounts, error) {
	amounts := make(domain.AssetAmounts)

	for _, addr := range s.addresses {
		sats, err := s.client.AddressBalance(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("source: btc balance of %s: %w", addr, err)
		}
		amounts.Merge(domain.AssetAmounts{domain.AssetBTC: domain.FromSatoshi(sats)})
	}

	s.logger.Debug("fetched bitcoin balances", slog.Int("addresses", len(s.addresses)))
	return amounts, nil
}

// Compile-time interface checks.
var (
	_ domain.BalanceSource = (*EthereumSource)(nil)
	_ domain.BalanceSource = (*BitcoinSource)(nil)
)
