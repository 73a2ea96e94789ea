package source

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jfilipcz/netfolio/internal/config"
	"github.com/jfilipcz/netfolio/internal/domain"
	"github.com/jfilipcz/netfolio/internal/platform/binance"
	"github.com/jfilipcz/netfolio/internal/platform/poloniex"
)

// defaultTokenDecimals is assumed for configured ERC-20 tokens. The tracked
// tokens (RDN, DAI, ...) all use 18.
const defaultTokenDecimals int32 = 18

// Registry is the fixed set of balance sources built from configuration.
// Dispatch is by this registry, never by runtime type inspection: the
// aggregator only sees the domain.BalanceSource capability.
type Registry struct {
	sources           []domain.BalanceSource
	exchangeLocations []domain.Location
}

// BuildRegistry assembles every configured source: one per connected
// exchange account (in configured order), one per tracked chain, and the
// manual fiat source. The chain clients may be nil when no addresses of
// that chain are tracked.
func BuildRegistry(
	cfg *config.Config,
	eth EthereumClient,
	btc BitcoinClient,
	fiatStore domain.FiatStore,
	logger *slog.Logger,
) (*Registry, error) {
	r := &Registry{}

	for _, ex := range cfg.Exchanges {
		var client AccountClient
		switch strings.ToLower(ex.Name) {
		case "binance":
			client = binance.New(ex.BaseURL, ex.ApiKey, ex.ApiSecret)
		case "poloniex":
			client = poloniex.New(ex.BaseURL, ex.ApiKey, ex.ApiSecret)
		default:
			return nil, fmt.Errorf("source: unsupported exchange %q", ex.Name)
		}
		r.sources = append(r.sources, NewExchangeSource(client))
		r.exchangeLocations = append(r.exchangeLocations, domain.Location(strings.ToLower(ex.Name)))
	}

	if len(cfg.Blockchain.EthAddresses) > 0 {
		if eth == nil {
			return nil, fmt.Errorf("source: eth addresses configured but no ethereum client")
		}
		tokens := make([]TokenContract, 0, len(cfg.Blockchain.Tokens))
		for symbol, contract := range cfg.Blockchain.Tokens {
			tokens = append(tokens, TokenContract{
				Symbol:   domain.Asset(strings.ToUpper(symbol)),
				Address:  contract,
				Decimals: defaultTokenDecimals,
			})
		}
		r.sources = append(r.sources, NewEthereumSource(eth, cfg.Blockchain.EthAddresses, tokens, logger))
	}

	if len(cfg.Blockchain.BtcAddresses) > 0 {
		if btc == nil {
			return nil, fmt.Errorf("source: btc addresses configured but no bitcoin client")
		}
		r.sources = append(r.sources, NewBitcoinSource(btc, cfg.Blockchain.BtcAddresses, logger))
	}

	r.sources = append(r.sources, NewFiatSource(fiatStore))

	return r, nil
}

// Sources returns every configured balance source.
func (r *Registry) Sources() []domain.BalanceSource {
	return r.sources
}

// ExchangeLocations returns the connected exchange locations in configured
// order, which defines the location persist order.
func (r *Registry) ExchangeLocations() []domain.Location {
	return r.exchangeLocations
}
