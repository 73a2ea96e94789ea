package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFromWei(t *testing.T) {
	// 3000000 wei is 3e-12 ETH, far below anything a float could keep exact.
	wei := decimal.NewFromInt(3000000)
	eth := FromWei(wei)
	assert.Equal(t, "0.000000000003", eth.String())
}

func TestFromSatoshi(t *testing.T) {
	sats := decimal.NewFromInt(8000000)
	btc := FromSatoshi(sats)
	assert.Equal(t, "0.08", btc.String())
}

func TestAssetAmounts_MergeSumsOverlappingAssets(t *testing.T) {
	a := AssetAmounts{
		AssetETH: decimal.NewFromInt(10),
		AssetBTC: decimal.RequireFromString("0.03"),
	}
	b := AssetAmounts{
		AssetETH: decimal.RequireFromString("0.000000000003"),
		AssetEUR: decimal.NewFromInt(1550),
	}

	a.Merge(b)

	assert.Equal(t, "10.000000000003", a[AssetETH].String())
	assert.Equal(t, "0.03", a[AssetBTC].String())
	assert.Equal(t, "1550", a[AssetEUR].String())
	assert.Len(t, a, 3)
}

func TestAssetAmounts_CopyIsIndependent(t *testing.T) {
	orig := AssetAmounts{AssetETH: decimal.NewFromInt(1)}

	cp := orig.Copy()
	cp[AssetETH] = decimal.NewFromInt(2)
	cp[AssetBTC] = decimal.NewFromInt(3)

	assert.Equal(t, "1", orig[AssetETH].String())
	assert.Len(t, orig, 1)
}

func TestLocationPersistOrder(t *testing.T) {
	order := LocationPersistOrder([]Location{"binance", "poloniex"})

	assert.Equal(t, []Location{
		"binance", "poloniex", LocationTotal, LocationBanks, LocationBlockchain,
	}, order)
}

func TestLocationPersistOrder_NoExchanges(t *testing.T) {
	order := LocationPersistOrder(nil)

	assert.Equal(t, []Location{LocationTotal, LocationBanks, LocationBlockchain}, order)
}
