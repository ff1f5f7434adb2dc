package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func market(bid, ask float64) LegMarket {
	return LegMarket{Bid: decimal.NewFromFloat(bid), Ask: decimal.NewFromFloat(ask)}
}

func TestPriceComboSingleBought(t *testing.T) {
	quotes := map[string]LegMarket{"C450": market(1.00, 1.10)}
	combo, err := PriceCombo(quotes, []LegQuote{{Symbol: "C450", Sign: 1}})
	require.NoError(t, err)
	assert.True(t, combo.Bid.Equal(decimal.NewFromFloat(1.00)))
	assert.True(t, combo.Ask.Equal(decimal.NewFromFloat(1.10)))
}

func TestPriceComboAntisymmetry(t *testing.T) {
	quotes := map[string]LegMarket{"C450": market(1.00, 1.10)}
	bought, err := PriceCombo(quotes, []LegQuote{{Symbol: "C450", Sign: 1}})
	require.NoError(t, err)
	sold, err := PriceCombo(quotes, []LegQuote{{Symbol: "C450", Sign: -1}})
	require.NoError(t, err)

	assert.True(t, sold.Bid.Equal(bought.Ask.Neg()))
	assert.True(t, sold.Ask.Equal(bought.Bid.Neg()))
}

func TestPriceComboVerticalSpread(t *testing.T) {
	quotes := map[string]LegMarket{
		"C450": market(2.00, 2.10),
		"C455": market(0.90, 1.00),
	}
	combo, err := PriceCombo(quotes, []LegQuote{
		{Symbol: "C450", Sign: 1},
		{Symbol: "C455", Sign: -1},
	})
	require.NoError(t, err)
	// bid = near.bid - far.ask, ask = near.ask - far.bid
	assert.True(t, combo.Bid.Equal(decimal.NewFromFloat(1.00)))
	assert.True(t, combo.Ask.Equal(decimal.NewFromFloat(1.20)))
}

func TestPriceComboIronCondor(t *testing.T) {
	quotes := map[string]LegMarket{
		"P430": market(0.30, 0.40),
		"P440": market(0.80, 0.90),
		"C460": market(0.85, 0.95),
		"C470": market(0.25, 0.35),
	}
	combo, err := PriceCombo(quotes, []LegQuote{
		{Symbol: "P430", Sign: -1},
		{Symbol: "P440", Sign: 1},
		{Symbol: "C460", Sign: 1},
		{Symbol: "C470", Sign: -1},
	})
	require.NoError(t, err)
	// bid = put.bid + call.bid - putHedge.ask - callHedge.ask
	assert.True(t, combo.Bid.Equal(decimal.NewFromFloat(0.90)))
	assert.True(t, combo.Ask.Equal(decimal.NewFromFloat(1.30)))
}

func TestPriceComboMissingQuote(t *testing.T) {
	_, err := PriceCombo(map[string]LegMarket{}, []LegQuote{{Symbol: "C450", Sign: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "C450")
}

func TestPriceComboNoLegs(t *testing.T) {
	_, err := PriceCombo(map[string]LegMarket{}, nil)
	var invalid *InvalidCombinationError
	require.ErrorAs(t, err, &invalid)
}

func TestComboQuoteMidRounding(t *testing.T) {
	q := ComboQuote{Bid: decimal.NewFromFloat(1.00), Ask: decimal.NewFromFloat(1.11)}
	assert.True(t, q.Mid().Equal(decimal.NewFromFloat(1.055)), "mid stays exact")
	assert.True(t, q.MidRounded().Equal(decimal.NewFromFloat(1.06)), "display default rounds to cents")
}
