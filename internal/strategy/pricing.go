package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LegQuote names one leg of a combo for pricing: the feed symbol its quote
// is keyed by and its sign (+1 bought, -1 sold).
type LegQuote struct {
	Symbol string
	Sign   int
}

// LegMarket is a single contract's bid/ask.
type LegMarket struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// ComboQuote is the natural market for a combination: what the whole
// package currently bids and offers. Negative values mean a credit.
type ComboQuote struct {
	Bid decimal.Decimal
	Ask decimal.Decimal
}

// Mid returns the unrounded midpoint.
func (q ComboQuote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// MidRounded returns the midpoint rounded to cents, the default limit
// price offered to the operator.
func (q ComboQuote) MidRounded() decimal.Decimal {
	return q.Mid().Round(2)
}

// PriceCombo folds per-leg quotes into the combo's market. A bought leg
// contributes its own bid to the combo bid and its ask to the combo ask; a
// sold leg contributes the negated opposite side. The result is
// antisymmetric under reversing every leg.
func PriceCombo(quotes map[string]LegMarket, legs []LegQuote) (ComboQuote, error) {
	if len(legs) == 0 {
		return ComboQuote{}, &InvalidCombinationError{Reason: "no legs to price"}
	}
	var combo ComboQuote
	for _, leg := range legs {
		q, ok := quotes[leg.Symbol]
		if !ok {
			return ComboQuote{}, fmt.Errorf("no quote for leg %s", leg.Symbol)
		}
		if leg.Sign >= 0 {
			combo.Bid = combo.Bid.Add(q.Bid)
			combo.Ask = combo.Ask.Add(q.Ask)
		} else {
			combo.Bid = combo.Bid.Sub(q.Ask)
			combo.Ask = combo.Ask.Sub(q.Bid)
		}
	}
	return combo, nil
}
