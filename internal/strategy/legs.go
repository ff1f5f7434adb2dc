package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// OptionType is the contract side.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// Action is the opening direction of one leg, in the brokerage's wire
// vocabulary.
type Action string

const (
	BuyToOpen  Action = "Buy to Open"
	SellToOpen Action = "Sell to Open"
)

// Kind names a supported strategy shape.
type Kind string

const (
	Single       Kind = "single"
	VerticalCall Kind = "vertical call"
	VerticalPut  Kind = "vertical put"
	Strangle     Kind = "strangle"
	IronCondor   Kind = "iron condor"
)

// Contract is a resolved, tradable option contract.
type Contract struct {
	Symbol string
	Type   OptionType
	Strike decimal.Decimal
}

// Leg is one ready-to-submit order leg.
type Leg struct {
	Symbol   string
	Quantity int
	Action   Action
}

type legRole int

const (
	primary legRole = iota
	hedge
)

// polarity maps each strategy kind to per-leg roles after sorting the
// kind's contracts ascending by strike. Primary legs take the order's
// direction; hedge legs take the opposite. The put vertical's reversal
// relative to the call vertical keeps the near strike primary: a put
// spread's selected strike is the higher one.
var polarity = map[Kind][]legRole{
	Single:       {primary},
	VerticalCall: {primary, hedge},
	VerticalPut:  {hedge, primary},
	Strangle:     {primary, primary},
	IronCondor:   {hedge, primary, primary, hedge},
}

// Signs returns the pricing sign per ascending-strike leg of the kind:
// primary +1, hedge -1. Signs do not depend on order direction; the combo
// is always quoted from the bought orientation.
func Signs(kind Kind) ([]int, error) {
	roles, ok := polarity[kind]
	if !ok {
		return nil, &InvalidCombinationError{Reason: fmt.Sprintf("unknown strategy kind %q", kind)}
	}
	signs := make([]int, len(roles))
	for i, r := range roles {
		if r == primary {
			signs[i] = 1
		} else {
			signs[i] = -1
		}
	}
	return signs, nil
}

// BuildLegs turns resolved contracts into order legs for the given kind.
// Contracts may arrive in any order; they are sorted ascending by strike
// before roles are assigned. quantity's sign sets direction: negative
// sells the primary legs to open. The leg count must match the kind's
// shape and no two legs may resolve to the same contract.
func BuildLegs(kind Kind, quantity int, contracts []Contract) ([]Leg, error) {
	roles, ok := polarity[kind]
	if !ok {
		return nil, &InvalidCombinationError{Reason: fmt.Sprintf("unknown strategy kind %q", kind)}
	}
	if quantity == 0 {
		return nil, &InvalidParameterError{Reason: "quantity must be non-zero"}
	}
	if len(contracts) != len(roles) {
		return nil, &InvalidCombinationError{Reason: fmt.Sprintf(
			"%s needs %d distinct legs, got %d", kind, len(roles), len(contracts))}
	}

	sorted := append([]Contract(nil), contracts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Strike.LessThan(sorted[j].Strike)
	})

	seen := make(map[string]struct{}, len(sorted))
	for _, c := range sorted {
		if _, dup := seen[c.Symbol]; dup {
			return nil, &InvalidCombinationError{Reason: fmt.Sprintf(
				"legs collapse onto the same contract %s", c.Symbol)}
		}
		seen[c.Symbol] = struct{}{}
	}

	size := quantity
	if size < 0 {
		size = -size
	}
	selling := quantity < 0

	legs := make([]Leg, len(sorted))
	for i, c := range sorted {
		action := BuyToOpen
		if (roles[i] == primary) == selling {
			action = SellToOpen
		}
		legs[i] = Leg{Symbol: c.Symbol, Quantity: size, Action: action}
	}
	return legs, nil
}
