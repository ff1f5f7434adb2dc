package strategy

import "github.com/shopspring/decimal"

// TimeInForce is how long a working order stays live.
type TimeInForce string

const (
	Day TimeInForce = "Day"
	GTC TimeInForce = "GTC"
)

// PriceEffect is the direction cash moves at the limit price.
type PriceEffect string

const (
	Credit PriceEffect = "Credit"
	Debit  PriceEffect = "Debit"
)

// Order is a ready-to-submit multi-leg limit order.
type Order struct {
	Legs        []Leg
	Price       decimal.Decimal
	TimeInForce TimeInForce
	PriceEffect PriceEffect
}

// NewOrder assembles the order envelope. Selling the primary legs
// (quantity<0) collects a credit. The price is carried as a magnitude;
// PriceEffect holds the direction.
func NewOrder(legs []Leg, price decimal.Decimal, quantity int, gtc bool) Order {
	tif := Day
	if gtc {
		tif = GTC
	}
	effect := Debit
	if quantity < 0 {
		effect = Credit
	}
	return Order{
		Legs:        legs,
		Price:       price.Abs(),
		TimeInForce: tif,
		PriceEffect: effect,
	}
}
