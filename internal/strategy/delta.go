package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Option side signs used for delta deviation and combo construction.
const (
	CallSign = 1
	PutSign  = -1
)

// GreekReading is one contract's delta as reported by the feed, on the
// natural scale (calls in (0,1), puts in (-1,0)).
type GreekReading struct {
	Symbol string
	Delta  decimal.Decimal
}

// ValidateDelta rejects delta targets outside the percent scale.
func ValidateDelta(target int) error {
	if target > 99 || target < -99 {
		return &InvalidParameterError{Reason: fmt.Sprintf("delta %d out of range, must be within [-99, 99]", target)}
	}
	return nil
}

// SelectByDelta returns the symbol whose delta, scaled to percent, deviates
// least from the target. Readings are scanned in order and ties keep the
// first minimum, so callers passing strike-ascending readings get the lower
// strike on a tie. The put side negates the target (put deltas are
// negative, targets are quoted positive).
func SelectByDelta(readings []GreekReading, target decimal.Decimal, sign int) (string, error) {
	if len(readings) == 0 {
		return "", &NoMatchError{Reason: "no greeks readings to select from"}
	}
	hundred := decimal.NewFromInt(100)
	best := 0
	bestDev := deviation(readings[0].Delta.Mul(hundred), target, sign)
	for i, r := range readings[1:] {
		dev := deviation(r.Delta.Mul(hundred), target, sign)
		if dev.LessThan(bestDev) {
			best, bestDev = i+1, dev
		}
	}
	return readings[best].Symbol, nil
}

func deviation(scaled, target decimal.Decimal, sign int) decimal.Decimal {
	if sign < 0 {
		return scaled.Add(target).Abs()
	}
	return scaled.Sub(target).Abs()
}
