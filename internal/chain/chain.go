// Package chain holds an in-memory view of an underlying's option chain:
// expirations ordered by date, strikes ordered by price, with both the
// tradable contract symbol and the streaming feed symbol for each side.
package chain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// NotFoundError is returned when no expiration or strike matches an exact
// request.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// Strike is one row of an expiration's chain. Immutable once fetched.
type Strike struct {
	Price        decimal.Decimal
	Call         string // tradable call contract symbol
	Put          string // tradable put contract symbol
	CallStreamer string // call symbol on the streaming feed
	PutStreamer  string // put symbol on the streaming feed
}

// Expiration is one expiration date and its strikes, ascending by price.
type Expiration struct {
	Date    time.Time
	Strikes []Strike
}

// Chain is the full option chain for one underlying, expirations ascending
// by date. Read-only for the duration of a command.
type Chain struct {
	Underlying  string
	Expirations []Expiration
}

// Sort orders expirations by date and each expiration's strikes by price.
// Called once after the chain is fetched.
func (c *Chain) Sort() {
	sort.Slice(c.Expirations, func(i, j int) bool {
		return c.Expirations[i].Date.Before(c.Expirations[j].Date)
	})
	for i := range c.Expirations {
		strikes := c.Expirations[i].Strikes
		sort.SliceStable(strikes, func(a, b int) bool {
			return strikes[a].Price.LessThan(strikes[b].Price)
		})
	}
}

// IsMonthly reports whether a date is a canonical monthly expiration:
// the third Friday window, i.e. a Friday with day-of-month in [15, 21].
func IsMonthly(d time.Time) bool {
	return d.Weekday() == time.Friday && d.Day() >= 15 && d.Day() <= 21
}

// Dates returns the chain's expiration dates in ascending order, restricted
// to monthlies unless weeklies is set.
func (c *Chain) Dates(weeklies bool) []time.Time {
	var dates []time.Time
	for _, e := range c.Expirations {
		if !weeklies && !IsMonthly(e.Date) {
			continue
		}
		dates = append(dates, e.Date)
	}
	return dates
}

// Expiration returns the expiration for the given date.
func (c *Chain) Expiration(date time.Time) (*Expiration, error) {
	for i := range c.Expirations {
		if sameDay(c.Expirations[i].Date, date) {
			return &c.Expirations[i], nil
		}
	}
	return nil, &NotFoundError{What: fmt.Sprintf("expiration %s", date.Format("2006-01-02"))}
}

// DefaultMonthly returns the index of the canonical default expiration
// within dates: the monthly closest to 45 days out, which is the liquid
// tenor most strategies are quoted against. When dates holds no monthly,
// it falls back to the nearest date not yet passed. dates must be sorted
// ascending; an empty slice returns -1.
func DefaultMonthly(dates []time.Time, now time.Time) int {
	if len(dates) == 0 {
		return -1
	}
	target := now.AddDate(0, 0, 45)
	best := -1
	var bestDiff time.Duration
	for i, d := range dates {
		if !IsMonthly(d) {
			continue
		}
		diff := d.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best >= 0 {
		return best
	}
	for i, d := range dates {
		if !d.Before(now) {
			return i
		}
	}
	return len(dates) - 1
}

// StrikeAt returns the strike with exactly the given price.
func (e *Expiration) StrikeAt(price decimal.Decimal) (Strike, error) {
	for _, s := range e.Strikes {
		if s.Price.Equal(price) {
			return s, nil
		}
	}
	return Strike{}, &NotFoundError{What: fmt.Sprintf("strike %s", price.String())}
}

// StrikesAround returns count strikes below and count strikes above the
// strike nearest pivot. When the expiration holds no more than 2*count
// strikes the full set is returned. The result stays ascending by price.
func (e *Expiration) StrikesAround(count int, pivot decimal.Decimal) []Strike {
	if count <= 0 || len(e.Strikes) <= 2*count {
		return e.Strikes
	}
	nearest := 0
	bestDiff := e.Strikes[0].Price.Sub(pivot).Abs()
	for i, s := range e.Strikes[1:] {
		diff := s.Price.Sub(pivot).Abs()
		if diff.LessThan(bestDiff) {
			nearest, bestDiff = i+1, diff
		}
	}
	lo := nearest - count
	hi := nearest + count
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > len(e.Strikes) {
		lo -= hi - len(e.Strikes)
		hi = len(e.Strikes)
	}
	if lo < 0 {
		lo = 0
	}
	return e.Strikes[lo:hi]
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
