// Package stream provides the market data feed abstraction and the
// aggregation step that reduces asynchronous, possibly-duplicate feed
// events into a complete per-symbol snapshot.
package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Channel names an event type on the streaming feed.
type Channel string

const (
	// ChannelQuote carries bid/ask updates.
	ChannelQuote Channel = "Quote"
	// ChannelGreeks carries option sensitivity updates.
	ChannelGreeks Channel = "Greeks"
)

// Event is a single reading delivered by the feed. Bid and Ask are set for
// quote events, Delta for greeks events.
type Event struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	Delta  decimal.Decimal
}

// Mid returns the quote midpoint, unrounded.
func (e Event) Mid() decimal.Decimal {
	return e.Bid.Add(e.Ask).Div(decimal.NewFromInt(2))
}

// Feed is the streaming market data capability. Events within a channel
// arrive in delivery order; no ordering holds across channels.
type Feed interface {
	Subscribe(ctx context.Context, channel Channel, symbols []string) error
	Events(channel Channel) <-chan Event
	Close() error
}

// DefaultTimeout bounds a single aggregation step. A symbol that never
// reports would otherwise block forever.
const DefaultTimeout = 15 * time.Second

// TimeoutError is returned when an aggregation step's deadline expires
// before every expected symbol has reported.
type TimeoutError struct {
	Channel Channel
	Missing []string
}

func (e *TimeoutError) Error() string {
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("timed out waiting for %s events, missing: %s",
		e.Channel, strings.Join(missing, ", "))
}

// Collect subscribes the expected symbols on channel and drains events
// until every expected symbol has reported, keeping only the most recent
// event per symbol. Events for skip are discarded without counting, which
// covers the underlying's own quote riding on a shared subscription.
// Events for symbols outside the expected set are likewise discarded, so
// the returned mapping's key set always equals the expected set. Once the
// set is complete, events already delivered are still applied before
// returning, so a newer reading sitting in the buffer supersedes the one
// that completed the set.
//
// A symbol that never reports blocks Collect until ctx expires, at which
// point a TimeoutError naming the missing symbols is returned; no partial
// mapping is ever handed back.
func Collect(ctx context.Context, feed Feed, channel Channel, expected []string, skip string) (map[string]Event, error) {
	if err := feed.Subscribe(ctx, channel, expected); err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	want := make(map[string]struct{}, len(expected))
	for _, s := range expected {
		want[s] = struct{}{}
	}
	got := make(map[string]Event, len(want))
	events := feed.Events(channel)

	keep := func(ev Event) {
		if skip != "" && ev.Symbol == skip {
			return
		}
		if _, ok := want[ev.Symbol]; !ok {
			return
		}
		got[ev.Symbol] = ev
	}

	for len(got) < len(want) {
		select {
		case <-ctx.Done():
			return nil, &TimeoutError{Channel: channel, Missing: missingSymbols(want, got)}
		case ev, ok := <-events:
			if !ok {
				return nil, fmt.Errorf("%s feed closed with symbols outstanding: %s",
					channel, strings.Join(missingSymbols(want, got), ", "))
			}
			keep(ev)
		}
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got, nil
			}
			keep(ev)
		default:
			return got, nil
		}
	}
}

// CollectWithTimeout wraps Collect in a bounded wait. A non-positive
// timeout falls back to DefaultTimeout.
func CollectWithTimeout(ctx context.Context, feed Feed, channel Channel, expected []string, skip string, timeout time.Duration) (map[string]Event, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return Collect(ctx, feed, channel, expected, skip)
}

func missingSymbols(want map[string]struct{}, got map[string]Event) []string {
	var missing []string
	for s := range want {
		if _, ok := got[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
