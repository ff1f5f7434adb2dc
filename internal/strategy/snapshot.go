package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/stream"
)

// ChainRow is one strike's two-sided market in a chain snapshot.
type ChainRow struct {
	Strike    decimal.Decimal
	CallBid   decimal.Decimal
	CallAsk   decimal.Decimal
	CallDelta decimal.Decimal
	PutBid    decimal.Decimal
	PutAsk    decimal.Decimal
	PutDelta  decimal.Decimal
}

// ChainView is a live snapshot of the strikes around the money for one
// expiration.
type ChainView struct {
	Underlying     string
	Expiration     time.Time
	UnderlyingMark decimal.Decimal
	Rows           []ChainRow
	ATMIndex       int
}

// ChainSnapshot fetches the chain, lets the operator pick an expiration,
// and aggregates quotes and greeks for count strikes either side of the
// underlying's mark. The underlying's quote stays subscribed while option
// quotes aggregate, so its later ticks ride the shared channel and are
// skipped.
func (o *Orchestrator) ChainSnapshot(ctx context.Context, symbol string, count int, weeklies bool) (*ChainView, error) {
	if symbol == "" {
		return nil, &InvalidParameterError{Reason: "symbol is required"}
	}
	if count <= 0 {
		return nil, &InvalidParameterError{Reason: "strike count must be positive"}
	}

	exp, err := o.chooseExpiration(ctx, symbol, weeklies)
	if err != nil {
		return nil, err
	}

	feed, err := o.OpenFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer feed.Close()

	underlying, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelQuote, []string{symbol}, "", o.Timeout)
	if err != nil {
		return nil, err
	}
	mark := underlying[symbol].Mid()

	strikes := exp.StrikesAround(count, mark)
	if len(strikes) == 0 {
		return nil, &NoMatchError{Reason: fmt.Sprintf("no strikes for %s %s", symbol, exp.Date.Format("2006-01-02"))}
	}

	streamers := make([]string, 0, 2*len(strikes))
	for _, s := range strikes {
		streamers = append(streamers, s.CallStreamer, s.PutStreamer)
	}

	greeks, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelGreeks, streamers, "", o.Timeout)
	if err != nil {
		return nil, err
	}
	quotes, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelQuote, streamers, symbol, o.Timeout)
	if err != nil {
		return nil, err
	}

	view := &ChainView{
		Underlying:     symbol,
		Expiration:     exp.Date,
		UnderlyingMark: mark,
		Rows:           make([]ChainRow, len(strikes)),
	}
	bestDiff := decimal.Decimal{}
	for i, s := range strikes {
		view.Rows[i] = ChainRow{
			Strike:    s.Price,
			CallBid:   quotes[s.CallStreamer].Bid,
			CallAsk:   quotes[s.CallStreamer].Ask,
			CallDelta: greeks[s.CallStreamer].Delta,
			PutBid:    quotes[s.PutStreamer].Bid,
			PutAsk:    quotes[s.PutStreamer].Ask,
			PutDelta:  greeks[s.PutStreamer].Delta,
		}
		diff := s.Price.Sub(mark).Abs()
		if i == 0 || diff.LessThan(bestDiff) {
			view.ATMIndex, bestDiff = i, diff
		}
	}
	return view, nil
}
