package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonandersen/tasty/internal/chain"
	"github.com/jonandersen/tasty/internal/stream"
)

// testChain builds one SPY expiration (a monthly) with strikes 440..470
// step 5, both sides populated.
func testChain() *chain.Chain {
	exp := chain.Expiration{Date: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)}
	for price := int64(440); price <= 470; price += 5 {
		p := decimal.NewFromInt(price)
		exp.Strikes = append(exp.Strikes, chain.Strike{
			Price:        p,
			Call:         "SPY C" + p.String(),
			Put:          "SPY P" + p.String(),
			CallStreamer: ".C" + p.String(),
			PutStreamer:  ".P" + p.String(),
		})
	}
	return &chain.Chain{Underlying: "SPY", Expirations: []chain.Expiration{exp}}
}

type fakeChains struct {
	chain *chain.Chain
	calls int
}

func (f *fakeChains) OptionChain(context.Context, string) (*chain.Chain, error) {
	f.calls++
	return f.chain, nil
}

type fakeContracts struct{}

func (fakeContracts) Options(_ context.Context, symbols []string) ([]Contract, error) {
	out := make([]Contract, len(symbols))
	for i, sym := range symbols {
		side := Call
		if sym[4] == 'P' {
			side = Put
		}
		strike, err := decimal.NewFromString(sym[5:])
		if err != nil {
			return nil, err
		}
		out[i] = Contract{Symbol: sym, Type: side, Strike: strike}
	}
	return out, nil
}

// scriptedFeed holds pending events per channel and releases them once
// their symbol has been subscribed, the way a real feed only ticks for
// subscribed symbols. An already-subscribed symbol's later pending events
// flow out on any subsequent Subscribe on the same channel.
type scriptedFeed struct {
	pending    map[stream.Channel][]stream.Event
	subscribed map[stream.Channel]map[string]bool
	chans      map[stream.Channel]chan stream.Event
	closed     bool
}

func newScriptedFeed() *scriptedFeed {
	return &scriptedFeed{
		pending: map[stream.Channel][]stream.Event{},
		subscribed: map[stream.Channel]map[string]bool{
			stream.ChannelQuote:  {},
			stream.ChannelGreeks: {},
		},
		chans: map[stream.Channel]chan stream.Event{
			stream.ChannelQuote:  make(chan stream.Event, 64),
			stream.ChannelGreeks: make(chan stream.Event, 64),
		},
	}
}

func (f *scriptedFeed) Subscribe(_ context.Context, channel stream.Channel, symbols []string) error {
	for _, s := range symbols {
		f.subscribed[channel][s] = true
	}
	var held []stream.Event
	for _, ev := range f.pending[channel] {
		if f.subscribed[channel][ev.Symbol] {
			f.chans[channel] <- ev
		} else {
			held = append(held, ev)
		}
	}
	f.pending[channel] = held
	return nil
}

func (f *scriptedFeed) Events(channel stream.Channel) <-chan stream.Event {
	return f.chans[channel]
}

func (f *scriptedFeed) Close() error {
	f.closed = true
	return nil
}

func (f *scriptedFeed) greek(symbol string, delta float64) {
	f.pending[stream.ChannelGreeks] = append(f.pending[stream.ChannelGreeks],
		stream.Event{Symbol: symbol, Delta: decimal.NewFromFloat(delta)})
}

func (f *scriptedFeed) quote(symbol string, bid, ask float64) {
	f.pending[stream.ChannelQuote] = append(f.pending[stream.ChannelQuote],
		stream.Event{Symbol: symbol, Bid: decimal.NewFromFloat(bid), Ask: decimal.NewFromFloat(ask)})
}

type fakeSink struct {
	receipt   OrderReceipt
	dryRunErr error
	placeErr  error
	dryRuns   []Order
	placed    []Order
}

func (f *fakeSink) DryRun(_ context.Context, order Order) (*OrderReceipt, error) {
	f.dryRuns = append(f.dryRuns, order)
	if f.dryRunErr != nil {
		return nil, f.dryRunErr
	}
	r := f.receipt
	return &r, nil
}

func (f *fakeSink) Place(_ context.Context, order Order) error {
	f.placed = append(f.placed, order)
	return f.placeErr
}

type scriptedUI struct {
	price   *decimal.Decimal // nil takes the rounded mid
	confirm bool
	reviews []Review
}

func (u *scriptedUI) ChooseExpiration(dates []time.Time, def int) (time.Time, error) {
	if def < 0 {
		def = 0
	}
	return dates[def], nil
}

func (u *scriptedUI) LimitPrice(combo ComboQuote) (decimal.Decimal, error) {
	if u.price != nil {
		return *u.price, nil
	}
	return combo.MidRounded(), nil
}

func (u *scriptedUI) ConfirmOrder(review Review) (bool, error) {
	u.reviews = append(u.reviews, review)
	return u.confirm, nil
}

type harness struct {
	orch     *Orchestrator
	feed     *scriptedFeed
	sink     *fakeSink
	ui       *scriptedUI
	feedOpen int
}

func newHarness() *harness {
	h := &harness{
		feed: newScriptedFeed(),
		sink: &fakeSink{receipt: OrderReceipt{
			BuyingPowerChange:   decimal.NewFromInt(-500),
			Fees:                decimal.NewFromFloat(1.14),
			NetLiquidatingValue: decimal.NewFromInt(10000),
		}},
		ui: &scriptedUI{confirm: true},
	}
	h.orch = &Orchestrator{
		Chains:    &fakeChains{chain: testChain()},
		Contracts: fakeContracts{},
		OpenFeed: func(context.Context) (stream.Feed, error) {
			h.feedOpen++
			return h.feed, nil
		},
		Orders:  h.sink,
		UI:      h.ui,
		Timeout: 2 * time.Second,
		Now:     func() time.Time { return time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC) },
	}
	return h
}

func (h *harness) feedAllGreeks() {
	// Put deltas shrink with strike, call deltas grow inverted.
	putDeltas := map[string]float64{
		".P440": -0.10, ".P445": -0.14, ".P450": -0.17,
		".P455": -0.25, ".P460": -0.35, ".P465": -0.45, ".P470": -0.55,
	}
	callDeltas := map[string]float64{
		".C440": 0.85, ".C445": 0.75, ".C450": 0.62,
		".C455": 0.48, ".C460": 0.31, ".C465": 0.18, ".C470": 0.09,
	}
	for sym, d := range putDeltas {
		h.feed.greek(sym, d)
	}
	for sym, d := range callDeltas {
		h.feed.greek(sym, d)
	}
}

func TestBuildPutRejectsStrikeAndDelta(t *testing.T) {
	h := newHarness()
	strike := decimal.NewFromInt(450)
	delta := 16
	_, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike, Delta: &delta,
	})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.feedOpen, "validation failures must not open a feed")
}

func TestBuildPutRejectsNeitherStrikeNorDelta(t *testing.T) {
	h := newHarness()
	_, err := h.orch.BuildPut(context.Background(), OrderParams{Symbol: "SPY", Quantity: -1})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.feedOpen)
}

func TestBuildPutRejectsDeltaOutOfRange(t *testing.T) {
	h := newHarness()
	delta := 120
	_, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Delta: &delta,
	})
	var invalid *InvalidParameterError
	require.ErrorAs(t, err, &invalid)
	assert.Zero(t, h.feedOpen)
}

func TestBuildPutByDeltaSellsNearestStrike(t *testing.T) {
	h := newHarness()
	h.feedAllGreeks()
	h.feed.quote(".P450", 1.00, 1.10)

	delta := 16
	result, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Delta: &delta,
	})
	require.NoError(t, err)
	require.True(t, result.Placed)

	require.Len(t, result.Order.Legs, 1)
	assert.Equal(t, Leg{Symbol: "SPY P450", Quantity: 1, Action: SellToOpen}, result.Order.Legs[0])
	assert.Equal(t, Credit, result.Order.PriceEffect)
	assert.True(t, result.Order.Price.Equal(decimal.NewFromFloat(1.05)), "defaults to rounded mid")
	assert.True(t, h.feed.closed, "feed released after the flow")
	require.Len(t, h.sink.dryRuns, 1)
	require.Len(t, h.sink.placed, 1)
}

func TestBuildCallVerticalByStrike(t *testing.T) {
	h := newHarness()
	h.feed.quote(".C450", 2.00, 2.10)
	h.feed.quote(".C455", 0.90, 1.00)

	strike := decimal.NewFromInt(450)
	result, err := h.orch.BuildCall(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -5, Strike: &strike, Width: 5,
	})
	require.NoError(t, err)

	require.Len(t, result.Order.Legs, 2)
	assert.Equal(t, Leg{Symbol: "SPY C450", Quantity: 5, Action: SellToOpen}, result.Order.Legs[0])
	assert.Equal(t, Leg{Symbol: "SPY C455", Quantity: 5, Action: BuyToOpen}, result.Order.Legs[1])
	assert.True(t, result.Review.Combo.Bid.Equal(decimal.NewFromFloat(1.00)))
	assert.True(t, result.Review.Combo.Ask.Equal(decimal.NewFromFloat(1.20)))
}

func TestBuildPutVerticalProtectiveBelow(t *testing.T) {
	h := newHarness()
	h.feed.quote(".P450", 1.00, 1.10)
	h.feed.quote(".P445", 0.60, 0.70)

	strike := decimal.NewFromInt(450)
	result, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike, Width: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, Leg{Symbol: "SPY P445", Quantity: 1, Action: BuyToOpen}, result.Order.Legs[0])
	assert.Equal(t, Leg{Symbol: "SPY P450", Quantity: 1, Action: SellToOpen}, result.Order.Legs[1])
	// bid = sold.bid - protective.ask
	assert.True(t, result.Review.Combo.Bid.Equal(decimal.NewFromFloat(0.30)))
}

func TestBuildStrangleByDelta(t *testing.T) {
	h := newHarness()
	h.feedAllGreeks()
	h.feed.quote(".P450", 1.00, 1.10)
	h.feed.quote(".C465", 0.85, 0.95)

	delta := 16
	result, err := h.orch.BuildStrangle(context.Background(), StrangleParams{
		Symbol: "SPY", Quantity: -1, Delta: &delta,
	})
	require.NoError(t, err)

	require.Len(t, result.Order.Legs, 2)
	assert.Equal(t, Leg{Symbol: "SPY P450", Quantity: 1, Action: SellToOpen}, result.Order.Legs[0])
	assert.Equal(t, Leg{Symbol: "SPY C465", Quantity: 1, Action: SellToOpen}, result.Order.Legs[1])
	assert.True(t, result.Review.Combo.Bid.Equal(decimal.NewFromFloat(1.85)), "strangle bid sums leg bids")
}

func TestBuildIronCondorByStrikes(t *testing.T) {
	h := newHarness()
	h.feed.quote(".P440", 0.30, 0.40)
	h.feed.quote(".P445", 0.80, 0.90)
	h.feed.quote(".C460", 0.85, 0.95)
	h.feed.quote(".C465", 0.25, 0.35)

	callStrike := decimal.NewFromInt(460)
	putStrike := decimal.NewFromInt(445)
	result, err := h.orch.BuildStrangle(context.Background(), StrangleParams{
		Symbol: "SPY", Quantity: -2, CallStrike: &callStrike, PutStrike: &putStrike, Width: 5,
	})
	require.NoError(t, err)

	require.Len(t, result.Order.Legs, 4)
	assert.Equal(t, Leg{Symbol: "SPY P440", Quantity: 2, Action: BuyToOpen}, result.Order.Legs[0])
	assert.Equal(t, Leg{Symbol: "SPY P445", Quantity: 2, Action: SellToOpen}, result.Order.Legs[1])
	assert.Equal(t, Leg{Symbol: "SPY C460", Quantity: 2, Action: SellToOpen}, result.Order.Legs[2])
	assert.Equal(t, Leg{Symbol: "SPY C465", Quantity: 2, Action: BuyToOpen}, result.Order.Legs[3])
}

func TestBuildIronCondorMissingHedgeStrike(t *testing.T) {
	h := newHarness()
	callStrike := decimal.NewFromInt(470) // hedge at 475 does not exist
	putStrike := decimal.NewFromInt(445)
	_, err := h.orch.BuildStrangle(context.Background(), StrangleParams{
		Symbol: "SPY", Quantity: -1, CallStrike: &callStrike, PutStrike: &putStrike, Width: 5,
	})
	var notFound *chain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDryRunRejectionPropagates(t *testing.T) {
	h := newHarness()
	h.sink.dryRunErr = &OrderRejectedError{Messages: []string{"You do not have permission to sell naked options."}}
	h.feed.quote(".P450", 1.00, 1.10)

	strike := decimal.NewFromInt(450)
	_, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike,
	})
	var rejected *OrderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Contains(t, rejected.Messages[0], "naked options")
	assert.Empty(t, h.sink.placed, "rejected orders are never placed")
}

func TestOperatorDeclineAborts(t *testing.T) {
	h := newHarness()
	h.ui.confirm = false
	h.feed.quote(".P450", 1.00, 1.10)

	strike := decimal.NewFromInt(450)
	result, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike,
	})
	require.NoError(t, err)
	assert.False(t, result.Placed)
	assert.Empty(t, h.sink.placed)
	require.Len(t, h.ui.reviews, 1)
	assert.True(t, h.ui.reviews[0].BuyingPowerPct.Equal(decimal.NewFromInt(5)), "BP%% = 500/10000")
}

func TestQuoteAggregationTimeout(t *testing.T) {
	h := newHarness()
	h.orch.Timeout = 50 * time.Millisecond
	// No quote events ever arrive.
	strike := decimal.NewFromInt(450)
	_, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike,
	})
	var timeout *stream.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, []string{".P450"}, timeout.Missing)
	assert.True(t, h.feed.closed, "feed released on the timeout path")
}

func TestStrikeNotInChain(t *testing.T) {
	h := newHarness()
	strike := decimal.NewFromInt(452)
	_, err := h.orch.BuildPut(context.Background(), OrderParams{
		Symbol: "SPY", Quantity: -1, Strike: &strike,
	})
	var notFound *chain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}
