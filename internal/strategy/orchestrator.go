package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/chain"
	"github.com/jonandersen/tasty/internal/stream"
)

// ChainProvider fetches an underlying's option chain.
type ChainProvider interface {
	OptionChain(ctx context.Context, symbol string) (*chain.Chain, error)
}

// ContractResolver turns contract symbols into tradable contracts.
type ContractResolver interface {
	Options(ctx context.Context, symbols []string) ([]Contract, error)
}

// OrderReceipt is the brokerage's answer to a dry-run: the order's margin
// and fee impact plus any non-fatal warnings.
type OrderReceipt struct {
	BuyingPowerChange   decimal.Decimal
	Fees                decimal.Decimal
	NetLiquidatingValue decimal.Decimal
	Warnings            []string
}

// OrderSink validates and submits orders.
type OrderSink interface {
	DryRun(ctx context.Context, order Order) (*OrderReceipt, error)
	Place(ctx context.Context, order Order) error
}

// Review is everything the operator sees before the final go/no-go.
type Review struct {
	Underlying        string
	Expiration        time.Time
	Quantity          int
	Price             decimal.Decimal
	PriceEffect       PriceEffect
	Combo             ComboQuote
	Legs              []Leg
	BuyingPowerChange decimal.Decimal
	BuyingPowerPct    decimal.Decimal
	Fees              decimal.Decimal
	Warnings          []string
}

// Interactor is the operator-facing side of the flow. Implementations
// prompt; tests script.
type Interactor interface {
	// ChooseExpiration picks one of dates; def indexes the suggested
	// default, -1 when there is none.
	ChooseExpiration(dates []time.Time, def int) (time.Time, error)
	// LimitPrice asks for the order's limit price given the combo's
	// current market. Implementations default to the rounded mid.
	LimitPrice(combo ComboQuote) (decimal.Decimal, error)
	// ConfirmOrder is the final gate before live submission.
	ConfirmOrder(review Review) (bool, error)
}

// FeedOpener dials the streaming feed. Deferred until parameters are
// validated so a bad invocation never creates a subscription.
type FeedOpener func(ctx context.Context) (stream.Feed, error)

// Orchestrator drives a strategy order from parameters to submission.
// All collaborators are injected; the zero value is not usable.
type Orchestrator struct {
	Chains    ChainProvider
	Contracts ContractResolver
	OpenFeed  FeedOpener
	Orders    OrderSink
	UI        Interactor
	Timeout   time.Duration
	Now       func() time.Time
}

// OrderParams are the operator inputs for a single option or a vertical
// spread. Exactly one of Strike and Delta must be set; Width > 0 turns the
// single into a vertical with the protective strike Width points away.
type OrderParams struct {
	Symbol   string
	Quantity int
	Strike   *decimal.Decimal
	Delta    *int
	Width    int
	GTC      bool
	Weeklies bool
}

// StrangleParams are the operator inputs for a strangle or, with Width,
// an iron condor. Either both strikes or a shared delta target must be
// given.
type StrangleParams struct {
	Symbol     string
	Quantity   int
	CallStrike *decimal.Decimal
	PutStrike  *decimal.Decimal
	Delta      *int
	Width      int
	GTC        bool
	Weeklies   bool
}

// Result is the outcome of a completed flow. Placed is false when the
// operator declined at review.
type Result struct {
	Order  Order
	Review Review
	Placed bool
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// BuildCall runs the flow for a long/short call or call vertical.
func (o *Orchestrator) BuildCall(ctx context.Context, p OrderParams) (*Result, error) {
	return o.buildSingle(ctx, p, Call)
}

// BuildPut runs the flow for a long/short put or put vertical.
func (o *Orchestrator) BuildPut(ctx context.Context, p OrderParams) (*Result, error) {
	return o.buildSingle(ctx, p, Put)
}

func (o *Orchestrator) buildSingle(ctx context.Context, p OrderParams, side OptionType) (*Result, error) {
	if err := validateSingleParams(p); err != nil {
		return nil, err
	}

	exp, err := o.chooseExpiration(ctx, p.Symbol, p.Weeklies)
	if err != nil {
		return nil, err
	}

	feed, err := o.OpenFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer feed.Close()

	var selected chain.Strike
	if p.Strike != nil {
		selected, err = exp.StrikeAt(*p.Strike)
	} else {
		selected, err = o.strikeByDelta(ctx, feed, exp, side, *p.Delta)
	}
	if err != nil {
		return nil, err
	}

	kind := Single
	strikes := []chain.Strike{selected}
	if p.Width > 0 {
		width := decimal.NewFromInt(int64(p.Width))
		farPrice := selected.Price.Add(width)
		kind = VerticalCall
		if side == Put {
			farPrice = selected.Price.Sub(width)
			kind = VerticalPut
		}
		far, err := exp.StrikeAt(farPrice)
		if err != nil {
			return nil, err
		}
		// finish expects ascending strikes; the put's protective strike
		// sits below the selected one.
		if side == Put {
			strikes = []chain.Strike{far, selected}
		} else {
			strikes = append(strikes, far)
		}
	}

	return o.finish(ctx, feed, finishInputs{
		underlying: p.Symbol,
		expiration: exp.Date,
		kind:       kind,
		quantity:   p.Quantity,
		gtc:        p.GTC,
		legSymbols: sideSymbols(strikes, side),
	})
}

// BuildStrangle runs the flow for a strangle or, with Width, an iron
// condor.
func (o *Orchestrator) BuildStrangle(ctx context.Context, p StrangleParams) (*Result, error) {
	if err := validateStrangleParams(p); err != nil {
		return nil, err
	}

	exp, err := o.chooseExpiration(ctx, p.Symbol, p.Weeklies)
	if err != nil {
		return nil, err
	}

	feed, err := o.OpenFeed(ctx)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	defer feed.Close()

	var callStrike, putStrike chain.Strike
	if p.Delta != nil {
		callStrike, putStrike, err = o.strangleStrikesByDelta(ctx, feed, exp, *p.Delta)
	} else {
		if callStrike, err = exp.StrikeAt(*p.CallStrike); err == nil {
			putStrike, err = exp.StrikeAt(*p.PutStrike)
		}
	}
	if err != nil {
		return nil, err
	}

	kind := Strangle
	legSymbols := []legSymbol{
		strikeSymbol(putStrike, Put),
		strikeSymbol(callStrike, Call),
	}
	if p.Width > 0 {
		width := decimal.NewFromInt(int64(p.Width))
		putHedge, err := exp.StrikeAt(putStrike.Price.Sub(width))
		if err != nil {
			return nil, err
		}
		callHedge, err := exp.StrikeAt(callStrike.Price.Add(width))
		if err != nil {
			return nil, err
		}
		kind = IronCondor
		legSymbols = []legSymbol{
			strikeSymbol(putHedge, Put),
			strikeSymbol(putStrike, Put),
			strikeSymbol(callStrike, Call),
			strikeSymbol(callHedge, Call),
		}
	}

	return o.finish(ctx, feed, finishInputs{
		underlying: p.Symbol,
		expiration: exp.Date,
		kind:       kind,
		quantity:   p.Quantity,
		gtc:        p.GTC,
		legSymbols: legSymbols,
	})
}

// legSymbol pairs one leg's tradable contract symbol with its feed symbol.
type legSymbol struct {
	contract string
	streamer string
}

type finishInputs struct {
	underlying string
	expiration time.Time
	kind       Kind
	quantity   int
	gtc        bool
	legSymbols []legSymbol // ascending by strike
}

// finish carries the flow from resolved strikes through pricing, review,
// and submission.
func (o *Orchestrator) finish(ctx context.Context, feed stream.Feed, in finishInputs) (*Result, error) {
	signs, err := Signs(in.kind)
	if err != nil {
		return nil, err
	}
	if len(signs) != len(in.legSymbols) {
		return nil, &InvalidCombinationError{Reason: fmt.Sprintf(
			"%s resolved to %d legs, expected %d", in.kind, len(in.legSymbols), len(signs))}
	}

	streamers := make([]string, len(in.legSymbols))
	legQuotes := make([]LegQuote, len(in.legSymbols))
	for i, ls := range in.legSymbols {
		streamers[i] = ls.streamer
		legQuotes[i] = LegQuote{Symbol: ls.streamer, Sign: signs[i]}
	}

	events, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelQuote, streamers, "", o.Timeout)
	if err != nil {
		return nil, err
	}
	combo, err := PriceCombo(legMarkets(events), legQuotes)
	if err != nil {
		return nil, err
	}

	price, err := o.UI.LimitPrice(combo)
	if err != nil {
		return nil, err
	}

	contractSymbols := make([]string, len(in.legSymbols))
	for i, ls := range in.legSymbols {
		contractSymbols[i] = ls.contract
	}
	contracts, err := o.Contracts.Options(ctx, contractSymbols)
	if err != nil {
		return nil, fmt.Errorf("resolve contracts: %w", err)
	}
	legs, err := BuildLegs(in.kind, in.quantity, contracts)
	if err != nil {
		return nil, err
	}

	order := NewOrder(legs, price, in.quantity, in.gtc)
	receipt, err := o.Orders.DryRun(ctx, order)
	if err != nil {
		return nil, err
	}

	review := Review{
		Underlying:        in.underlying,
		Expiration:        in.expiration,
		Quantity:          in.quantity,
		Price:             price,
		PriceEffect:       order.PriceEffect,
		Combo:             combo,
		Legs:              legs,
		BuyingPowerChange: receipt.BuyingPowerChange,
		Fees:              receipt.Fees,
		Warnings:          receipt.Warnings,
	}
	if !receipt.NetLiquidatingValue.IsZero() {
		review.BuyingPowerPct = receipt.BuyingPowerChange.Abs().
			Div(receipt.NetLiquidatingValue).Mul(decimal.NewFromInt(100)).Round(2)
	}

	ok, err := o.UI.ConfirmOrder(review)
	if err != nil {
		return nil, err
	}
	result := &Result{Order: order, Review: review}
	if !ok {
		return result, nil
	}
	if err := o.Orders.Place(ctx, order); err != nil {
		return nil, err
	}
	result.Placed = true
	return result, nil
}

func (o *Orchestrator) chooseExpiration(ctx context.Context, symbol string, weeklies bool) (*chain.Expiration, error) {
	ch, err := o.Chains.OptionChain(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fetch option chain: %w", err)
	}
	dates := ch.Dates(weeklies)
	if len(dates) == 0 {
		return nil, &NoMatchError{Reason: fmt.Sprintf("no expirations for %s", symbol)}
	}
	date, err := o.UI.ChooseExpiration(dates, chain.DefaultMonthly(dates, o.now()))
	if err != nil {
		return nil, err
	}
	return ch.Expiration(date)
}

// strikeByDelta aggregates greeks for every strike on one side of the
// expiration and picks the strike whose delta lands nearest the target.
func (o *Orchestrator) strikeByDelta(ctx context.Context, feed stream.Feed, exp *chain.Expiration, side OptionType, target int) (chain.Strike, error) {
	symbols := make([]string, len(exp.Strikes))
	for i, s := range exp.Strikes {
		symbols[i] = streamerFor(s, side)
	}
	events, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelGreeks, symbols, "", o.Timeout)
	if err != nil {
		return chain.Strike{}, err
	}

	readings := make([]GreekReading, len(symbols))
	for i, sym := range symbols {
		readings[i] = GreekReading{Symbol: sym, Delta: events[sym].Delta}
	}
	sign := CallSign
	if side == Put {
		sign = PutSign
	}
	chosen, err := SelectByDelta(readings, decimal.NewFromInt(int64(target)).Abs(), sign)
	if err != nil {
		return chain.Strike{}, err
	}
	for _, s := range exp.Strikes {
		if streamerFor(s, side) == chosen {
			return s, nil
		}
	}
	return chain.Strike{}, &NoMatchError{Reason: fmt.Sprintf("no strike for feed symbol %s", chosen)}
}

// strangleStrikesByDelta aggregates greeks for both sides in one pass and
// selects each side against the shared target.
func (o *Orchestrator) strangleStrikesByDelta(ctx context.Context, feed stream.Feed, exp *chain.Expiration, target int) (callStrike, putStrike chain.Strike, err error) {
	callSyms := make([]string, len(exp.Strikes))
	putSyms := make([]string, len(exp.Strikes))
	for i, s := range exp.Strikes {
		callSyms[i] = s.CallStreamer
		putSyms[i] = s.PutStreamer
	}
	all := append(append([]string(nil), callSyms...), putSyms...)
	events, err := stream.CollectWithTimeout(ctx, feed, stream.ChannelGreeks, all, "", o.Timeout)
	if err != nil {
		return chain.Strike{}, chain.Strike{}, err
	}

	scaled := decimal.NewFromInt(int64(target)).Abs()
	callChosen, err := SelectByDelta(readingsFor(callSyms, events), scaled, CallSign)
	if err != nil {
		return chain.Strike{}, chain.Strike{}, err
	}
	putChosen, err := SelectByDelta(readingsFor(putSyms, events), scaled, PutSign)
	if err != nil {
		return chain.Strike{}, chain.Strike{}, err
	}
	for _, s := range exp.Strikes {
		if s.CallStreamer == callChosen {
			callStrike = s
		}
		if s.PutStreamer == putChosen {
			putStrike = s
		}
	}
	return callStrike, putStrike, nil
}

func readingsFor(symbols []string, events map[string]stream.Event) []GreekReading {
	readings := make([]GreekReading, len(symbols))
	for i, sym := range symbols {
		readings[i] = GreekReading{Symbol: sym, Delta: events[sym].Delta}
	}
	return readings
}

func legMarkets(events map[string]stream.Event) map[string]LegMarket {
	quotes := make(map[string]LegMarket, len(events))
	for sym, ev := range events {
		quotes[sym] = LegMarket{Bid: ev.Bid, Ask: ev.Ask}
	}
	return quotes
}

func streamerFor(s chain.Strike, side OptionType) string {
	if side == Put {
		return s.PutStreamer
	}
	return s.CallStreamer
}

func strikeSymbol(s chain.Strike, side OptionType) legSymbol {
	if side == Put {
		return legSymbol{contract: s.Put, streamer: s.PutStreamer}
	}
	return legSymbol{contract: s.Call, streamer: s.CallStreamer}
}

func sideSymbols(strikes []chain.Strike, side OptionType) []legSymbol {
	out := make([]legSymbol, len(strikes))
	for i, s := range strikes {
		out[i] = strikeSymbol(s, side)
	}
	return out
}

func validateSingleParams(p OrderParams) error {
	if p.Symbol == "" {
		return &InvalidParameterError{Reason: "symbol is required"}
	}
	if p.Quantity == 0 {
		return &InvalidParameterError{Reason: "quantity must be non-zero"}
	}
	if p.Width < 0 {
		return &InvalidParameterError{Reason: "width must be positive"}
	}
	if (p.Strike != nil) == (p.Delta != nil) {
		return &InvalidParameterError{Reason: "exactly one of strike and delta is required"}
	}
	if p.Delta != nil {
		return ValidateDelta(*p.Delta)
	}
	return nil
}

func validateStrangleParams(p StrangleParams) error {
	if p.Symbol == "" {
		return &InvalidParameterError{Reason: "symbol is required"}
	}
	if p.Quantity == 0 {
		return &InvalidParameterError{Reason: "quantity must be non-zero"}
	}
	if p.Width < 0 {
		return &InvalidParameterError{Reason: "width must be positive"}
	}
	strikes := p.CallStrike != nil && p.PutStrike != nil
	if p.Delta != nil {
		if p.CallStrike != nil || p.PutStrike != nil {
			return &InvalidParameterError{Reason: "strikes and delta are mutually exclusive"}
		}
		return ValidateDelta(*p.Delta)
	}
	if !strikes {
		return &InvalidParameterError{Reason: "either both strikes or a delta target is required"}
	}
	return nil
}
