package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jonandersen/tasty/internal/api"
	"github.com/jonandersen/tasty/internal/config"
	"github.com/jonandersen/tasty/internal/keyring"
	"github.com/jonandersen/tasty/internal/output"
	"github.com/jonandersen/tasty/internal/strategy"
	"github.com/jonandersen/tasty/internal/stream"
)

// strategyOptions holds dependencies for the option subcommands.
// This allows for dependency injection in tests.
type strategyOptions struct {
	baseURL      string
	sessionToken string
	account      string
	streamerURL  string
	jsonMode     bool
	client       *api.Client

	// Overridable in tests; nil picks the DXLink feed and the terminal
	// prompter.
	openFeed strategy.FeedOpener
	ui       strategy.Interactor
	now      func() time.Time
}

// apiClient returns the prepared client, or builds a bare one from the
// token fields tests set directly.
func (opts *strategyOptions) apiClient() *api.Client {
	if opts.client != nil {
		return opts.client
	}
	return api.NewClient(opts.baseURL, opts.sessionToken)
}

// prepareStrategy resolves config and session state before a subcommand
// runs. Pre-set session state (tests) short-circuits it.
func prepareStrategy(opts *strategyOptions, needAccount bool) error {
	if opts.client != nil || opts.sessionToken != "" {
		return nil
	}

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store := keyring.NewEnvStore(keyring.NewSystemStore())
	client, err := api.NewClientWithAuth(store, cfg.APIBaseURL, cfg.Username)
	if err != nil {
		return err
	}

	if needAccount && cfg.Account == "" {
		return fmt.Errorf("no account configured. Run: tasty configure")
	}

	opts.baseURL = cfg.APIBaseURL
	opts.client = client
	opts.account = cfg.Account
	opts.streamerURL = cfg.StreamerURL
	opts.jsonMode = GetJSONMode()
	return nil
}

// dxlinkOpener dials the streamer with a fresh quote token. The API's
// advertised URL wins over the configured fallback.
func dxlinkOpener(client *api.Client, fallbackURL string) strategy.FeedOpener {
	return func(ctx context.Context) (stream.Feed, error) {
		token, streamerURL, err := client.QuoteToken(ctx)
		if err != nil {
			return nil, err
		}
		if streamerURL == "" {
			streamerURL = fallbackURL
		}
		return stream.DialDXLink(ctx, streamerURL, token)
	}
}

func newOrchestrator(cmd *cobra.Command, opts *strategyOptions, skipConfirm bool) *strategy.Orchestrator {
	client := opts.apiClient()

	openFeed := opts.openFeed
	if openFeed == nil {
		openFeed = dxlinkOpener(client, opts.streamerURL)
	}
	ui := opts.ui
	if ui == nil {
		ui = newPromptInteractor(cmd.OutOrStdout(), cmd.InOrStdin(), skipConfirm)
	}

	return &strategy.Orchestrator{
		Chains:    client,
		Contracts: client,
		OpenFeed:  openFeed,
		Orders:    api.NewOrderService(client, opts.account),
		UI:        ui,
		Now:       opts.now,
	}
}

// singleFlags are the shared flags of the call and put subcommands.
type singleFlags struct {
	quantity    int
	strike      string
	delta       int
	width       int
	gtc         bool
	weeklies    bool
	skipConfirm bool
}

func bindSingleFlags(cmd *cobra.Command, flags *singleFlags) {
	cmd.Flags().IntVarP(&flags.quantity, "quantity", "q", 0, "Contracts to trade; negative sells to open (required)")
	cmd.Flags().StringVarP(&flags.strike, "strike", "s", "", "Exact strike price")
	cmd.Flags().IntVarP(&flags.delta, "delta", "d", 0, "Target delta in whole points")
	cmd.Flags().IntVarP(&flags.width, "width", "w", 0, "Strike-point distance to a protective leg (makes a vertical)")
	cmd.Flags().BoolVar(&flags.gtc, "gtc", false, "Good-til-cancelled instead of a day order")
	cmd.Flags().BoolVar(&flags.weeklies, "weeklies", false, "Include weekly expirations")
	cmd.Flags().BoolVarP(&flags.skipConfirm, "yes", "y", false, "Take defaults and send without confirmation")
	_ = cmd.MarkFlagRequired("quantity")
}

// singleParams converts flags into orchestrator parameters. Strike and
// delta stay nil unless their flags were set so the orchestrator can
// enforce its exactly-one rule.
func singleParams(cmd *cobra.Command, flags singleFlags) (strategy.OrderParams, error) {
	params := strategy.OrderParams{
		Quantity: flags.quantity,
		Width:    flags.width,
		GTC:      flags.gtc,
		Weeklies: flags.weeklies,
	}
	if cmd.Flags().Changed("strike") {
		strike, err := decimal.NewFromString(flags.strike)
		if err != nil {
			return params, fmt.Errorf("invalid strike %q: %w", flags.strike, err)
		}
		params.Strike = &strike
	}
	if cmd.Flags().Changed("delta") {
		delta := flags.delta
		params.Delta = &delta
	}
	return params, nil
}

func newCallCmd(opts *strategyOptions) *cobra.Command {
	var flags singleFlags

	cmd := &cobra.Command{
		Use:   "call SYMBOL",
		Short: "Buy or sell a call, optionally as a vertical",
		Long: `Build a call order against live quotes and submit it after a dry-run review.

Pick the strike either exactly with --strike or by target delta with --delta.
A negative quantity sells to open. Adding --width turns the single into a
vertical with a protective strike that many points further out.

Examples:
  tasty option call SPY -q 1 -d 30          # Buy one 30-delta call
  tasty option call SPY -q -1 -d 16 -w 5    # Sell a 16-delta call vertical, 5 wide
  tasty option call SPY -q 1 -s 450 --gtc   # Buy the 450 call, GTC`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareStrategy(opts, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := singleParams(cmd, flags)
			if err != nil {
				return err
			}
			params.Symbol = args[0]
			return runSingle(cmd, opts, strategy.Call, params, flags.skipConfirm)
		},
	}

	bindSingleFlags(cmd, &flags)
	cmd.SilenceUsage = true
	return cmd
}

func newPutCmd(opts *strategyOptions) *cobra.Command {
	var flags singleFlags

	cmd := &cobra.Command{
		Use:   "put SYMBOL",
		Short: "Buy or sell a put, optionally as a vertical",
		Long: `Build a put order against live quotes and submit it after a dry-run review.

Pick the strike either exactly with --strike or by target delta with --delta.
A negative quantity sells to open. Adding --width turns the single into a
vertical with a protective strike that many points further out.

Examples:
  tasty option put SPY -q -1 -d 16          # Sell one 16-delta put
  tasty option put SPY -q -1 -d 16 -w 5     # Sell a 16-delta put vertical, 5 wide
  tasty option put SPY -q 1 -s 440          # Buy the 440 put`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareStrategy(opts, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := singleParams(cmd, flags)
			if err != nil {
				return err
			}
			params.Symbol = args[0]
			return runSingle(cmd, opts, strategy.Put, params, flags.skipConfirm)
		},
	}

	bindSingleFlags(cmd, &flags)
	cmd.SilenceUsage = true
	return cmd
}

func runSingle(cmd *cobra.Command, opts *strategyOptions, side strategy.OptionType, params strategy.OrderParams, skipConfirm bool) error {
	orch := newOrchestrator(cmd, opts, skipConfirm)

	var result *strategy.Result
	var err error
	if side == strategy.Call {
		result, err = orch.BuildCall(cmd.Context(), params)
	} else {
		result, err = orch.BuildPut(cmd.Context(), params)
	}
	if err != nil {
		return err
	}
	return printResult(cmd, opts, result)
}

func newStrangleCmd(opts *strategyOptions) *cobra.Command {
	var flags struct {
		quantity    int
		callStrike  string
		putStrike   string
		delta       int
		width       int
		gtc         bool
		weeklies    bool
		skipConfirm bool
	}

	cmd := &cobra.Command{
		Use:   "strangle SYMBOL",
		Short: "Buy or sell a strangle or iron condor",
		Long: `Build a two-sided order against live quotes and submit it after a dry-run
review.

Pick strikes either exactly with --call and --put together, or symmetrically
by target delta with --delta. A negative quantity sells both sides to open.
Adding --width hedges each side with a protective strike that many points
further out, making an iron condor.

Examples:
  tasty option strangle SPY -q -1 -d 16           # Sell a 16-delta strangle
  tasty option strangle SPY -q -1 -d 16 -w 5      # Sell an iron condor, wings 5 out
  tasty option strangle SPY -q -1 -c 465 -p 445   # Sell the 445/465 strangle`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareStrategy(opts, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			params := strategy.StrangleParams{
				Symbol:   args[0],
				Quantity: flags.quantity,
				Width:    flags.width,
				GTC:      flags.gtc,
				Weeklies: flags.weeklies,
			}
			if cmd.Flags().Changed("call") {
				strike, err := decimal.NewFromString(flags.callStrike)
				if err != nil {
					return fmt.Errorf("invalid call strike %q: %w", flags.callStrike, err)
				}
				params.CallStrike = &strike
			}
			if cmd.Flags().Changed("put") {
				strike, err := decimal.NewFromString(flags.putStrike)
				if err != nil {
					return fmt.Errorf("invalid put strike %q: %w", flags.putStrike, err)
				}
				params.PutStrike = &strike
			}
			if cmd.Flags().Changed("delta") {
				delta := flags.delta
				params.Delta = &delta
			}

			orch := newOrchestrator(cmd, opts, flags.skipConfirm)
			result, err := orch.BuildStrangle(cmd.Context(), params)
			if err != nil {
				return err
			}
			return printResult(cmd, opts, result)
		},
	}

	cmd.Flags().IntVarP(&flags.quantity, "quantity", "q", 0, "Contracts per side; negative sells to open (required)")
	cmd.Flags().StringVarP(&flags.callStrike, "call", "c", "", "Exact call strike price")
	cmd.Flags().StringVarP(&flags.putStrike, "put", "p", "", "Exact put strike price")
	cmd.Flags().IntVarP(&flags.delta, "delta", "d", 0, "Target delta for both sides")
	cmd.Flags().IntVarP(&flags.width, "width", "w", 0, "Wing distance in strike points (makes an iron condor)")
	cmd.Flags().BoolVar(&flags.gtc, "gtc", false, "Good-til-cancelled instead of a day order")
	cmd.Flags().BoolVar(&flags.weeklies, "weeklies", false, "Include weekly expirations")
	cmd.Flags().BoolVarP(&flags.skipConfirm, "yes", "y", false, "Take defaults and send without confirmation")
	_ = cmd.MarkFlagRequired("quantity")
	cmd.SilenceUsage = true
	return cmd
}

func newChainCmd(opts *strategyOptions) *cobra.Command {
	var strikes int
	var weeklies bool

	cmd := &cobra.Command{
		Use:   "chain SYMBOL",
		Short: "Show live quotes and greeks around the money",
		Long: `Show a live two-sided view of the option chain for one expiration,
covering N strikes either side of the underlying's mark.

Examples:
  tasty option chain SPY
  tasty option chain SPY -n 5 --weeklies`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareStrategy(opts, false)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChain(cmd, opts, args[0], strikes, weeklies)
		},
	}

	cmd.Flags().IntVarP(&strikes, "strikes", "n", 10, "Strikes to show either side of the money")
	cmd.Flags().BoolVar(&weeklies, "weeklies", false, "Include weekly expirations")
	cmd.SilenceUsage = true
	return cmd
}

func runChain(cmd *cobra.Command, opts *strategyOptions, symbol string, strikes int, weeklies bool) error {
	// JSON mode takes the default expiration instead of prompting.
	orch := newOrchestrator(cmd, opts, opts.jsonMode)

	view, err := orch.ChainSnapshot(cmd.Context(), symbol, strikes, weeklies)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !opts.jsonMode {
		_, _ = fmt.Fprintf(out, "%s  %s  mark %s\n",
			view.Underlying, view.Expiration.Format("2006-01-02"), view.UnderlyingMark.StringFixed(2))
	}

	headers := []string{"Call Bid", "Call Ask", "Call Delta", "Strike", "Put Bid", "Put Ask", "Put Delta"}
	rows := make([][]string, 0, len(view.Rows))
	for i, row := range view.Rows {
		strike := row.Strike.String()
		if i == view.ATMIndex {
			strike = "> " + strike
		}
		rows = append(rows, []string{
			row.CallBid.StringFixed(2),
			row.CallAsk.StringFixed(2),
			row.CallDelta.StringFixed(2),
			strike,
			row.PutBid.StringFixed(2),
			row.PutAsk.StringFixed(2),
			row.PutDelta.StringFixed(2),
		})
	}
	return output.New(out, opts.jsonMode).Table(headers, rows)
}

func printResult(cmd *cobra.Command, opts *strategyOptions, result *strategy.Result) error {
	if opts.jsonMode {
		legs := make([]map[string]any, 0, len(result.Order.Legs))
		for _, leg := range result.Order.Legs {
			legs = append(legs, map[string]any{
				"symbol":   leg.Symbol,
				"quantity": leg.Quantity,
				"action":   leg.Action,
			})
		}
		return output.New(cmd.OutOrStdout(), true).Print(map[string]any{
			"underlying":          result.Review.Underlying,
			"expiration":          result.Review.Expiration.Format("2006-01-02"),
			"price":               result.Order.Price.StringFixed(2),
			"price-effect":        result.Order.PriceEffect,
			"time-in-force":       result.Order.TimeInForce,
			"legs":                legs,
			"buying-power-change": result.Review.BuyingPowerChange.String(),
			"fees":                result.Review.Fees.String(),
			"warnings":            result.Review.Warnings,
			"placed":              result.Placed,
		})
	}

	if result.Placed {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Order placed.")
	} else {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Order not sent.")
	}
	return nil
}

func init() {
	opts := &strategyOptions{}

	optionCmd := &cobra.Command{
		Use:   "option",
		Short: "Build and submit options strategies",
	}
	optionCmd.AddCommand(newCallCmd(opts))
	optionCmd.AddCommand(newPutCmd(opts))
	optionCmd.AddCommand(newStrangleCmd(opts))
	optionCmd.AddCommand(newChainCmd(opts))
	rootCmd.AddCommand(optionCmd)
}
