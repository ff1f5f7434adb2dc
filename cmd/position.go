package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jonandersen/tasty/internal/api"
	"github.com/jonandersen/tasty/internal/config"
	"github.com/jonandersen/tasty/internal/keyring"
	"github.com/jonandersen/tasty/internal/output"
)

// positionOptions holds dependencies for the positions command.
type positionOptions struct {
	account  string
	jsonMode bool
	client   *api.Client
}

// preparePositions resolves config and session state before the command
// runs. A pre-set client (tests) short-circuits it.
func preparePositions(opts *positionOptions) error {
	if opts.client != nil {
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

	if cfg.Account == "" {
		return fmt.Errorf("no account configured. Run: tasty configure")
	}

	opts.client = client
	opts.account = cfg.Account
	opts.jsonMode = GetJSONMode()
	return nil
}

// newPositionsCmd creates the positions command with the given options.
func newPositionsCmd(opts *positionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "positions",
		Short: "List open positions",
		Long: `List the account's open positions with their marks and open P/L.

Examples:
  tasty positions          # Table of open positions
  tasty positions --json   # Same as JSON`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return preparePositions(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPositions(cmd, opts)
		},
	}

	cmd.SilenceUsage = true
	return cmd
}

func runPositions(cmd *cobra.Command, opts *positionOptions) error {
	positions, err := opts.client.Positions(cmd.Context(), opts.account)
	if err != nil {
		return err
	}

	if len(positions) == 0 && !opts.jsonMode {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No open positions.")
		return nil
	}

	headers := []string{"Symbol", "Type", "Qty", "Trade", "Mark", "P/L"}
	rows := make([][]string, 0, len(positions))
	total := decimal.Zero
	for _, p := range positions {
		pnl := p.OpenPnL()
		total = total.Add(pnl)
		rows = append(rows, []string{
			p.Symbol,
			p.InstrumentType,
			p.Quantity.String(),
			p.AverageOpenPrice.StringFixed(2),
			p.Mark().StringFixed(2),
			pnl.StringFixed(2),
		})
	}
	if err := output.New(cmd.OutOrStdout(), opts.jsonMode).Table(headers, rows); err != nil {
		return err
	}
	if !opts.jsonMode {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Total P/L: %s\n", total.StringFixed(2))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(newPositionsCmd(&positionOptions{}))
}
