package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonandersen/tasty/internal/api"
	"github.com/jonandersen/tasty/internal/config"
	"github.com/jonandersen/tasty/internal/keyring"
	"github.com/jonandersen/tasty/internal/output"
)

// orderOptions holds dependencies for the order subcommands.
type orderOptions struct {
	baseURL      string
	sessionToken string
	account      string
	jsonMode     bool
	client       *api.Client
}

// apiClient returns the prepared client, or builds a bare one from the
// token fields tests set directly.
func (opts *orderOptions) apiClient() *api.Client {
	if opts.client != nil {
		return opts.client
	}
	return api.NewClient(opts.baseURL, opts.sessionToken)
}

// prepareOrder resolves config and session state before a subcommand
// runs. Pre-set session state (tests) short-circuits it.
func prepareOrder(opts *orderOptions) error {
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

	if cfg.Account == "" {
		return fmt.Errorf("no account configured. Run: tasty configure")
	}

	opts.baseURL = cfg.APIBaseURL
	opts.client = client
	opts.account = cfg.Account
	opts.jsonMode = GetJSONMode()
	return nil
}

// newOrderCmd creates the parent order command.
func newOrderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Manage working orders",
		Long: `List and cancel the account's working orders.

Examples:
  tasty order list              # List live orders
  tasty order cancel 42 --yes   # Cancel order 42`,
	}

	return cmd
}

// newOrderListCmd creates the list subcommand with the given options.
func newOrderListCmd(opts *orderOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List live orders",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareOrder(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderList(cmd, opts)
		},
	}

	cmd.SilenceUsage = true
	return cmd
}

func runOrderList(cmd *cobra.Command, opts *orderOptions) error {
	svc := api.NewOrderService(opts.apiClient(), opts.account)
	orders, err := svc.Live(cmd.Context())
	if err != nil {
		return err
	}

	if len(orders) == 0 && !opts.jsonMode {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No live orders.")
		return nil
	}

	headers := []string{"ID", "Underlying", "Status", "TIF", "Price", "Legs"}
	rows := make([][]string, 0, len(orders))
	for _, order := range orders {
		legs := make([]string, 0, len(order.Legs))
		for _, leg := range order.Legs {
			legs = append(legs, fmt.Sprintf("%s %d %s", leg.Action, leg.Quantity, leg.Symbol))
		}
		rows = append(rows, []string{
			strconv.Itoa(order.ID),
			order.UnderlyingSymbol,
			order.Status,
			order.TimeInForce,
			fmt.Sprintf("%s %s", order.Price.StringFixed(2), order.PriceEffect),
			strings.Join(legs, ", "),
		})
	}
	return output.New(cmd.OutOrStdout(), opts.jsonMode).Table(headers, rows)
}

// newOrderCancelCmd creates the cancel subcommand with the given options.
func newOrderCancelCmd(opts *orderOptions) *cobra.Command {
	var skipConfirm bool

	cmd := &cobra.Command{
		Use:   "cancel ORDER_ID",
		Short: "Cancel a working order",
		Long: `Request cancellation of a working order by its numeric ID.

Examples:
  tasty order cancel 42         # Prompts before cancelling
  tasty order cancel 42 --yes   # Cancels without prompting`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return prepareOrder(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderCancel(cmd, opts, args[0], skipConfirm)
		},
	}

	cmd.Flags().BoolVarP(&skipConfirm, "yes", "y", false, "Skip confirmation prompt")
	cmd.SilenceUsage = true
	return cmd
}

func runOrderCancel(cmd *cobra.Command, opts *orderOptions, arg string, skipConfirm bool) error {
	id, err := strconv.Atoi(arg)
	if err != nil {
		return fmt.Errorf("invalid order id %q", arg)
	}

	if !skipConfirm {
		prompt := newTerminalPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
		answer, err := prompt.ReadLine(fmt.Sprintf("Cancel order %d? [y/N]: ", id))
		if err != nil {
			return err
		}
		if a := strings.ToLower(answer); a != "y" && a != "yes" {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Cancel aborted.")
			return nil
		}
	}

	svc := api.NewOrderService(opts.apiClient(), opts.account)
	if err := svc.Cancel(cmd.Context(), id); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Cancel requested for order %d.\n", id)
	return nil
}

func init() {
	opts := &orderOptions{}

	orderCmd := newOrderCmd()
	orderCmd.AddCommand(newOrderListCmd(opts))
	orderCmd.AddCommand(newOrderCancelCmd(opts))
	rootCmd.AddCommand(orderCmd)
}
