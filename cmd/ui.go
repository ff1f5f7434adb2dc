package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/strategy"
)

// promptInteractor drives the order flow's interactive decisions on a
// terminal. With skipConfirm set it takes every default and sends the
// order without asking.
type promptInteractor struct {
	out         io.Writer
	prompt      prompter
	skipConfirm bool
}

func newPromptInteractor(out io.Writer, in io.Reader, skipConfirm bool) *promptInteractor {
	return &promptInteractor{
		out:         out,
		prompt:      newTerminalPrompter(in, out),
		skipConfirm: skipConfirm,
	}
}

// ChooseExpiration lists the available expirations and reads a 1-indexed
// choice. Empty input takes the suggested default when there is one.
func (p *promptInteractor) ChooseExpiration(dates []time.Time, def int) (time.Time, error) {
	if len(dates) == 1 {
		return dates[0], nil
	}
	if p.skipConfirm && def >= 0 {
		return dates[def], nil
	}

	_, _ = fmt.Fprintln(p.out, "Expirations:")
	for i, d := range dates {
		marker := " "
		if i == def {
			marker = "*"
		}
		_, _ = fmt.Fprintf(p.out, " %s %d. %s\n", marker, i+1, d.Format("2006-01-02"))
	}

	promptText := "Expiration: "
	if def >= 0 {
		promptText = fmt.Sprintf("Expiration [%d]: ", def+1)
	}
	line, err := p.prompt.ReadLine(promptText)
	if err != nil {
		return time.Time{}, err
	}
	if line == "" {
		if def < 0 {
			return time.Time{}, fmt.Errorf("an expiration is required")
		}
		return dates[def], nil
	}

	idx, err := strconv.Atoi(line)
	if err != nil || idx < 1 || idx > len(dates) {
		return time.Time{}, fmt.Errorf("invalid expiration selection %q", line)
	}
	return dates[idx-1], nil
}

// LimitPrice shows the combo's market and reads a limit price. Empty
// input takes the rounded mid.
func (p *promptInteractor) LimitPrice(combo strategy.ComboQuote) (decimal.Decimal, error) {
	mid := combo.MidRounded()

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"Bid", "Mid", "Ask"})
	table.SetAutoFormatHeaders(false)
	table.Append([]string{combo.Bid.StringFixed(2), mid.StringFixed(2), combo.Ask.StringFixed(2)})
	table.Render()

	if p.skipConfirm {
		return mid, nil
	}

	line, err := p.prompt.ReadLine(fmt.Sprintf("Limit price [%s]: ", mid.StringFixed(2)))
	if err != nil {
		return decimal.Decimal{}, err
	}
	if line == "" {
		return mid, nil
	}
	price, err := decimal.NewFromString(line)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid price %q: %w", line, err)
	}
	return price, nil
}

// ConfirmOrder shows the dry-run review and asks for the final go-ahead.
func (p *promptInteractor) ConfirmOrder(review strategy.Review) (bool, error) {
	_, _ = fmt.Fprintf(p.out, "%s  %s\n", review.Underlying, review.Expiration.Format("2006-01-02"))

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"Action", "Qty", "Symbol"})
	table.SetAutoFormatHeaders(false)
	for _, leg := range review.Legs {
		table.Append([]string{string(leg.Action), strconv.Itoa(leg.Quantity), leg.Symbol})
	}
	table.Render()

	_, _ = fmt.Fprintf(p.out, "Price: %s %s\n", review.Price.StringFixed(2), review.PriceEffect)
	bp := fmt.Sprintf("Buying power change: %s", review.BuyingPowerChange.StringFixed(2))
	if !review.BuyingPowerPct.IsZero() {
		bp += fmt.Sprintf(" (%s%% of net liq)", review.BuyingPowerPct.String())
	}
	_, _ = fmt.Fprintln(p.out, bp)
	_, _ = fmt.Fprintf(p.out, "Fees: %s\n", review.Fees.StringFixed(2))
	for _, warning := range review.Warnings {
		_, _ = fmt.Fprintf(p.out, "Warning: %s\n", warning)
	}

	if p.skipConfirm {
		return true, nil
	}

	answer, err := p.prompt.ReadLine("Send order? [y/N]: ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
