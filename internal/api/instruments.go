package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/strategy"
)

// instrumentsResponse mirrors GET /instruments/equity-options.
type instrumentsResponse struct {
	Data struct {
		Items []struct {
			Symbol      string          `json:"symbol"`
			OptionType  string          `json:"option-type"`
			StrikePrice decimal.Decimal `json:"strike-price"`
		} `json:"items"`
	} `json:"data"`
}

// Options resolves equity option contract symbols into tradable contracts.
func (c *Client) Options(ctx context.Context, symbols []string) ([]strategy.Contract, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	params := url.Values{}
	for _, s := range symbols {
		params.Add("symbol[]", s)
	}
	resp, err := c.GetWithParams(ctx, "/instruments/equity-options", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch instruments: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var instResp instrumentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&instResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	contracts := make([]strategy.Contract, 0, len(instResp.Data.Items))
	for _, item := range instResp.Data.Items {
		side := strategy.Call
		if item.OptionType == "P" {
			side = strategy.Put
		}
		contracts = append(contracts, strategy.Contract{
			Symbol: item.Symbol,
			Type:   side,
			Strike: item.StrikePrice,
		})
	}
	if len(contracts) != len(symbols) {
		return nil, fmt.Errorf("resolved %d of %d contracts", len(contracts), len(symbols))
	}
	return contracts, nil
}
