package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/chain"
)

const expirationDateLayout = "2006-01-02"

// nestedChainResponse mirrors GET /option-chains/{symbol}/nested.
type nestedChainResponse struct {
	Data struct {
		Items []struct {
			UnderlyingSymbol string `json:"underlying-symbol"`
			Expirations      []struct {
				ExpirationDate string `json:"expiration-date"`
				Strikes        []struct {
					StrikePrice        decimal.Decimal `json:"strike-price"`
					Call               string          `json:"call"`
					Put                string          `json:"put"`
					CallStreamerSymbol string          `json:"call-streamer-symbol"`
					PutStreamerSymbol  string          `json:"put-streamer-symbol"`
				} `json:"strikes"`
			} `json:"expirations"`
		} `json:"items"`
	} `json:"data"`
}

// OptionChain retrieves the nested option chain for an underlying and
// returns it sorted by date and strike.
func (c *Client) OptionChain(ctx context.Context, symbol string) (*chain.Chain, error) {
	symbol = strings.ToUpper(symbol)

	path := fmt.Sprintf("/option-chains/%s/nested", symbol)
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch option chain: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var chainResp nestedChainResponse
	if err := json.NewDecoder(resp.Body).Decode(&chainResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chainResp.Data.Items) == 0 {
		return nil, &chain.NotFoundError{What: fmt.Sprintf("option chain for %s", symbol)}
	}

	result := &chain.Chain{Underlying: symbol}
	for _, exp := range chainResp.Data.Items[0].Expirations {
		date, err := time.Parse(expirationDateLayout, exp.ExpirationDate)
		if err != nil {
			return nil, fmt.Errorf("bad expiration date %q: %w", exp.ExpirationDate, err)
		}
		e := chain.Expiration{Date: date}
		for _, s := range exp.Strikes {
			e.Strikes = append(e.Strikes, chain.Strike{
				Price:        s.StrikePrice,
				Call:         s.Call,
				Put:          s.Put,
				CallStreamer: s.CallStreamerSymbol,
				PutStreamer:  s.PutStreamerSymbol,
			})
		}
		result.Expirations = append(result.Expirations, e)
	}
	result.Sort()
	return result, nil
}
