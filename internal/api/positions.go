package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Position is one open position in an account. Quantity is signed:
// short positions carry a negative quantity.
type Position struct {
	Symbol           string
	InstrumentType   string
	UnderlyingSymbol string
	Quantity         decimal.Decimal
	AverageOpenPrice decimal.Decimal
	ClosePrice       decimal.Decimal
	MarkPrice        decimal.Decimal
	Multiplier       decimal.Decimal
}

// Mark returns the price to value the position at: the API's mark when
// present, the prior close otherwise.
func (p Position) Mark() decimal.Decimal {
	if !p.MarkPrice.IsZero() {
		return p.MarkPrice
	}
	return p.ClosePrice
}

// OpenPnL returns the position's open profit or loss per the current mark.
func (p Position) OpenPnL() decimal.Decimal {
	return p.Mark().Sub(p.AverageOpenPrice).Mul(p.Quantity).Mul(p.Multiplier)
}

// wirePosition mirrors one position item on the wire.
type wirePosition struct {
	Symbol            string          `json:"symbol"`
	InstrumentType    string          `json:"instrument-type"`
	UnderlyingSymbol  string          `json:"underlying-symbol"`
	Quantity          decimal.Decimal `json:"quantity"`
	QuantityDirection string          `json:"quantity-direction"`
	AverageOpenPrice  decimal.Decimal `json:"average-open-price"`
	ClosePrice        decimal.Decimal `json:"close-price"`
	MarkPrice         decimal.Decimal `json:"mark-price"`
	Multiplier        decimal.Decimal `json:"multiplier"`
}

// Positions lists the account's open positions, with marks included so
// callers can value them without a feed connection. Positions the API
// reports with a Zero direction are dropped.
func (c *Client) Positions(ctx context.Context, account string) ([]Position, error) {
	path := fmt.Sprintf("/accounts/%s/positions?include-marks=true", account)
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch positions: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var listResp struct {
		Data struct {
			Items []wirePosition `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	positions := make([]Position, 0, len(listResp.Data.Items))
	for _, item := range listResp.Data.Items {
		if item.QuantityDirection == "Zero" {
			continue
		}
		quantity := item.Quantity
		if item.QuantityDirection == "Short" {
			quantity = quantity.Neg()
		}
		multiplier := item.Multiplier
		if multiplier.IsZero() {
			multiplier = decimal.NewFromInt(1)
		}
		positions = append(positions, Position{
			Symbol:           item.Symbol,
			InstrumentType:   item.InstrumentType,
			UnderlyingSymbol: item.UnderlyingSymbol,
			Quantity:         quantity,
			AverageOpenPrice: item.AverageOpenPrice,
			ClosePrice:       item.ClosePrice,
			MarkPrice:        item.MarkPrice,
			Multiplier:       multiplier,
		})
	}
	return positions, nil
}
