package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jonandersen/tasty/internal/strategy"
)

// OrderService submits and manages orders for one account. It implements
// the strategy order sink.
type OrderService struct {
	Client  *Client
	Account string
}

// NewOrderService creates an order service bound to an account number.
func NewOrderService(client *Client, account string) *OrderService {
	return &OrderService{Client: client, Account: account}
}

// wireLeg is one leg in the order request body.
type wireLeg struct {
	InstrumentType string `json:"instrument-type"`
	Symbol         string `json:"symbol"`
	Quantity       int    `json:"quantity"`
	Action         string `json:"action"`
}

// wireOrder is the order request body.
type wireOrder struct {
	TimeInForce string          `json:"time-in-force"`
	OrderType   string          `json:"order-type"`
	Price       decimal.Decimal `json:"price"`
	PriceEffect string          `json:"price-effect"`
	Legs        []wireLeg       `json:"legs"`
}

// dryRunResponse mirrors the dry-run acceptance body.
type dryRunResponse struct {
	Data struct {
		BuyingPowerEffect struct {
			ChangeInBuyingPower       decimal.Decimal `json:"change-in-buying-power"`
			ChangeInBuyingPowerEffect string          `json:"change-in-buying-power-effect"`
		} `json:"buying-power-effect"`
		FeeCalculation struct {
			TotalFees decimal.Decimal `json:"total-fees"`
		} `json:"fee-calculation"`
		Warnings []struct {
			Message string `json:"message"`
		} `json:"warnings"`
	} `json:"data"`
}

func encodeOrder(order strategy.Order) ([]byte, error) {
	wire := wireOrder{
		TimeInForce: string(order.TimeInForce),
		OrderType:   "Limit",
		Price:       order.Price,
		PriceEffect: string(order.PriceEffect),
	}
	for _, leg := range order.Legs {
		wire.Legs = append(wire.Legs, wireLeg{
			InstrumentType: "Equity Option",
			Symbol:         leg.Symbol,
			Quantity:       leg.Quantity,
			Action:         string(leg.Action),
		})
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order: %w", err)
	}
	return body, nil
}

// rejectionFrom converts an API error carrying order rejection messages
// into the typed rejection, so callers see the API's wording verbatim.
func rejectionFrom(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 422 {
		return &strategy.OrderRejectedError{Messages: apiErr.AllMessages()}
	}
	return err
}

// DryRun validates the order without placing it and returns the account
// impact the API projects.
func (s *OrderService) DryRun(ctx context.Context, order strategy.Order) (*strategy.OrderReceipt, error) {
	body, err := encodeOrder(order)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/accounts/%s/orders/dry-run", s.Account)
	resp, err := s.Client.Post(ctx, path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("dry-run request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, rejectionFrom(err)
	}

	var dryResp dryRunResponse
	if err := json.NewDecoder(resp.Body).Decode(&dryResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	receipt := &strategy.OrderReceipt{
		BuyingPowerChange: dryResp.Data.BuyingPowerEffect.ChangeInBuyingPower,
		Fees:              dryResp.Data.FeeCalculation.TotalFees,
	}
	if dryResp.Data.BuyingPowerEffect.ChangeInBuyingPowerEffect == "Debit" {
		receipt.BuyingPowerChange = receipt.BuyingPowerChange.Neg()
	}
	for _, w := range dryResp.Data.Warnings {
		receipt.Warnings = append(receipt.Warnings, w.Message)
	}

	nlv, err := s.netLiquidatingValue(ctx)
	if err == nil {
		receipt.NetLiquidatingValue = nlv
	}
	return receipt, nil
}

// Place submits the order for execution.
func (s *OrderService) Place(ctx context.Context, order strategy.Order) error {
	body, err := encodeOrder(order)
	if err != nil {
		return err
	}

	path := fmt.Sprintf("/accounts/%s/orders", s.Account)
	resp, err := s.Client.Post(ctx, path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("order request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return rejectionFrom(err)
	}
	return nil
}

// netLiquidatingValue fetches the account's current net liquidating value
// for the buying-power percentage shown at review.
func (s *OrderService) netLiquidatingValue(ctx context.Context) (decimal.Decimal, error) {
	path := fmt.Sprintf("/accounts/%s/balances", s.Account)
	resp, err := s.Client.Get(ctx, path)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to fetch balances: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return decimal.Decimal{}, err
	}

	var balResp struct {
		Data struct {
			NetLiquidatingValue decimal.Decimal `json:"net-liquidating-value"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&balResp); err != nil {
		return decimal.Decimal{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return balResp.Data.NetLiquidatingValue, nil
}

// LiveOrder is one working order as listed by the API.
type LiveOrder struct {
	ID               int             `json:"id"`
	UnderlyingSymbol string          `json:"underlying-symbol"`
	Status           string          `json:"status"`
	TimeInForce      string          `json:"time-in-force"`
	Price            decimal.Decimal `json:"price"`
	PriceEffect      string          `json:"price-effect"`
	Legs             []struct {
		Symbol   string `json:"symbol"`
		Quantity int    `json:"quantity"`
		Action   string `json:"action"`
	} `json:"legs"`
}

// Live lists today's live orders for the account.
func (s *OrderService) Live(ctx context.Context) ([]LiveOrder, error) {
	path := fmt.Sprintf("/accounts/%s/orders/live", s.Account)
	resp, err := s.Client.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var listResp struct {
		Data struct {
			Items []LiveOrder `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return listResp.Data.Items, nil
}

// Cancel cancels a working order by ID.
func (s *OrderService) Cancel(ctx context.Context, orderID int) error {
	path := fmt.Sprintf("/accounts/%s/orders/%d", s.Account, orderID)
	resp, err := s.Client.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("cancel request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return CheckResponse(resp)
}
