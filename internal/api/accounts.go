package api

import (
	"context"
	"encoding/json"
	"fmt"
)

// Account is one trading account visible to the customer.
type Account struct {
	Number   string `json:"account-number"`
	Nickname string `json:"nickname"`
	Type     string `json:"account-type-name"`
}

// Accounts lists the customer's trading accounts.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	resp, err := c.Get(ctx, "/customers/me/accounts")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return nil, err
	}

	var acctResp struct {
		Data struct {
			Items []struct {
				Account Account `json:"account"`
			} `json:"items"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acctResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	accounts := make([]Account, 0, len(acctResp.Data.Items))
	for _, item := range acctResp.Data.Items {
		accounts = append(accounts, item.Account)
	}
	return accounts, nil
}
