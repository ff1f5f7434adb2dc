package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/jonandersen/tasty/internal/keyring"
)

// Login authenticates with username and password and returns a session
// token. Tokens stay valid for roughly a day; callers cache them in the
// keyring and re-login only when validation fails.
func Login(ctx context.Context, baseURL, username, password string) (string, error) {
	reqBody := map[string]interface{}{
		"login":       username,
		"password":    password,
		"remember-me": true,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	client := NewClient(baseURL, "")
	resp, err := client.Post(ctx, "/sessions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}

	var loginResp struct {
		Data struct {
			SessionToken string `json:"session-token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if loginResp.Data.SessionToken == "" {
		return "", fmt.Errorf("login response carried no session token")
	}
	return loginResp.Data.SessionToken, nil
}

// ValidateSession reports whether a cached session token is still
// accepted by the API.
func ValidateSession(ctx context.Context, baseURL, token string) bool {
	client := NewClient(baseURL, token)
	resp, err := client.Post(ctx, "/sessions/validate", nil)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// GetSessionToken returns a valid session token using the keyring store.
// It prefers the cached token; when the cache is missing, stale, or
// forceRefresh is set, it re-logs-in with the stored password and caches
// the new token.
func GetSessionToken(store keyring.Store, baseURL, username string, forceRefresh bool) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !forceRefresh {
		cached, err := store.Get(keyring.ServiceName, keyring.KeySessionToken)
		if err == nil && cached != "" && ValidateSession(ctx, baseURL, cached) {
			return cached, nil
		}
	}

	password, err := store.Get(keyring.ServiceName, keyring.KeyPassword)
	if err != nil {
		if err == keyring.ErrNotFound {
			return "", fmt.Errorf("CLI not configured. Run: tasty configure\nOr set %s environment variable", keyring.EnvPassword)
		}
		return "", fmt.Errorf("failed to retrieve password: %w", err)
	}

	token, err := Login(ctx, baseURL, username, password)
	if err != nil {
		return "", err
	}
	if err := store.Set(keyring.ServiceName, keyring.KeySessionToken, token); err != nil {
		log.Debugf("session token not cached: %v", err)
	}
	return token, nil
}

// NewClientWithAuth creates a new API client with automatic session
// handling. It fetches the session token using the provided keyring store
// and re-logs-in on 401.
func NewClientWithAuth(store keyring.Store, baseURL, username string) (*Client, error) {
	token, err := GetSessionToken(store, baseURL, username, false)
	if err != nil {
		return nil, err
	}

	client := NewClient(baseURL, token)

	// Set up token refresher for auto-relogin on 401
	client.WithTokenRefresher(func() (string, error) {
		return GetSessionToken(store, baseURL, username, true)
	})

	return client, nil
}

// QuoteToken fetches the market data streamer credentials tied to the
// current session: an auth token and the websocket URL to dial.
func (c *Client) QuoteToken(ctx context.Context) (token, streamerURL string, err error) {
	resp, err := c.Get(ctx, "/api-quote-tokens")
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch quote token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := CheckResponse(resp); err != nil {
		return "", "", err
	}

	var tokenResp struct {
		Data struct {
			Token      string `json:"token"`
			DXLinkURL  string `json:"dxlink-url"`
			WebsockURL string `json:"websocket-url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", "", fmt.Errorf("failed to decode response: %w", err)
	}
	url := tokenResp.Data.DXLinkURL
	if url == "" {
		url = tokenResp.Data.WebsockURL
	}
	return tokenResp.Data.Token, url, nil
}
