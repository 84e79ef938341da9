// Package upstream talks to the bank's ledger microservices: transaction
// history, balance reader and the user service. Callers' JWTs are forwarded
// as-is; this service holds no credentials of its own except the monitor's
// demo login.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dvloznov/insight-agent/internal/normalize"
)

// StatusError reports a non-2xx upstream reply so handlers can map it onto
// their own status code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Body)
}

// Client is an HTTP client for the bank services.
type Client struct {
	httpClient *http.Client

	historyURL string
	balanceURL string
	userURL    string
}

// NewClient creates a client for the three service base URLs.
func NewClient(historyURL, balanceURL, userURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		historyURL: historyURL,
		balanceURL: balanceURL,
		userURL:    userURL,
	}
}

// Login exchanges demo credentials for a JWT at the user service.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	u := fmt.Sprintf("%s/login?username=%s&password=%s",
		c.userURL, url.QueryEscape(username), url.QueryEscape(password))

	body, err := c.get(ctx, u, "")
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	var reply struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("login: decode reply: %w", err)
	}
	if reply.Token == "" {
		return "", fmt.Errorf("login: empty token in reply")
	}
	return reply.Token, nil
}

// GetTransactions fetches the account's recent ledger records, forwarding the
// caller's bearer token. Ledger amounts arrive in cents and are converted to
// currency units here so every downstream stage works in one scale.
func (c *Client) GetTransactions(ctx context.Context, accountID, token string, windowDays int) ([]normalize.RawRecord, error) {
	u := fmt.Sprintf("%s/transactions/%s", c.historyURL, url.PathEscape(accountID))
	if windowDays > 0 {
		u += "?window_days=" + strconv.Itoa(windowDays)
	}

	body, err := c.get(ctx, u, token)
	if err != nil {
		return nil, fmt.Errorf("get transactions: %w", err)
	}

	var records []normalize.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("get transactions: decode reply: %w", err)
	}

	for i, r := range records {
		if cents, err := r.Amount.Int64(); err == nil {
			records[i].Amount = json.Number(strconv.FormatFloat(float64(cents)/100, 'f', 2, 64))
		}
	}
	return records, nil
}

// GetBalance fetches the account balance in currency units.
func (c *Client) GetBalance(ctx context.Context, accountID, token string) (float64, error) {
	u := fmt.Sprintf("%s/balances/%s", c.balanceURL, url.PathEscape(accountID))

	body, err := c.get(ctx, u, token)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}

	var cents json.Number
	if err := json.Unmarshal(body, &cents); err != nil {
		return 0, fmt.Errorf("get balance: decode reply: %w", err)
	}
	f, err := cents.Float64()
	if err != nil {
		return 0, fmt.Errorf("get balance: parse amount: %w", err)
	}
	return f / 100, nil
}

func (c *Client) get(ctx context.Context, rawURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
