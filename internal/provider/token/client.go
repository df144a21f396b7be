package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"finsync/internal/provider"
)

const (
	defaultBaseURL   = "https://api.aggregator.example.com/v1"
	defaultTimeout   = 30 * time.Second
	accountsPath     = "/accounts"
	transactionsPath = "/transactions"
	exchangePath     = "/item/public_token/exchange"
	pageSize         = 200
)

// Client handles communication with the aggregator API.
// Calls pass through a circuit breaker: once the provider starts failing
// consistently the breaker opens and calls short-circuit as RateLimited
// instead of hammering a degraded upstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
}

// NewClient creates a new aggregator API client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		baseURL: baseURL,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "aggregator-api",
			Timeout: 60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// accountPayload is an account as returned by the aggregator.
type accountPayload struct {
	ID       string `json:"id"`
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currencyCode"`
	Balance  string `json:"balance"` // API returns balance as string
}

func (a *accountPayload) parseBalance() (float64, error) {
	if a.Balance == "" {
		return 0, nil
	}
	balance, err := strconv.ParseFloat(a.Balance, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse balance '%s': %w", a.Balance, err)
	}
	return balance, nil
}

// transactionPayload is a transaction as returned by the aggregator.
type transactionPayload struct {
	ID          string  `json:"id"`
	AccountID   string  `json:"accountId"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Currency    string  `json:"currencyCode"`
}

type accountsResponse struct {
	Success bool             `json:"success"`
	Data    []accountPayload `json:"data"`
}

type transactionsResponse struct {
	Success bool                 `json:"success"`
	Data    []transactionPayload `json:"data"`
	Page    int                  `json:"page"`
	HasMore bool                 `json:"hasMore"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ExchangeResult is the durable outcome of a public-token exchange.
type ExchangeResult struct {
	AccessToken     string `json:"accessToken"`
	ItemID          string `json:"itemId"`
	InstitutionName string `json:"institutionName"`
}

// ExchangePublicToken exchanges a short-lived public token for a durable
// access token and the opaque item id identifying the provider link.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResult, error) {
	body, err := json.Marshal(map[string]string{"publicToken": publicToken})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal exchange request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+exchangePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var result ExchangeResult
	if err := c.doJSON(req, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" || result.ItemID == "" {
		return nil, provider.NewError(provider.Unknown, "exchange response missing token or item id", nil)
	}
	return &result, nil
}

// GetAccounts fetches all accounts reachable with the given access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]accountPayload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+accountsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	var resp accountsResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetTransactions fetches transactions for one account over a date range,
// following the API's page/hasMore pagination internally.
func (c *Client) GetTransactions(ctx context.Context, accessToken, accountID string, from, to time.Time) ([]transactionPayload, error) {
	var all []transactionPayload

	for page := 1; ; page++ {
		url := fmt.Sprintf("%s%s?accountId=%s&from=%s&to=%s&page=%d&pageSize=%d",
			c.baseURL, transactionsPath, accountID,
			from.Format("2006-01-02"), to.Format("2006-01-02"), page, pageSize)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		var resp transactionsResponse
		if err := c.doJSON(req, &resp); err != nil {
			return nil, err
		}

		all = append(all, resp.Data...)
		if !resp.HasMore {
			break
		}
	}

	return all, nil
}

// doJSON executes a request through the breaker and decodes the JSON
// response into out, mapping HTTP failures onto the provider error taxonomy.
func (c *Client) doJSON(req *http.Request, out any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if req.Context().Err() == context.DeadlineExceeded {
				return nil, provider.NewError(provider.Timeout, "request exceeded time budget", err)
			}
			return nil, provider.NewError(provider.Unknown, "request failed", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, provider.NewError(provider.Unknown, "failed to read response body", err)
		}

		if resp.StatusCode != http.StatusOK {
			return nil, classifyStatus(resp.StatusCode, body)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return nil, provider.NewError(provider.Unknown, "failed to unmarshal response", err)
		}
		return nil, nil
	})

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return provider.NewError(provider.RateLimited, "circuit breaker open", err)
	}
	return err
}

// classifyStatus maps an HTTP error status onto the provider error taxonomy.
func classifyStatus(status int, body []byte) error {
	var errResp errorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		msg = errResp.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return provider.NewError(provider.AuthExpired, msg, nil)
	case status == http.StatusTooManyRequests:
		return provider.NewError(provider.RateLimited, msg, nil)
	case status == http.StatusGatewayTimeout:
		return provider.NewError(provider.Timeout, msg, nil)
	default:
		return provider.NewError(provider.Unknown, fmt.Sprintf("status %d: %s", status, msg), nil)
	}
}
