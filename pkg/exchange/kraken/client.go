// Package kraken is a thin REST client for the Kraken Futures API. It is a
// forward-looking collaborator for routing real orders and is not part of
// the simulation core; nothing in the engine depends on it.
package kraken

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	// MainnetBaseURL is the production Kraken Futures endpoint.
	MainnetBaseURL = "https://futures.kraken.com"
	// DemoBaseURL is the sandbox endpoint.
	DemoBaseURL = "https://demo-futures.kraken.com"

	defaultTimeout = 10 * time.Second
)

// Client talks to the Kraken Futures derivatives API.
type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	http      *http.Client
	nowFn     func() time.Time
}

// Option customises client construction.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (e.g. DemoBaseURL).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a client against the production endpoint.
func NewClient(apiKey, apiSecret string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		baseURL:   MainnetBaseURL,
		http:      &http.Client{Timeout: defaultTimeout},
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OrderRequest describes a futures order submission.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	OrderType  string  `json:"orderType"`
	LimitPrice float64 `json:"limitPrice,omitempty"`
}

// OrderResponse is the send-order result envelope.
type OrderResponse struct {
	Result     string `json:"result"`
	SendStatus struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	} `json:"sendStatus"`
	Error string `json:"error,omitempty"`
}

// AccountsResponse is the accounts result envelope.
type AccountsResponse struct {
	Result   string                     `json:"result"`
	Accounts map[string]json.RawMessage `json:"accounts"`
	Error    string                     `json:"error,omitempty"`
}

// Ticker is one entry of the public tickers feed.
type Ticker struct {
	Symbol string  `json:"symbol"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// SendOrder submits an order. A limit price of zero sends a market order.
func (c *Client) SendOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if req.OrderType == "" {
		if req.LimitPrice > 0 {
			req.OrderType = "lmt"
		} else {
			req.OrderType = "mkt"
		}
	}
	var resp OrderResponse
	if err := c.privatePost(ctx, "/derivatives/api/v3/sendorder", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("kraken: sendorder: %s", resp.Error)
	}
	return &resp, nil
}

// Accounts fetches account balances.
func (c *Client) Accounts(ctx context.Context) (*AccountsResponse, error) {
	var resp AccountsResponse
	if err := c.privateGet(ctx, "/derivatives/api/v3/accounts", &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("kraken: accounts: %s", resp.Error)
	}
	return &resp, nil
}

// Tickers fetches the public market tickers.
func (c *Client) Tickers(ctx context.Context) ([]Ticker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/derivatives/api/v3/tickers", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Result  string   `json:"result"`
		Tickers []Ticker `json:"tickers"`
		Error   string   `json:"error,omitempty"`
	}
	if err := c.do(req, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("kraken: tickers: %s", payload.Error)
	}
	return payload.Tickers, nil
}

func (c *Client) privatePost(ctx context.Context, endpoint string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("kraken: encode request: %w", err)
	}
	signature, nonce, err := c.sign(endpoint, data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setAuthHeaders(req, signature, nonce)
	return c.do(req, out)
}

func (c *Client) privateGet(ctx context.Context, endpoint string, out any) error {
	signature, nonce, err := c.sign(endpoint, nil)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return err
	}
	c.setAuthHeaders(req, signature, nonce)
	return c.do(req, out)
}

func (c *Client) setAuthHeaders(req *http.Request, signature, nonce string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("APIKey", c.apiKey)
	req.Header.Set("Nonce", nonce)
	req.Header.Set("Authent", signature)
}

// sign builds the Kraken Futures authentication digest:
// base64(hmac-sha512(secret, sha256(postData + nonce + endpoint))).
func (c *Client) sign(endpoint string, postData []byte) (signature, nonce string, err error) {
	secret, err := base64.StdEncoding.DecodeString(c.apiSecret)
	if err != nil {
		return "", "", fmt.Errorf("kraken: decode api secret: %w", err)
	}
	nonce = strconv.FormatInt(c.nowFn().UnixMilli(), 10)

	digest := sha256.New()
	digest.Write(postData)
	digest.Write([]byte(nonce))
	digest.Write([]byte(endpoint))

	mac := hmac.New(sha512.New, secret)
	mac.Write(digest.Sum(nil))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nonce, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("kraken: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kraken: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("kraken: %s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("kraken: decode response: %w", err)
	}
	return nil
}
