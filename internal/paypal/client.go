// Package paypal is a minimal client for the two PayPal REST calls the
// checkout flow needs: the client-credentials token exchange and order
// creation. Calls carry a request timeout, a bounded retry with backoff,
// and run through a circuit breaker.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"

	maxAttempts    = 3
	initialBackoff = 200 * time.Millisecond
)

type Config struct {
	Environment  string // "sandbox" (default) or "live"
	ClientID     string
	ClientSecret string
	BaseURL      string // overrides Environment when set; used by tests
	ReturnURL    string
	CancelURL    string
	Currency     string
	Timeout      time.Duration
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
}

func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Environment == "live" {
			base = liveBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "paypal",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: cb,
	}
}

type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

// OrderResult is the subset of the provider's order response the checkout
// flow cares about.
type OrderResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApprovalURL returns the href of the link with rel "approve", or "" when
// the provider sent none.
func (o *OrderResult) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" {
			return l.Href
		}
	}
	return ""
}

type amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	Amount   amount `json:"amount"`
	CustomID string `json:"custom_id"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type createOrderBody struct {
	Intent             string             `json:"intent"`
	PurchaseUnits      []purchaseUnit     `json:"purchase_units"`
	ApplicationContext applicationContext `json:"application_context"`
}

// CreateOrder exchanges credentials for an access token and creates a
// CAPTURE order for the given pre-formatted amount. customID is the local
// order id, echoed back by the provider's asynchronous callbacks.
func (c *Client) CreateOrder(ctx context.Context, value, customID string) (*OrderResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("paypal: token exchange: %w", err)
	}

	body, _ := json.Marshal(createOrderBody{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			Amount:   amount{CurrencyCode: c.cfg.Currency, Value: value},
			CustomID: customID,
		}},
		ApplicationContext: applicationContext{
			ReturnURL: c.cfg.ReturnURL,
			CancelURL: c.cfg.CancelURL,
		},
	})

	hdr := http.Header{}
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Authorization", "Bearer "+token)
	raw, err := c.send(ctx, "/v2/checkout/orders", hdr, body)
	if err != nil {
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}

	var out OrderResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("paypal: create order: decode: %w", err)
	}
	return &out, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	hdr := http.Header{}
	hdr.Set("Content-Type", "application/x-www-form-urlencoded")
	raw, err := c.sendBasic(ctx, "/v1/oauth2/token", hdr, []byte("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("empty access_token")
	}
	return tok.AccessToken, nil
}

// statusError is a non-2xx provider response.
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("paypal responded %d: %s", e.Code, e.Body)
}

func (c *Client) send(ctx context.Context, path string, hdr http.Header, body []byte) ([]byte, error) {
	return c.attempt(ctx, path, hdr, body, false)
}

func (c *Client) sendBasic(ctx context.Context, path string, hdr http.Header, body []byte) ([]byte, error) {
	return c.attempt(ctx, path, hdr, body, true)
}

// attempt POSTs with bounded retry and exponential backoff. Only network
// failures and 5xx responses are retried; 4xx is terminal, as is an open
// breaker.
func (c *Client) attempt(ctx context.Context, path string, hdr http.Header, body []byte, basicAuth bool) ([]byte, error) {
	backoff := initialBackoff
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		raw, err := c.breaker.Execute(func() ([]byte, error) {
			return c.post(ctx, path, hdr, body, basicAuth)
		})
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, path string, hdr http.Header, body []byte, basicAuth bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if basicAuth {
		req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &statusError{Code: res.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// transport-level failure
	return true
}
