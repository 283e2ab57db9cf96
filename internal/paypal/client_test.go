package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestApprovalURL(t *testing.T) {
	t.Parallel()

	withApprove := &OrderResult{Links: []Link{
		{Rel: "self", Href: "https://paypal.test/self"},
		{Rel: "approve", Href: "https://paypal.test/approve"},
	}}
	if got := withApprove.ApprovalURL(); got != "https://paypal.test/approve" {
		t.Fatalf("ApprovalURL()=%q", got)
	}

	without := &OrderResult{Links: []Link{{Rel: "self", Href: "https://paypal.test/self"}}}
	if got := without.ApprovalURL(); got != "" {
		t.Fatalf("ApprovalURL()=%q, expected empty", got)
	}
}

func TestCreateOrder_WireFormat(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		gotUser   string
		gotPass   string
		gotGrant  string
		gotAuthz  string
		gotBody   map[string]any
		tokenHits int
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenHits++
		gotUser, gotPass, _ = r.BasicAuth()
		raw, _ := io.ReadAll(r.Body)
		gotGrant = string(raw)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"access_token":"tok-123"}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotAuthz = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"PP-1","status":"CREATED","links":[{"rel":"approve","href":"https://paypal.test/a"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{
		BaseURL:      srv.URL,
		ClientID:     "cid",
		ClientSecret: "csec",
		Currency:     "USD",
		ReturnURL:    "https://shop.test/ok",
		CancelURL:    "https://shop.test/no",
		Timeout:      2 * time.Second,
	})

	res, err := c.CreateOrder(context.Background(), "25.50", "order-1")
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if res.ID != "PP-1" || res.ApprovalURL() != "https://paypal.test/a" {
		t.Fatalf("unexpected result %+v", res)
	}

	if tokenHits != 1 {
		t.Fatalf("tokenHits=%d", tokenHits)
	}
	if gotUser != "cid" || gotPass != "csec" {
		t.Fatalf("basic auth=%s:%s", gotUser, gotPass)
	}
	if gotGrant != "grant_type=client_credentials" {
		t.Fatalf("grant body=%q", gotGrant)
	}
	if gotAuthz != "Bearer tok-123" {
		t.Fatalf("order auth=%q", gotAuthz)
	}

	if gotBody["intent"] != "CAPTURE" {
		t.Fatalf("intent=%v", gotBody["intent"])
	}
	units, _ := gotBody["purchase_units"].([]any)
	if len(units) != 1 {
		t.Fatalf("purchase_units=%v", gotBody["purchase_units"])
	}
	unit := units[0].(map[string]any)
	amt := unit["amount"].(map[string]any)
	if amt["currency_code"] != "USD" || amt["value"] != "25.50" {
		t.Fatalf("amount=%v", amt)
	}
	if unit["custom_id"] != "order-1" {
		t.Fatalf("custom_id=%v", unit["custom_id"])
	}
	appCtx := gotBody["application_context"].(map[string]any)
	if appCtx["return_url"] != "https://shop.test/ok" || appCtx["cancel_url"] != "https://shop.test/no" {
		t.Fatalf("application_context=%v", appCtx)
	}
}

func TestCreateOrder_RetriesOn5xx(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		orderHits int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		orderHits++
		n := orderHits
		mu.Unlock()
		if n < 3 {
			http.Error(w, `{"error":"temporarily unavailable"}`, http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"id":"PP-2","links":[]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Currency: "USD", Timeout: 2 * time.Second})

	res, err := c.CreateOrder(context.Background(), "10.00", "order-2")
	if err != nil {
		t.Fatalf("CreateOrder after retries: %v", err)
	}
	if res.ID != "PP-2" {
		t.Fatalf("id=%q", res.ID)
	}
	if orderHits != 3 {
		t.Fatalf("orderHits=%d, expected 3 (two 503s then success)", orderHits)
	}
}

func TestCreateOrder_4xxNotRetried(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		orderHits int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		orderHits++
		mu.Unlock()
		http.Error(w, `{"name":"UNPROCESSABLE_ENTITY"}`, http.StatusUnprocessableEntity)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Currency: "USD", Timeout: 2 * time.Second})

	if _, err := c.CreateOrder(context.Background(), "10.00", "order-3"); err == nil {
		t.Fatal("expected error")
	}
	if orderHits != 1 {
		t.Fatalf("orderHits=%d, expected 1 (4xx is terminal)", orderHits)
	}
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var (
		mu        sync.Mutex
		tokenHits int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenHits++
		mu.Unlock()
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Currency: "USD", Timeout: 2 * time.Second})

	// 3 failed attempts
	if _, err := c.CreateOrder(context.Background(), "1.00", "o1"); err == nil {
		t.Fatal("expected error")
	}
	// 2 more failures trip the breaker mid-call
	if _, err := c.CreateOrder(context.Background(), "1.00", "o2"); err == nil {
		t.Fatal("expected error")
	}
	if tokenHits != 5 {
		t.Fatalf("tokenHits=%d, expected 5 before the breaker opens", tokenHits)
	}

	// breaker now open: the call fails fast without reaching the server
	_, err := c.CreateOrder(context.Background(), "1.00", "o3")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("err=%v, expected open breaker", err)
	}
	if tokenHits != 5 {
		t.Fatalf("tokenHits=%d, expected no further requests", tokenHits)
	}
}
