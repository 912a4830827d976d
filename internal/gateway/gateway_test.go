package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSandbox_ChargeAndRefund(t *testing.T) {
	sb := NewSandbox("")
	res, err := sb.Charge(context.Background(), ChargeRequest{PaymentID: uuid.New(), Amount: 1100, Currency: "USD"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if res.TransactionID == "" || res.RedirectURL == "" {
		t.Fatalf("expected transaction and redirect, got %+v", res)
	}

	if err := sb.Refund(context.Background(), RefundRequest{TransactionID: res.TransactionID, Amount: 600}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if err := sb.Refund(context.Background(), RefundRequest{TransactionID: res.TransactionID, Amount: 600}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected over-refund to be rejected, got %v", err)
	}
	if got := sb.Refunded(res.TransactionID); got != 600 {
		t.Fatalf("expected 600 refunded, got %d", got)
	}
}

func TestSandbox_RefundIdempotencyKey(t *testing.T) {
	sb := NewSandbox("")
	res, err := sb.Charge(context.Background(), ChargeRequest{PaymentID: uuid.New(), Amount: 1100, Currency: "USD"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	req := RefundRequest{TransactionID: res.TransactionID, Amount: 300, IdempotencyKey: "pay_1:2026-01-01T00:00:00Z"}
	for i := 0; i < 3; i++ {
		if err := sb.Refund(context.Background(), req); err != nil {
			t.Fatalf("refund #%d: %v", i, err)
		}
	}
	if got := sb.Refunded(res.TransactionID); got != 300 {
		t.Fatalf("expected single 300 refund, got %d", got)
	}

	req.Amount = 400
	if err := sb.Refund(context.Background(), req); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected reused key with another amount to be rejected, got %v", err)
	}

	// Новый ключ — новый возврат.
	req.IdempotencyKey = "pay_1:2026-01-02T00:00:00Z"
	if err := sb.Refund(context.Background(), req); err != nil {
		t.Fatalf("second refund: %v", err)
	}
	if got := sb.Refunded(res.TransactionID); got != 700 {
		t.Fatalf("expected 700 refunded, got %d", got)
	}
}

func TestHTTPGateway_RefundSendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refunds" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "pay_1:t1" {
			t.Errorf("unexpected idempotency key %q", got)
		}
		var body refundBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.TransactionID != "tx_1" || body.Amount != 300 {
			t.Errorf("unexpected body %+v", body)
		}
		_, _ = w.Write([]byte(`{"status":"refunded"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway("acme", srv.URL, "")
	if err := g.Refund(context.Background(), RefundRequest{TransactionID: "tx_1", Amount: 300, IdempotencyKey: "pay_1:t1"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
}

func TestSandbox_RejectAndHang(t *testing.T) {
	sb := NewSandbox("")

	sb.SetMode(SandboxReject)
	if _, err := sb.Charge(context.Background(), ChargeRequest{Amount: 10}); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	sb.SetMode(SandboxHang)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := sb.Charge(ctx, ChargeRequest{Amount: 10}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestHTTPGateway_Charge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/charges" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body chargeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.Amount != 1100 {
			t.Errorf("expected amount 1100, got %d", body.Amount)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"transaction_id": "tx_1",
			"redirect_url":   "https://pay.example/tx_1",
			"status":         "pending",
			"risk_score":     3,
		})
	}))
	defer srv.Close()

	g := NewHTTPGateway("acme", srv.URL, "secret")
	res, err := g.Charge(context.Background(), ChargeRequest{PaymentID: uuid.New(), Amount: 1100, Currency: "USD"})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if res.TransactionID != "tx_1" || res.RedirectURL != "https://pay.example/tx_1" {
		t.Fatalf("unexpected result %+v", res)
	}
	if _, ok := res.Raw["risk_score"]; !ok {
		t.Fatalf("expected raw reply to keep unknown fields, got %v", res.Raw)
	}
}

func TestHTTPGateway_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"status":"rejected","reason":"insufficient funds"}`))
	}))
	defer srv.Close()

	g := NewHTTPGateway("", srv.URL, "")
	_, err := g.Charge(context.Background(), ChargeRequest{Amount: 5})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestHTTPGateway_HonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway("", srv.URL, "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := g.Charge(ctx, ChargeRequest{Amount: 5})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
