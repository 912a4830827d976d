package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGateway — провайдер с JSON API:
//
//	POST {base}/charges  -> {"transaction_id", "redirect_url", "status"}
//	POST {base}/refunds  -> {"status"}
//
// 402 и 422, а также status=rejected считаются отказом.
type HTTPGateway struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPGateway(name, baseURL, apiKey string) *HTTPGateway {
	if name == "" {
		name = "http"
	}
	return &HTTPGateway{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Верхняя граница; реальный таймаут задаёт ctx вызывающего.
		client: &http.Client{Timeout: time.Minute},
	}
}

func (g *HTTPGateway) Name() string { return g.name }

type chargeBody struct {
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type refundBody struct {
	TransactionID string `json:"transaction_id"`
	Amount        int64  `json:"amount"`
}

type providerReply struct {
	TransactionID string `json:"transaction_id"`
	RedirectURL   string `json:"redirect_url"`
	Status        string `json:"status"`
	Reason        string `json:"reason"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	meta := map[string]string{"booking_id": req.BookingID.String()}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	raw, reply, err := g.post(ctx, "/charges", chargeBody{
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.PaymentID.String(),
		Metadata:  meta,
	}, "")
	if err != nil {
		return nil, err
	}
	if reply.TransactionID == "" {
		return nil, fmt.Errorf("gateway %s: empty transaction_id", g.name)
	}
	return &ChargeResult{
		TransactionID: reply.TransactionID,
		RedirectURL:   reply.RedirectURL,
		Raw:           raw,
	}, nil
}

// Refund передаёт IdempotencyKey заголовком Idempotency-Key; провайдер
// отвечает на повтор исходным результатом.
func (g *HTTPGateway) Refund(ctx context.Context, req RefundRequest) error {
	_, _, err := g.post(ctx, "/refunds", refundBody{TransactionID: req.TransactionID, Amount: req.Amount}, req.IdempotencyKey)
	return err
}

func (g *HTTPGateway) post(ctx context.Context, path string, body any, idempotencyKey string) (map[string]any, *providerReply, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, err
	}

	var reply providerReply
	raw := map[string]any{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("gateway %s: decode reply: %w", g.name, err)
		}
		_ = json.Unmarshal(data, &reply)
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, nil, Rejected(reply.Reason)
	case resp.StatusCode >= 300:
		return nil, nil, fmt.Errorf("gateway %s: unexpected status %d", g.name, resp.StatusCode)
	case strings.EqualFold(reply.Status, "rejected"):
		return nil, nil, Rejected(reply.Reason)
	}
	return raw, &reply, nil
}
