package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SandboxMode — поведение песочницы на следующий вызов.
type SandboxMode int

const (
	SandboxApprove SandboxMode = iota
	SandboxReject
	// SandboxHang ждёт отмены ctx, имитируя зависший провайдер.
	SandboxHang
)

// Sandbox — шлюз в памяти процесса для локального запуска и тестов.
// Транзакция подтверждается отдельным вебхуком, как у настоящего провайдера.
type Sandbox struct {
	baseURL string

	mu      sync.Mutex
	mode    SandboxMode
	charges map[string]ChargeRequest
	refunds map[string]int64
	// ключ идемпотентности -> сумма принятого возврата
	refundKeys map[string]int64
}

func NewSandbox(baseURL string) *Sandbox {
	if baseURL == "" {
		baseURL = "https://sandbox.local/checkout"
	}
	return &Sandbox{
		baseURL:    baseURL,
		charges:    make(map[string]ChargeRequest),
		refunds:    make(map[string]int64),
		refundKeys: make(map[string]int64),
	}
}

func (s *Sandbox) Name() string { return "sandbox" }

func (s *Sandbox) SetMode(m SandboxMode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

func (s *Sandbox) currentMode() SandboxMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Sandbox) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	switch s.currentMode() {
	case SandboxHang:
		<-ctx.Done()
		return nil, ctx.Err()
	case SandboxReject:
		return nil, Rejected("card declined")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txID := "sbx_" + uuid.NewString()
	s.mu.Lock()
	s.charges[txID] = req
	s.mu.Unlock()

	return &ChargeResult{
		TransactionID: txID,
		RedirectURL:   fmt.Sprintf("%s/%s", s.baseURL, txID),
		Raw: map[string]any{
			"provider": s.Name(),
			"status":   "requires_action",
		},
	}, nil
}

func (s *Sandbox) Refund(ctx context.Context, r RefundRequest) error {
	switch s.currentMode() {
	case SandboxHang:
		<-ctx.Done()
		return ctx.Err()
	case SandboxReject:
		return Rejected("refund declined")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if r.IdempotencyKey != "" {
		if amount, seen := s.refundKeys[r.IdempotencyKey]; seen {
			if amount != r.Amount {
				return Rejected("idempotency key reused with another amount")
			}
			return nil
		}
	}
	req, ok := s.charges[r.TransactionID]
	if !ok {
		return Rejected("unknown transaction")
	}
	if s.refunds[r.TransactionID]+r.Amount > req.Amount {
		return Rejected("refund exceeds charge")
	}
	s.refunds[r.TransactionID] += r.Amount
	if r.IdempotencyKey != "" {
		s.refundKeys[r.IdempotencyKey] = r.Amount
	}
	return nil
}

// Refunded — сколько возвращено по транзакции.
func (s *Sandbox) Refunded(transactionID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refunds[transactionID]
}

// Charges — количество принятых списаний.
func (s *Sandbox) Charges() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.charges)
}
