// Package gateway - клиент платежного шлюза: заказы на оплату и выплаты исполнителям.
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

	"github.com/shopspring/decimal"
)

// Order - заказ на оплату в шлюзе.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// OrderRequest - параметры заказа. Amount в основных единицах валюты.
type OrderRequest struct {
	Amount   decimal.Decimal
	Currency string
	Receipt  string
	Metadata map[string]string
}

// PayoutDestination - счет исполнителя, зарегистрированный в шлюзе.
type PayoutDestination struct {
	FundAccountID string
	AccountHolder string
}

// PayoutRequest - параметры перевода исполнителю.
type PayoutRequest struct {
	Destination    PayoutDestination
	Amount         decimal.Decimal
	Currency       string
	ReferenceID    string
	IdempotencyKey string
	Narration      string
}

// Payout - перевод исполнителю в шлюзе.
type Payout struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// APIError - ответ шлюза с кодом ошибки.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d %s: %s", e.StatusCode, e.Code, e.Description)
}

// Client - HTTP клиент платежного шлюза.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient создает новый клиент шлюза.
func NewClient(baseURL, keyID, keySecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// KeySecret возвращает секрет, которым шлюз подписывает подтверждения оплаты.
func (c *Client) KeySecret() string {
	return c.keySecret
}

// CreateOrder открывает заказ на полную сумму.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := map[string]interface{}{
		"amount":   toMinorUnits(req.Amount),
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Metadata,
	}
	var order Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", body, nil, &order); err != nil {
		return nil, err
	}
	if order.ID == "" {
		return nil, fmt.Errorf("gateway returned order without id")
	}
	return &order, nil
}

// CreatePayout запрашивает перевод исполнителю. Шлюз не создает второй перевод с тем же ключом идемпотентности.
func (c *Client) CreatePayout(ctx context.Context, req PayoutRequest) (*Payout, error) {
	body := map[string]interface{}{
		"fund_account_id": req.Destination.FundAccountID,
		"amount":          toMinorUnits(req.Amount),
		"currency":        req.Currency,
		"mode":            "IMPS",
		"purpose":         "payout",
		"reference_id":    req.ReferenceID,
		"narration":       req.Narration,
	}
	headers := map[string]string{"X-Payout-Idempotency": req.IdempotencyKey}
	var payout Payout
	if err := c.do(ctx, http.MethodPost, "/v1/payouts", body, headers, &payout); err != nil {
		return nil, err
	}
	if payout.ID == "" {
		return nil, fmt.Errorf("gateway returned payout without id")
	}
	return &payout, nil
}

func (c *Client) do(ctx context.Context, method, path string, in interface{}, headers map[string]string, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}

// toMinorUnits переводит сумму в копейки (пайсы).
func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
