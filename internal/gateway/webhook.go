package gateway

import (
	"encoding/json"
	"fmt"
)

// Типы уведомлений шлюза.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventPayoutProcessed = "payout.processed"
	EventPayoutFailed    = "payout.failed"
	EventPayoutReversed  = "payout.reversed"
)

// WebhookEvent - уведомление шлюза об изменении платежа или выплаты.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment,omitempty"`
		Payout *struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"payout,omitempty"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

// ParseWebhook разбирает тело уведомления.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}
	if event.Event == "" {
		return nil, fmt.Errorf("webhook payload has no event type")
	}
	return &event, nil
}

// PaymentIDs возвращает идентификаторы заказа и платежа, если уведомление о платеже.
func (e *WebhookEvent) PaymentIDs() (orderID, paymentID string, ok bool) {
	if e.Payload.Payment == nil || e.Payload.Payment.Entity.OrderID == "" {
		return "", "", false
	}
	return e.Payload.Payment.Entity.OrderID, e.Payload.Payment.Entity.ID, true
}

// PayoutID возвращает идентификатор выплаты, если уведомление о выплате.
func (e *WebhookEvent) PayoutID() (string, bool) {
	if e.Payload.Payout == nil || e.Payload.Payout.Entity.ID == "" {
		return "", false
	}
	return e.Payload.Payout.Entity.ID, true
}
