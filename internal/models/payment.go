package models

import (
	"time"

	"github.com/senyabanana/forge-service/internal/commission"

	"github.com/shopspring/decimal"
)

type (
	PaymentStatus string // Статус платежа
	PayoutStatus  string // Статус выплаты исполнителю
)

const (
	PendingPayment          PaymentStatus = "PENDING"
	ProcessingPayment       PaymentStatus = "PROCESSING"
	CompletedPayment        PaymentStatus = "COMPLETED"
	PayoutProcessingPayment PaymentStatus = "PAYOUT_PROCESSING"
	FailedPayment           PaymentStatus = "FAILED"

	ProcessingPayout PayoutStatus = "PROCESSING"
	CompletedPayout  PayoutStatus = "COMPLETED"
	FailedPayout     PayoutStatus = "FAILED"
)

// Payment представляет модель платежа по договору.
type Payment struct {
	ID               string               `json:"id"`
	ContractID       string               `json:"contractId"`
	Amount           decimal.Decimal      `json:"amount"`
	Currency         string               `json:"currency"`
	Status           PaymentStatus        `json:"status"`
	Commission       commission.Breakdown `json:"commission"`
	GatewayOrderID   string               `json:"gatewayOrderId"`
	GatewayPaymentID *string              `json:"gatewayPaymentId,omitempty"`
	GatewaySignature *string              `json:"-"`
	CompletedAt      *time.Time           `json:"completedAt,omitempty"`
	CreatedAt        time.Time            `json:"createdAt"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}

// VendorPayout представляет модель выплаты исполнителю.
type VendorPayout struct {
	ID              string          `json:"id"`
	PaymentID       string          `json:"paymentId"`
	ContractID      string          `json:"contractId"`
	VendorID        string          `json:"vendorId"`
	Amount          decimal.Decimal `json:"amount"`
	Status          PayoutStatus    `json:"status"`
	GatewayPayoutID string          `json:"gatewayPayoutId"`
	InitiatedAt     time.Time       `json:"initiatedAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// VerifyPaymentRequest представляет структуру запроса подтверждения оплаты от клиента.
type VerifyPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// HoldElapsed сообщает, истек ли период удержания к моменту now.
func (p *Payment) HoldElapsed(now time.Time, hold time.Duration) bool {
	if p.CompletedAt == nil {
		return false
	}
	return now.Sub(*p.CompletedAt) >= hold
}
