package models

import "time"

// Template - шаблон уведомления.
type Template string

const (
	BidSubmittedTemplate      Template = "bid_submitted"
	BidShortlistedTemplate    Template = "bid_shortlisted"
	BidRejectedTemplate       Template = "bid_rejected"
	WinnerSelectedTemplate    Template = "winner_selected"
	ContractGeneratedTemplate Template = "contract_generated"
	ContractSignedTemplate    Template = "contract_signed"
	PaymentCompletedTemplate  Template = "payment_completed"
	PayoutInitiatedTemplate   Template = "payout_initiated"
)

// Notification - уведомление участнику. Доставкой занимается внешний сервис.
type Notification struct {
	ID        string            `json:"id"`
	EventID   string            `json:"eventId"`
	Template  Template          `json:"template"`
	Recipient string            `json:"recipient"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
