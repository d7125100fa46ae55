package models

import (
	"encoding/json"
	"time"

	"github.com/senyabanana/forge-service/internal/commission"

	"github.com/shopspring/decimal"
)

type (
	ContractStatus string // Статус договора
	SignerRole     string // Сторона договора
)

const (
	PendingContract ContractStatus = "PENDING"
	SignedContract  ContractStatus = "SIGNED"

	ClientSigner SignerRole = "client"
	VendorSigner SignerRole = "vendor"
)

// Milestone - этап оплаты по договору.
type Milestone struct {
	Name    string          `json:"name"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
	Due     string          `json:"due"`
}

// Signature - подпись одной из сторон.
type Signature struct {
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
	SignedAt  time.Time `json:"signedAt"`
}

// SignerInfo представляет структуру запроса на подписание договора.
type SignerInfo struct {
	Role      SignerRole `json:"role"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	IP        string     `json:"-"`
	UserAgent string     `json:"-"`
}

// ContractDocument - неизменяемый снимок условий договора.
type ContractDocument struct {
	ContractID  string               `json:"contractId"`
	EventID     string               `json:"eventId"`
	BidID       string               `json:"bidId"`
	ClientID    string               `json:"clientId"`
	VendorID    string               `json:"vendorId"`
	VendorName  string               `json:"vendorName"`
	ClientBrief json.RawMessage      `json:"clientBrief"`
	Items       []LineItem           `json:"items"`
	Subtotal    decimal.Decimal      `json:"subtotal"`
	Taxes       decimal.Decimal      `json:"taxes"`
	Total       decimal.Decimal      `json:"total"`
	Deposit     decimal.Decimal      `json:"deposit"`
	Milestones  []Milestone          `json:"milestones"`
	Commission  commission.Breakdown `json:"commission"`
	Notes       string               `json:"notes"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

// DocumentRef - ссылка на отрендеренный документ договора.
type DocumentRef struct {
	URI    string `json:"uri"`
	SHA256 string `json:"sha256"`
}

// Contract представляет модель договора.
type Contract struct {
	ID          string                   `json:"id"`
	EventID     string                   `json:"eventId"`
	BidID       string                   `json:"bidId"`
	VendorID    string                   `json:"vendorId"`
	ClientID    string                   `json:"clientId"`
	Document    ContractDocument         `json:"document"`
	DocumentRef DocumentRef              `json:"documentRef"`
	Total       decimal.Decimal          `json:"totalAmount"`
	Deposit     decimal.Decimal          `json:"depositAmount"`
	Milestones  []Milestone              `json:"milestones"`
	Commission  commission.Breakdown     `json:"commission"`
	Promo       *commission.Promo        `json:"promo,omitempty"`
	Signatures  map[SignerRole]Signature `json:"signatures"`
	Status      ContractStatus           `json:"status"`
	SignedAt    *time.Time               `json:"signedAt,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
}

// ContractRequest представляет структуру запроса для создания договора.
type ContractRequest struct {
	EventID       string            `json:"eventId"`
	BidID         string            `json:"bidId"`
	PaymentMethod commission.Method `json:"paymentMethod"`
	PromoCode     string            `json:"promoCode,omitempty"`
}

// Milestone split, fixed by policy.
var milestonePlan = []struct {
	name    string
	percent int64
	due     string
}{
	{"signing", 30, "on_signing"},
	{"pre_event", 50, "before_event"},
	{"completion", 20, "on_completion"},
}

// BuildMilestones делит сумму договора на этапы 30/50/20.
// Последний этап забирает остаток округления, сумма этапов равна total.
func BuildMilestones(total decimal.Decimal) []Milestone {
	milestones := make([]Milestone, 0, len(milestonePlan))
	allocated := decimal.Zero
	for i, step := range milestonePlan {
		percent := decimal.NewFromInt(step.percent)
		amount := total.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
		if i == len(milestonePlan)-1 {
			amount = total.Sub(allocated)
		}
		allocated = allocated.Add(amount)
		milestones = append(milestones, Milestone{Name: step.name, Percent: percent, Amount: amount, Due: step.due})
	}
	return milestones
}

// HasSignature сообщает, подписала ли сторона договор.
func (c *Contract) HasSignature(role SignerRole) bool {
	_, ok := c.Signatures[role]
	return ok
}
