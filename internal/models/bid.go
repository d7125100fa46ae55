package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus - статус предложения исполнителя.
type BidStatus string

const (
	DraftBid       BidStatus = "DRAFT"
	SubmittedBid   BidStatus = "SUBMITTED"
	ShortlistedBid BidStatus = "SHORTLISTED"
	RejectedBid    BidStatus = "REJECTED"
	AcceptedBid    BidStatus = "ACCEPTED"
)

// TaxRate - ставка налога на сумму предложения, в процентах.
var TaxRate = decimal.NewFromInt(18)

// LineItem - позиция сметы.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    int64           `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

// BidSnapshot - состояние предложения до пересмотра.
type BidSnapshot struct {
	Items    []LineItem      `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
	Notes    string          `json:"notes"`
}

// Bid представляет модель предложения.
type Bid struct {
	ID        string          `json:"id"`
	EventID   string          `json:"eventId"`
	VendorID  string          `json:"vendorId"`
	Status    BidStatus       `json:"status"`
	Items     []LineItem      `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Taxes     decimal.Decimal `json:"taxes"`
	Total     decimal.Decimal `json:"total"`
	Notes     string          `json:"notes"`
	RevisedAt *time.Time      `json:"revisedAt,omitempty"`
	Previous  *BidSnapshot    `json:"previous,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BidRequest представляет структуру запроса для создания или пересмотра предложения.
type BidRequest struct {
	Items        []LineItem       `json:"items"`
	Notes        string           `json:"notes"`
	ClaimedTotal *decimal.Decimal `json:"claimedTotal,omitempty"`
}

// ShortlistRequest представляет структуру запроса для формирования шорт-листа.
type ShortlistRequest struct {
	BidIDs           []string         `json:"bidIds"`
	FloorPrice       *decimal.Decimal `json:"floorPrice,omitempty"`
	RevisionDeadline time.Time        `json:"revisionDeadline"`
}

// BidFeedback - положение предложения относительно шорт-листа.
type BidFeedback struct {
	BidID            string          `json:"bidId"`
	FloorPrice       decimal.Decimal `json:"floorPrice"`
	PercentageAbove  int64           `json:"percentageAbove"`
	IsLowestBid      bool            `json:"isLowestBid"`
	ShortlistedCount int             `json:"shortlistedCount"`
}

// Snapshot возвращает копию денежной части предложения.
func (b *Bid) Snapshot() *BidSnapshot {
	items := make([]LineItem, len(b.Items))
	copy(items, b.Items)
	return &BidSnapshot{
		Items:    items,
		Subtotal: b.Subtotal,
		Taxes:    b.Taxes,
		Total:    b.Total,
		Notes:    b.Notes,
	}
}

// PriceItems считает подытог, налог (округленный до целых) и итог сметы.
func PriceItems(items []LineItem) (subtotal, taxes, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(item.Quantity)))
	}
	subtotal = subtotal.Round(2)
	taxes = subtotal.Mul(TaxRate).Div(decimal.NewFromInt(100)).Round(0)
	total = subtotal.Add(taxes)
	return subtotal, taxes, total
}
