package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ForgeStatus - статус мероприятия в конвейере.
type ForgeStatus string

const (
	BlueprintReady     ForgeStatus = "BLUEPRINT_READY"
	OpenForBids        ForgeStatus = "OPEN_FOR_BIDS"
	CraftsmenBidding   ForgeStatus = "CRAFTSMEN_BIDDING"
	ShortlistReview    ForgeStatus = "SHORTLIST_REVIEW"
	FinalBiddingOpen   ForgeStatus = "FINAL_BIDDING_OPEN"
	FinalBiddingClosed ForgeStatus = "FINAL_BIDDING_CLOSED"
	WinnerSelected     ForgeStatus = "WINNER_SELECTED"
	Commissioned       ForgeStatus = "COMMISSIONED"
	InForge            ForgeStatus = "IN_FORGE"
	CompletedEvent     ForgeStatus = "COMPLETED"
	Archived           ForgeStatus = "ARCHIVED"
)

// ShortlistData - данные раунда пересмотра ставок.
type ShortlistData struct {
	FloorPrice       decimal.Decimal `json:"floorPrice"`
	RevisionDeadline time.Time       `json:"revisionDeadline"`
}

// Event представляет модель мероприятия.
type Event struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Status          ForgeStatus     `json:"forgeStatus"`
	ClientBrief     json.RawMessage `json:"clientBrief"`
	Blueprint       json.RawMessage `json:"blueprint"`
	BiddingDeadline *time.Time      `json:"biddingDeadline,omitempty"`
	WinnerBidID     *string         `json:"winnerBidId,omitempty"`
	Shortlist       *ShortlistData  `json:"shortlist,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// EventRequest представляет структуру запроса для создания мероприятия.
type EventRequest struct {
	ClientBrief     json.RawMessage `json:"clientBrief"`
	Blueprint       json.RawMessage `json:"blueprint"`
	BiddingDeadline *time.Time      `json:"biddingDeadline,omitempty"`
}

// AcceptsBids сообщает, открыт ли прием ставок в момент now.
func (e *Event) AcceptsBids(now time.Time) bool {
	if e.Status != OpenForBids && e.Status != CraftsmenBidding {
		return false
	}
	return e.BiddingDeadline == nil || now.Before(*e.BiddingDeadline)
}
