package services

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/repository"
)

// Допустимое расхождение заявленной суммы с пересчитанной.
var totalTolerance = decimal.NewFromInt(1)

// Статусы, которые владелец видит в списке предложений.
var visibleBidStatuses = []models.BidStatus{
	models.SubmittedBid,
	models.ShortlistedBid,
	models.RejectedBid,
	models.AcceptedBid,
}

type BidService struct {
	Events   *EventService
	Repo     repository.BidRepository
	Vendors  repository.VendorRepository
	Notifier Notifier
	Logger   *log.Logger
	clock    clock
}

// NewBidService создает новый экземпляр BidService.
func NewBidService(events *EventService, repo repository.BidRepository, vendors repository.VendorRepository, notifier Notifier, logger *log.Logger) *BidService {
	return &BidService{Events: events, Repo: repo, Vendors: vendors, Notifier: notifier, Logger: logger}
}

// SaveDraft создает или обновляет черновик предложения исполнителя.
func (s *BidService) SaveDraft(ctx context.Context, actor models.Actor, eventId string, bidReq models.BidRequest) (*models.Bid, error) {
	vendor, event, err := s.biddingContext(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	if err := validateItems(bidReq.Items); err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetVendorBid(ctx, event.ID, vendor.ID)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		if existing.Status != models.DraftBid {
			return nil, models.NewValidationError("bid for this event is already submitted")
		}
		applyItems(existing, bidReq, s.clock.now())
		ok, err := s.Repo.UpdateDraftBid(ctx, existing, models.DraftBid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewValidationError("bid for this event is already submitted")
		}
		return existing, nil
	}

	bid := s.newBid(event.ID, vendor.ID, models.DraftBid, bidReq)
	if err := s.Repo.CreateBid(ctx, bid); err != nil {
		if models.IsConflict(err) {
			return nil, models.NewValidationError("bid for this event already exists")
		}
		return nil, err
	}
	return bid, nil
}

// SubmitBid подает предложение. Черновик исполнителя переводится в SUBMITTED на месте.
func (s *BidService) SubmitBid(ctx context.Context, actor models.Actor, eventId string, bidReq models.BidRequest) (*models.Bid, error) {
	vendor, event, err := s.biddingContext(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	if err := validateItems(bidReq.Items); err != nil {
		return nil, err
	}
	_, _, total := models.PriceItems(bidReq.Items)
	if err := checkClaimedTotal(bidReq.ClaimedTotal, total); err != nil {
		return nil, err
	}

	existing, err := s.Repo.GetVendorBid(ctx, event.ID, vendor.ID)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}

	var bid *models.Bid
	if existing != nil {
		if existing.Status != models.DraftBid {
			return nil, models.NewValidationError("vendor already has a bid on this event")
		}
		applyItems(existing, bidReq, s.clock.now())
		ok, err := s.Repo.UpdateDraftBid(ctx, existing, models.SubmittedBid)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, models.NewValidationError("vendor already has a bid on this event")
		}
		existing.Status = models.SubmittedBid
		bid = existing
	} else {
		bid = s.newBid(event.ID, vendor.ID, models.SubmittedBid, bidReq)
		if err := s.Repo.CreateBid(ctx, bid); err != nil {
			if models.IsConflict(err) {
				return nil, models.NewValidationError("vendor already has a bid on this event")
			}
			return nil, err
		}
	}

	if event.Status == models.OpenForBids {
		// первая ставка; если статус уже сменился, переход не нужен
		if _, err := s.Events.Repo.UpdateEventStatus(ctx, event.ID, models.OpenForBids, models.CraftsmenBidding); err != nil {
			s.Logger.Printf("failed to move event %s to %s: %v", event.ID, models.CraftsmenBidding, err)
		}
	}

	notify(ctx, s.Notifier, event.ID, models.BidSubmittedTemplate, event.OwnerID, map[string]string{
		"bidId":  bid.ID,
		"vendor": vendor.BusinessName,
		"total":  bid.Total.StringFixed(2),
	})
	return bid, nil
}

// ListBids возвращает поданные предложения мероприятия владельцу.
func (s *BidService) ListBids(ctx context.Context, actor models.Actor, eventId string, limit, offset int) ([]models.Bid, error) {
	if _, err := s.Events.ownedEvent(ctx, actor, eventId); err != nil {
		return nil, err
	}
	return s.Repo.ListEventBids(ctx, eventId, visibleBidStatuses, limit, offset)
}

// GetBid возвращает предложение его исполнителю, владельцу мероприятия или администратору.
// Черновики видит только исполнитель.
func (s *BidService) GetBid(ctx context.Context, actor models.Actor, bidId string) (*models.Bid, error) {
	bid, event, err := s.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	isVendor, err := s.isBidVendor(ctx, actor, bid)
	if err != nil {
		return nil, err
	}
	switch {
	case isVendor:
		return bid, nil
	case bid.Status == models.DraftBid:
		return nil, models.NewNotFoundError("bid not found")
	case actor.UserID == event.OwnerID || actor.IsAdmin():
		return bid, nil
	default:
		return nil, models.NewForbiddenError("not allowed to view bid %s", bidId)
	}
}

// Shortlist отбирает предложения для раунда пересмотра, остальные поданные отклоняет.
func (s *BidService) Shortlist(ctx context.Context, actor models.Actor, eventId string, shortlistReq models.ShortlistRequest) (*models.Event, error) {
	event, err := s.Events.ownedEvent(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	reshortlist := event.Status == models.ShortlistReview && event.Shortlist == nil
	if !reshortlist {
		if err := checkTransition(event.Status, models.ShortlistReview); err != nil {
			return nil, err
		}
	}
	if !shortlistReq.RevisionDeadline.After(s.clock.now()) {
		return nil, models.NewValidationError("revision deadline must be in the future")
	}

	ids := dedupe(shortlistReq.BidIDs)
	if len(ids) == 0 {
		return nil, models.NewValidationError("at least one bid must be shortlisted")
	}

	submitted, err := s.Repo.ListEventBids(ctx, event.ID, []models.BidStatus{models.SubmittedBid}, 0, 0)
	if err != nil {
		return nil, err
	}
	byId := make(map[string]models.Bid, len(submitted))
	for _, bid := range submitted {
		byId[bid.ID] = bid
	}

	var floor decimal.Decimal
	for i, id := range ids {
		bid, ok := byId[id]
		if !ok {
			return nil, models.NewValidationError("bid %s is not a submitted bid of this event", id)
		}
		if i == 0 || bid.Total.LessThan(floor) {
			floor = bid.Total
		}
	}
	if shortlistReq.FloorPrice != nil && !shortlistReq.FloorPrice.Equal(floor) {
		return nil, models.NewValidationError("floor price must equal the lowest shortlisted total %s", floor.StringFixed(2))
	}

	data := models.ShortlistData{FloorPrice: floor, RevisionDeadline: shortlistReq.RevisionDeadline.UTC()}
	ok, err := s.Events.Repo.SaveShortlist(ctx, event.ID, event.Status, ids, data)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("event or bids changed while shortlisting")
	}

	selected := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		selected[id] = struct{}{}
	}
	for _, bid := range submitted {
		template := models.BidRejectedTemplate
		if _, ok := selected[bid.ID]; ok {
			template = models.BidShortlistedTemplate
		}
		notify(ctx, s.Notifier, event.ID, template, bid.VendorID, map[string]string{
			"bidId":            bid.ID,
			"revisionDeadline": data.RevisionDeadline.Format(time.RFC3339),
		})
	}
	return s.Events.Repo.GetEvent(ctx, event.ID)
}

// ReviseBid выполняет единственный пересмотр предложения из шорт-листа.
func (s *BidService) ReviseBid(ctx context.Context, actor models.Actor, bidId string, bidReq models.BidRequest) (*models.Bid, error) {
	bid, event, err := s.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	isVendor, err := s.isBidVendor(ctx, actor, bid)
	if err != nil {
		return nil, err
	}
	if !isVendor {
		return nil, models.NewForbiddenError("only the bidding vendor can revise bid %s", bidId)
	}
	if bid.RevisedAt != nil {
		return nil, models.NewValidationError("bid has already been revised")
	}
	if bid.Status != models.ShortlistedBid {
		return nil, models.NewValidationError("only shortlisted bids can be revised, bid is %s", bid.Status)
	}
	now := s.clock.now()
	if event.Shortlist == nil || !now.Before(event.Shortlist.RevisionDeadline) {
		return nil, models.NewValidationError("revision deadline has passed")
	}
	if err := validateItems(bidReq.Items); err != nil {
		return nil, err
	}
	if bidReq.ClaimedTotal == nil {
		return nil, models.NewValidationError("claimedTotal is required to revise a bid")
	}
	_, _, total := models.PriceItems(bidReq.Items)
	if err := checkClaimedTotal(bidReq.ClaimedTotal, total); err != nil {
		return nil, err
	}

	previous := bid.Snapshot()
	applyItems(bid, bidReq, now)
	bid.RevisedAt = &now
	bid.Previous = previous

	ok, err := s.Repo.ReviseBid(ctx, bid, previous)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("bid has already been revised")
	}
	return bid, nil
}

// GetFeedback сравнивает предложение с лучшим предложением шорт-листа.
func (s *BidService) GetFeedback(ctx context.Context, actor models.Actor, bidId string) (*models.BidFeedback, error) {
	bid, event, err := s.loadBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	isVendor, err := s.isBidVendor(ctx, actor, bid)
	if err != nil {
		return nil, err
	}
	if !isVendor && actor.UserID != event.OwnerID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("not allowed to view feedback for bid %s", bidId)
	}
	if bid.Status != models.ShortlistedBid {
		return nil, models.NewValidationError("feedback is only available for shortlisted bids")
	}

	shortlisted, err := s.Repo.ListEventBids(ctx, event.ID, []models.BidStatus{models.ShortlistedBid}, 0, 0)
	if err != nil {
		return nil, err
	}
	return Feedback(*bid, shortlisted)
}

// Feedback считает положение bid среди shortlisted: floor - минимальная сумма,
// percentageAbove = round((total - floor) / floor * 100).
func Feedback(bid models.Bid, shortlisted []models.Bid) (*models.BidFeedback, error) {
	if len(shortlisted) == 0 {
		return nil, models.NewValidationError("event has no shortlisted bids")
	}
	floor := shortlisted[0].Total
	for _, b := range shortlisted[1:] {
		if b.Total.LessThan(floor) {
			floor = b.Total
		}
	}

	var above int64
	if floor.IsPositive() {
		above = bid.Total.Sub(floor).Div(floor).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	}
	return &models.BidFeedback{
		BidID:            bid.ID,
		FloorPrice:       floor,
		PercentageAbove:  above,
		IsLowestBid:      bid.Total.Equal(floor),
		ShortlistedCount: len(shortlisted),
	}, nil
}

// biddingContext проверяет, что актор - исполнитель, а мероприятие принимает ставки.
func (s *BidService) biddingContext(ctx context.Context, actor models.Actor, eventId string) (*models.Vendor, *models.Event, error) {
	vendor, err := s.vendorFor(ctx, actor)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.Events.GetEvent(ctx, eventId)
	if err != nil {
		return nil, nil, err
	}
	if !event.AcceptsBids(s.clock.now()) {
		return nil, nil, models.NewValidationError("bidding closed")
	}
	return vendor, event, nil
}

func (s *BidService) vendorFor(ctx context.Context, actor models.Actor) (*models.Vendor, error) {
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	vendor, err := s.Vendors.GetVendorByUserID(ctx, actor.UserID)
	if models.IsNotFound(err) {
		return nil, models.NewForbiddenError("user %s has no vendor profile", actor.UserID)
	}
	return vendor, err
}

// isBidVendor сообщает, принадлежит ли предложение исполнителю актора.
func (s *BidService) isBidVendor(ctx context.Context, actor models.Actor, bid *models.Bid) (bool, error) {
	if !actor.Valid() {
		return false, models.NewForbiddenError("actor is required")
	}
	if actor.Role != models.RoleVendor {
		return false, nil
	}
	vendor, err := s.Vendors.GetVendorByUserID(ctx, actor.UserID)
	if models.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return vendor.ID == bid.VendorID, nil
}

func (s *BidService) loadBid(ctx context.Context, bidId string) (*models.Bid, *models.Event, error) {
	if bidId == "" {
		return nil, nil, models.NewValidationError("bidId is required")
	}
	bid, err := s.Repo.GetBid(ctx, bidId)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.Events.Repo.GetEvent(ctx, bid.EventID)
	if err != nil {
		return nil, nil, err
	}
	return bid, event, nil
}

func (s *BidService) newBid(eventId, vendorId string, status models.BidStatus, bidReq models.BidRequest) *models.Bid {
	now := s.clock.now()
	bid := &models.Bid{
		ID:        uuid.New().String(),
		EventID:   eventId,
		VendorID:  vendorId,
		Status:    status,
		CreatedAt: now,
	}
	applyItems(bid, bidReq, now)
	return bid
}

func applyItems(bid *models.Bid, bidReq models.BidRequest, now time.Time) {
	bid.Items = bidReq.Items
	bid.Notes = bidReq.Notes
	bid.Subtotal, bid.Taxes, bid.Total = models.PriceItems(bidReq.Items)
	bid.UpdatedAt = now
}

func validateItems(items []models.LineItem) error {
	if len(items) == 0 {
		return models.NewValidationError("bid must contain at least one line item")
	}
	for i, item := range items {
		if item.Description == "" {
			return models.NewValidationError("line item %d has no description", i+1)
		}
		if item.Quantity <= 0 {
			return models.NewValidationError("line item %d must have a positive quantity", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return models.NewValidationError("line item %d has a negative price", i+1)
		}
	}
	return nil
}

func checkClaimedTotal(claimed *decimal.Decimal, computed decimal.Decimal) error {
	if claimed == nil {
		return nil
	}
	if claimed.Sub(computed).Abs().GreaterThan(totalTolerance) {
		return models.NewValidationError("claimed total %s does not match computed total %s", claimed.StringFixed(2), computed.StringFixed(2))
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
