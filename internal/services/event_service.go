package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/repository"
)

// Допустимые переходы статуса мероприятия. Все операции проверяют переход только здесь.
var allowedEventTransitions = map[models.ForgeStatus][]models.ForgeStatus{
	models.BlueprintReady:     {models.OpenForBids, models.Archived},
	models.OpenForBids:        {models.CraftsmenBidding, models.ShortlistReview, models.WinnerSelected, models.Archived},
	models.CraftsmenBidding:   {models.ShortlistReview, models.WinnerSelected, models.Archived},
	models.ShortlistReview:    {models.FinalBiddingOpen, models.WinnerSelected, models.Archived},
	models.FinalBiddingOpen:   {models.FinalBiddingClosed, models.Archived},
	models.FinalBiddingClosed: {models.WinnerSelected, models.Archived},
	models.WinnerSelected:     {models.Commissioned, models.InForge, models.Archived},
	models.Commissioned:       {models.InForge, models.Archived},
	models.InForge:            {models.CompletedEvent},
	models.CompletedEvent:     {models.Archived},
	models.Archived:           {},
}

// Статусы, в которые мероприятие переводят только операции конвейера.
var managedEventStatuses = map[models.ForgeStatus]bool{
	models.WinnerSelected: true,
	models.Commissioned:   true,
	models.InForge:        true,
}

// Статусы предложений, из которых можно выбрать победителя.
var winnerEligibleBids = []models.BidStatus{models.SubmittedBid, models.ShortlistedBid, models.AcceptedBid}

// CanTransition сообщает, существует ли переход from -> to.
func CanTransition(from, to models.ForgeStatus) bool {
	for _, next := range allowedEventTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, что из статуса нет переходов.
func IsTerminal(status models.ForgeStatus) bool {
	next, ok := allowedEventTransitions[status]
	return ok && len(next) == 0
}

func checkTransition(from, to models.ForgeStatus) error {
	if _, ok := allowedEventTransitions[to]; !ok {
		return models.NewValidationError("unknown event status: %s", to)
	}
	if IsTerminal(from) {
		return models.NewValidationError("event is %s and cannot change status", from)
	}
	if !CanTransition(from, to) {
		return models.NewValidationError("transition from %s to %s is not allowed", from, to)
	}
	return nil
}

type EventService struct {
	Repo     repository.EventRepository
	Bids     repository.BidRepository
	Notifier Notifier
	Logger   *log.Logger
	clock    clock
}

// NewEventService создает новый экземпляр EventService.
func NewEventService(repo repository.EventRepository, bids repository.BidRepository, notifier Notifier, logger *log.Logger) *EventService {
	return &EventService{Repo: repo, Bids: bids, Notifier: notifier, Logger: logger}
}

// CreateEvent создает мероприятие сразу открытым для ставок.
func (s *EventService) CreateEvent(ctx context.Context, actor models.Actor, eventReq models.EventRequest) (*models.Event, error) {
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	if actor.Role != models.RoleClient && actor.Role != models.RoleAdmin {
		return nil, models.NewForbiddenError("only clients can create events")
	}
	brief, err := jsonOrEmpty(eventReq.ClientBrief, "clientBrief")
	if err != nil {
		return nil, err
	}
	blueprint, err := jsonOrEmpty(eventReq.Blueprint, "blueprint")
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	if eventReq.BiddingDeadline != nil && !eventReq.BiddingDeadline.After(now) {
		return nil, models.NewValidationError("bidding deadline must be in the future")
	}

	event := &models.Event{
		ID:              uuid.New().String(),
		OwnerID:         actor.UserID,
		Status:          models.OpenForBids,
		ClientBrief:     brief,
		Blueprint:       blueprint,
		BiddingDeadline: eventReq.BiddingDeadline,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Repo.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

// GetEvent возвращает мероприятие.
func (s *EventService) GetEvent(ctx context.Context, eventId string) (*models.Event, error) {
	if eventId == "" {
		return nil, models.NewValidationError("eventId is required")
	}
	return s.Repo.GetEvent(ctx, eventId)
}

// Transition переводит мероприятие в статус target.
// Переход в текущий статус ничего не меняет.
func (s *EventService) Transition(ctx context.Context, actor models.Actor, eventId string, target models.ForgeStatus) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	if event.Status == target {
		return event, nil
	}
	if err := checkTransition(event.Status, target); err != nil {
		return nil, err
	}
	if managedEventStatuses[target] {
		return nil, models.NewValidationError("status %s is set by the pipeline and cannot be requested directly", target)
	}
	return s.advance(ctx, event, target)
}

// CloseBiddingWindow закрывает прием ставок. Вне фаз приема ставок ничего не делает.
func (s *EventService) CloseBiddingWindow(ctx context.Context, actor models.Actor, eventId string) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}

	var target models.ForgeStatus
	switch event.Status {
	case models.OpenForBids, models.CraftsmenBidding:
		target = models.ShortlistReview
	case models.FinalBiddingOpen:
		target = models.FinalBiddingClosed
	default:
		return event, nil
	}

	updated, err := s.advance(ctx, event, target)
	if models.IsValidation(err) {
		// окно уже закрыто параллельным запросом
		return s.Repo.GetEvent(ctx, eventId)
	}
	return updated, err
}

// OpenFinalBidding открывает финальный раунд ставок после шорт-листа.
func (s *EventService) OpenFinalBidding(ctx context.Context, actor models.Actor, eventId string) (*models.Event, error) {
	event, err := s.ownedEvent(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	if event.Status != models.ShortlistReview {
		return nil, models.NewValidationError("final bidding can only be opened from %s, event is %s", models.ShortlistReview, event.Status)
	}
	return s.advance(ctx, event, models.FinalBiddingOpen)
}

// DesignateWinner выбирает победителя. Предложение принимается, остальные отклоняются.
func (s *EventService) DesignateWinner(ctx context.Context, actor models.Actor, eventId, bidId string) (*models.Event, error) {
	if bidId == "" {
		return nil, models.NewValidationError("bidId is required")
	}
	event, err := s.ownedEvent(ctx, actor, eventId)
	if err != nil {
		return nil, err
	}
	if event.WinnerBidID != nil {
		if *event.WinnerBidID == bidId {
			return nil, models.NewConflictError("bid %s is already the winner", bidId)
		}
		return nil, models.NewValidationError("event already has a winner")
	}
	if err := checkTransition(event.Status, models.WinnerSelected); err != nil {
		return nil, err
	}

	bid, err := s.Bids.GetBid(ctx, bidId)
	if err != nil {
		return nil, err
	}
	if bid.EventID != event.ID {
		return nil, models.NewValidationError("bid %s does not belong to event %s", bidId, eventId)
	}
	if !bidStatusIn(bid.Status, winnerEligibleBids) {
		return nil, models.NewValidationError("bid in status %s cannot win", bid.Status)
	}

	ok, err := s.Repo.DesignateWinner(ctx, event.ID, bid.ID, event.Status, winnerEligibleBids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("event or bid changed while designating the winner")
	}

	notify(ctx, s.Notifier, event.ID, models.WinnerSelectedTemplate, bid.VendorID, map[string]string{"bidId": bid.ID})
	return s.Repo.GetEvent(ctx, event.ID)
}

// advance выполняет проверенный переход условным обновлением.
func (s *EventService) advance(ctx context.Context, event *models.Event, target models.ForgeStatus) (*models.Event, error) {
	if err := checkTransition(event.Status, target); err != nil {
		return nil, err
	}
	ok, err := s.Repo.UpdateEventStatus(ctx, event.ID, event.Status, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewValidationError("event status changed concurrently, expected %s", event.Status)
	}
	return s.Repo.GetEvent(ctx, event.ID)
}

// ownedEvent загружает мероприятие и проверяет, что актор - владелец или администратор.
func (s *EventService) ownedEvent(ctx context.Context, actor models.Actor, eventId string) (*models.Event, error) {
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	event, err := s.GetEvent(ctx, eventId)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("only the event owner can manage event %s", eventId)
	}
	return event, nil
}

func jsonOrEmpty(raw json.RawMessage, field string) (json.RawMessage, error) {
	if len(raw) == 0 {
		return json.RawMessage(`{}`), nil
	}
	if !json.Valid(raw) {
		return nil, models.NewValidationError("%s must be valid JSON", field)
	}
	return raw, nil
}

func bidStatusIn(status models.BidStatus, statuses []models.BidStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
