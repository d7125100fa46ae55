package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/utils"
)

// BidService - операции над ставками, которые вызывает BidHandler.
type BidService interface {
	SaveDraft(ctx context.Context, actor models.Actor, eventId string, bidReq models.BidRequest) (*models.Bid, error)
	SubmitBid(ctx context.Context, actor models.Actor, eventId string, bidReq models.BidRequest) (*models.Bid, error)
	ListBids(ctx context.Context, actor models.Actor, eventId string, limit, offset int) ([]models.Bid, error)
	GetBid(ctx context.Context, actor models.Actor, bidId string) (*models.Bid, error)
	Shortlist(ctx context.Context, actor models.Actor, eventId string, shortlistReq models.ShortlistRequest) (*models.Event, error)
	ReviseBid(ctx context.Context, actor models.Actor, bidId string, bidReq models.BidRequest) (*models.Bid, error)
	GetFeedback(ctx context.Context, actor models.Actor, bidId string) (*models.BidFeedback, error)
}

// BidHandler - обработчик HTTP-запросов по ставкам исполнителей.
type BidHandler struct {
	Service BidService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewBidHandler создает новый экземпляр BidHandler.
func NewBidHandler(service BidService, logger *log.Logger, timeout time.Duration) *BidHandler {
	return &BidHandler{Service: service, Logger: logger, Timeout: timeout}
}

// SaveDraft обрабатывает запросы для сохранения черновика ставки.
func (h *BidHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	h.writeBid(w, r, http.StatusOK, "failed to save draft", h.Service.SaveDraft)
}

// SubmitBid обрабатывает запросы для подачи ставки.
func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	h.writeBid(w, r, http.StatusCreated, "failed to submit bid", h.Service.SubmitBid)
}

func (h *BidHandler) writeBid(w http.ResponseWriter, r *http.Request, statusCode int, fallback string,
	call func(context.Context, models.Actor, string, models.BidRequest) (*models.Bid, error)) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var bidReq models.BidRequest
	if !decodeBody(w, r, &bidReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := call(ctx, actor, r.PathValue("eventId"), bidReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, fallback)
		return
	}
	sendResult(h.Logger, w, statusCode, bid)
}

// ListBids обрабатывает запросы для получения списка ставок мероприятия.
func (h *BidHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	limit, offset, err := utils.ParseLimitOffset(r.URL.Query().Get("limit"), r.URL.Query().Get("offset"))
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bids, err := h.Service.ListBids(ctx, actor, r.PathValue("eventId"), limit, offset)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to fetch bids")
		return
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	sendResult(h.Logger, w, http.StatusOK, bids)
}

// GetBid обрабатывает запросы для получения ставки.
func (h *BidHandler) GetBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.GetBid(ctx, actor, r.PathValue("bidId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to get bid")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, bid)
}

// Shortlist обрабатывает запросы заказчика на формирование шорт-листа.
func (h *BidHandler) Shortlist(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var shortlistReq models.ShortlistRequest
	if !decodeBody(w, r, &shortlistReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.Shortlist(ctx, actor, r.PathValue("eventId"), shortlistReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to shortlist bids")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}

// ReviseBid обрабатывает запросы на единственный пересмотр ставки.
func (h *BidHandler) ReviseBid(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var bidReq models.BidRequest
	if !decodeBody(w, r, &bidReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	bid, err := h.Service.ReviseBid(ctx, actor, r.PathValue("bidId"), bidReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to revise bid")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, bid)
}

// GetFeedback обрабатывает запросы исполнителя на сравнение с минимальной ставкой.
func (h *BidHandler) GetFeedback(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	feedback, err := h.Service.GetFeedback(ctx, actor, r.PathValue("bidId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to get feedback")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, feedback)
}
