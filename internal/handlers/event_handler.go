package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/forge-service/internal/models"
)

// EventService - операции над мероприятиями, которые вызывает EventHandler.
type EventService interface {
	CreateEvent(ctx context.Context, actor models.Actor, eventReq models.EventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, eventId string) (*models.Event, error)
	Transition(ctx context.Context, actor models.Actor, eventId string, target models.ForgeStatus) (*models.Event, error)
	CloseBiddingWindow(ctx context.Context, actor models.Actor, eventId string) (*models.Event, error)
	OpenFinalBidding(ctx context.Context, actor models.Actor, eventId string) (*models.Event, error)
	DesignateWinner(ctx context.Context, actor models.Actor, eventId, bidId string) (*models.Event, error)
}

// EventHandler - обработчик HTTP-запросов по мероприятиям.
type EventHandler struct {
	Service EventService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewEventHandler создает новый экземпляр EventHandler.
func NewEventHandler(service EventService, logger *log.Logger, timeout time.Duration) *EventHandler {
	return &EventHandler{Service: service, Logger: logger, Timeout: timeout}
}

// CreateEvent обрабатывает запросы для создания мероприятия.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var eventReq models.EventRequest
	if !decodeBody(w, r, &eventReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.CreateEvent(ctx, actor, eventReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to create event")
		return
	}
	sendResult(h.Logger, w, http.StatusCreated, event)
}

// GetEvent обрабатывает запросы для получения мероприятия.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.GetEvent(ctx, r.PathValue("eventId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to get event")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}

type statusRequest struct {
	Status models.ForgeStatus `json:"status"`
}

// UpdateEventStatus обрабатывает запросы для смены статуса мероприятия.
func (h *EventHandler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var statusReq statusRequest
	if !decodeBody(w, r, &statusReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.Transition(ctx, actor, r.PathValue("eventId"), statusReq.Status)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to update event status")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}

// CloseBidding обрабатывает запросы на закрытие приема ставок.
func (h *EventHandler) CloseBidding(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.CloseBiddingWindow(ctx, actor, r.PathValue("eventId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to close bidding")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}

// OpenFinalBidding обрабатывает запросы на открытие финального раунда.
func (h *EventHandler) OpenFinalBidding(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.OpenFinalBidding(ctx, actor, r.PathValue("eventId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to open final bidding")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}

type winnerRequest struct {
	BidID string `json:"bidId"`
}

// DesignateWinner обрабатывает запросы на выбор победителя.
func (h *EventHandler) DesignateWinner(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var winnerReq winnerRequest
	if !decodeBody(w, r, &winnerReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	event, err := h.Service.DesignateWinner(ctx, actor, r.PathValue("eventId"), winnerReq.BidID)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to designate winner")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, event)
}
