package handlers

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/utils"
)

// SignatureHeader - заголовок с подписью вебхука платежного шлюза.
const SignatureHeader = "X-Gateway-Signature"

// PaymentService - операции над платежами, которые вызывает PaymentHandler.
type PaymentService interface {
	CreateOrder(ctx context.Context, actor models.Actor, contractId string) (*models.Payment, error)
	VerifyPayment(ctx context.Context, verifyReq models.VerifyPaymentRequest) (*models.Payment, error)
	HandleWebhook(ctx context.Context, body []byte, signature string) error
	InitiatePayout(ctx context.Context, actor models.Actor, paymentId string) (*models.VendorPayout, error)
}

// PaymentHandler - обработчик HTTP-запросов по платежам и выплатам.
type PaymentHandler struct {
	Service PaymentService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewPaymentHandler создает новый экземпляр PaymentHandler.
func NewPaymentHandler(service PaymentService, logger *log.Logger, timeout time.Duration) *PaymentHandler {
	return &PaymentHandler{Service: service, Logger: logger, Timeout: timeout}
}

// CreateOrder обрабатывает запросы заказчика на создание заказа оплаты по договору.
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	payment, err := h.Service.CreateOrder(ctx, actor, r.PathValue("contractId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to create order")
		return
	}
	sendResult(h.Logger, w, http.StatusCreated, payment)
}

// VerifyPayment обрабатывает подтверждение оплаты, пришедшее от клиента.
func (h *PaymentHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	var verifyReq models.VerifyPaymentRequest
	if !decodeBody(w, r, &verifyReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	payment, err := h.Service.VerifyPayment(ctx, verifyReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to verify payment")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, payment)
}

// Webhook принимает уведомления платежного шлюза.
// Подпись проверяется по сырому телу запроса, поэтому тело не декодируется здесь.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.Logger.Println(err)
		utils.SendErrorResponse(w, http.StatusBadRequest, "failed to read webhook body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	if err := h.Service.HandleWebhook(ctx, body, r.Header.Get(SignatureHeader)); err != nil {
		sendServiceError(h.Logger, w, err, "failed to process webhook")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

// InitiatePayout обрабатывает запросы на выплату исполнителю.
func (h *PaymentHandler) InitiatePayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	payout, err := h.Service.InitiatePayout(ctx, actor, r.PathValue("paymentId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to initiate payout")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, payout)
}
