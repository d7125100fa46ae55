package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/utils"
)

// ContractService - операции над договорами, которые вызывает ContractHandler.
type ContractService interface {
	GenerateContract(ctx context.Context, actor models.Actor, contractReq models.ContractRequest) (*models.Contract, error)
	Sign(ctx context.Context, actor models.Actor, contractId string, signer models.SignerInfo) (*models.Contract, error)
	GetContract(ctx context.Context, actor models.Actor, contractId string) (*models.Contract, error)
	GetDocument(ctx context.Context, actor models.Actor, contractId string) (string, []byte, error)
}

// ContractHandler - обработчик HTTP-запросов по договорам.
type ContractHandler struct {
	Service ContractService
	Logger  *log.Logger
	Timeout time.Duration
}

// NewContractHandler создает новый экземпляр ContractHandler.
func NewContractHandler(service ContractService, logger *log.Logger, timeout time.Duration) *ContractHandler {
	return &ContractHandler{Service: service, Logger: logger, Timeout: timeout}
}

// GenerateContract обрабатывает запросы для формирования договора по выигравшей ставке.
func (h *ContractHandler) GenerateContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var contractReq models.ContractRequest
	if !decodeBody(w, r, &contractReq) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	contract, err := h.Service.GenerateContract(ctx, actor, contractReq)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to generate contract")
		return
	}
	sendResult(h.Logger, w, http.StatusCreated, contract)
}

// GetContract обрабатывает запросы для получения договора.
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	contract, err := h.Service.GetContract(ctx, actor, r.PathValue("contractId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to get contract")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, contract)
}

// GetDocument отдает сохраненный текст договора.
func (h *ContractHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	contentType, body, err := h.Service.GetDocument(ctx, actor, r.PathValue("contractId"))
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to get contract document")
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.Logger.Println(err)
	}
}

// SignContract обрабатывает запросы на подписание договора.
// IP и User-Agent подписанта берутся из самого запроса.
func (h *ContractHandler) SignContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var signer models.SignerInfo
	if !decodeBody(w, r, &signer) {
		return
	}
	signer.IP = utils.ClientIP(r)
	signer.UserAgent = r.UserAgent()

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()

	contract, err := h.Service.Sign(ctx, actor, r.PathValue("contractId"), signer)
	if err != nil {
		sendServiceError(h.Logger, w, err, "failed to sign contract")
		return
	}
	sendResult(h.Logger, w, http.StatusOK, contract)
}
