package services

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/senyabanana/forge-service/internal/commission"
	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/repository"
)

type ContractService struct {
	Events   repository.EventRepository
	Bids     repository.BidRepository
	Vendors  repository.VendorRepository
	Promos   repository.PromoRepository
	Repo     repository.ContractRepository
	Renderer DocumentRenderer
	Notifier Notifier
	Schedule commission.Schedule
	Logger   *log.Logger
	clock    clock
}

// NewContractService создает новый экземпляр ContractService со стандартной сеткой комиссий.
func NewContractService(
	events repository.EventRepository,
	bids repository.BidRepository,
	vendors repository.VendorRepository,
	promos repository.PromoRepository,
	repo repository.ContractRepository,
	renderer DocumentRenderer,
	notifier Notifier,
	logger *log.Logger,
) *ContractService {
	return &ContractService{
		Events:   events,
		Bids:     bids,
		Vendors:  vendors,
		Promos:   promos,
		Repo:     repo,
		Renderer: renderer,
		Notifier: notifier,
		Schedule: commission.DefaultSchedule(),
		Logger:   logger,
	}
}

// GenerateContract создает договор по принятому предложению победителя.
func (s *ContractService) GenerateContract(ctx context.Context, actor models.Actor, contractReq models.ContractRequest) (*models.Contract, error) {
	if contractReq.EventID == "" || contractReq.BidID == "" {
		return nil, models.NewValidationError("eventId and bidId are required")
	}
	event, err := s.Events.GetEvent(ctx, contractReq.EventID)
	if err != nil {
		return nil, err
	}
	if event.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, models.NewForbiddenError("only the event owner can generate a contract")
	}

	_, err = s.Repo.GetContractByBid(ctx, contractReq.BidID)
	if err == nil {
		return nil, models.NewConflictError("contract already exists for bid %s", contractReq.BidID)
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	if event.Status != models.WinnerSelected {
		return nil, models.NewValidationError("event must be %s to generate a contract, it is %s", models.WinnerSelected, event.Status)
	}
	if event.WinnerBidID == nil || *event.WinnerBidID != contractReq.BidID {
		return nil, models.NewValidationError("bid %s is not the designated winner", contractReq.BidID)
	}
	if err := checkTransition(event.Status, models.Commissioned); err != nil {
		return nil, err
	}

	bid, err := s.Bids.GetBid(ctx, contractReq.BidID)
	if err != nil {
		return nil, err
	}
	if bid.EventID != event.ID {
		return nil, models.NewValidationError("bid %s does not belong to event %s", bid.ID, event.ID)
	}
	if bid.Status != models.AcceptedBid {
		return nil, models.NewValidationError("only accepted bids can be contracted, bid is %s", bid.Status)
	}

	vendor, err := s.Vendors.GetVendor(ctx, bid.VendorID)
	if err != nil {
		return nil, err
	}

	now := s.clock.now()
	var promo *commission.Promo
	if code := strings.TrimSpace(contractReq.PromoCode); code != "" {
		promo, err = s.Promos.GetPromo(ctx, code)
		if models.IsNotFound(err) {
			return nil, models.NewValidationError("unknown promo code %q", code)
		}
		if err != nil {
			return nil, err
		}
	}
	breakdown, err := s.Schedule.CalculateWithPromo(bid.Total, contractReq.PaymentMethod, promo, now)
	if err != nil {
		return nil, commissionError(err)
	}

	milestones := models.BuildMilestones(bid.Total)
	contractId := uuid.New().String()
	doc := models.ContractDocument{
		ContractID:  contractId,
		EventID:     event.ID,
		BidID:       bid.ID,
		ClientID:    event.OwnerID,
		VendorID:    vendor.ID,
		VendorName:  vendor.BusinessName,
		ClientBrief: event.ClientBrief,
		Items:       bid.Items,
		Subtotal:    bid.Subtotal,
		Taxes:       bid.Taxes,
		Total:       bid.Total,
		Deposit:     milestones[0].Amount,
		Milestones:  milestones,
		Commission:  breakdown,
		Notes:       bid.Notes,
		GeneratedAt: now,
	}
	ref, err := s.Renderer.Render(ctx, doc)
	if err != nil {
		return nil, models.NewGatewayError("failed to render contract document", err)
	}

	contract := &models.Contract{
		ID:          contractId,
		EventID:     event.ID,
		BidID:       bid.ID,
		VendorID:    vendor.ID,
		ClientID:    event.OwnerID,
		Document:    doc,
		DocumentRef: ref,
		Total:       bid.Total,
		Deposit:     doc.Deposit,
		Milestones:  milestones,
		Commission:  breakdown,
		Promo:       promo,
		Signatures:  map[models.SignerRole]models.Signature{},
		Status:      models.PendingContract,
		CreatedAt:   now,
	}
	if err := s.Repo.CreateContract(ctx, contract, event.Status); err != nil {
		return nil, err
	}

	data := map[string]string{"contractId": contract.ID, "documentUri": ref.URI}
	notify(ctx, s.Notifier, event.ID, models.ContractGeneratedTemplate, event.OwnerID, data)
	notify(ctx, s.Notifier, event.ID, models.ContractGeneratedTemplate, vendor.ID, data)
	return contract, nil
}

// Sign добавляет подпись стороны. Исполнитель подписывает только после заказчика.
// Когда есть обе подписи, договор становится SIGNED, а мероприятие переходит в IN_FORGE.
func (s *ContractService) Sign(ctx context.Context, actor models.Actor, contractId string, signer models.SignerInfo) (*models.Contract, error) {
	if signer.Role != models.ClientSigner && signer.Role != models.VendorSigner {
		return nil, models.NewValidationError("role must be %q or %q", models.ClientSigner, models.VendorSigner)
	}
	if strings.TrimSpace(signer.Name) == "" || strings.TrimSpace(signer.Email) == "" {
		return nil, models.NewValidationError("signer name and email are required")
	}
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	contract, err := s.getContract(ctx, contractId)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeSigner(ctx, actor, contract, signer.Role); err != nil {
		return nil, err
	}
	if err := signPrecondition(contract, signer.Role); err != nil {
		return nil, err
	}

	signature := models.Signature{
		UserID:    actor.UserID,
		Name:      signer.Name,
		Email:     signer.Email,
		IP:        signer.IP,
		UserAgent: signer.UserAgent,
		SignedAt:  s.clock.now(),
	}
	updated, flipped, err := s.Repo.AddSignature(ctx, contract.ID, signer.Role, signature)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// условие не выполнилось: кто-то подписал раньше
		current, err := s.getContract(ctx, contract.ID)
		if err != nil {
			return nil, err
		}
		if err := signPrecondition(current, signer.Role); err != nil {
			return nil, err
		}
		return nil, models.NewValidationError("contract changed while signing, retry")
	}

	if flipped {
		data := map[string]string{"contractId": updated.ID}
		notify(ctx, s.Notifier, updated.EventID, models.ContractSignedTemplate, updated.ClientID, data)
		notify(ctx, s.Notifier, updated.EventID, models.ContractSignedTemplate, updated.VendorID, data)
	}
	return updated, nil
}

// GetContract возвращает договор одной из сторон или администратору.
func (s *ContractService) GetContract(ctx context.Context, actor models.Actor, contractId string) (*models.Contract, error) {
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	contract, err := s.getContract(ctx, contractId)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.UserID == contract.ClientID {
		return contract, nil
	}
	if err := s.authorizeSigner(ctx, actor, contract, models.VendorSigner); err != nil {
		return nil, models.NewForbiddenError("not allowed to view contract %s", contractId)
	}
	return contract, nil
}

// GetDocument возвращает сохраненный текст договора тем же участникам, что и GetContract.
func (s *ContractService) GetDocument(ctx context.Context, actor models.Actor, contractId string) (string, []byte, error) {
	contract, err := s.GetContract(ctx, actor, contractId)
	if err != nil {
		return "", nil, err
	}
	contentType, body, err := s.Renderer.Open(ctx, contract.DocumentRef)
	if err != nil {
		if models.IsNotFound(err) {
			return "", nil, err
		}
		return "", nil, models.NewGatewayError("failed to open contract document", err)
	}
	return contentType, body, nil
}

func (s *ContractService) getContract(ctx context.Context, contractId string) (*models.Contract, error) {
	if contractId == "" {
		return nil, models.NewValidationError("contractId is required")
	}
	return s.Repo.GetContract(ctx, contractId)
}

// authorizeSigner проверяет право актора подписывать за сторону.
// Исполнитель определяется только через профиль пользователя.
func (s *ContractService) authorizeSigner(ctx context.Context, actor models.Actor, contract *models.Contract, role models.SignerRole) error {
	switch role {
	case models.ClientSigner:
		if actor.UserID != contract.ClientID {
			return models.NewForbiddenError("only the event owner can sign as client")
		}
		return nil
	case models.VendorSigner:
		vendor, err := s.Vendors.GetVendorByUserID(ctx, actor.UserID)
		if models.IsNotFound(err) {
			return models.NewForbiddenError("user %s has no vendor profile", actor.UserID)
		}
		if err != nil {
			return err
		}
		if vendor.ID != contract.VendorID {
			return models.NewForbiddenError("only the contracted vendor can sign as vendor")
		}
		return nil
	}
	return models.NewValidationError("unknown signer role %q", role)
}

func signPrecondition(contract *models.Contract, role models.SignerRole) error {
	if contract.HasSignature(role) {
		return models.NewConflictError("contract is already signed by the %s", role)
	}
	if contract.Status != models.PendingContract {
		return models.NewConflictError("contract is already %s", contract.Status)
	}
	if role == models.VendorSigner && !contract.HasSignature(models.ClientSigner) {
		return models.NewValidationError("client must sign before the vendor")
	}
	return nil
}

func commissionError(err error) error {
	var promoErr *commission.PromoError
	switch {
	case errors.As(err, &promoErr):
		return models.NewValidationError("%s", promoErr.Error())
	case errors.Is(err, commission.ErrUnknownMethod), errors.Is(err, commission.ErrNegativeValue):
		return models.NewValidationError("%s", err.Error())
	}
	return err
}
