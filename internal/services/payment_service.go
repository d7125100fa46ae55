package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/senyabanana/forge-service/internal/gateway"
	"github.com/senyabanana/forge-service/internal/models"
	"github.com/senyabanana/forge-service/internal/repository"
)

// DefaultPayoutHold - период удержания средств перед выплатой исполнителю.
const DefaultPayoutHold = 48 * time.Hour

type PaymentService struct {
	Contracts     repository.ContractRepository
	Vendors       repository.VendorRepository
	Repo          repository.PaymentRepository
	Gateway       PaymentGateway
	Notifier      Notifier
	Logger        *log.Logger
	KeySecret     string
	WebhookSecret string
	Currency      string
	PayoutHold    time.Duration
	clock         clock
}

// NewPaymentService создает новый экземпляр PaymentService.
func NewPaymentService(
	contracts repository.ContractRepository,
	vendors repository.VendorRepository,
	repo repository.PaymentRepository,
	gw PaymentGateway,
	notifier Notifier,
	logger *log.Logger,
) *PaymentService {
	return &PaymentService{
		Contracts:  contracts,
		Vendors:    vendors,
		Repo:       repo,
		Gateway:    gw,
		Notifier:   notifier,
		Logger:     logger,
		Currency:   "INR",
		PayoutHold: DefaultPayoutHold,
	}
}

// CreateOrder открывает заказ на оплату подписанного договора.
// Если у договора уже есть действующий платеж, возвращается он.
func (s *PaymentService) CreateOrder(ctx context.Context, actor models.Actor, contractId string) (*models.Payment, error) {
	if contractId == "" {
		return nil, models.NewValidationError("contractId is required")
	}
	contract, err := s.Contracts.GetContract(ctx, contractId)
	if err != nil {
		return nil, err
	}
	if actor.UserID != contract.ClientID {
		return nil, models.NewForbiddenError("only the event owner can pay for contract %s", contractId)
	}
	if contract.Status != models.SignedContract {
		return nil, models.NewValidationError("contract must be signed by both parties before payment")
	}

	existing, err := s.Repo.GetActivePayment(ctx, contract.ID)
	if err == nil {
		return existing, nil
	}
	if !models.IsNotFound(err) {
		return nil, err
	}

	order, err := s.Gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   contract.Total,
		Currency: s.Currency,
		Receipt:  contract.ID,
		Metadata: map[string]string{"contractId": contract.ID, "eventId": contract.EventID},
	})
	if err != nil {
		return nil, models.NewGatewayError("failed to create payment order", err)
	}

	now := s.clock.now()
	payment := &models.Payment{
		ID:             uuid.New().String(),
		ContractID:     contract.ID,
		Amount:         contract.Total,
		Currency:       s.Currency,
		Status:         models.PendingPayment,
		Commission:     contract.Commission,
		GatewayOrderID: order.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	created, err := s.Repo.CreatePayment(ctx, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		// параллельный запрос успел раньше, заказ в шлюзе остается неиспользованным
		s.Logger.Printf("gateway order %s for contract %s is unused, another payment is active", order.ID, contract.ID)
		return s.Repo.GetActivePayment(ctx, contract.ID)
	}
	return payment, nil
}

// VerifyPayment проверяет подпись оплаты и переводит платеж в PROCESSING.
// Повтор с тем же идентификатором платежа возвращает сохраненный платеж.
func (s *PaymentService) VerifyPayment(ctx context.Context, verifyReq models.VerifyPaymentRequest) (*models.Payment, error) {
	if verifyReq.OrderID == "" || verifyReq.PaymentID == "" || verifyReq.Signature == "" {
		return nil, models.NewValidationError("orderId, paymentId and signature are required")
	}
	if !gateway.VerifyPaymentSignature(s.KeySecret, verifyReq.OrderID, verifyReq.PaymentID, verifyReq.Signature) {
		return nil, models.NewValidationError("invalid payment signature")
	}

	payment, err := s.Repo.GetPaymentByOrderID(ctx, verifyReq.OrderID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PendingPayment {
		ok, err := s.Repo.MarkProcessing(ctx, verifyReq.OrderID, verifyReq.PaymentID, verifyReq.Signature)
		if err != nil {
			return nil, err
		}
		payment, err = s.Repo.GetPaymentByOrderID(ctx, verifyReq.OrderID)
		if err != nil {
			return nil, err
		}
		if ok {
			return payment, nil
		}
	}

	switch payment.Status {
	case models.FailedPayment:
		return nil, models.NewValidationError("payment for order %s has failed", verifyReq.OrderID)
	case models.PendingPayment:
		return nil, models.NewValidationError("payment for order %s changed concurrently, retry", verifyReq.OrderID)
	}
	if payment.GatewayPaymentID == nil || *payment.GatewayPaymentID != verifyReq.PaymentID {
		return nil, models.NewValidationError("order %s is already bound to another payment", verifyReq.OrderID)
	}
	return payment, nil
}

// HandleWebhook применяет уведомление шлюза. Повторные уведомления ничего не меняют.
func (s *PaymentService) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !gateway.VerifyWebhookSignature(s.WebhookSecret, body, signature) {
		return models.NewValidationError("invalid webhook signature")
	}
	event, err := gateway.ParseWebhook(body)
	if err != nil {
		return models.NewValidationError("%s", err.Error())
	}

	switch event.Event {
	case gateway.EventPaymentCaptured:
		orderId, paymentId, ok := event.PaymentIDs()
		if !ok {
			return models.NewValidationError("webhook %s has no payment entity", event.Event)
		}
		completed, err := s.Repo.MarkCompleted(ctx, orderId, paymentId, s.clock.now())
		if err != nil {
			return err
		}
		if completed {
			s.notifyPaymentCompleted(ctx, orderId)
		}
	case gateway.EventPaymentFailed:
		orderId, _, ok := event.PaymentIDs()
		if !ok {
			return models.NewValidationError("webhook %s has no payment entity", event.Event)
		}
		if _, err := s.Repo.MarkFailed(ctx, orderId); err != nil {
			return err
		}
	case gateway.EventPayoutProcessed:
		payoutId, ok := event.PayoutID()
		if !ok {
			return models.NewValidationError("webhook %s has no payout entity", event.Event)
		}
		if _, err := s.Repo.CompletePayout(ctx, payoutId); err != nil {
			return err
		}
	case gateway.EventPayoutFailed, gateway.EventPayoutReversed:
		payoutId, ok := event.PayoutID()
		if !ok {
			return models.NewValidationError("webhook %s has no payout entity", event.Event)
		}
		if _, err := s.Repo.FailPayout(ctx, payoutId); err != nil {
			return err
		}
	default:
		s.Logger.Printf("ignoring gateway webhook %s", event.Event)
	}
	return nil
}

// InitiatePayout переводит исполнителю его часть после периода удержания.
// Администратор может выплатить раньше срока.
func (s *PaymentService) InitiatePayout(ctx context.Context, actor models.Actor, paymentId string) (*models.VendorPayout, error) {
	if paymentId == "" {
		return nil, models.NewValidationError("paymentId is required")
	}
	if !actor.Valid() {
		return nil, models.NewForbiddenError("actor is required")
	}
	payment, err := s.Repo.GetPayment(ctx, paymentId)
	if err != nil {
		return nil, err
	}
	contract, err := s.Contracts.GetContract(ctx, payment.ContractID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizePayout(ctx, actor, contract); err != nil {
		return nil, err
	}

	done, err := s.Repo.HasCompletedPayout(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if done {
		return nil, models.NewConflictError("payout for payment %s is already completed", payment.ID)
	}
	if payment.Status != models.CompletedPayment {
		return nil, models.NewValidationError("payment must be %s to pay out, it is %s", models.CompletedPayment, payment.Status)
	}

	account, err := s.Vendors.GetPayoutAccount(ctx, contract.VendorID)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	if !account.Complete() {
		return nil, models.NewValidationError("vendor payout details are incomplete")
	}

	now := s.clock.now()
	if !actor.IsAdmin() && !payment.HoldElapsed(now, s.PayoutHold) {
		return nil, models.NewValidationError("payout hold period of %s has not elapsed", s.PayoutHold)
	}

	attempt, err := s.Repo.CountPayouts(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	// после проваленной выплаты повтор запускает только человек
	if attempt > 0 && actor.Role == models.RoleSystem {
		return nil, models.NewValidationError("payout for payment %s failed before, retry requires admin or vendor", payment.ID)
	}
	amount := contract.Commission.VendorPayout
	transfer, err := s.Gateway.CreatePayout(ctx, gateway.PayoutRequest{
		Destination:    gateway.PayoutDestination{FundAccountID: account.FundAccountID, AccountHolder: account.AccountHolder},
		Amount:         amount,
		Currency:       payment.Currency,
		ReferenceID:    payment.ID,
		IdempotencyKey: fmt.Sprintf("%s:%d", payment.ID, attempt),
		Narration:      "payout for contract " + contract.ID,
	})
	if err != nil {
		return nil, models.NewGatewayError("failed to create payout", err)
	}

	payout := &models.VendorPayout{
		ID:              uuid.New().String(),
		PaymentID:       payment.ID,
		ContractID:      contract.ID,
		VendorID:        contract.VendorID,
		Amount:          amount,
		Status:          models.ProcessingPayout,
		GatewayPayoutID: transfer.ID,
		InitiatedAt:     now,
		UpdatedAt:       now,
	}
	started, err := s.Repo.StartPayout(ctx, payout)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, models.NewConflictError("payout for payment %s is already in progress", payment.ID)
	}

	notify(ctx, s.Notifier, contract.EventID, models.PayoutInitiatedTemplate, contract.VendorID, map[string]string{
		"paymentId": payment.ID,
		"amount":    amount.StringFixed(2),
	})
	return payout, nil
}

func (s *PaymentService) authorizePayout(ctx context.Context, actor models.Actor, contract *models.Contract) error {
	if actor.IsAdmin() || actor.Role == models.RoleSystem {
		return nil
	}
	vendor, err := s.Vendors.GetVendorByUserID(ctx, actor.UserID)
	if models.IsNotFound(err) {
		return models.NewForbiddenError("not allowed to initiate payout")
	}
	if err != nil {
		return err
	}
	if vendor.ID != contract.VendorID {
		return models.NewForbiddenError("not allowed to initiate payout")
	}
	return nil
}

func (s *PaymentService) notifyPaymentCompleted(ctx context.Context, orderId string) {
	payment, err := s.Repo.GetPaymentByOrderID(ctx, orderId)
	if err != nil {
		s.Logger.Printf("failed to load payment for order %s: %v", orderId, err)
		return
	}
	contract, err := s.Contracts.GetContract(ctx, payment.ContractID)
	if err != nil {
		s.Logger.Printf("failed to load contract %s: %v", payment.ContractID, err)
		return
	}
	data := map[string]string{"paymentId": payment.ID, "amount": payment.Amount.StringFixed(2)}
	notify(ctx, s.Notifier, contract.EventID, models.PaymentCompletedTemplate, contract.ClientID, data)
	notify(ctx, s.Notifier, contract.EventID, models.PaymentCompletedTemplate, contract.VendorID, data)
}
