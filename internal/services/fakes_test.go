package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/senyabanana/forge-service/internal/commission"
	"github.com/senyabanana/forge-service/internal/gateway"
	"github.com/senyabanana/forge-service/internal/models"
)

// memStore реализует все репозитории в памяти с теми же условными переходами, что и Postgres.
type memStore struct {
	mu        sync.Mutex
	events    map[string]models.Event
	bids      map[string]models.Bid
	vendors   map[string]models.Vendor
	accounts  map[string]models.PayoutAccount
	promos    map[string]commission.Promo
	contracts map[string]models.Contract
	payments  map[string]models.Payment
	payouts   map[string]models.VendorPayout
}

func newMemStore() *memStore {
	return &memStore{
		events:    map[string]models.Event{},
		bids:      map[string]models.Bid{},
		vendors:   map[string]models.Vendor{},
		accounts:  map[string]models.PayoutAccount{},
		promos:    map[string]commission.Promo{},
		contracts: map[string]models.Contract{},
		payments:  map[string]models.Payment{},
		payouts:   map[string]models.VendorPayout{},
	}
}

// события

func (m *memStore) CreateEvent(_ context.Context, event *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = *event
	return nil
}

func (m *memStore) GetEvent(_ context.Context, eventId string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventId]
	if !ok {
		return nil, models.NewNotFoundError("event not found")
	}
	return &event, nil
}

func (m *memStore) UpdateEventStatus(_ context.Context, eventId string, from, to models.ForgeStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setEventStatus(eventId, []models.ForgeStatus{from}, to), nil
}

func (m *memStore) setEventStatus(eventId string, from []models.ForgeStatus, to models.ForgeStatus) bool {
	event, ok := m.events[eventId]
	if !ok {
		return false
	}
	for _, f := range from {
		if event.Status == f {
			event.Status = to
			m.events[eventId] = event
			return true
		}
	}
	return false
}

func (m *memStore) SaveShortlist(_ context.Context, eventId string, from models.ForgeStatus, bidIds []string, shortlist models.ShortlistData) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventId]
	if !ok || event.Status != from {
		return false, nil
	}
	selected := map[string]bool{}
	for _, id := range bidIds {
		bid, ok := m.bids[id]
		if !ok || bid.EventID != eventId || bid.Status != models.SubmittedBid {
			return false, nil
		}
		selected[id] = true
	}
	for id, bid := range m.bids {
		if bid.EventID != eventId || bid.Status != models.SubmittedBid {
			continue
		}
		if selected[id] {
			bid.Status = models.ShortlistedBid
		} else {
			bid.Status = models.RejectedBid
		}
		m.bids[id] = bid
	}
	event.Status = models.ShortlistReview
	event.Shortlist = &shortlist
	m.events[eventId] = event
	return true, nil
}

func (m *memStore) DesignateWinner(_ context.Context, eventId, bidId string, from models.ForgeStatus, eligible []models.BidStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventId]
	if !ok || event.Status != from || event.WinnerBidID != nil {
		return false, nil
	}
	bid, ok := m.bids[bidId]
	if !ok || bid.EventID != eventId || !bidStatusIn(bid.Status, eligible) {
		return false, nil
	}
	for id, other := range m.bids {
		if other.EventID == eventId && id != bidId && (other.Status == models.SubmittedBid || other.Status == models.ShortlistedBid) {
			other.Status = models.RejectedBid
			m.bids[id] = other
		}
	}
	bid.Status = models.AcceptedBid
	m.bids[bidId] = bid
	winner := bidId
	event.WinnerBidID = &winner
	event.Status = models.WinnerSelected
	m.events[eventId] = event
	return true, nil
}

// предложения

func (m *memStore) CreateBid(_ context.Context, bid *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.bids {
		if other.EventID == bid.EventID && other.VendorID == bid.VendorID {
			return models.NewConflictError("bid already exists for this vendor")
		}
	}
	m.bids[bid.ID] = *bid
	return nil
}

func (m *memStore) GetBid(_ context.Context, bidId string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[bidId]
	if !ok {
		return nil, models.NewNotFoundError("bid not found")
	}
	return &bid, nil
}

func (m *memStore) GetVendorBid(_ context.Context, eventId, vendorId string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, bid := range m.bids {
		if bid.EventID == eventId && bid.VendorID == vendorId {
			return &bid, nil
		}
	}
	return nil, models.NewNotFoundError("bid not found")
}

func (m *memStore) ListEventBids(_ context.Context, eventId string, statuses []models.BidStatus, limit, offset int) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Bid
	for _, bid := range m.bids {
		if bid.EventID != eventId {
			continue
		}
		if len(statuses) > 0 && !bidStatusIn(bid.Status, statuses) {
			continue
		}
		out = append(out, bid)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.LessThan(out[j].Total)
		}
		return out[i].ID < out[j].ID
	})
	if offset > len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) UpdateDraftBid(_ context.Context, bid *models.Bid, to models.BidStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bids[bid.ID]
	if !ok || stored.Status != models.DraftBid {
		return false, nil
	}
	updated := *bid
	updated.Status = to
	m.bids[bid.ID] = updated
	return true, nil
}

func (m *memStore) ReviseBid(_ context.Context, bid *models.Bid, previous *models.BidSnapshot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bids[bid.ID]
	if !ok || stored.Status != models.ShortlistedBid || stored.RevisedAt != nil {
		return false, nil
	}
	updated := *bid
	updated.Previous = previous
	m.bids[bid.ID] = updated
	return true, nil
}

// исполнители и промокоды

func (m *memStore) GetVendor(_ context.Context, vendorId string) (*models.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vendor, ok := m.vendors[vendorId]
	if !ok {
		return nil, models.NewNotFoundError("vendor not found")
	}
	return &vendor, nil
}

func (m *memStore) GetVendorByUserID(_ context.Context, userId string) (*models.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, vendor := range m.vendors {
		if vendor.UserID == userId {
			return &vendor, nil
		}
	}
	return nil, models.NewNotFoundError("vendor not found")
}

func (m *memStore) GetPayoutAccount(_ context.Context, vendorId string) (*models.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[vendorId]
	if !ok {
		return nil, models.NewNotFoundError("payout account not found")
	}
	return &account, nil
}

func (m *memStore) GetPromo(_ context.Context, code string) (*commission.Promo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	promo, ok := m.promos[code]
	if !ok {
		return nil, models.NewNotFoundError("promo code not found")
	}
	return &promo, nil
}

// договоры

func (m *memStore) CreateContract(_ context.Context, contract *models.Contract, eventFrom models.ForgeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.contracts {
		if other.BidID == contract.BidID {
			return models.NewConflictError("contract already exists for this bid")
		}
	}
	if contract.Promo != nil {
		promo, ok := m.promos[contract.Promo.Code]
		if !ok || !promo.Active || (promo.UsageLimit > 0 && promo.UsedCount >= promo.UsageLimit) {
			return models.NewValidationError("promo code %q is no longer available", contract.Promo.Code)
		}
	}
	event, ok := m.events[contract.EventID]
	if !ok || event.Status != eventFrom {
		return models.NewValidationError("event is no longer in %s", eventFrom)
	}
	if contract.Promo != nil {
		promo := m.promos[contract.Promo.Code]
		promo.UsedCount++
		m.promos[promo.Code] = promo
	}
	event.Status = models.Commissioned
	m.events[event.ID] = event
	m.contracts[contract.ID] = copyContract(*contract)
	return nil
}

func (m *memStore) GetContract(_ context.Context, contractId string) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contract, ok := m.contracts[contractId]
	if !ok {
		return nil, models.NewNotFoundError("contract not found")
	}
	c := copyContract(contract)
	return &c, nil
}

func (m *memStore) GetContractByBid(_ context.Context, bidId string) (*models.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, contract := range m.contracts {
		if contract.BidID == bidId {
			c := copyContract(contract)
			return &c, nil
		}
	}
	return nil, models.NewNotFoundError("contract not found")
}

func (m *memStore) AddSignature(_ context.Context, contractId string, role models.SignerRole, signature models.Signature) (*models.Contract, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	contract, ok := m.contracts[contractId]
	if !ok || contract.Status != models.PendingContract || contract.HasSignature(role) {
		return nil, false, nil
	}
	if role != models.ClientSigner && !contract.HasSignature(models.ClientSigner) {
		return nil, false, nil
	}
	contract = copyContract(contract)
	contract.Signatures[role] = signature
	flipped := false
	if contract.HasSignature(models.ClientSigner) && contract.HasSignature(models.VendorSigner) {
		contract.Status = models.SignedContract
		at := signature.SignedAt
		contract.SignedAt = &at
		flipped = true
		m.setEventStatus(contract.EventID, []models.ForgeStatus{models.WinnerSelected, models.Commissioned}, models.InForge)
	}
	m.contracts[contractId] = contract
	c := copyContract(contract)
	return &c, flipped, nil
}

func copyContract(c models.Contract) models.Contract {
	signatures := make(map[models.SignerRole]models.Signature, len(c.Signatures))
	for k, v := range c.Signatures {
		signatures[k] = v
	}
	c.Signatures = signatures
	return c
}

// платежи и выплаты

func (m *memStore) CreatePayment(_ context.Context, payment *models.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, other := range m.payments {
		if other.ContractID == payment.ContractID && other.Status != models.FailedPayment {
			return false, nil
		}
	}
	m.payments[payment.ID] = *payment
	return true, nil
}

func (m *memStore) GetPayment(_ context.Context, paymentId string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[paymentId]
	if !ok {
		return nil, models.NewNotFoundError("payment not found")
	}
	return &payment, nil
}

func (m *memStore) GetPaymentByOrderID(_ context.Context, orderId string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.GatewayOrderID == orderId {
			return &payment, nil
		}
	}
	return nil, models.NewNotFoundError("payment not found")
}

func (m *memStore) GetActivePayment(_ context.Context, contractId string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, payment := range m.payments {
		if payment.ContractID == contractId && payment.Status != models.FailedPayment {
			return &payment, nil
		}
	}
	return nil, models.NewNotFoundError("payment not found")
}

func (m *memStore) updatePaymentByOrder(orderId string, from []models.PaymentStatus, apply func(*models.Payment)) bool {
	for id, payment := range m.payments {
		if payment.GatewayOrderID != orderId {
			continue
		}
		for _, f := range from {
			if payment.Status == f {
				apply(&payment)
				m.payments[id] = payment
				return true
			}
		}
	}
	return false
}

func (m *memStore) MarkProcessing(_ context.Context, orderId, gatewayPaymentId, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentByOrder(orderId, []models.PaymentStatus{models.PendingPayment}, func(p *models.Payment) {
		p.Status = models.ProcessingPayment
		p.GatewayPaymentID = &gatewayPaymentId
		p.GatewaySignature = &signature
	}), nil
}

func (m *memStore) MarkCompleted(_ context.Context, orderId, gatewayPaymentId string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentByOrder(orderId, []models.PaymentStatus{models.PendingPayment, models.ProcessingPayment}, func(p *models.Payment) {
		p.Status = models.CompletedPayment
		if p.GatewayPaymentID == nil {
			p.GatewayPaymentID = &gatewayPaymentId
		}
		p.CompletedAt = &at
	}), nil
}

func (m *memStore) MarkFailed(_ context.Context, orderId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePaymentByOrder(orderId, []models.PaymentStatus{models.PendingPayment, models.ProcessingPayment}, func(p *models.Payment) {
		p.Status = models.FailedPayment
	}), nil
}

func (m *memStore) ListReleasable(_ context.Context, completedBefore time.Time, limit int) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Payment
	for _, payment := range m.payments {
		if payment.Status != models.CompletedPayment || payment.CompletedAt == nil || payment.CompletedAt.After(completedBefore) {
			continue
		}
		if m.hasPayout(payment.ID, models.CompletedPayout) || m.hasPayout(payment.ID, models.FailedPayout) {
			continue
		}
		account, ok := m.accounts[m.contracts[payment.ContractID].VendorID]
		if !ok || !account.Complete() {
			continue
		}
		out = append(out, payment)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) hasPayout(paymentId string, status models.PayoutStatus) bool {
	for _, payout := range m.payouts {
		if payout.PaymentID == paymentId && payout.Status == status {
			return true
		}
	}
	return false
}

func (m *memStore) HasCompletedPayout(_ context.Context, paymentId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasPayout(paymentId, models.CompletedPayout), nil
}

func (m *memStore) CountPayouts(_ context.Context, paymentId string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, payout := range m.payouts {
		if payout.PaymentID == paymentId {
			n++
		}
	}
	return n, nil
}

func (m *memStore) StartPayout(_ context.Context, payout *models.VendorPayout) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[payout.PaymentID]
	if !ok || payment.Status != models.CompletedPayment {
		return false, nil
	}
	for _, other := range m.payouts {
		if other.PaymentID == payout.PaymentID && other.Status != models.FailedPayout {
			return false, nil
		}
	}
	payment.Status = models.PayoutProcessingPayment
	m.payments[payment.ID] = payment
	m.payouts[payout.ID] = *payout
	return true, nil
}

func (m *memStore) CompletePayout(_ context.Context, gatewayPayoutId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, payout := range m.payouts {
		if payout.GatewayPayoutID == gatewayPayoutId && payout.Status == models.ProcessingPayout {
			payout.Status = models.CompletedPayout
			m.payouts[id] = payout
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) FailPayout(_ context.Context, gatewayPayoutId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, payout := range m.payouts {
		if payout.GatewayPayoutID != gatewayPayoutId || payout.Status != models.ProcessingPayout {
			continue
		}
		payout.Status = models.FailedPayout
		m.payouts[id] = payout
		payment := m.payments[payout.PaymentID]
		if payment.Status == models.PayoutProcessingPayment {
			payment.Status = models.CompletedPayment
			m.payments[payment.ID] = payment
		}
		return true, nil
	}
	return false, nil
}

// внешние зависимости

type recordingNotifier struct {
	mu   sync.Mutex
	sent []models.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification models.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) count(template models.Template) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, sent := range n.sent {
		if sent.Template == template {
			c++
		}
	}
	return c
}

type fakeRenderer struct {
	err   error
	calls int
	docs  map[string]models.ContractDocument
}

func (r *fakeRenderer) Render(_ context.Context, doc models.ContractDocument) (models.DocumentRef, error) {
	r.calls++
	if r.err != nil {
		return models.DocumentRef{}, r.err
	}
	sha := fmt.Sprintf("%064d", r.calls)
	uri := "artifact://contracts/" + doc.ContractID + "/" + sha
	if r.docs == nil {
		r.docs = map[string]models.ContractDocument{}
	}
	r.docs[uri] = doc
	return models.DocumentRef{URI: uri, SHA256: sha}, nil
}

func (r *fakeRenderer) Open(_ context.Context, ref models.DocumentRef) (string, []byte, error) {
	doc, ok := r.docs[ref.URI]
	if !ok {
		return "", nil, models.NewNotFoundError("artifact %s not found", ref.URI)
	}
	return "text/plain", []byte("SERVICE AGREEMENT " + doc.ContractID), nil
}

type fakeGateway struct {
	mu         sync.Mutex
	orders     []gateway.OrderRequest
	payouts    []gateway.PayoutRequest
	orderErr   error
	payoutErr  error
	nextPayout int
}

func (g *fakeGateway) CreateOrder(_ context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	g.orders = append(g.orders, req)
	return &gateway.Order{ID: fmt.Sprintf("order_%d", len(g.orders)), Receipt: req.Receipt, Status: "created"}, nil
}

func (g *fakeGateway) CreatePayout(_ context.Context, req gateway.PayoutRequest) (*gateway.Payout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payoutErr != nil {
		return nil, g.payoutErr
	}
	g.payouts = append(g.payouts, req)
	g.nextPayout++
	return &gateway.Payout{ID: fmt.Sprintf("pout_%d", g.nextPayout), Status: "processing"}, nil
}

var errGatewayDown = errors.New("gateway unavailable")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func discardLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}
