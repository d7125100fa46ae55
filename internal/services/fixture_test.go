package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/senyabanana/forge-service/internal/models"
)

const (
	ownerID     = "client-1"
	vendorUser  = "vendor-user-1"
	vendorID    = "vendor-1"
	vendor2User = "vendor-user-2"
	vendor2ID   = "vendor-2"
	vendor3User = "vendor-user-3"
	vendor3ID   = "vendor-3"
	webhookKey  = "whsec"
	paymentKey  = "keysecret"
)

var (
	owner    = models.Actor{UserID: ownerID, Role: models.RoleClient}
	vendor1  = models.Actor{UserID: vendorUser, Role: models.RoleVendor}
	vendor2  = models.Actor{UserID: vendor2User, Role: models.RoleVendor}
	vendor3  = models.Actor{UserID: vendor3User, Role: models.RoleVendor}
	admin    = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	outsider = models.Actor{UserID: "someone", Role: models.RoleClient}
)

type fixture struct {
	store     *memStore
	notifier  *recordingNotifier
	renderer  *fakeRenderer
	gateway   *fakeGateway
	clock     *fakeClock
	events    *EventService
	bids      *BidService
	contracts *ContractService
	payments  *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	for _, v := range []models.Vendor{
		{ID: vendorID, UserID: vendorUser, BusinessName: "Royal Caterers", Email: "royal@example.com"},
		{ID: vendor2ID, UserID: vendor2User, BusinessName: "Bloom Decor", Email: "bloom@example.com"},
		{ID: vendor3ID, UserID: vendor3User, BusinessName: "Beat Box", Email: "beat@example.com"},
	} {
		store.vendors[v.ID] = v
	}
	store.accounts[vendorID] = models.PayoutAccount{
		VendorID:      vendorID,
		AccountHolder: "Royal Caterers",
		AccountNumber: "0012345678",
		IFSC:          "HDFC0000001",
		FundAccountID: "fa_royal",
	}

	f := &fixture{
		store:    store,
		notifier: &recordingNotifier{},
		renderer: &fakeRenderer{},
		gateway:  &fakeGateway{},
		clock:    &fakeClock{t: time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)},
	}
	logger := discardLogger()

	f.events = NewEventService(store, store, f.notifier, logger)
	f.events.clock = f.clock.Now
	f.bids = NewBidService(f.events, store, store, f.notifier, logger)
	f.bids.clock = f.clock.Now
	f.contracts = NewContractService(store, store, store, store, store, f.renderer, f.notifier, logger)
	f.contracts.clock = f.clock.Now
	f.payments = NewPaymentService(store, store, store, f.gateway, f.notifier, logger)
	f.payments.clock = f.clock.Now
	f.payments.KeySecret = paymentKey
	f.payments.WebhookSecret = webhookKey
	return f
}

func (f *fixture) seedEvent(status models.ForgeStatus) *models.Event {
	now := f.clock.Now()
	event := models.Event{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Status:      status,
		ClientBrief: []byte(`{"guests":200}`),
		Blueprint:   []byte(`{}`),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.store.events[event.ID] = event
	return &event
}

func (f *fixture) seedBid(eventId, vendorId string, status models.BidStatus, total int64) *models.Bid {
	now := f.clock.Now()
	bid := models.Bid{
		ID:        uuid.New().String(),
		EventID:   eventId,
		VendorID:  vendorId,
		Status:    status,
		Items:     []models.LineItem{{Description: "Package", Quantity: 1, UnitPrice: decimal.NewFromInt(total)}},
		Subtotal:  decimal.NewFromInt(total),
		Taxes:     decimal.Zero,
		Total:     decimal.NewFromInt(total),
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.store.bids[bid.ID] = bid
	return &bid
}

func (f *fixture) event(t *testing.T, id string) models.Event {
	t.Helper()
	event, ok := f.store.events[id]
	if !ok {
		t.Fatalf("event %s not found", id)
	}
	return event
}

func (f *fixture) bid(t *testing.T, id string) models.Bid {
	t.Helper()
	bid, ok := f.store.bids[id]
	if !ok {
		t.Fatalf("bid %s not found", id)
	}
	return bid
}

func lineItems(price int64) []models.LineItem {
	return []models.LineItem{{Description: "Catering", Quantity: 1, UnitPrice: decimal.NewFromInt(price)}}
}

func dec(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
