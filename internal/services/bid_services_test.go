package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/senyabanana/forge-service/internal/models"
)

func TestSubmitBidPricesItems(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.OpenForBids)

	bid, err := f.bids.SubmitBid(context.Background(), vendor1, event.ID, models.BidRequest{
		Items: []models.LineItem{
			{Description: "Catering", Quantity: 200, UnitPrice: decimal.NewFromInt(450)},
			{Description: "Decor", Quantity: 1, UnitPrice: decimal.RequireFromString("12500.50")},
		},
		Notes: "veg menu",
	})
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	// 90000 + 12500.50 = 102500.50; tax 18450.09 -> 18450
	if !bid.Subtotal.Equal(decimal.RequireFromString("102500.50")) || !bid.Taxes.Equal(decimal.NewFromInt(18450)) {
		t.Fatalf("unexpected pricing: subtotal %s taxes %s", bid.Subtotal, bid.Taxes)
	}
	if !bid.Total.Equal(decimal.RequireFromString("120950.50")) {
		t.Fatalf("unexpected total %s", bid.Total)
	}
	if bid.Status != models.SubmittedBid || bid.VendorID != vendorID {
		t.Fatalf("unexpected bid %+v", bid)
	}
	if f.event(t, event.ID).Status != models.CraftsmenBidding {
		t.Fatalf("first submission must move the event to %s", models.CraftsmenBidding)
	}
	if f.notifier.count(models.BidSubmittedTemplate) != 1 {
		t.Fatalf("owner must be notified about the bid")
	}
}

func TestSubmitBidTwiceFails(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.OpenForBids)
	req := models.BidRequest{Items: lineItems(50000)}

	if _, err := f.bids.SubmitBid(context.Background(), vendor1, event.ID, req); err != nil {
		t.Fatalf("first SubmitBid: %v", err)
	}
	if _, err := f.bids.SubmitBid(context.Background(), vendor1, event.ID, req); !models.IsValidation(err) {
		t.Fatalf("second submission must fail with validation error, got %v", err)
	}
}

func TestSubmitBidUpgradesDraft(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)

	draft, err := f.bids.SaveDraft(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(1000)})
	if err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	if draft.Status != models.DraftBid {
		t.Fatalf("expected draft, got %s", draft.Status)
	}
	if _, err := f.bids.SaveDraft(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(2000)}); err != nil {
		t.Fatalf("updating draft: %v", err)
	}

	submitted, err := f.bids.SubmitBid(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(3000)})
	if err != nil {
		t.Fatalf("SubmitBid: %v", err)
	}
	if submitted.ID != draft.ID {
		t.Fatalf("draft must be upgraded in place")
	}
	stored := f.bid(t, draft.ID)
	if stored.Status != models.SubmittedBid || !stored.Subtotal.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("unexpected stored bid %+v", stored)
	}
	if len(f.store.bids) != 1 {
		t.Fatalf("expected a single bid row, got %d", len(f.store.bids))
	}
	if _, err := f.bids.SaveDraft(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("draft cannot replace a submitted bid, got %v", err)
	}
}

func TestConcurrentDraftUpgradeSubmitsOnce(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	if _, err := f.bids.SaveDraft(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(1000)}); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bids.SubmitBid(context.Background(), vendor1, event.ID, models.BidRequest{Items: lineItems(1000)})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !models.IsValidation(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if succeeded != 1 {
		t.Fatalf("exactly one submission must win, got %d", succeeded)
	}
}

func TestSubmitBidWindowChecks(t *testing.T) {
	f := newFixture(t)
	closed := f.seedEvent(models.ShortlistReview)
	if _, err := f.bids.SubmitBid(context.Background(), vendor1, closed.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("closed event must reject bids, got %v", err)
	}

	expired := f.seedEvent(models.OpenForBids)
	deadline := f.clock.Now().Add(time.Hour)
	e := f.store.events[expired.ID]
	e.BiddingDeadline = &deadline
	f.store.events[expired.ID] = e
	f.clock.Advance(2 * time.Hour)
	if _, err := f.bids.SubmitBid(context.Background(), vendor1, expired.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("bid after deadline must fail, got %v", err)
	}

	open := f.seedEvent(models.OpenForBids)
	if _, err := f.bids.SubmitBid(context.Background(), outsider, open.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("user without vendor profile must be rejected, got %v", err)
	}
	if _, err := f.bids.SubmitBid(context.Background(), vendor1, open.ID, models.BidRequest{}); !models.IsValidation(err) {
		t.Fatalf("bid without items must be rejected, got %v", err)
	}
	bad := []models.LineItem{{Description: "x", Quantity: 0, UnitPrice: decimal.NewFromInt(1)}}
	if _, err := f.bids.SubmitBid(context.Background(), vendor1, open.ID, models.BidRequest{Items: bad}); !models.IsValidation(err) {
		t.Fatalf("zero quantity must be rejected, got %v", err)
	}
}

func TestShortlistScenario(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	a := f.seedBid(event.ID, vendorID, models.SubmittedBid, 100000)
	b := f.seedBid(event.ID, vendor2ID, models.SubmittedBid, 95000)
	c := f.seedBid(event.ID, vendor3ID, models.SubmittedBid, 110000)
	deadline := f.clock.Now().Add(24 * time.Hour)

	got, err := f.bids.Shortlist(context.Background(), owner, event.ID, models.ShortlistRequest{
		BidIDs:           []string{a.ID, b.ID},
		RevisionDeadline: deadline,
	})
	if err != nil {
		t.Fatalf("Shortlist: %v", err)
	}
	if got.Status != models.ShortlistReview || got.Shortlist == nil {
		t.Fatalf("unexpected event %+v", got)
	}
	if !got.Shortlist.FloorPrice.Equal(decimal.NewFromInt(95000)) {
		t.Fatalf("expected floor 95000, got %s", got.Shortlist.FloorPrice)
	}
	if f.bid(t, a.ID).Status != models.ShortlistedBid || f.bid(t, b.ID).Status != models.ShortlistedBid {
		t.Fatalf("selected bids must be shortlisted")
	}
	if f.bid(t, c.ID).Status != models.RejectedBid {
		t.Fatalf("other bids must be rejected")
	}
	if f.notifier.count(models.BidShortlistedTemplate) != 2 || f.notifier.count(models.BidRejectedTemplate) != 1 {
		t.Fatalf("unexpected notifications %+v", f.notifier.sent)
	}

	feedbackA, err := f.bids.GetFeedback(context.Background(), vendor1, a.ID)
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	if feedbackA.PercentageAbove != 5 || feedbackA.IsLowestBid || feedbackA.ShortlistedCount != 2 {
		t.Fatalf("unexpected feedback for A: %+v", feedbackA)
	}
	feedbackB, err := f.bids.GetFeedback(context.Background(), vendor2, b.ID)
	if err != nil {
		t.Fatalf("GetFeedback: %v", err)
	}
	if !feedbackB.IsLowestBid || feedbackB.PercentageAbove != 0 {
		t.Fatalf("unexpected feedback for B: %+v", feedbackB)
	}
	if _, err := f.bids.GetFeedback(context.Background(), vendor2, a.ID); !models.IsValidation(err) {
		t.Fatalf("other vendors cannot read feedback, got %v", err)
	}
}

func TestShortlistValidation(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	a := f.seedBid(event.ID, vendorID, models.SubmittedBid, 100000)
	draft := f.seedBid(event.ID, vendor2ID, models.DraftBid, 90000)
	future := f.clock.Now().Add(time.Hour)

	cases := map[string]models.ShortlistRequest{
		"no bids":        {RevisionDeadline: future},
		"past deadline":  {BidIDs: []string{a.ID}, RevisionDeadline: f.clock.Now().Add(-time.Minute)},
		"draft bid":      {BidIDs: []string{a.ID, draft.ID}, RevisionDeadline: future},
		"unknown bid":    {BidIDs: []string{"nope"}, RevisionDeadline: future},
		"floor mismatch": {BidIDs: []string{a.ID}, FloorPrice: dec(99000), RevisionDeadline: future},
	}
	for name, req := range cases {
		if _, err := f.bids.Shortlist(context.Background(), owner, event.ID, req); !models.IsValidation(err) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
	if _, err := f.bids.Shortlist(context.Background(), vendor1, event.ID, models.ShortlistRequest{BidIDs: []string{a.ID}, RevisionDeadline: future}); !models.IsValidation(err) {
		t.Fatalf("only the owner can shortlist, got %v", err)
	}
	if f.event(t, event.ID).Status != models.CraftsmenBidding {
		t.Fatalf("failed shortlist must not change the event")
	}

	if _, err := f.bids.Shortlist(context.Background(), owner, event.ID, models.ShortlistRequest{
		BidIDs: []string{a.ID}, FloorPrice: dec(100000), RevisionDeadline: future,
	}); err != nil {
		t.Fatalf("matching floor must be accepted: %v", err)
	}
}

func TestShortlistAfterClosingWindow(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	a := f.seedBid(event.ID, vendorID, models.SubmittedBid, 100000)

	if _, err := f.events.CloseBiddingWindow(context.Background(), owner, event.ID); err != nil {
		t.Fatalf("CloseBiddingWindow: %v", err)
	}
	if _, err := f.bids.Shortlist(context.Background(), owner, event.ID, models.ShortlistRequest{
		BidIDs: []string{a.ID}, RevisionDeadline: f.clock.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("Shortlist after close: %v", err)
	}
	if _, err := f.bids.Shortlist(context.Background(), owner, event.ID, models.ShortlistRequest{
		BidIDs: []string{a.ID}, RevisionDeadline: f.clock.Now().Add(time.Hour),
	}); !models.IsValidation(err) {
		t.Fatalf("shortlist cannot be replaced, got %v", err)
	}
}

func shortlistedFixture(t *testing.T) (*fixture, *models.Event, *models.Bid) {
	t.Helper()
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	bid := f.seedBid(event.ID, vendorID, models.SubmittedBid, 100000)
	f.seedBid(event.ID, vendor2ID, models.SubmittedBid, 95000)
	if _, err := f.bids.Shortlist(context.Background(), owner, event.ID, models.ShortlistRequest{
		BidIDs:           []string{bid.ID},
		RevisionDeadline: f.clock.Now().Add(24 * time.Hour),
	}); err != nil {
		t.Fatalf("Shortlist: %v", err)
	}
	return f, event, bid
}

func TestReviseBidOnlyOnce(t *testing.T) {
	f, _, bid := shortlistedFixture(t)

	// 80000 + 14400 tax
	revised, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{
		Items:        lineItems(80000),
		ClaimedTotal: dec(94400),
	})
	if err != nil {
		t.Fatalf("ReviseBid: %v", err)
	}
	if !revised.Total.Equal(decimal.NewFromInt(94400)) || revised.RevisedAt == nil {
		t.Fatalf("unexpected revised bid %+v", revised)
	}
	stored := f.bid(t, bid.ID)
	if stored.Previous == nil || !stored.Previous.Total.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("pre-revision snapshot must be kept, got %+v", stored.Previous)
	}

	if _, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{Items: lineItems(70000)}); !models.IsValidation(err) {
		t.Fatalf("second revision must fail, got %v", err)
	}
	f.clock.Advance(48 * time.Hour)
	if _, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{Items: lineItems(70000)}); !models.IsValidation(err) {
		t.Fatalf("second revision must fail after the deadline too, got %v", err)
	}
	if !f.bid(t, bid.ID).Total.Equal(decimal.NewFromInt(94400)) {
		t.Fatalf("failed revisions must not change the bid")
	}
}

func TestReviseBidClaimedTotal(t *testing.T) {
	cases := []struct {
		name    string
		claimed int64
		wantErr bool
	}{
		{"exact", 94400, false},
		{"within one unit", 94401, false},
		{"off by two", 94402, true},
		{"too low", 94398, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, _, bid := shortlistedFixture(t)
			_, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{
				Items:        lineItems(80000),
				ClaimedTotal: dec(tc.claimed),
			})
			if tc.wantErr && !models.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("ReviseBid: %v", err)
			}
		})
	}
}

func TestReviseBidRequiresClaimedTotal(t *testing.T) {
	f, _, bid := shortlistedFixture(t)

	if _, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{Items: lineItems(80000)}); !models.IsValidation(err) {
		t.Fatalf("revision without claimed total must fail, got %v", err)
	}
	stored := f.bid(t, bid.ID)
	if stored.RevisedAt != nil || !stored.Total.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("rejected revision must not use up the one-shot revision")
	}
	if _, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{
		Items:        lineItems(80000),
		ClaimedTotal: dec(94400),
	}); err != nil {
		t.Fatalf("ReviseBid: %v", err)
	}
}

func TestReviseBidPreconditions(t *testing.T) {
	f, event, bid := shortlistedFixture(t)

	if _, err := f.bids.ReviseBid(context.Background(), vendor2, bid.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("only the bid's vendor can revise, got %v", err)
	}
	rejected, err := f.store.GetVendorBid(context.Background(), event.ID, vendor2ID)
	if err != nil {
		t.Fatalf("GetVendorBid: %v", err)
	}
	if _, err := f.bids.ReviseBid(context.Background(), vendor2, rejected.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("rejected bid cannot be revised, got %v", err)
	}

	f.clock.Advance(25 * time.Hour)
	if _, err := f.bids.ReviseBid(context.Background(), vendor1, bid.ID, models.BidRequest{Items: lineItems(1)}); !models.IsValidation(err) {
		t.Fatalf("revision after deadline must fail, got %v", err)
	}
}

func TestFeedback(t *testing.T) {
	shortlisted := []models.Bid{
		{ID: "a", Total: decimal.NewFromInt(100000)},
		{ID: "b", Total: decimal.NewFromInt(95000)},
	}
	got, err := Feedback(shortlisted[0], shortlisted)
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if !got.FloorPrice.Equal(decimal.NewFromInt(95000)) || got.PercentageAbove != 5 || got.IsLowestBid {
		t.Fatalf("unexpected feedback %+v", got)
	}
	if _, err := Feedback(shortlisted[0], nil); !models.IsValidation(err) {
		t.Fatalf("empty shortlist must fail, got %v", err)
	}
}

func TestGetBidVisibility(t *testing.T) {
	f := newFixture(t)
	event := f.seedEvent(models.CraftsmenBidding)
	draft := f.seedBid(event.ID, vendorID, models.DraftBid, 1000)
	submitted := f.seedBid(event.ID, vendor2ID, models.SubmittedBid, 1000)

	if _, err := f.bids.GetBid(context.Background(), vendor1, draft.ID); err != nil {
		t.Fatalf("vendor must see own draft: %v", err)
	}
	if _, err := f.bids.GetBid(context.Background(), owner, draft.ID); !models.IsNotFound(err) {
		t.Fatalf("owner must not see drafts, got %v", err)
	}
	if _, err := f.bids.GetBid(context.Background(), owner, submitted.ID); err != nil {
		t.Fatalf("owner must see submitted bids: %v", err)
	}
	if _, err := f.bids.GetBid(context.Background(), vendor1, submitted.ID); !models.IsValidation(err) {
		t.Fatalf("vendors must not see competitors' bids, got %v", err)
	}

	list, err := f.bids.ListBids(context.Background(), owner, event.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListBids: %v", err)
	}
	if len(list) != 1 || list[0].ID != submitted.ID {
		t.Fatalf("list must hide drafts, got %+v", list)
	}
	if _, err := f.bids.ListBids(context.Background(), vendor1, event.ID, 0, 0); !models.IsValidation(err) {
		t.Fatalf("vendors cannot list bids, got %v", err)
	}
}
