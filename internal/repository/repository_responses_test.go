package repository

import (
	"context"
	"errors"
	"testing"

	"offermarket/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestResponses(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferNegotiable)
	buyer := uuid.NewString()

	response := AddTestResponse(t, ctx, repo, offer, buyer, 900)
	if response.Status != models.ResponsePending {
		t.Errorf("Expected new response to be Pending, got %s", response.Status)
	}

	got, err := repo.GetResponseByUUID(ctx, response.Id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.BuyerId != buyer || !got.Amount.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Fetched response does not match the inserted one: %+v", got)
	}

	responses, err := repo.GetResponses(ctx, 0, 0, offer.Id, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Errorf("Expected 1 response on the offer, got %d", len(responses))
	}

	responses, err = repo.GetResponses(ctx, 0, 0, "", buyer, []models.ResponseStatus{models.ResponsePending})
	if err != nil {
		t.Fatal(err)
	}
	if len(responses) != 1 {
		t.Errorf("Expected 1 pending response for the buyer, got %d", len(responses))
	}

	_, err = repo.GetResponseByUUID(ctx, "00000000-0000-0000-0000-000000000000", nil)
	if !errors.Is(err, models.ErrNoResponse) {
		t.Errorf("Expected ErrNoResponse for unknown id, got %v", err)
	}
}

func TestSinglePendingConstraint(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferNegotiable)
	buyer := uuid.NewString()

	first := AddTestResponse(t, ctx, repo, offer, buyer, 900)

	// Second live proposal by the same buyer hits the partial unique index.
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.AddResponse(ctx, tx, models.Response{
		OfferId:      offer.Id,
		BuyerId:      buyer,
		ResponseType: models.ResponseNegotiation,
		Amount:       decimal.NewFromInt(950),
		Quantity:     10,
	})
	if !errors.Is(err, models.ErrDuplicatePending) {
		t.Errorf("Expected second pending response to fail with ErrDuplicatePending, got %v", err)
	}
	tx.Rollback()

	// Once the first response leaves Pending, a new one is allowed.
	err = repo.UpdateResponseStatus(ctx, nil, first.Id, models.ResponseWithdrawn)
	if err != nil {
		t.Fatal(err)
	}
	AddTestResponse(t, ctx, repo, offer, buyer, 950)
}

func TestPendingBidsOrdering(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferAuction)

	low := AddTestResponse(t, ctx, repo, offer, uuid.NewString(), 1100)
	high := AddTestResponse(t, ctx, repo, offer, uuid.NewString(), 1300)
	mid := AddTestResponse(t, ctx, repo, offer, uuid.NewString(), 1200)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()

	bids, err := repo.PendingBids(ctx, tx, offer.Id)
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 3 {
		t.Fatalf("Expected 3 pending bids, got %d", len(bids))
	}
	if bids[0].Id != high.Id || bids[1].Id != mid.Id || bids[2].Id != low.Id {
		t.Error("Expected pending bids ordered by amount descending")
	}

	best, ok, err := repo.BestPendingBid(ctx, tx, offer.Id, high.Id)
	if err != nil {
		t.Fatal(err)
	}
	if !ok || best.Id != mid.Id {
		t.Errorf("Expected the runner-up bid when excluding the top one, got %+v", best)
	}
}

func TestEventsOutboxAndInbox(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferNegotiable)
	recipient := uuid.NewString()

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	event, err := repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventResponseSubmitted,
		OfferId:     offer.Id,
		RecipientId: recipient,
		Payload:     []byte(`{"amount":"900","quantity":10}`),
	})
	if err != nil {
		tx.Rollback()
		t.Fatal(err)
	}
	if err = tx.Commit(); err != nil {
		t.Fatal(err)
	}

	events, err := repo.UndispatchedEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Id != event.Id {
		t.Fatalf("Expected exactly the inserted event undispatched, got %d events", len(events))
	}

	n := models.Notification{
		EventId:     event.Id,
		RecipientId: recipient,
		Type:        event.Type,
		OfferId:     offer.Id,
		Message:     "test",
	}
	if err = repo.AddNotification(ctx, n); err != nil {
		t.Fatal(err)
	}
	// Redelivery must be a no-op.
	if err = repo.AddNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	notifications, err := repo.GetNotifications(ctx, 0, 0, recipient)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifications) != 1 {
		t.Errorf("Expected 1 notification after duplicate delivery, got %d", len(notifications))
	}

	if err = repo.MarkDispatched(ctx, event.Id); err != nil {
		t.Fatal(err)
	}
	events, err = repo.UndispatchedEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no undispatched events after marking, got %d", len(events))
	}
}
