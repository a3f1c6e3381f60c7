package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"offermarket/internal/models"

	"github.com/shopspring/decimal"
)

func TestOffers(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	negotiable := AddTestOffer(t, ctx, repo, models.OfferNegotiable)
	auction := AddTestOffer(t, ctx, repo, models.OfferAuction)

	got, err := repo.GetOfferByUUID(ctx, negotiable.Id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.OfferActive {
		t.Errorf("Expected new offer to be Active, got %s", got.Status)
	}
	if got.CurrentBestAmount.Valid {
		t.Error("Expected new offer to have no current best amount")
	}
	if !got.BasePrice.Equal(negotiable.BasePrice) {
		t.Errorf("Expected base price %s, got %s", negotiable.BasePrice, got.BasePrice)
	}

	got, err = repo.GetOfferByUUID(ctx, auction.Id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got.WindowStart == nil || got.WindowEnd == nil {
		t.Fatal("Expected auction offer to keep its window")
	}

	offers, err := repo.GetOffers(ctx, 0, 0, "", []models.OfferType{models.OfferAuction}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 1 || offers[0].Id != auction.Id {
		t.Errorf("Expected the auction filter to return exactly the auction offer, got %d offers", len(offers))
	}

	offers, err = repo.GetOffers(ctx, 0, 0, negotiable.SellerId, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 1 || offers[0].Id != negotiable.Id {
		t.Errorf("Expected the seller filter to return exactly the seller's offer, got %d offers", len(offers))
	}

	_, err = repo.GetOfferByUUID(ctx, "00000000-0000-0000-0000-000000000000", nil)
	if !errors.Is(err, models.ErrNoOffer) {
		t.Errorf("Expected ErrNoOffer for unknown id, got %v", err)
	}
}

func TestCASBestAmount(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferAuction)

	// First CAS against the null snapshot succeeds.
	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = repo.CASBestAmount(ctx, tx, offer.Id, decimal.NullDecimal{}, decimal.NewFromInt(1200))
	if err != nil {
		t.Fatal(err)
	}
	if err = tx.Commit(); err != nil {
		t.Fatal(err)
	}

	// A second CAS against the same stale null snapshot must lose.
	tx, err = repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = repo.CASBestAmount(ctx, tx, offer.Id, decimal.NullDecimal{}, decimal.NewFromInt(1300))
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected stale CAS to fail with ErrConflict, got %v", err)
	}
	tx.Rollback()

	// CAS against the fresh value succeeds.
	fresh, err := repo.GetOfferByUUID(ctx, offer.Id, nil)
	if err != nil {
		t.Fatal(err)
	}
	tx, err = repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	err = repo.CASBestAmount(ctx, tx, offer.Id, fresh.CurrentBestAmount, decimal.NewFromInt(1300))
	if err != nil {
		t.Fatal(err)
	}
	if err = tx.Commit(); err != nil {
		t.Fatal(err)
	}

	fresh, err = repo.GetOfferByUUID(ctx, offer.Id, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !fresh.CurrentBestAmount.Valid || !fresh.CurrentBestAmount.Decimal.Equal(decimal.NewFromInt(1300)) {
		t.Errorf("Expected current best 1300, got %v", fresh.CurrentBestAmount)
	}
}

func TestDecrementQuantity(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	offer := AddTestOffer(t, ctx, repo, models.OfferNegotiable)

	tx, err := repo.Begin(ctx)
	if err != nil {
		t.Fatal(err)
	}
	remaining, err := repo.DecrementQuantity(ctx, tx, offer.Id, 20)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 30 {
		t.Errorf("Expected 30 remaining after consuming 20 of 50, got %d", remaining)
	}

	// Consuming more than what is left must not go through.
	_, err = repo.DecrementQuantity(ctx, tx, offer.Id, 31)
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("Expected over-consumption to fail with ErrConflict, got %v", err)
	}
	tx.Rollback()
}

func TestGetDueAuctions(t *testing.T) {
	ctx := context.Background()
	repo := OpenTestRepo(t)
	defer repo.Close()

	auction := AddTestOffer(t, ctx, repo, models.OfferAuction)
	AddTestOffer(t, ctx, repo, models.OfferNegotiable)

	due, err := repo.GetDueAuctions(ctx, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Errorf("Expected no due auctions while the window is open, got %d", len(due))
	}

	due, err = repo.GetDueAuctions(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].Id != auction.Id {
		t.Errorf("Expected exactly the auction offer to be due, got %d offers", len(due))
	}
}
