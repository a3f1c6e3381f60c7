package rules

import (
	"errors"
	"testing"
	"time"

	"offermarket/internal/models"

	"github.com/shopspring/decimal"
)

func auctionOffer(base int64) models.Offer {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	return models.Offer{
		Id:                "offer-1",
		SellerId:          "seller-1",
		OfferType:         models.OfferAuction,
		TargetCategory:    models.CategoryRetailer,
		BasePrice:         decimal.NewFromInt(base),
		MinQuantity:       10,
		AvailableQuantity: 50,
		WindowStart:       &start,
		WindowEnd:         &end,
		Status:            models.OfferActive,
	}
}

func negotiableOffer() models.Offer {
	return models.Offer{
		Id:                "offer-2",
		SellerId:          "seller-1",
		OfferType:         models.OfferNegotiable,
		TargetCategory:    models.CategoryWholesaler,
		BasePrice:         decimal.NewFromInt(500),
		MinQuantity:       10,
		AvailableQuantity: 50,
		Status:            models.OfferActive,
	}
}

func TestCheckEligibility(t *testing.T) {
	offer := auctionOffer(1000)

	if err := CheckEligibility(models.CategoryRetailer, &offer); err != nil {
		t.Errorf("Expected matching category to pass, got %s", err)
	}
	if err := CheckEligibility(models.CategoryImporter, &offer); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Expected mismatched category to fail with ErrForbidden, got %v", err)
	}

	offer.Status = models.OfferCompleted
	if err := CheckEligibility(models.CategoryRetailer, &offer); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Expected inactive offer to fail with ErrForbidden, got %v", err)
	}
}

func TestValidateTiming(t *testing.T) {
	offer := auctionOffer(1000)

	cases := []struct {
		name string
		now  time.Time
		ok   bool
	}{
		{"before window", offer.WindowStart.Add(-time.Minute), false},
		{"at window start", *offer.WindowStart, true},
		{"inside window", offer.WindowStart.Add(30 * time.Minute), true},
		{"at window end", *offer.WindowEnd, false},
		{"after window", offer.WindowEnd.Add(time.Minute), false},
	}

	for _, tc := range cases {
		err := ValidateTiming(&offer, tc.now)
		if tc.ok && err != nil {
			t.Errorf("%s: expected to pass, got %s", tc.name, err)
		}
		if !tc.ok && !errors.Is(err, models.ErrOutOfWindow) {
			t.Errorf("%s: expected ErrOutOfWindow, got %v", tc.name, err)
		}
	}

	// Negotiable offers carry no timing constraint at all.
	negotiable := negotiableOffer()
	if err := ValidateTiming(&negotiable, time.Now().Add(24*time.Hour)); err != nil {
		t.Errorf("Expected negotiable offer to have no timing constraint, got %s", err)
	}
}

func TestValidateQuantity(t *testing.T) {
	offer := negotiableOffer()

	if err := ValidateQuantity(&offer, 5); !errors.Is(err, models.ErrQuantityTooLow) {
		t.Errorf("Expected quantity 5 to fail with ErrQuantityTooLow, got %v", err)
	}
	if err := ValidateQuantity(&offer, 60); !errors.Is(err, models.ErrQuantityExceedsAvailable) {
		t.Errorf("Expected quantity 60 to fail with ErrQuantityExceedsAvailable, got %v", err)
	}
	if err := ValidateQuantity(&offer, 20); err != nil {
		t.Errorf("Expected quantity 20 to pass, got %s", err)
	}
	if err := ValidateQuantity(&offer, 10); err != nil {
		t.Errorf("Expected quantity at the minimum to pass, got %s", err)
	}
	if err := ValidateQuantity(&offer, 50); err != nil {
		t.Errorf("Expected quantity at the maximum to pass, got %s", err)
	}
}

func TestValidateAmountBids(t *testing.T) {
	offer := auctionOffer(1000)

	// No bid committed yet: the base price is the bar.
	if err := ValidateAmount(&offer, models.ResponseBid, decimal.NewFromInt(1000)); !errors.Is(err, models.ErrBidTooLow) {
		t.Errorf("Expected bid equal to base price to fail with ErrBidTooLow, got %v", err)
	}
	if err := ValidateAmount(&offer, models.ResponseBid, decimal.NewFromInt(1200)); err != nil {
		t.Errorf("Expected bid above base price to pass, got %s", err)
	}

	offer.CurrentBestAmount = decimal.NullDecimal{Decimal: decimal.NewFromInt(1200), Valid: true}
	if err := ValidateAmount(&offer, models.ResponseBid, decimal.NewFromInt(1100)); !errors.Is(err, models.ErrBidTooLow) {
		t.Errorf("Expected bid below current best to fail with ErrBidTooLow, got %v", err)
	}
	if err := ValidateAmount(&offer, models.ResponseBid, decimal.NewFromInt(1200)); !errors.Is(err, models.ErrBidTooLow) {
		t.Errorf("Expected bid equal to current best to fail with ErrBidTooLow, got %v", err)
	}
	if err := ValidateAmount(&offer, models.ResponseBid, decimal.NewFromInt(1300)); err != nil {
		t.Errorf("Expected bid above current best to pass, got %s", err)
	}
}

func TestValidateAmountNegotiations(t *testing.T) {
	offer := negotiableOffer()

	if err := ValidateAmount(&offer, models.ResponseNegotiation, decimal.Zero); !errors.Is(err, models.ErrAmountNotPositive) {
		t.Errorf("Expected zero amount to fail with ErrAmountNotPositive, got %v", err)
	}
	if err := ValidateAmount(&offer, models.ResponseNegotiation, decimal.NewFromInt(-5)); !errors.Is(err, models.ErrAmountNotPositive) {
		t.Errorf("Expected negative amount to fail with ErrAmountNotPositive, got %v", err)
	}

	// Negotiations do not compare against the base price, any positive
	// amount is a valid proposal.
	if err := ValidateAmount(&offer, models.ResponseNegotiation, decimal.NewFromInt(1)); err != nil {
		t.Errorf("Expected positive amount below base price to pass, got %s", err)
	}
}
