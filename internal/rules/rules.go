// Package rules holds the pure validation functions of the offer/response
// engine. Every function takes an immutable offer snapshot and returns one of
// the sentinel errors from models, with no side effects, so the service layer
// can run them in any transaction and tests can run them without a database.
package rules

import (
	"time"

	"offermarket/internal/models"

	"github.com/shopspring/decimal"
)

// CheckEligibility denies buyers whose category does not match the offer's
// target audience, and any response to an offer that is no longer active.
func CheckEligibility(buyerCategory models.BuyerCategory, offer *models.Offer) error {
	if offer.Status != models.OfferActive {
		return models.ErrForbidden
	}
	if buyerCategory != offer.TargetCategory {
		return models.ErrForbidden
	}
	return nil
}

// ValidateTiming enforces the auction window. Negotiable offers have no
// timing constraint.
func ValidateTiming(offer *models.Offer, now time.Time) error {
	if offer.OfferType != models.OfferAuction {
		return nil
	}
	if offer.WindowStart == nil || offer.WindowEnd == nil {
		return models.ErrOutOfWindow
	}
	if now.Before(*offer.WindowStart) || !now.Before(*offer.WindowEnd) {
		return models.ErrOutOfWindow
	}
	return nil
}

func ValidateQuantity(offer *models.Offer, quantity int) error {
	if quantity < offer.MinQuantity {
		return models.ErrQuantityTooLow
	}
	if quantity > offer.AvailableQuantity {
		return models.ErrQuantityExceedsAvailable
	}
	return nil
}

// ValidateAmount checks the proposed amount against the offer. A bid has to
// strictly beat the current best (base price while no bid committed yet); a
// negotiation only has to be positive, sellers evaluate proposals
// independently of each other.
func ValidateAmount(offer *models.Offer, responseType models.ResponseType, amount decimal.Decimal) error {
	if responseType == models.ResponseBid {
		if amount.Cmp(offer.BestOrBase()) <= 0 {
			return models.ErrBidTooLow
		}
		return nil
	}
	if amount.Sign() <= 0 {
		return models.ErrAmountNotPositive
	}
	return nil
}
