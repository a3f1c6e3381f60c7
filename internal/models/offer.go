package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OfferType string

const (
	OfferNegotiable OfferType = "Negotiable"
	OfferAuction    OfferType = "Auction"
)

func ValidOfferType(t OfferType) bool {
	switch t {
	case OfferNegotiable, OfferAuction:
		return true
	default:
		return false
	}
}

type BuyerCategory string

const (
	CategoryRetailer   BuyerCategory = "Retailer"
	CategoryWholesaler BuyerCategory = "Wholesaler"
	CategoryImporter   BuyerCategory = "Importer"
)

func ValidBuyerCategory(t BuyerCategory) bool {
	switch t {
	case CategoryRetailer, CategoryWholesaler, CategoryImporter:
		return true
	default:
		return false
	}
}

type OfferStatus string

const (
	OfferActive    OfferStatus = "Active"
	OfferCompleted OfferStatus = "Completed"
	OfferCancelled OfferStatus = "Cancelled"
	OfferExpired   OfferStatus = "Expired"
)

func ValidOfferStatus(t OfferStatus) bool {
	switch t {
	case OfferActive, OfferCompleted, OfferCancelled, OfferExpired:
		return true
	default:
		return false
	}
}

type Offer struct {
	Id                string              `json:"id"`
	SellerId          string              `json:"sellerId"`
	OfferType         OfferType           `json:"offerType"`
	TargetCategory    BuyerCategory       `json:"targetCategory"`
	BasePrice         decimal.Decimal     `json:"basePrice"`
	CurrentBestAmount decimal.NullDecimal `json:"currentBestAmount"`
	MinQuantity       int                 `json:"minQuantity"`
	AvailableQuantity int                 `json:"availableQuantity"`
	WindowStart       *time.Time          `json:"windowStart,omitempty"`
	WindowEnd         *time.Time          `json:"windowEnd,omitempty"`
	Status            OfferStatus         `json:"status"`
	CreatedAt         time.Time           `json:"createdAt"`
	UpdatedAt         time.Time           `json:"-"`
}

// BestOrBase is the amount a new bid has to beat: the current best once at
// least one bid committed, the base price before that.
func (o *Offer) BestOrBase() decimal.Decimal {
	if o.CurrentBestAmount.Valid {
		return o.CurrentBestAmount.Decimal
	}
	return o.BasePrice
}
