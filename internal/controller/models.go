package controller

import (
	"encoding/json"
	"fmt"
	"time"

	"offermarket/internal/models"

	"github.com/shopspring/decimal"
)

// New offer request

type NewOfferReq struct {
	SellerId          string               `json:"sellerId"`
	OfferType         models.OfferType     `json:"offerType"`
	TargetCategory    models.BuyerCategory `json:"targetCategory"`
	BasePrice         string               `json:"basePrice"`
	MinQuantity       int                  `json:"minQuantity"`
	AvailableQuantity int                  `json:"availableQuantity"`
	WindowStart       *time.Time           `json:"windowStart,omitempty"`
	WindowEnd         *time.Time           `json:"windowEnd,omitempty"`
}

func ParseNewOfferReq(data []byte) (*NewOfferReq, models.Offer, error) {
	t := &NewOfferReq{}

	err := json.Unmarshal(data, t)
	if err != nil {
		return nil, models.Offer{}, err
	}

	if !models.ValidOfferType(t.OfferType) {
		return nil, models.Offer{}, fmt.Errorf("invalid offer type supplied: %s, should be one of: %s, %s", string(t.OfferType), models.OfferNegotiable, models.OfferAuction)
	}
	if !models.ValidBuyerCategory(t.TargetCategory) {
		return nil, models.Offer{}, fmt.Errorf("invalid target category supplied: %s, should be one of: %s, %s, %s", string(t.TargetCategory), models.CategoryRetailer, models.CategoryWholesaler, models.CategoryImporter)
	}
	if len(t.SellerId) == 0 {
		return nil, models.Offer{}, fmt.Errorf("empty sellerId supplied")
	}

	basePrice, err := decimal.NewFromString(t.BasePrice)
	if err != nil {
		return nil, models.Offer{}, fmt.Errorf("malformed basePrice supplied: %s", t.BasePrice)
	}

	offer := models.Offer{
		SellerId:          t.SellerId,
		OfferType:         t.OfferType,
		TargetCategory:    t.TargetCategory,
		BasePrice:         basePrice,
		MinQuantity:       t.MinQuantity,
		AvailableQuantity: t.AvailableQuantity,
		WindowStart:       t.WindowStart,
		WindowEnd:         t.WindowEnd,
	}

	return t, offer, nil
}

// New response request

type NewResponseReq struct {
	OfferId       string               `json:"offerId"`
	BuyerId       string               `json:"buyerId"`
	BuyerCategory models.BuyerCategory `json:"buyerCategory"`
	ResponseType  models.ResponseType  `json:"responseType"`
	Amount        string               `json:"amount"`
	Quantity      int                  `json:"quantity"`
	Message       string               `json:"message"`
}

func ParseNewResponseReq(data []byte) (models.BuyerCategory, models.Response, error) {
	t := &NewResponseReq{}

	err := json.Unmarshal(data, t)
	if err != nil {
		return "", models.Response{}, err
	}

	if !models.ValidResponseType(t.ResponseType) {
		return "", models.Response{}, fmt.Errorf("invalid response type supplied: %s, should be one of: %s, %s", string(t.ResponseType), models.ResponseBid, models.ResponseNegotiation)
	}
	if !models.ValidBuyerCategory(t.BuyerCategory) {
		return "", models.Response{}, fmt.Errorf("invalid buyer category supplied: %s", string(t.BuyerCategory))
	}
	if len(t.OfferId) == 0 {
		return "", models.Response{}, fmt.Errorf("empty offerId supplied")
	}
	if len(t.BuyerId) == 0 {
		return "", models.Response{}, fmt.Errorf("empty buyerId supplied")
	}
	if len(t.Message) > 500 {
		return "", models.Response{}, fmt.Errorf("field 'message' exceeds length limit: %d / %d", len(t.Message), 500)
	}

	amount, err := decimal.NewFromString(t.Amount)
	if err != nil {
		return "", models.Response{}, fmt.Errorf("malformed amount supplied: %s", t.Amount)
	}

	response := models.Response{
		OfferId:      t.OfferId,
		BuyerId:      t.BuyerId,
		ResponseType: t.ResponseType,
		Amount:       amount,
		Quantity:     t.Quantity,
		Message:      t.Message,
	}

	return t.BuyerCategory, response, nil
}
