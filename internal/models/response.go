package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ResponseType string

const (
	ResponseBid         ResponseType = "Bid"
	ResponseNegotiation ResponseType = "Negotiation"
)

func ValidResponseType(t ResponseType) bool {
	switch t {
	case ResponseBid, ResponseNegotiation:
		return true
	default:
		return false
	}
}

// MatchesOffer reports whether a response type may target an offer type:
// bids go to auctions, negotiations to negotiable offers.
func (t ResponseType) MatchesOffer(ot OfferType) bool {
	switch t {
	case ResponseBid:
		return ot == OfferAuction
	case ResponseNegotiation:
		return ot == OfferNegotiable
	default:
		return false
	}
}

type ResponseStatus string

const (
	ResponsePending   ResponseStatus = "Pending"
	ResponseAccepted  ResponseStatus = "Accepted"
	ResponseRejected  ResponseStatus = "Rejected"
	ResponseWithdrawn ResponseStatus = "Withdrawn"
)

func ValidResponseStatus(t ResponseStatus) bool {
	switch t {
	case ResponsePending, ResponseAccepted, ResponseRejected, ResponseWithdrawn:
		return true
	default:
		return false
	}
}

type Response struct {
	Id           string          `json:"id"`
	OfferId      string          `json:"offerId"`
	BuyerId      string          `json:"buyerId"`
	ResponseType ResponseType    `json:"responseType"`
	Amount       decimal.Decimal `json:"amount"`
	Quantity     int             `json:"quantity"`
	Message      string          `json:"message,omitempty"`
	Status       ResponseStatus  `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"-"`
}
