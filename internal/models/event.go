package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventResponseSubmitted    EventType = "ResponseSubmitted"
	EventOutbid               EventType = "Outbid"
	EventResponseAccepted     EventType = "ResponseAccepted"
	EventResponseRejected     EventType = "ResponseRejected"
	EventResponseWithdrawn    EventType = "ResponseWithdrawn"
	EventAuctionSettled       EventType = "AuctionSettled"
	EventAuctionLost          EventType = "AuctionLost"
	EventAuctionExpiredNoBids EventType = "AuctionExpiredNoBids"
)

// Event is an outbox record appended inside the same transaction as the
// state change it describes. RecipientId addresses the user whose inbox the
// dispatcher routes it to.
type Event struct {
	Id           string          `json:"id"`
	Type         EventType       `json:"type"`
	OfferId      string          `json:"offerId"`
	ResponseId   string          `json:"responseId,omitempty"`
	RecipientId  string          `json:"recipientId"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	DispatchedAt *time.Time      `json:"-"`
}

// Notification is an entry in a user's inbox, produced by the dispatcher.
type Notification struct {
	EventId     string    `json:"eventId"`
	RecipientId string    `json:"recipientId"`
	Type        EventType `json:"type"`
	OfferId     string    `json:"offerId"`
	ResponseId  string    `json:"responseId,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"createdAt"`
}
