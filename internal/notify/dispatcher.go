// Package notify fans engine events out to user notification inboxes. The
// engine appends events to an outbox inside its own transactions; the
// dispatcher polls that outbox, writes one inbox entry per recipient and
// marks the event dispatched. Inbox writes are keyed by
// (event_id, recipient_id), so redelivery after a crash is harmless.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"offermarket/internal/models"
	"offermarket/internal/repository"
)

const fetchBatch = 100

// Publisher forwards dispatched events to an external transport. Optional;
// the inbox is the source of truth either way.
type Publisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Dispatcher struct {
	repo      *repository.Repository
	publisher Publisher
	interval  time.Duration
}

func NewDispatcher(repo *repository.Repository, publisher Publisher, interval time.Duration) *Dispatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
	}
}

// Run polls the outbox until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := d.Sweep(ctx)
			if err != nil && ctx.Err() == nil {
				log.Println("notify.Dispatcher.Run:", err)
			}
		}
	}
}

// Sweep dispatches one batch of pending events. Exported so tests and the
// sweeper-style drivers can force a pass without waiting for the ticker.
func (d *Dispatcher) Sweep(ctx context.Context) error {
	events, err := d.repo.UndispatchedEvents(ctx, fetchBatch)
	if err != nil {
		return fmt.Errorf("notify.Dispatcher.Sweep: %w", err)
	}

	for _, event := range events {
		err = d.repo.AddNotification(ctx, models.Notification{
			EventId:     event.Id,
			RecipientId: event.RecipientId,
			Type:        event.Type,
			OfferId:     event.OfferId,
			ResponseId:  event.ResponseId,
			Message:     renderMessage(event),
		})
		if err != nil {
			return fmt.Errorf("notify.Dispatcher.Sweep: %w", err)
		}

		if d.publisher != nil {
			err = d.publisher.Publish(ctx, event)
			if err != nil {
				// Inbox write already landed; the event stays undispatched
				// and is retried next pass. The unique inbox key absorbs the
				// duplicate.
				return fmt.Errorf("notify.Dispatcher.Sweep: publish: %w", err)
			}
		}

		err = d.repo.MarkDispatched(ctx, event.Id)
		if err != nil {
			return fmt.Errorf("notify.Dispatcher.Sweep: %w", err)
		}
	}

	return nil
}

func renderMessage(event models.Event) string {
	var payload struct {
		Amount   string `json:"amount"`
		Quantity int    `json:"quantity"`
	}
	if len(event.Payload) > 0 {
		_ = json.Unmarshal(event.Payload, &payload)
	}

	switch event.Type {
	case models.EventResponseSubmitted:
		return fmt.Sprintf("New proposal of %s for %d units on your offer", payload.Amount, payload.Quantity)
	case models.EventOutbid:
		return fmt.Sprintf("Your bid was beaten, the current highest bid is %s", payload.Amount)
	case models.EventResponseAccepted:
		return fmt.Sprintf("Your proposal of %s was accepted", payload.Amount)
	case models.EventResponseRejected:
		return fmt.Sprintf("Your proposal of %s was rejected", payload.Amount)
	case models.EventResponseWithdrawn:
		return fmt.Sprintf("A proposal of %s was withdrawn from your offer", payload.Amount)
	case models.EventAuctionSettled:
		return fmt.Sprintf("Auction settled at %s for %d units", payload.Amount, payload.Quantity)
	case models.EventAuctionLost:
		return "Auction closed, your bid did not win"
	case models.EventAuctionExpiredNoBids:
		return "Your auction expired without bids"
	default:
		return string(event.Type)
	}
}
