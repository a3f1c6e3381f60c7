package repository

import (
	"context"
	"database/sql"
	"fmt"

	"offermarket/internal/models"

	"github.com/google/uuid"
)

// AddEvent appends an event to the outbox inside the operation's transaction,
// so an event exists exactly when the state change it describes committed.
func (repo *Repository) AddEvent(ctx context.Context, tx *sql.Tx, event models.Event) (models.Event, error) {
	query := `
	INSERT INTO events (id, type, offer_id, response_id, recipient_id, payload, created_at)
	VALUES
		($1, $2, $3, $4, $5, $6, DEFAULT)
	RETURNING created_at
	`

	if len(event.Id) == 0 {
		event.Id = uuid.NewString()
	}

	var responseId interface{}
	if len(event.ResponseId) > 0 {
		responseId = event.ResponseId
	}
	var payload interface{}
	if len(event.Payload) > 0 {
		payload = []byte(event.Payload)
	}

	row := tx.QueryRowContext(ctx, query, event.Id, event.Type, event.OfferId, responseId, event.RecipientId, payload)
	err := row.Scan(&event.CreatedAt)
	if err != nil {
		return event, fmt.Errorf("repository.Repository.AddEvent: scan failed: %w", err)
	}

	return event, nil
}

func (repo *Repository) UndispatchedEvents(ctx context.Context, limit int) ([]models.Event, error) {
	query := `
	SELECT id, type, offer_id, response_id, recipient_id, payload, created_at
	FROM events
	WHERE dispatched_at IS NULL
	ORDER BY created_at
	LIMIT $1
	`

	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.UndispatchedEvents: %w", err)
	}
	defer rows.Close()

	var result []models.Event
	for rows.Next() {
		var event models.Event
		var responseId sql.NullString
		var payload []byte
		err = rows.Scan(&event.Id, &event.Type, &event.OfferId, &responseId, &event.RecipientId, &payload, &event.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.UndispatchedEvents: rows scan error: %w", err)
		}
		event.ResponseId = responseId.String
		event.Payload = payload
		result = append(result, event)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.UndispatchedEvents: %w", rows.Err())
	}

	return result, nil
}

func (repo *Repository) MarkDispatched(ctx context.Context, eventId string) error {
	query := `
	UPDATE events
	SET dispatched_at = CURRENT_TIMESTAMP
	WHERE id = $1 AND dispatched_at IS NULL
	`

	_, err := repo.db.ExecContext(ctx, query, eventId)
	if err != nil {
		return fmt.Errorf("repository.Repository.MarkDispatched: %w", err)
	}
	return nil
}

// AddNotification writes an inbox entry. The unique key on
// (event_id, recipient_id) makes redelivery of the same event a no-op, which
// keeps the dispatcher idempotent under at-least-once delivery.
func (repo *Repository) AddNotification(ctx context.Context, n models.Notification) error {
	query := `
	INSERT INTO notifications (event_id, recipient_id, type, offer_id, response_id, message, created_at)
	VALUES
		($1, $2, $3, $4, $5, $6, DEFAULT)
	ON CONFLICT (event_id, recipient_id) DO NOTHING
	`

	var responseId interface{}
	if len(n.ResponseId) > 0 {
		responseId = n.ResponseId
	}

	_, err := repo.db.ExecContext(ctx, query, n.EventId, n.RecipientId, n.Type, n.OfferId, responseId, n.Message)
	if err != nil {
		return fmt.Errorf("repository.Repository.AddNotification: %w", err)
	}
	return nil
}

func (repo *Repository) GetNotifications(ctx context.Context, limit, offset int, recipientId string) ([]models.Notification, error) {
	query := `
	SELECT event_id, recipient_id, type, offer_id, response_id, message, created_at
	FROM notifications
	WHERE recipient_id = $3
	ORDER BY created_at DESC
	LIMIT $1
	OFFSET $2
	`

	var limitParam interface{}
	if limit > 0 {
		limitParam = limit
	}

	rows, err := repo.db.QueryContext(ctx, query, limitParam, offset, recipientId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetNotifications: %w", err)
	}
	defer rows.Close()

	var result []models.Notification
	for rows.Next() {
		var n models.Notification
		var responseId sql.NullString
		err = rows.Scan(&n.EventId, &n.RecipientId, &n.Type, &n.OfferId, &responseId, &n.Message, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetNotifications: rows scan error: %w", err)
		}
		n.ResponseId = responseId.String
		result = append(result, n)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetNotifications: %w", rows.Err())
	}

	return result, nil
}
