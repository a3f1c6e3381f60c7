package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"offermarket/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const responseColumns = `id, offer_id, buyer_id, response_type, amount, quantity, message, status, created_at, updated_at`

// AddResponse inserts a buyer's proposal as Pending. The partial unique index
// on (offer_id, buyer_id) WHERE status = 'Pending' makes a second live
// proposal from the same buyer fail here with ErrDuplicatePending, no matter
// how the submissions interleave.
func (repo *Repository) AddResponse(ctx context.Context, tx *sql.Tx, response models.Response) (models.Response, error) {
	query := `
	INSERT INTO responses (id, offer_id, buyer_id, response_type, amount, quantity, message, status, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, 'Pending', DEFAULT, DEFAULT)
	RETURNING
		status, created_at, updated_at
	`

	if len(response.Id) == 0 {
		response.Id = uuid.NewString()
	}

	row := tx.QueryRowContext(ctx, query,
		response.Id, response.OfferId, response.BuyerId, response.ResponseType,
		response.Amount, response.Quantity, response.Message)
	err := row.Scan(&response.Status, &response.CreatedAt, &response.UpdatedAt)
	if isUniqueViolation(err) {
		return response, models.ErrDuplicatePending
	} else if err != nil {
		return response, fmt.Errorf("repository.Repository.AddResponse: scan failed: %w", err)
	}

	return response, nil
}

func (repo *Repository) prepResponsesQuery(limit, offset int, UUID, offerId, buyerId string, statuses []models.ResponseStatus) (query string, queryParams []interface{}) {
	query = `
	SELECT ` + responseColumns + `
	FROM responses
	$conditions$
	ORDER BY created_at
	LIMIT $1
	OFFSET $2
	`

	queryParams = make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)

	if limit <= 0 {
		queryParams = append(queryParams, nil)
	} else {
		queryParams = append(queryParams, limit)
	}
	queryParams = append(queryParams, offset)

	if len(UUID) > 0 {
		queryParams = append(queryParams, UUID)
		conditions = append(conditions, "id = $$")
	}
	if len(offerId) > 0 {
		queryParams = append(queryParams, offerId)
		conditions = append(conditions, "offer_id = $$")
	}
	if len(buyerId) > 0 {
		queryParams = append(queryParams, buyerId)
		conditions = append(conditions, "buyer_id = $$")
	}
	if len(statuses) > 0 {
		queryParams = append(queryParams, pqStringArray(statuses))
		conditions = append(conditions, "status = ANY($$)")
	}

	condStr := ""
	if len(conditions) > 0 {
		for i := 0; i < len(conditions); i++ {
			conditions[i] = strings.Replace(conditions[i], "$$", "$"+strconv.Itoa(i+3), -1)
		}
		condStr = "WHERE " + strings.Join(conditions, " AND ")
	}
	query = strings.Replace(query, "$conditions$", condStr, -1)

	return query, queryParams
}

func (repo *Repository) GetResponses(ctx context.Context, limit, offset int, offerId, buyerId string, statuses []models.ResponseStatus) ([]models.Response, error) {
	query, params := repo.prepResponsesQuery(limit, offset, "", offerId, buyerId, statuses)

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetResponses: %w", err)
	}
	defer rows.Close()

	var result []models.Response
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetResponses: rows scan error: %w", err)
		}
		result = append(result, response)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetResponses: %w", rows.Err())
	}

	return result, nil
}

func (repo *Repository) GetResponseByUUID(ctx context.Context, UUID string, tx *sql.Tx) (models.Response, error) {
	var row *sql.Row
	if tx != nil {
		query := `SELECT ` + responseColumns + ` FROM responses WHERE id = $1 FOR UPDATE`
		row = tx.QueryRowContext(ctx, query, UUID)
	} else {
		query, params := repo.prepResponsesQuery(1, 0, UUID, "", "", nil)
		row = repo.db.QueryRowContext(ctx, query, params...)
	}

	response, err := scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return response, models.ErrNoResponse
	} else if err != nil {
		return response, fmt.Errorf("repository.Repository.GetResponseByUUID: %w", err)
	}
	return response, nil
}

func (repo *Repository) UpdateResponseStatus(ctx context.Context, tx *sql.Tx, UUID string, status models.ResponseStatus) error {
	query := `
	UPDATE responses
	SET (status, updated_at) = ($2, CURRENT_TIMESTAMP)
	WHERE id = $1
	`

	_, err := execer(repo, tx).ExecContext(ctx, query, UUID, status)
	if err != nil {
		return fmt.Errorf("repository.Repository.UpdateResponseStatus: %w", err)
	}
	return nil
}

// PendingBids lists the live bids of an auction, best first. The ordering is
// the settlement order: highest amount wins, earliest submission breaks ties.
func (repo *Repository) PendingBids(ctx context.Context, tx *sql.Tx, offerId string) ([]models.Response, error) {
	query := `
	SELECT ` + responseColumns + `
	FROM responses
	WHERE offer_id = $1 AND response_type = 'Bid' AND status = 'Pending'
	ORDER BY amount DESC, created_at ASC
	`

	rows, err := tx.QueryContext(ctx, query, offerId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.PendingBids: %w", err)
	}
	defer rows.Close()

	var result []models.Response
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.PendingBids: rows scan error: %w", err)
		}
		result = append(result, response)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.PendingBids: %w", rows.Err())
	}

	return result, nil
}

// BestPendingBid returns the top live bid of an offer, excluding the given
// response id (pass the withdrawn/just-inserted one). ok is false when no
// live bid remains.
func (repo *Repository) BestPendingBid(ctx context.Context, tx *sql.Tx, offerId, excludeId string) (bid models.Response, ok bool, err error) {
	query := `
	SELECT ` + responseColumns + `
	FROM responses
	WHERE offer_id = $1 AND response_type = 'Bid' AND status = 'Pending' AND id <> $2
	ORDER BY amount DESC, created_at ASC
	LIMIT 1
	`

	row := tx.QueryRowContext(ctx, query, offerId, excludeId)
	bid, err = scanResponse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return bid, false, nil
	} else if err != nil {
		return bid, false, fmt.Errorf("repository.Repository.BestPendingBid: %w", err)
	}
	return bid, true, nil
}

// HasAcceptedResponse reports whether any response on the offer was already
// accepted; cancellation is only allowed before that point.
func (repo *Repository) HasAcceptedResponse(ctx context.Context, tx *sql.Tx, offerId string) (bool, error) {
	query := `SELECT id FROM responses WHERE offer_id = $1 AND status = 'Accepted' LIMIT 1`

	var dummy string
	err := tx.QueryRowContext(ctx, query, offerId).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("repository.Repository.HasAcceptedResponse: %w", err)
	}
	return true, nil
}

//// Service

func scanResponse(row rowScanner) (models.Response, error) {
	var response models.Response
	err := row.Scan(&response.Id, &response.OfferId, &response.BuyerId, &response.ResponseType,
		&response.Amount, &response.Quantity, &response.Message, &response.Status,
		&response.CreatedAt, &response.UpdatedAt)
	return response, err
}

// NullAmount wraps a bid amount for comparisons against the nullable
// current_best_amount column.
func NullAmount(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
