package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"offermarket/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const offerColumns = `id, seller_id, offer_type, target_category, base_price, current_best_amount,
		min_quantity, available_quantity, window_start, window_end, status, created_at, updated_at`

func (repo *Repository) AddOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	query := `
	INSERT INTO offers (id, seller_id, offer_type, target_category, base_price, min_quantity, available_quantity, window_start, window_end, status, created_at, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, 'Active', DEFAULT, DEFAULT)
	RETURNING
		status, created_at, updated_at
	`

	if len(offer.Id) == 0 {
		offer.Id = uuid.NewString()
	}

	row := repo.db.QueryRowContext(ctx, query,
		offer.Id, offer.SellerId, offer.OfferType, offer.TargetCategory, offer.BasePrice,
		offer.MinQuantity, offer.AvailableQuantity, offer.WindowStart, offer.WindowEnd)
	err := row.Scan(&offer.Status, &offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		return offer, fmt.Errorf("repository.Repository.AddOffer: scan failed: %w", err)
	}

	return offer, nil
}

func (repo *Repository) prepOffersQuery(limit, offset int, UUID, sellerId string, offerTypes []models.OfferType, statuses []models.OfferStatus) (query string, queryParams []interface{}) {
	query = `
	SELECT ` + offerColumns + `
	FROM offers
	$conditions$
	ORDER BY created_at DESC
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
	if len(sellerId) > 0 {
		queryParams = append(queryParams, sellerId)
		conditions = append(conditions, "seller_id = $$")
	}
	if len(offerTypes) > 0 {
		queryParams = append(queryParams, pqStringArray(offerTypes))
		conditions = append(conditions, "offer_type = ANY($$)")
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

func (repo *Repository) GetOffers(ctx context.Context, limit, offset int, sellerId string, offerTypes []models.OfferType, statuses []models.OfferStatus) ([]models.Offer, error) {
	query, params := repo.prepOffersQuery(limit, offset, "", sellerId, offerTypes, statuses)

	rows, err := repo.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetOffers: %w", err)
	}
	defer rows.Close()

	var result []models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetOffers: rows scan error: %w", err)
		}
		result = append(result, offer)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetOffers: %w", rows.Err())
	}

	return result, nil
}

// GetOfferByUUID reads an offer. When tx is non-nil the row is read inside
// that transaction with FOR UPDATE, serializing concurrent engine operations
// on the same offer.
func (repo *Repository) GetOfferByUUID(ctx context.Context, UUID string, tx *sql.Tx) (models.Offer, error) {
	var row *sql.Row
	if tx != nil {
		query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1 FOR UPDATE`
		row = tx.QueryRowContext(ctx, query, UUID)
	} else {
		query, params := repo.prepOffersQuery(1, 0, UUID, "", nil, nil)
		row = repo.db.QueryRowContext(ctx, query, params...)
	}

	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return offer, models.ErrNoOffer
	} else if err != nil {
		return offer, fmt.Errorf("repository.Repository.GetOfferByUUID: %w", err)
	}
	return offer, nil
}

func (repo *Repository) UpdateOfferStatus(ctx context.Context, tx *sql.Tx, UUID string, status models.OfferStatus) error {
	query := `
	UPDATE offers
	SET (status, updated_at) = ($2, CURRENT_TIMESTAMP)
	WHERE id = $1
	`

	_, err := execer(repo, tx).ExecContext(ctx, query, UUID, status)
	if err != nil {
		return fmt.Errorf("repository.Repository.UpdateOfferStatus: %w", err)
	}
	return nil
}

// CASBestAmount sets current_best_amount guarded by the value read at
// validation time. Zero rows affected means another bid committed in between;
// the caller rolls back and reports ErrConflict so the buyer retries against
// fresh state.
func (repo *Repository) CASBestAmount(ctx context.Context, tx *sql.Tx, UUID string, seen decimal.NullDecimal, amount decimal.Decimal) error {
	query := `
	UPDATE offers
	SET (current_best_amount, updated_at) = ($3, CURRENT_TIMESTAMP)
	WHERE id = $1 AND current_best_amount IS NOT DISTINCT FROM $2
	`

	res, err := tx.ExecContext(ctx, query, UUID, seen, amount)
	if err != nil {
		return fmt.Errorf("repository.Repository.CASBestAmount: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("repository.Repository.CASBestAmount: %w", err)
	}
	if n == 0 {
		return models.ErrConflict
	}
	return nil
}

// SetBestAmount overwrites current_best_amount unconditionally; used inside
// withdraw to re-derive the best among remaining pending bids. Callers must
// hold the offer row lock.
func (repo *Repository) SetBestAmount(ctx context.Context, tx *sql.Tx, UUID string, amount decimal.NullDecimal) error {
	query := `
	UPDATE offers
	SET (current_best_amount, updated_at) = ($2, CURRENT_TIMESTAMP)
	WHERE id = $1
	`

	_, err := tx.ExecContext(ctx, query, UUID, amount)
	if err != nil {
		return fmt.Errorf("repository.Repository.SetBestAmount: %w", err)
	}
	return nil
}

// DecrementQuantity consumes quantity from an offer, guarded so the stored
// quantity can never go negative even if two acceptances race.
func (repo *Repository) DecrementQuantity(ctx context.Context, tx *sql.Tx, UUID string, quantity int) (remaining int, err error) {
	query := `
	UPDATE offers
	SET (available_quantity, updated_at) = (available_quantity - $2, CURRENT_TIMESTAMP)
	WHERE id = $1 AND available_quantity >= $2
	RETURNING available_quantity
	`

	row := tx.QueryRowContext(ctx, query, UUID, quantity)
	err = row.Scan(&remaining)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, models.ErrConflict
	} else if err != nil {
		return 0, fmt.Errorf("repository.Repository.DecrementQuantity: %w", err)
	}
	return remaining, nil
}

// GetDueAuctions lists active auction offers whose window has closed; the
// sweeper settles each of them.
func (repo *Repository) GetDueAuctions(ctx context.Context, now time.Time) ([]models.Offer, error) {
	query := `
	SELECT ` + offerColumns + `
	FROM offers
	WHERE offer_type = 'Auction' AND status = 'Active' AND window_end <= $1
	ORDER BY window_end
	`

	rows, err := repo.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.GetDueAuctions: %w", err)
	}
	defer rows.Close()

	var result []models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.Repository.GetDueAuctions: rows scan error: %w", err)
		}
		result = append(result, offer)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("repository.Repository.GetDueAuctions: %w", rows.Err())
	}

	return result, nil
}

//// Service

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffer(row rowScanner) (models.Offer, error) {
	var offer models.Offer
	var windowStart, windowEnd sql.NullTime

	err := row.Scan(&offer.Id, &offer.SellerId, &offer.OfferType, &offer.TargetCategory,
		&offer.BasePrice, &offer.CurrentBestAmount, &offer.MinQuantity, &offer.AvailableQuantity,
		&windowStart, &windowEnd, &offer.Status, &offer.CreatedAt, &offer.UpdatedAt)
	if err != nil {
		return offer, err
	}

	if windowStart.Valid {
		t := windowStart.Time
		offer.WindowStart = &t
	}
	if windowEnd.Valid {
		t := windowEnd.Time
		offer.WindowEnd = &t
	}
	return offer, nil
}
