// Package service implements the offer/response engine: it orchestrates
// submission, acceptance, rejection, withdrawal and auction settlement, and
// owns every status/quantity/best-amount write on offers and responses. All
// other packages only read those fields or call operations here.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"offermarket/internal/models"
	"offermarket/internal/repository"
	"offermarket/internal/rules"

	"github.com/shopspring/decimal"
)

type Service struct {
	repo *repository.Repository
	now  func() time.Time
}

type option func(*Service)

// WithClock injects the time source, so timing validation and settlement are
// deterministic in tests.
func WithClock(now func() time.Time) option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(repo *repository.Repository, opts ...option) *Service {
	s := &Service{
		repo: repo,
		now:  time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// SubmitResponse places a buyer's bid or negotiation proposal against an
// offer. The offer snapshot is read without a lock; for bids the best amount
// is then updated with a compare-and-set guarded by the snapshot value, so of
// two racing "higher" bids only the one that still beats the committed state
// wins. The loser gets models.ErrConflict and should resubmit against fresh
// state.
func (s *Service) SubmitResponse(ctx context.Context, buyerCategory models.BuyerCategory, response models.Response) (models.Response, error) {
	offer, err := s.repo.GetOfferByUUID(ctx, response.OfferId, nil)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}

	if err = rules.CheckEligibility(buyerCategory, &offer); err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}

	if !response.ResponseType.MatchesOffer(offer.OfferType) {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", models.ErrTypeMismatch)
	}

	pending, err := s.repo.GetResponses(ctx, 1, 0, offer.Id, response.BuyerId, []models.ResponseStatus{models.ResponsePending})
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}
	if len(pending) > 0 {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", models.ErrDuplicatePending)
	}

	if err = rules.ValidateTiming(&offer, s.now()); err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}
	if err = rules.ValidateQuantity(&offer, response.Quantity); err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}
	if err = rules.ValidateAmount(&offer, response.ResponseType, response.Amount); err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", err)
	}

	// The partial unique index re-checks the single-pending invariant under
	// concurrency; the read above only gives the friendly early error.
	response, err = s.repo.AddResponse(ctx, tx, response)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", rollback(tx, err))
	}

	if response.ResponseType == models.ResponseBid {
		err = s.repo.CASBestAmount(ctx, tx, offer.Id, offer.CurrentBestAmount, response.Amount)
		if err != nil {
			return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", rollback(tx, err))
		}
	}

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventResponseSubmitted,
		OfferId:     offer.Id,
		ResponseId:  response.Id,
		RecipientId: offer.SellerId,
		Payload:     amountPayload(response),
	})
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", rollback(tx, err))
	}

	if response.ResponseType == models.ResponseBid && offer.CurrentBestAmount.Valid {
		err = s.emitOutbid(ctx, tx, offer, response)
		if err != nil {
			return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: %w", rollback(tx, err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.SubmitResponse: failed to commit transaction: %w", err)
	}

	return response, nil
}

// AcceptResponse is the negotiation acceptance path; auctions are settled by
// SettleAuction when the window closes, not by seller discretion.
//
// Policy: accepting one proposal leaves every other pending proposal on the
// offer untouched, the seller rejects them individually. The offer completes
// only when the remaining quantity can no longer satisfy its own minimum.
func (s *Service) AcceptResponse(ctx context.Context, responseId, actingSellerId string) (models.Offer, error) {
	response, err := s.repo.GetResponseByUUID(ctx, responseId, nil)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", err)
	}

	// Lock order is offer first, then response, matching every other
	// operation on the same rows.
	offer, err := s.repo.GetOfferByUUID(ctx, response.OfferId, tx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
	}
	response, err = s.repo.GetResponseByUUID(ctx, responseId, tx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
	}

	if offer.SellerId != actingSellerId {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, models.ErrForbidden))
	}
	if response.Status != models.ResponsePending || response.ResponseType != models.ResponseNegotiation {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, models.ErrInvalidState))
	}
	if offer.Status != models.OfferActive {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, models.ErrInvalidState))
	}

	err = s.repo.UpdateResponseStatus(ctx, tx, response.Id, models.ResponseAccepted)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
	}

	remaining, err := s.repo.DecrementQuantity(ctx, tx, offer.Id, response.Quantity)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
	}
	offer.AvailableQuantity = remaining

	if remaining < offer.MinQuantity {
		err = s.repo.UpdateOfferStatus(ctx, tx, offer.Id, models.OfferCompleted)
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
		}
		offer.Status = models.OfferCompleted
	}

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventResponseAccepted,
		OfferId:     offer.Id,
		ResponseId:  response.Id,
		RecipientId: response.BuyerId,
		Payload:     amountPayload(response),
	})
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: %w", rollback(tx, err))
	}

	err = tx.Commit()
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.AcceptResponse: failed to commit transaction: %w", err)
	}

	return offer, nil
}

func (s *Service) RejectResponse(ctx context.Context, responseId, actingSellerId string) (models.Response, error) {
	response, err := s.repo.GetResponseByUUID(ctx, responseId, nil)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", err)
	}

	offer, err := s.repo.GetOfferByUUID(ctx, response.OfferId, tx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, err))
	}
	response, err = s.repo.GetResponseByUUID(ctx, responseId, tx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, err))
	}

	if offer.SellerId != actingSellerId {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, models.ErrForbidden))
	}
	if response.Status != models.ResponsePending {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, models.ErrInvalidState))
	}

	err = s.repo.UpdateResponseStatus(ctx, tx, response.Id, models.ResponseRejected)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, err))
	}
	response.Status = models.ResponseRejected

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventResponseRejected,
		OfferId:     offer.Id,
		ResponseId:  response.Id,
		RecipientId: response.BuyerId,
		Payload:     amountPayload(response),
	})
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: %w", rollback(tx, err))
	}

	err = tx.Commit()
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.RejectResponse: failed to commit transaction: %w", err)
	}

	return response, nil
}

// WithdrawResponse lets a buyer retract their own pending proposal. When the
// withdrawn response is a bid, the offer's best amount is re-derived as the
// maximum over the remaining pending bids (null when none remain), so an
// auction always advertises a beatable, live best.
func (s *Service) WithdrawResponse(ctx context.Context, responseId, actingBuyerId string) (models.Response, error) {
	response, err := s.repo.GetResponseByUUID(ctx, responseId, nil)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", err)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", err)
	}

	offer, err := s.repo.GetOfferByUUID(ctx, response.OfferId, tx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
	}
	response, err = s.repo.GetResponseByUUID(ctx, responseId, tx)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
	}

	if response.BuyerId != actingBuyerId {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, models.ErrForbidden))
	}
	if response.Status != models.ResponsePending {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, models.ErrInvalidState))
	}

	err = s.repo.UpdateResponseStatus(ctx, tx, response.Id, models.ResponseWithdrawn)
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
	}
	response.Status = models.ResponseWithdrawn

	if response.ResponseType == models.ResponseBid && offer.Status == models.OfferActive {
		best, ok, err := s.repo.BestPendingBid(ctx, tx, offer.Id, response.Id)
		if err != nil {
			return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
		}

		var newBest decimal.NullDecimal
		if ok {
			newBest = repository.NullAmount(best.Amount)
		}
		err = s.repo.SetBestAmount(ctx, tx, offer.Id, newBest)
		if err != nil {
			return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
		}
	}

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventResponseWithdrawn,
		OfferId:     offer.Id,
		ResponseId:  response.Id,
		RecipientId: offer.SellerId,
		Payload:     amountPayload(response),
	})
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: %w", rollback(tx, err))
	}

	err = tx.Commit()
	if err != nil {
		return models.Response{}, fmt.Errorf("service.Service.WithdrawResponse: failed to commit transaction: %w", err)
	}

	return response, nil
}

// SettleAuction finalizes an auction: the best pending bid wins, every other
// pending bid is rejected, and the offer completes (or expires when no bid
// exists). The offer row lock plus the Active guard make a second concurrent
// settlement fail with ErrInvalidState instead of picking a second winner.
func (s *Service) SettleAuction(ctx context.Context, offerId string) (models.Offer, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", err)
	}

	offer, err := s.repo.GetOfferByUUID(ctx, offerId, tx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}

	if offer.OfferType != models.OfferAuction || offer.Status != models.OfferActive {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, models.ErrInvalidState))
	}

	bids, err := s.repo.PendingBids(ctx, tx, offer.Id)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}

	if len(bids) == 0 {
		err = s.repo.UpdateOfferStatus(ctx, tx, offer.Id, models.OfferExpired)
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
		}
		offer.Status = models.OfferExpired

		_, err = s.repo.AddEvent(ctx, tx, models.Event{
			Type:        models.EventAuctionExpiredNoBids,
			OfferId:     offer.Id,
			RecipientId: offer.SellerId,
		})
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
		}

		err = tx.Commit()
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: failed to commit transaction: %w", err)
		}
		return offer, nil
	}

	winner := bids[0]
	err = s.repo.UpdateResponseStatus(ctx, tx, winner.Id, models.ResponseAccepted)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}

	for _, loser := range bids[1:] {
		err = s.repo.UpdateResponseStatus(ctx, tx, loser.Id, models.ResponseRejected)
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
		}
	}

	remaining, err := s.repo.DecrementQuantity(ctx, tx, offer.Id, winner.Quantity)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}
	offer.AvailableQuantity = remaining

	err = s.repo.UpdateOfferStatus(ctx, tx, offer.Id, models.OfferCompleted)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}
	offer.Status = models.OfferCompleted

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventAuctionSettled,
		OfferId:     offer.Id,
		ResponseId:  winner.Id,
		RecipientId: winner.BuyerId,
		Payload:     amountPayload(winner),
	})
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}
	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventAuctionSettled,
		OfferId:     offer.Id,
		ResponseId:  winner.Id,
		RecipientId: offer.SellerId,
		Payload:     amountPayload(winner),
	})
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
	}

	for _, loser := range bids[1:] {
		_, err = s.repo.AddEvent(ctx, tx, models.Event{
			Type:        models.EventAuctionLost,
			OfferId:     offer.Id,
			ResponseId:  loser.Id,
			RecipientId: loser.BuyerId,
			Payload:     amountPayload(loser),
		})
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: %w", rollback(tx, err))
		}
	}

	err = tx.Commit()
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.SettleAuction: failed to commit transaction: %w", err)
	}

	return offer, nil
}

//// Service

func (s *Service) emitOutbid(ctx context.Context, tx *sql.Tx, offer models.Offer, newBid models.Response) error {
	// The top pending bid excluding the one just inserted is the buyer who
	// held the best amount before this submission.
	prev, ok, err := s.repo.BestPendingBid(ctx, tx, offer.Id, newBid.Id)
	if err != nil {
		return err
	}
	if !ok || prev.BuyerId == newBid.BuyerId {
		return nil
	}

	_, err = s.repo.AddEvent(ctx, tx, models.Event{
		Type:        models.EventOutbid,
		OfferId:     offer.Id,
		ResponseId:  prev.Id,
		RecipientId: prev.BuyerId,
		Payload:     amountPayload(newBid),
	})
	return err
}

func rollback(tx *sql.Tx, err error) error {
	rollerr := tx.Rollback()
	if rollerr == nil {
		return err
	}
	return fmt.Errorf("failed to rollback transaction after previous error: %w, %w", rollerr, err)
}

func amountPayload(response models.Response) json.RawMessage {
	data, err := json.Marshal(map[string]interface{}{
		"amount":   response.Amount,
		"quantity": response.Quantity,
	})
	if err != nil {
		return nil
	}
	return data
}
