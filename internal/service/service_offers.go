package service

import (
	"context"
	"fmt"

	"offermarket/internal/models"
)

// CreateOffer publishes a seller's offer as Active. Auction offers must carry
// a forward time window; negotiable offers must not.
func (s *Service) CreateOffer(ctx context.Context, offer models.Offer) (models.Offer, error) {
	if !models.ValidOfferType(offer.OfferType) || !models.ValidBuyerCategory(offer.TargetCategory) {
		return models.Offer{}, fmt.Errorf("service.Service.CreateOffer: %w", models.ErrInvalidState)
	}
	if offer.BasePrice.Sign() <= 0 {
		return models.Offer{}, fmt.Errorf("service.Service.CreateOffer: %w", models.ErrAmountNotPositive)
	}
	if offer.MinQuantity < 1 || offer.AvailableQuantity < offer.MinQuantity {
		return models.Offer{}, fmt.Errorf("service.Service.CreateOffer: %w", models.ErrQuantityTooLow)
	}

	if offer.OfferType == models.OfferAuction {
		if offer.WindowStart == nil || offer.WindowEnd == nil || !offer.WindowStart.Before(*offer.WindowEnd) {
			return models.Offer{}, fmt.Errorf("service.Service.CreateOffer: %w", models.ErrOutOfWindow)
		}
	} else {
		offer.WindowStart = nil
		offer.WindowEnd = nil
	}

	offer, err := s.repo.AddOffer(ctx, offer)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CreateOffer: %w", err)
	}

	return offer, nil
}

// CancelOffer retires an active offer that has no accepted response yet.
func (s *Service) CancelOffer(ctx context.Context, offerId, actingSellerId string) (models.Offer, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", err)
	}

	offer, err := s.repo.GetOfferByUUID(ctx, offerId, tx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, err))
	}

	if offer.SellerId != actingSellerId {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, models.ErrForbidden))
	}
	if offer.Status != models.OfferActive {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, models.ErrInvalidState))
	}

	accepted, err := s.repo.HasAcceptedResponse(ctx, tx, offer.Id)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, err))
	}
	if accepted {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, models.ErrInvalidState))
	}

	err = s.repo.UpdateOfferStatus(ctx, tx, offer.Id, models.OfferCancelled)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: %w", rollback(tx, err))
	}
	offer.Status = models.OfferCancelled

	err = tx.Commit()
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CancelOffer: failed to commit transaction: %w", err)
	}

	return offer, nil
}

// CloseOffer is the seller's manual closure. An auction closes through
// regular settlement (the best pending bid still wins); a negotiable offer
// simply completes.
func (s *Service) CloseOffer(ctx context.Context, offerId, actingSellerId string) (models.Offer, error) {
	offer, err := s.repo.GetOfferByUUID(ctx, offerId, nil)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", err)
	}
	if offer.SellerId != actingSellerId {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", models.ErrForbidden)
	}

	if offer.OfferType == models.OfferAuction {
		offer, err = s.SettleAuction(ctx, offerId)
		if err != nil {
			return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", err)
		}
		return offer, nil
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", err)
	}

	offer, err = s.repo.GetOfferByUUID(ctx, offerId, tx)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", rollback(tx, err))
	}
	if offer.Status != models.OfferActive {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", rollback(tx, models.ErrInvalidState))
	}

	err = s.repo.UpdateOfferStatus(ctx, tx, offer.Id, models.OfferCompleted)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: %w", rollback(tx, err))
	}
	offer.Status = models.OfferCompleted

	err = tx.Commit()
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.CloseOffer: failed to commit transaction: %w", err)
	}

	return offer, nil
}

//// Read surface

func (s *Service) GetOffer(ctx context.Context, offerId string) (models.Offer, error) {
	offer, err := s.repo.GetOfferByUUID(ctx, offerId, nil)
	if err != nil {
		return models.Offer{}, fmt.Errorf("service.Service.GetOffer: %w", err)
	}
	return offer, nil
}

func (s *Service) GetOffers(ctx context.Context, limit, offset int, sellerId string, offerTypes []models.OfferType, statuses []models.OfferStatus) ([]models.Offer, error) {
	offers, err := s.repo.GetOffers(ctx, limit, offset, sellerId, offerTypes, statuses)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetOffers: %w", err)
	}
	return offers, nil
}

// GetOfferResponses lists the proposals on an offer; only the owning seller
// may see them.
func (s *Service) GetOfferResponses(ctx context.Context, offerId, actingSellerId string, limit, offset int) ([]models.Response, error) {
	offer, err := s.repo.GetOfferByUUID(ctx, offerId, nil)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetOfferResponses: %w", err)
	}
	if offer.SellerId != actingSellerId {
		return nil, fmt.Errorf("service.Service.GetOfferResponses: %w", models.ErrForbidden)
	}

	responses, err := s.repo.GetResponses(ctx, limit, offset, offerId, "", nil)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetOfferResponses: %w", err)
	}
	return responses, nil
}

func (s *Service) GetBuyerResponses(ctx context.Context, buyerId string, limit, offset int) ([]models.Response, error) {
	responses, err := s.repo.GetResponses(ctx, limit, offset, "", buyerId, nil)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetBuyerResponses: %w", err)
	}
	return responses, nil
}

func (s *Service) GetNotifications(ctx context.Context, recipientId string, limit, offset int) ([]models.Notification, error) {
	notifications, err := s.repo.GetNotifications(ctx, limit, offset, recipientId)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetNotifications: %w", err)
	}
	return notifications, nil
}
