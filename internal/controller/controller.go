package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"offermarket/internal/models"
)

// submitRetries bounds transparent retries of optimistic-concurrency
// collisions before a 409 reaches the caller.
const submitRetries = 3

type Service interface {
	CreateOffer(ctx context.Context, offer models.Offer) (models.Offer, error)
	CancelOffer(ctx context.Context, offerId, actingSellerId string) (models.Offer, error)
	CloseOffer(ctx context.Context, offerId, actingSellerId string) (models.Offer, error)
	GetOffer(ctx context.Context, offerId string) (models.Offer, error)
	GetOffers(ctx context.Context, limit, offset int, sellerId string, offerTypes []models.OfferType, statuses []models.OfferStatus) ([]models.Offer, error)
	GetOfferResponses(ctx context.Context, offerId, actingSellerId string, limit, offset int) ([]models.Response, error)

	SubmitResponse(ctx context.Context, buyerCategory models.BuyerCategory, response models.Response) (models.Response, error)
	AcceptResponse(ctx context.Context, responseId, actingSellerId string) (models.Offer, error)
	RejectResponse(ctx context.Context, responseId, actingSellerId string) (models.Response, error)
	WithdrawResponse(ctx context.Context, responseId, actingBuyerId string) (models.Response, error)
	GetBuyerResponses(ctx context.Context, buyerId string, limit, offset int) ([]models.Response, error)

	GetNotifications(ctx context.Context, recipientId string, limit, offset int) ([]models.Notification, error)
}

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Offers

// POST /api/offers/new
func (c *Controller) NewOffer(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	_, offer, err := ParseNewOfferReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	offer, err = c.service.CreateOffer(r.Context(), offer)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offer)
}

// GET /api/offers
func (c *Controller) GetOffers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit, err := c.getQueryInt(query, "limit")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}
	offset, err := c.getQueryInt(query, "offset")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return
	}

	var offerTypes []models.OfferType
	for _, str := range query["offer_type"] {
		t := models.OfferType(str)
		if !models.ValidOfferType(t) {
			c.errorResponse(w, http.StatusBadRequest, "invalid offer type supplied: "+str)
			return
		}
		offerTypes = append(offerTypes, t)
	}

	var statuses []models.OfferStatus
	for _, str := range query["status"] {
		t := models.OfferStatus(str)
		if !models.ValidOfferStatus(t) {
			c.errorResponse(w, http.StatusBadRequest, "invalid offer status supplied: "+str)
			return
		}
		statuses = append(statuses, t)
	}

	offers, err := c.service.GetOffers(r.Context(), limit, offset, query.Get("sellerId"), offerTypes, statuses)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offers)
}

// GET /api/offers/{offerId}
func (c *Controller) GetOffer(w http.ResponseWriter, r *http.Request) {
	offerId := r.PathValue("offerId")
	if len(offerId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty offerId supplied")
		return
	}

	offer, err := c.service.GetOffer(r.Context(), offerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offer)
}

// PUT /api/offers/{offerId}/cancel
func (c *Controller) CancelOffer(w http.ResponseWriter, r *http.Request) {
	offerId, sellerId, ok := c.offerAndSeller(w, r)
	if !ok {
		return
	}

	offer, err := c.service.CancelOffer(r.Context(), offerId, sellerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offer)
}

// PUT /api/offers/{offerId}/close
func (c *Controller) CloseOffer(w http.ResponseWriter, r *http.Request) {
	offerId, sellerId, ok := c.offerAndSeller(w, r)
	if !ok {
		return
	}

	offer, err := c.service.CloseOffer(r.Context(), offerId, sellerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offer)
}

// GET /api/offers/{offerId}/responses
func (c *Controller) OfferResponses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	offerId, sellerId, ok := c.offerAndSeller(w, r)
	if !ok {
		return
	}

	limit, err := c.getQueryInt(query, "limit")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}
	offset, err := c.getQueryInt(query, "offset")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return
	}

	responses, err := c.service.GetOfferResponses(r.Context(), offerId, sellerId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, responses)
}

//// Responses

// POST /api/responses/new
func (c *Controller) NewResponse(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not read request body")
		return
	}

	buyerCategory, response, err := ParseNewResponseReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// A lost optimistic-concurrency race just means the snapshot went stale;
	// resubmitting re-validates against fresh state.
	for attempt := 0; ; attempt++ {
		var submitted models.Response
		submitted, err = c.service.SubmitResponse(r.Context(), buyerCategory, response)
		if errors.Is(err, models.ErrConflict) && attempt < submitRetries {
			continue
		}
		if err != nil {
			c.serviceErrorResponse(w, err)
			return
		}

		c.marshalResponse(w, submitted)
		return
	}
}

// GET /api/responses/my
func (c *Controller) MyResponses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	buyerId := query.Get("buyerId")
	if len(buyerId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty buyerId supplied")
		return
	}

	limit, err := c.getQueryInt(query, "limit")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}
	offset, err := c.getQueryInt(query, "offset")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return
	}

	responses, err := c.service.GetBuyerResponses(r.Context(), buyerId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, responses)
}

// PUT /api/responses/{responseId}/accept
func (c *Controller) AcceptResponse(w http.ResponseWriter, r *http.Request) {
	responseId, sellerId, ok := c.responseAndParty(w, r, "sellerId")
	if !ok {
		return
	}

	offer, err := c.service.AcceptResponse(r.Context(), responseId, sellerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, offer)
}

// PUT /api/responses/{responseId}/reject
func (c *Controller) RejectResponse(w http.ResponseWriter, r *http.Request) {
	responseId, sellerId, ok := c.responseAndParty(w, r, "sellerId")
	if !ok {
		return
	}

	response, err := c.service.RejectResponse(r.Context(), responseId, sellerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, response)
}

// PUT /api/responses/{responseId}/withdraw
func (c *Controller) WithdrawResponse(w http.ResponseWriter, r *http.Request) {
	responseId, buyerId, ok := c.responseAndParty(w, r, "buyerId")
	if !ok {
		return
	}

	response, err := c.service.WithdrawResponse(r.Context(), responseId, buyerId)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, response)
}

//// Notifications

// GET /api/notifications
func (c *Controller) Notifications(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	userId := query.Get("userId")
	if len(userId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty userId supplied")
		return
	}

	limit, err := c.getQueryInt(query, "limit")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'limit' query parameter: "+query.Get("limit"))
		return
	}
	offset, err := c.getQueryInt(query, "offset")
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid value of 'offset' query parameter: "+query.Get("offset"))
		return
	}

	notifications, err := c.service.GetNotifications(r.Context(), userId, limit, offset)
	if err != nil {
		c.serviceErrorResponse(w, err)
		return
	}

	c.marshalResponse(w, notifications)
}

//// Service

type ErrorResponse struct {
	Reason string `json:"reason"`
}

func (c *Controller) offerAndSeller(w http.ResponseWriter, r *http.Request) (offerId, sellerId string, ok bool) {
	offerId = r.PathValue("offerId")
	if len(offerId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty offerId supplied")
		return "", "", false
	}

	sellerId = r.URL.Query().Get("sellerId")
	if len(sellerId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty sellerId supplied")
		return "", "", false
	}

	return offerId, sellerId, true
}

func (c *Controller) responseAndParty(w http.ResponseWriter, r *http.Request, partyKey string) (responseId, partyId string, ok bool) {
	responseId = r.PathValue("responseId")
	if len(responseId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty responseId supplied")
		return "", "", false
	}

	partyId = r.URL.Query().Get(partyKey)
	if len(partyId) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty "+partyKey+" supplied")
		return "", "", false
	}

	return responseId, partyId, true
}

func (c *Controller) getQueryInt(query url.Values, key string) (int, error) {
	strs, ok := query[key]
	if ok && len(strs) > 0 {
		return strconv.Atoi(strs[0])
	}
	return 0, nil
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		log.Printf("controller.Controller.errorResponse: %s", err)
		return
	}

	_, err = w.Write(data)
	if err != nil {
		log.Printf("controller.Controller.errorResponse: %s", err)
		return
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrForbidden):
		c.errorResponse(w, http.StatusForbidden, "caller has no permission for requested action")
	case errors.Is(err, models.ErrTypeMismatch):
		c.errorResponse(w, http.StatusBadRequest, "response type does not match offer type")
	case errors.Is(err, models.ErrDuplicatePending):
		c.errorResponse(w, http.StatusConflict, "you already have a pending response on this offer")
	case errors.Is(err, models.ErrOutOfWindow):
		c.errorResponse(w, http.StatusBadRequest, "the auction window is not open")
	case errors.Is(err, models.ErrQuantityTooLow):
		c.errorResponse(w, http.StatusBadRequest, "quantity is below the offer minimum")
	case errors.Is(err, models.ErrQuantityExceedsAvailable):
		c.errorResponse(w, http.StatusBadRequest, "quantity exceeds the available quantity")
	case errors.Is(err, models.ErrBidTooLow):
		c.errorResponse(w, http.StatusBadRequest, "your bid must exceed the current highest bid")
	case errors.Is(err, models.ErrAmountNotPositive):
		c.errorResponse(w, http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, models.ErrInvalidState):
		c.errorResponse(w, http.StatusConflict, "entity is not in the required status for requested action")
	case errors.Is(err, models.ErrConflict):
		c.errorResponse(w, http.StatusConflict, "the offer changed while processing, please retry")
	case errors.Is(err, models.ErrNoOffer):
		c.errorResponse(w, http.StatusNotFound, "requested offer does not exist")
	case errors.Is(err, models.ErrNoResponse):
		c.errorResponse(w, http.StatusNotFound, "requested response does not exist")
	default:
		log.Println("controller:", err)
		c.errorResponse(w, http.StatusInternalServerError, "internal server error: "+err.Error())
	}
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marshal response data")
		return
	}

	_, err = w.Write(d)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not write response data")
		return
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	src.Close()
	return data, nil
}
