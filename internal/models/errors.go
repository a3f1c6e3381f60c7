package models

import "errors"

// Expected business outcomes of engine operations. All of these are returned
// to the caller as wrapped sentinels, never panics; only infrastructure
// failures (store unavailable) surface as plain errors.
var (
	ErrForbidden                = errors.New("caller has no permission for this operation")
	ErrTypeMismatch             = errors.New("response type does not match offer type")
	ErrDuplicatePending         = errors.New("buyer already has a pending response on this offer")
	ErrOutOfWindow              = errors.New("auction window is not open")
	ErrQuantityTooLow           = errors.New("quantity is below the offer minimum")
	ErrQuantityExceedsAvailable = errors.New("quantity exceeds available quantity")
	ErrBidTooLow                = errors.New("bid must exceed the current best amount")
	ErrAmountNotPositive        = errors.New("amount must be positive")
	ErrInvalidState             = errors.New("entity is not in the required status for this operation")
	ErrConflict                 = errors.New("concurrent update detected, retry with fresh state")
	ErrNoOffer                  = errors.New("requested offer does not exist")
	ErrNoResponse               = errors.New("requested response does not exist")
)
