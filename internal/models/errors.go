package models

import "errors"

// Sentinel errors for the order/bidding/tracking core. Controllers match
// these with errors.Is and map them onto HTTP statuses; services wrap them
// with context via fmt.Errorf("...: %w", ...).
var (
	// ErrValidation means the request itself is malformed. Not retryable.
	ErrValidation = errors.New("validation failed")

	ErrOrderNotFound = errors.New("order not found")
	ErrBidNotFound   = errors.New("bid not found")

	// State machine contract violations. The caller is out of date and
	// must re-read the order before retrying.
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrOutOfSequence     = errors.New("stop completed out of sequence")
	ErrAlreadyAssigned   = errors.New("order already assigned")

	// Expected races under concurrency. Informational for callers.
	ErrBiddingClosed = errors.New("bidding is closed for this order")
	ErrDuplicateBid  = errors.New("transporter already holds a live bid on this order")
	ErrAuctionClosed = errors.New("auction already closed")

	ErrForbidden = errors.New("operation not permitted for this actor")
)
