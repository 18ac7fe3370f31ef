package shared

import "errors"

// Domain-specific errors
var (
	// Bid errors
	ErrAuctionClosed = errors.New("auction closed")
	ErrBidTooLow     = errors.New("bid is lower or equal than current highest bid")

	// Claim errors
	ErrNotABuyer      = errors.New("caller is not a buyer")
	ErrNothingToClaim = errors.New("nothing to claim")

	// Withdrawal errors
	ErrNotOwner         = errors.New("caller is not the auction owner")
	ErrAuctionOngoing   = errors.New("auction is still ongoing")
	ErrNoBids           = errors.New("no one placed a bid")
	ErrAlreadyWithdrawn = errors.New("winning amount already withdrawn")

	// Transfer errors
	ErrTransferFailed = errors.New("value transfer failed")

	// Deployment errors
	ErrAuctionNotFound      = errors.New("auction not found")
	ErrInvalidDuration      = errors.New("duration cannot be negative")
	ErrInvalidStartingPrice = errors.New("starting price cannot be negative")
	ErrOwnerRequired        = errors.New("owner is required")

	// Validation errors
	ErrInvalidRequest = errors.New("invalid request")

	// WebSocket message validation errors
	ErrMessageTypeRequired        = errors.New("message type is required")
	ErrAuctionIDRequired          = errors.New("auction_id is required")
	ErrInvalidAmount              = errors.New("valid amount is required")
	ErrInvalidDurationSeconds     = errors.New("duration_seconds must be a number")
	ErrInvalidStartingPriceFormat = errors.New("starting_price must be a decimal")
	ErrInvalidParticipantID       = errors.New("invalid participant_id format")
	ErrInvalidPagination          = errors.New("limit and offset must be non-negative integers")
	ErrUnknownMessageType         = errors.New("unknown message type")
	ErrClientEventChannelNotFound = errors.New("client event channel not found")

	// Broadcasting errors
	ErrBroadcastFailed = errors.New("broadcast failed")
)
