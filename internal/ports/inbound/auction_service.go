package inbound

import (
	"context"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionService defines the interface for deployment and read-only queries
type AuctionService interface {
	// DeployAuction creates a new auction owned by the caller
	DeployAuction(ctx context.Context, req DeployAuctionRequest) (*AuctionSummary, error)

	// GetAuction returns the current state of an auction
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*AuctionSummary, error)

	// ListAuctions retrieves up to req.Limit auctions after skipping req.Offset, newest first
	ListAuctions(ctx context.Context, req ListAuctionsRequest) ([]*AuctionSummary, error)

	// PendingBalance returns a participant's pending balance
	PendingBalance(ctx context.Context, auctionID, participantID uuid.UUID) (decimal.Decimal, error)
}

// BidService defines the interface for bid operations
type BidService interface {
	// PlaceBid commits value to an auction
	PlaceBid(ctx context.Context, req PlaceBidRequest) (*bid.Bid, error)

	// GetBids retrieves the accepted bids of an auction, oldest first
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// SettlementService defines the interface for pulling funds out of an auction
type SettlementService interface {
	// Claim returns the caller's claimable balance
	Claim(ctx context.Context, req SettlementRequest) (*auction.Transfer, error)

	// WithdrawAll pays the winning amount to the owner
	WithdrawAll(ctx context.Context, req SettlementRequest) (*auction.Transfer, error)

	// GetTransfers retrieves the value transfers of an auction
	GetTransfers(ctx context.Context, auctionID uuid.UUID) ([]*auction.Transfer, error)
}

// request to deploy an auction
type DeployAuctionRequest struct {
	OwnerID       uuid.UUID       `json:"owner_id"`
	Duration      time.Duration   `json:"duration"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// request to list auctions
type ListAuctionsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// request to place a bid
type PlaceBidRequest struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	ClientID  string          `json:"client_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// request to claim or withdraw
type SettlementRequest struct {
	AuctionID uuid.UUID `json:"auction_id"`
	CallerID  uuid.UUID `json:"caller_id"`
}

// AuctionSummary is the read model of an auction
type AuctionSummary struct {
	ID                uuid.UUID       `json:"auction_id"`
	OwnerID           uuid.UUID       `json:"owner_id"`
	StartTime         time.Time       `json:"start_time"`
	EndTime           time.Time       `json:"end_time"`
	StartingPrice     decimal.Decimal `json:"starting_price"`
	HighestBid        decimal.Decimal `json:"highest_bid"`
	Winner            *uuid.UUID      `json:"winner,omitempty"`
	BalanceOfContract decimal.Decimal `json:"balance_of_contract"`
	Participants      int             `json:"participants"`
	Open              bool            `json:"open"`
	Withdrawn         bool            `json:"withdrawn"`
}

// NewAuctionSummary builds the read model of a at now
func NewAuctionSummary(a *auction.Auction, now time.Time) *AuctionSummary {
	return &AuctionSummary{
		ID:                a.ID(),
		OwnerID:           a.Owner(),
		StartTime:         a.StartTime(),
		EndTime:           a.EndTime(),
		StartingPrice:     a.StartingPrice(),
		HighestBid:        a.HighestBid(),
		Winner:            a.Winner(),
		BalanceOfContract: a.BalanceOfContract(),
		Participants:      a.Participants(),
		Open:              a.IsOpen(now),
		Withdrawn:         a.Withdrawn(),
	}
}
