package outbound

import (
	"context"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"

	"github.com/google/uuid"
)

// Journal records what a ledger operation produced. It is bound to the
// transaction of the surrounding Execute call.
type Journal interface {
	// RecordTransfer appends a value transfer to the transfer outbox
	RecordTransfer(ctx context.Context, transfer *auction.Transfer) error

	// RecordBid appends an accepted bid to the bid history
	RecordBid(ctx context.Context, bid *bid.Bid) error
}

// ExecuteFunc mutates a locked auction. Returning an error discards every change.
type ExecuteFunc func(ctx context.Context, a *auction.Auction, journal Journal) error

// AuctionRepository defines the interface for auction ledger persistence
type AuctionRepository interface {
	// Create stores a newly deployed auction
	Create(ctx context.Context, a *auction.Auction) error

	// GetByID retrieves an auction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error)

	// List retrieves up to limit auctions after skipping offset, newest first
	List(ctx context.Context, limit, offset int) ([]*auction.Auction, error)

	// Execute loads the auction under an exclusive lock, runs fn and persists
	// the resulting state together with the journal entries atomically
	Execute(ctx context.Context, id uuid.UUID, fn ExecuteFunc) error
}

// BidRepository defines the interface for bid history reads
type BidRepository interface {
	// GetByAuctionID retrieves all accepted bids for an auction
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error)
}

// TransferRepository defines the interface for transfer journal reads
type TransferRepository interface {
	// GetByAuctionID retrieves all transfers of an auction
	GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auction.Transfer, error)
}
