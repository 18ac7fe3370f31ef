package bid

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an accepted bid in an auction's history
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	// Amount is the value paid in with this bid
	Amount decimal.Decimal `json:"amount"`
	// Committed is the bidder's cumulative pending balance after the bid,
	// which is also the new highest bid
	Committed decimal.Decimal `json:"committed"`
	CreatedAt time.Time       `json:"created_at"`
}

// New creates a bid record with a fresh ID
func New(auctionID, bidderID uuid.UUID, amount, committed decimal.Decimal, at time.Time) *Bid {
	return &Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Committed: committed,
		CreatedAt: at,
	}
}

// IsTopUp returns true if the bidder already had a pending balance before this bid
func (b *Bid) IsTopUp() bool {
	return b.Committed.GreaterThan(b.Amount)
}
