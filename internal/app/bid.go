package app

import (
	"context"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BidService implements the bid use cases
type BidService struct {
	auctionRepo outbound.AuctionRepository
	bidRepo     outbound.BidRepository
	broadcaster outbound.Broadcaster
	now         func() time.Time
	logger      zerolog.Logger
}

type BidServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	BidRepo     outbound.BidRepository
	Broadcaster outbound.Broadcaster
	Now         func() time.Time
	Logger      zerolog.Logger
}

// NewBidService creates a new bid service
func NewBidService(params BidServiceParams) *BidService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &BidService{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		broadcaster: params.Broadcaster,
		now:         now,
		logger:      params.Logger.With().Str("component", "bid_service").Logger(),
	}
}

// PlaceBid commits req.Amount from req.BidderID to the auction. The value
// transfer in is journaled in the same transaction as the ledger update.
func (client *BidService) PlaceBid(ctx context.Context, req inbound.PlaceBidRequest) (*bid.Bid, error) {
	client.logger.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("bidder_id", req.BidderID.String()).
		Str("amount", req.Amount.String()).
		Msg("Attempting to place bid")

	var (
		receipt auction.Receipt
		newBid  *bid.Bid
	)
	err := client.auctionRepo.Execute(ctx, req.AuctionID, func(ctx context.Context, a *auction.Auction, journal outbound.Journal) error {
		var err error
		receipt, err = a.Bid(req.BidderID, req.Amount, client.now())
		if err != nil {
			return err
		}

		transfer := receipt.Transfer
		transfer.ID = uuid.New()
		if err := journal.RecordTransfer(ctx, &transfer); err != nil {
			return err
		}
		receipt.Transfer = transfer

		newBid = bid.New(a.ID(), req.BidderID, req.Amount, receipt.Event.Pending, receipt.Event.At)
		return journal.RecordBid(ctx, newBid)
	})
	if err != nil {
		client.logger.Warn().
			Err(err).
			Str("auction_id", req.AuctionID.String()).
			Str("bidder_id", req.BidderID.String()).
			Str("amount", req.Amount.String()).
			Msg("Bid rejected")
		return nil, err
	}

	client.logger.Info().
		Str("bid_id", newBid.ID.String()).
		Str("auction_id", newBid.AuctionID.String()).
		Str("bidder_id", newBid.BidderID.String()).
		Str("highest_bid", newBid.Committed.String()).
		Msg("Bid placed successfully")

	publish(ctx, client.broadcaster, client.logger, eventFromReceipt(outbound.EventTypeBidPlaced, receipt, map[string]interface{}{
		"bid_id": newBid.ID.String(),
	}))

	return newBid, nil
}

// GetBids retrieves the accepted bids of an auction
func (client *BidService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	if _, err := client.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return client.bidRepo.GetByAuctionID(ctx, auctionID)
}

// eventFromReceipt converts a ledger receipt into a broadcast event
func eventFromReceipt(eventType outbound.EventType, receipt auction.Receipt, extra map[string]interface{}) outbound.Event {
	data := map[string]interface{}{
		"event":       string(receipt.Event.Type),
		"participant": receipt.Event.Participant.String(),
		"amount":      receipt.Event.Amount.String(),
		"pending":     receipt.Event.Pending.String(),
		"transfer_id": receipt.Transfer.ID.String(),
		"timestamp":   receipt.Event.At.Unix(),
	}
	for k, v := range extra {
		data[k] = v
	}

	return outbound.Event{
		Type:      eventType,
		AuctionID: receipt.Event.AuctionID,
		Data:      data,
		Timestamp: receipt.Event.At.Unix(),
	}
}
