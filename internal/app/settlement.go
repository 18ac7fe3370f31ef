package app

import (
	"context"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SettlementService implements claim and withdrawal
type SettlementService struct {
	auctionRepo  outbound.AuctionRepository
	transferRepo outbound.TransferRepository
	broadcaster  outbound.Broadcaster
	now          func() time.Time
	logger       zerolog.Logger
}

type SettlementServiceParams struct {
	AuctionRepo  outbound.AuctionRepository
	TransferRepo outbound.TransferRepository
	Broadcaster  outbound.Broadcaster
	Now          func() time.Time
	Logger       zerolog.Logger
}

// NewSettlementService creates a new settlement service
func NewSettlementService(params SettlementServiceParams) *SettlementService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &SettlementService{
		auctionRepo:  params.AuctionRepo,
		transferRepo: params.TransferRepo,
		broadcaster:  params.Broadcaster,
		now:          now,
		logger:       params.Logger.With().Str("component", "settlement_service").Logger(),
	}
}

type settleFunc func(a *auction.Auction, now time.Time, pay auction.PayFunc) (auction.Receipt, error)

// Claim pays the caller's claimable balance back to them
func (s *SettlementService) Claim(ctx context.Context, req inbound.SettlementRequest) (*auction.Transfer, error) {
	return s.settle(ctx, req, "claim", outbound.EventTypeFundsClaimed,
		func(a *auction.Auction, now time.Time, pay auction.PayFunc) (auction.Receipt, error) {
			return a.Claim(req.CallerID, now, pay)
		})
}

// WithdrawAll pays the winning amount to the owner
func (s *SettlementService) WithdrawAll(ctx context.Context, req inbound.SettlementRequest) (*auction.Transfer, error) {
	return s.settle(ctx, req, "withdraw_all", outbound.EventTypeFundsWithdrawn,
		func(a *auction.Auction, now time.Time, pay auction.PayFunc) (auction.Receipt, error) {
			return a.WithdrawAll(req.CallerID, now, pay)
		})
}

// settle runs op under the auction lock. The ledger is updated before the
// transfer reaches the journal, and a journal failure rolls everything back.
func (s *SettlementService) settle(ctx context.Context, req inbound.SettlementRequest, op string, eventType outbound.EventType, fn settleFunc) (*auction.Transfer, error) {
	logger := s.logger.With().
		Str("op", op).
		Str("auction_id", req.AuctionID.String()).
		Str("caller_id", req.CallerID.String()).
		Logger()
	logger.Info().Msg("Attempting settlement")

	var receipt auction.Receipt
	err := s.auctionRepo.Execute(ctx, req.AuctionID, func(ctx context.Context, a *auction.Auction, journal outbound.Journal) error {
		var recorded auction.Transfer
		var err error
		receipt, err = fn(a, s.now(), func(transfer auction.Transfer) error {
			transfer.ID = uuid.New()
			if err := journal.RecordTransfer(ctx, &transfer); err != nil {
				return err
			}
			recorded = transfer
			return nil
		})
		if err != nil {
			return err
		}
		receipt.Transfer = recorded
		return nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Settlement rejected")
		return nil, err
	}

	transfer := receipt.Transfer
	logger.Info().
		Str("transfer_id", transfer.ID.String()).
		Str("party", transfer.Party.String()).
		Str("amount", transfer.Amount.String()).
		Msg("Settlement completed")

	publish(ctx, s.broadcaster, logger, eventFromReceipt(eventType, receipt, nil))

	return &transfer, nil
}

// GetTransfers retrieves the transfer journal of an auction
func (s *SettlementService) GetTransfers(ctx context.Context, auctionID uuid.UUID) ([]*auction.Transfer, error) {
	if _, err := s.auctionRepo.GetByID(ctx, auctionID); err != nil {
		return nil, err
	}
	return s.transferRepo.GetByAuctionID(ctx, auctionID)
}
