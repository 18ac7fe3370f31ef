package app

import (
	"context"
	"time"

	"auction-ledger-service/internal/adapters/scheduler"
	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// AuctionService implements deployment, queries and scheduler.AuctionCloseService
type AuctionService struct {
	auctionRepo outbound.AuctionRepository
	broadcaster outbound.Broadcaster
	scheduler   *scheduler.AuctionScheduler
	now         func() time.Time
	logger      zerolog.Logger
}
type AuctionServiceParams struct {
	AuctionRepo outbound.AuctionRepository
	Broadcaster outbound.Broadcaster
	Scheduler   *scheduler.AuctionScheduler
	// Now is the clock; time.Now when nil
	Now    func() time.Time
	Logger zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &AuctionService{
		auctionRepo: params.AuctionRepo,
		broadcaster: params.Broadcaster,
		scheduler:   params.Scheduler,
		now:         now,
		logger:      params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

// DeployAuction creates a new auction owned by req.OwnerID
func (service *AuctionService) DeployAuction(ctx context.Context, req inbound.DeployAuctionRequest) (*inbound.AuctionSummary, error) {
	service.logger.Info().
		Str("owner_id", req.OwnerID.String()).
		Dur("duration", req.Duration).
		Str("starting_price", req.StartingPrice.String()).
		Msg("Attempting to deploy auction")

	now := service.now()
	a, err := auction.New(auction.Params{
		Owner:         req.OwnerID,
		Duration:      req.Duration,
		StartingPrice: req.StartingPrice,
		Now:           now,
	})
	if err != nil {
		service.logger.Warn().Err(err).Str("owner_id", req.OwnerID.String()).Msg("Invalid auction parameters")
		return nil, err
	}

	if err := service.auctionRepo.Create(ctx, a); err != nil {
		service.logger.Error().Err(err).Str("auction_id", a.ID().String()).Msg("Failed to save auction to database")
		return nil, err
	}

	service.logger.Info().
		Str("auction_id", a.ID().String()).
		Time("end_time", a.EndTime()).
		Msg("Auction deployed successfully")

	// Schedule the close notification
	if service.scheduler != nil {
		if err := service.scheduler.ScheduleAuction(a.ID(), a.EndTime()); err != nil {
			service.logger.Error().Err(err).Str("auction_id", a.ID().String()).Msg("Failed to schedule auction close")
			// Closing does not depend on the scheduler, only the notification does
		}
	}

	publish(ctx, service.broadcaster, service.logger, outbound.Event{
		Type:      outbound.EventTypeAuctionDeployed,
		AuctionID: a.ID(),
		Data: map[string]interface{}{
			"owner_id":       a.Owner().String(),
			"start_time":     a.StartTime().Format(time.RFC3339Nano),
			"end_time":       a.EndTime().Format(time.RFC3339Nano),
			"starting_price": a.StartingPrice().String(),
		},
		Timestamp: now.Unix(),
	})

	return inbound.NewAuctionSummary(a, now), nil
}

// GetAuction retrieves an auction by ID
func (service *AuctionService) GetAuction(ctx context.Context, auctionID uuid.UUID) (*inbound.AuctionSummary, error) {
	service.logger.Debug().Str("auction_id", auctionID.String()).Msg("Retrieving auction")

	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction")
		return nil, err
	}

	return inbound.NewAuctionSummary(a, service.now()), nil
}

// ListAuctions retrieves auctions newest first, skipping req.Offset of them
func (service *AuctionService) ListAuctions(ctx context.Context, req inbound.ListAuctionsRequest) ([]*inbound.AuctionSummary, error) {
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	auctions, err := service.auctionRepo.List(ctx, req.Limit, req.Offset)
	if err != nil {
		return nil, err
	}

	now := service.now()
	summaries := make([]*inbound.AuctionSummary, 0, len(auctions))
	for _, a := range auctions {
		summaries = append(summaries, inbound.NewAuctionSummary(a, now))
	}
	return summaries, nil
}

// PendingBalance returns participantID's pending balance in auctionID
func (service *AuctionService) PendingBalance(ctx context.Context, auctionID, participantID uuid.UUID) (decimal.Decimal, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		return decimal.Zero, err
	}
	return a.PendingBalance(participantID), nil
}

// SetScheduler sets the auction scheduler
func (service *AuctionService) SetScheduler(scheduler *scheduler.AuctionScheduler) {
	service.scheduler = scheduler
}

// CloseAuctionForScheduler implements scheduler.AuctionCloseService. The ledger
// needs no mutation to close; this only reports the outcome.
func (service *AuctionService) CloseAuctionForScheduler(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionCloseResult, error) {
	a, err := service.auctionRepo.GetByID(ctx, auctionID)
	if err != nil {
		service.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to retrieve auction for closing")
		return nil, err
	}

	if a.IsOpen(service.now()) {
		service.logger.Debug().Str("auction_id", auctionID.String()).Time("end_time", a.EndTime()).Msg("Auction not closed yet")
		return nil, shared.ErrAuctionOngoing
	}

	result := &shared.AuctionCloseResult{
		AuctionID:  a.ID(),
		WinnerID:   a.Winner(),
		HighestBid: a.HighestBid(),
		EndTime:    a.EndTime(),
	}

	if result.WinnerID != nil {
		service.logger.Info().
			Str("auction_id", auctionID.String()).
			Str("winner_id", result.WinnerID.String()).
			Str("highest_bid", result.HighestBid.String()).
			Msg("Auction closed with winner")
	} else {
		service.logger.Info().Str("auction_id", auctionID.String()).Msg("Auction closed with no bids")
	}

	return result, nil
}

// publish broadcasts event after a committed operation. Failures are only logged.
func publish(ctx context.Context, broadcaster outbound.Broadcaster, logger zerolog.Logger, event outbound.Event) {
	if broadcaster == nil {
		return
	}
	if err := broadcaster.Publish(ctx, event.AuctionID, event); err != nil {
		logger.Error().Err(err).
			Str("auction_id", event.AuctionID.String()).
			Str("event_type", string(event.Type)).
			Msg("Failed to broadcast event")
	}
}
