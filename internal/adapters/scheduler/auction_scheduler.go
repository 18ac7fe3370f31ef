package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ClosingsKey is the sorted set of auction IDs scored by end time (unix ms)
const ClosingsKey = "auction:closings"

type AuctionCloseService interface {
	CloseAuctionForScheduler(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionCloseResult, error)
}

// AuctionScheduler announces auctions whose end time has passed
type AuctionScheduler struct {
	redis          *redis.Client
	auctionService AuctionCloseService
	broadcaster    outbound.Broadcaster
	pollInterval   time.Duration
	batchSize      int64
	now            func() time.Time
	logger         zerolog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
}
type AuctionSchedulerParams struct {
	RedisClient    *redis.Client
	AuctionService AuctionCloseService
	Broadcaster    outbound.Broadcaster
	PollInterval   time.Duration
	BatchSize      int64
	Now            func() time.Time
	Logger         zerolog.Logger
}

func NewAuctionScheduler(params AuctionSchedulerParams) *AuctionScheduler {
	ctx, cancel := context.WithCancel(context.Background())

	pollInterval := params.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &AuctionScheduler{
		redis:          params.RedisClient,
		auctionService: params.AuctionService,
		broadcaster:    params.Broadcaster,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		now:            now,
		logger:         params.Logger.With().Str("component", "auction_scheduler").Logger(),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// SetAuctionService sets the service that reports closed auctions
func (s *AuctionScheduler) SetAuctionService(service AuctionCloseService) {
	s.auctionService = service
}

// ScheduleAuction adds an auction to the close schedule
func (s *AuctionScheduler) ScheduleAuction(auctionID uuid.UUID, endTime time.Time) error {
	err := s.redis.ZAdd(s.ctx, ClosingsKey, redis.Z{
		Score:  float64(endTime.UnixMilli()),
		Member: auctionID.String(),
	}).Err()

	if err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to schedule auction")
		return fmt.Errorf("failed to schedule auction: %w", err)
	}

	s.logger.Info().
		Str("auction_id", auctionID.String()).
		Time("end_time", endTime).
		Msg("Auction scheduled for close")

	return nil
}

// Start begins the scheduler loop
func (s *AuctionScheduler) Start() {
	s.logger.Info().Dur("poll_interval", s.pollInterval).Msg("Starting auction scheduler")

	s.wg.Add(1)
	go s.schedulerLoop()
}

// Stop gracefully stops the scheduler
func (s *AuctionScheduler) Stop() {
	s.logger.Info().Msg("Stopping auction scheduler")
	s.cancel()
	s.wg.Wait()
}

func (s *AuctionScheduler) schedulerLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.checkClosedAuctions(s.ctx)
		case <-s.ctx.Done():
			s.logger.Info().Msg("Scheduler loop stopped")
			return
		}
	}
}

// checkClosedAuctions finds and announces auctions past their end time
func (s *AuctionScheduler) checkClosedAuctions(ctx context.Context) {
	now := s.now().UnixMilli()

	due, err := s.redis.ZRangeByScore(ctx, ClosingsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now, 10),
		Count: s.batchSize,
	}).Result()
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get closed auctions")
		return
	}

	if len(due) > 0 {
		s.logger.Debug().Int("count", len(due)).Msg("Found closed auctions")
	}

	for _, auctionIDStr := range due {
		auctionID, err := uuid.Parse(auctionIDStr)
		if err != nil {
			s.logger.Error().Err(err).Str("auction_id", auctionIDStr).Msg("Invalid auction ID")
			s.redis.ZRem(ctx, ClosingsKey, auctionIDStr)
			continue
		}

		s.closeAuction(ctx, auctionID)
	}
}

// closeAuction reports the end of an auction and removes it from the schedule.
// An auction stays scheduled until its close has been announced, so any
// failure other than a missing auction is retried on the next tick.
func (s *AuctionScheduler) closeAuction(ctx context.Context, auctionID uuid.UUID) {
	s.logger.Info().Str("auction_id", auctionID.String()).Msg("Processing auction close")

	result, err := s.auctionService.CloseAuctionForScheduler(ctx, auctionID)
	switch {
	case errors.Is(err, shared.ErrAuctionOngoing):
		// schedule rounding
		return
	case errors.Is(err, shared.ErrAuctionNotFound):
		s.logger.Warn().Str("auction_id", auctionID.String()).Msg("Dropping schedule of unknown auction")
		s.redis.ZRem(ctx, ClosingsKey, auctionID.String())
		return
	case err != nil:
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to close auction, will retry")
		return
	}

	eventData := map[string]interface{}{
		"auction_id":  auctionID.String(),
		"highest_bid": result.HighestBid.String(),
		"end_time":    result.EndTime.Format(time.RFC3339Nano),
	}
	if result.WinnerID != nil {
		eventData["winner_id"] = result.WinnerID.String()
	}

	event := outbound.Event{
		Type:      outbound.EventTypeAuctionClosed,
		AuctionID: auctionID,
		Data:      eventData,
		Timestamp: s.now().Unix(),
	}

	if err := s.broadcaster.Publish(ctx, auctionID, event); err != nil {
		s.logger.Error().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to broadcast auction close event, will retry")
		return
	}
	s.redis.ZRem(ctx, ClosingsKey, auctionID.String())

	logger := s.logger.Info().Str("auction_id", auctionID.String())
	if result.WinnerID != nil {
		logger = logger.Str("winner_id", result.WinnerID.String())
	}
	logger.Str("highest_bid", result.HighestBid.String()).Msg("Auction close announced")
}
