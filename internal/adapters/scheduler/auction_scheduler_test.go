package scheduler

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type stubCloser struct {
	results map[uuid.UUID]*shared.AuctionCloseResult
	errs    map[uuid.UUID]error
}

func (s *stubCloser) CloseAuctionForScheduler(ctx context.Context, auctionID uuid.UUID) (*shared.AuctionCloseResult, error) {
	if err, ok := s.errs[auctionID]; ok {
		return nil, err
	}
	return s.results[auctionID], nil
}

type publishedEvents struct {
	mu     sync.Mutex
	events []outbound.Event
	err    error
}

func (p *publishedEvents) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (p *publishedEvents) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (p *publishedEvents) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *publishedEvents) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func setupTest(t *testing.T, closer AuctionCloseService, broadcaster outbound.Broadcaster) (*AuctionScheduler, redismock.ClientMock, func()) {
	db, mock := redismock.NewClientMock()
	s := NewAuctionScheduler(AuctionSchedulerParams{
		RedisClient:    db,
		AuctionService: closer,
		Broadcaster:    broadcaster,
		PollInterval:   time.Hour,
		BatchSize:      5,
		Now:            func() time.Time { return now },
		Logger:         zerolog.Nop(),
	})
	return s, mock, func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	}
}

func TestAuctionScheduler_ScheduleAuction(t *testing.T) {
	s, mock, cleanup := setupTest(t, &stubCloser{}, &publishedEvents{})
	defer cleanup()

	auctionID := uuid.New()
	endTime := now.Add(90 * time.Second)
	mock.ExpectZAdd(ClosingsKey, redis.Z{
		Score:  float64(endTime.UnixMilli()),
		Member: auctionID.String(),
	}).SetVal(1)

	assert.NoError(t, s.ScheduleAuction(auctionID, endTime))
}

func TestAuctionScheduler_ScheduleAuction_Error(t *testing.T) {
	s, mock, cleanup := setupTest(t, &stubCloser{}, &publishedEvents{})
	defer cleanup()

	auctionID := uuid.New()
	mock.ExpectZAdd(ClosingsKey, redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: auctionID.String(),
	}).SetErr(errors.New("redis connection error"))

	assert.ErrorContains(t, s.ScheduleAuction(auctionID, now), "failed to schedule auction")
}

func TestAuctionScheduler_CheckClosedAuctions(t *testing.T) {
	won, ongoing, missing, empty := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	winner := uuid.New()

	closer := &stubCloser{
		results: map[uuid.UUID]*shared.AuctionCloseResult{
			won: {
				AuctionID:  won,
				WinnerID:   &winner,
				HighestBid: decimal.NewFromInt(13),
				EndTime:    now.Add(-time.Second),
			},
			empty: {
				AuctionID:  empty,
				HighestBid: decimal.Zero,
				EndTime:    now.Add(-time.Second),
			},
		},
		errs: map[uuid.UUID]error{
			ongoing: shared.ErrAuctionOngoing,
			missing: shared.ErrAuctionNotFound,
		},
	}
	events := &publishedEvents{}
	s, mock, cleanup := setupTest(t, closer, events)
	defer cleanup()

	mock.ExpectZRangeByScore(ClosingsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 5,
	}).SetVal([]string{won.String(), "not-a-uuid", ongoing.String(), missing.String(), empty.String()})
	mock.ExpectZRem(ClosingsKey, won.String()).SetVal(1)
	mock.ExpectZRem(ClosingsKey, "not-a-uuid").SetVal(1)
	mock.ExpectZRem(ClosingsKey, missing.String()).SetVal(1)
	mock.ExpectZRem(ClosingsKey, empty.String()).SetVal(1)

	s.checkClosedAuctions(context.Background())

	require.Len(t, events.events, 2)

	closed := events.events[0]
	assert.Equal(t, outbound.EventTypeAuctionClosed, closed.Type)
	assert.Equal(t, won, closed.AuctionID)
	assert.Equal(t, winner.String(), closed.Data["winner_id"])
	assert.Equal(t, "13", closed.Data["highest_bid"])
	assert.Equal(t, now.Unix(), closed.Timestamp)

	noBids := events.events[1]
	assert.Equal(t, empty, noBids.AuctionID)
	assert.NotContains(t, noBids.Data, "winner_id")
}

func TestAuctionScheduler_CheckClosedAuctions_KeepsFailedCloses(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	flaky, unannounced := uuid.New(), uuid.New()
	closer := &stubCloser{
		results: map[uuid.UUID]*shared.AuctionCloseResult{
			unannounced: {AuctionID: unannounced, HighestBid: decimal.Zero, EndTime: now},
		},
		errs: map[uuid.UUID]error{
			flaky: errors.New("connection reset by peer"),
		},
	}
	events := &publishedEvents{err: errors.New("redis connection error")}
	s := NewAuctionScheduler(AuctionSchedulerParams{
		RedisClient:    client,
		AuctionService: closer,
		Broadcaster:    events,
		PollInterval:   time.Hour,
		BatchSize:      5,
		Now:            func() time.Time { return now },
		Logger:         zerolog.Nop(),
	})

	require.NoError(t, s.ScheduleAuction(flaky, now.Add(-time.Second)))
	require.NoError(t, s.ScheduleAuction(unannounced, now.Add(-time.Millisecond)))

	ctx := context.Background()
	s.checkClosedAuctions(ctx)

	members, err := client.ZRange(ctx, ClosingsKey, 0, -1).Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{flaky.String(), unannounced.String()}, members)
	assert.Empty(t, events.events)

	// both are announced once the failures clear
	closer.errs = nil
	closer.results[flaky] = &shared.AuctionCloseResult{AuctionID: flaky, HighestBid: decimal.Zero, EndTime: now}
	events.err = nil
	s.checkClosedAuctions(ctx)

	members, err = client.ZRange(ctx, ClosingsKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Empty(t, members)
	require.Len(t, events.events, 2)
	assert.Equal(t, flaky, events.events[0].AuctionID)
	assert.Equal(t, unannounced, events.events[1].AuctionID)
}

func TestAuctionScheduler_CheckClosedAuctions_RedisError(t *testing.T) {
	events := &publishedEvents{}
	s, mock, cleanup := setupTest(t, &stubCloser{}, events)
	defer cleanup()

	mock.ExpectZRangeByScore(ClosingsKey, &redis.ZRangeBy{
		Min:   "0",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: 5,
	}).SetErr(errors.New("redis connection error"))

	s.checkClosedAuctions(context.Background())
	assert.Empty(t, events.events)
}

func TestAuctionScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	s, _, cleanup := setupTest(t, &stubCloser{}, &publishedEvents{})
	defer cleanup()

	s.Start()
	s.Stop()
}
