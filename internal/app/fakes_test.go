package app

import (
	"context"
	"sync"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/bid"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
)

// memoryStore keeps auctions as snapshots and applies Execute all-or-nothing
type memoryStore struct {
	mu        sync.Mutex
	states    map[uuid.UUID]auction.State
	order     []uuid.UUID
	bids      []*bid.Bid
	transfers []*auction.Transfer
	// transferErr makes every RecordTransfer fail
	transferErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: make(map[uuid.UUID]auction.State)}
}

func (s *memoryStore) Create(ctx context.Context, a *auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[a.ID()] = a.Snapshot()
	s.order = append(s.order, a.ID())
	return nil
}

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[id]
	if !ok {
		return nil, shared.ErrAuctionNotFound
	}
	return auction.Restore(state)
}

func (s *memoryStore) List(ctx context.Context, limit, offset int) ([]*auction.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*auction.Auction
	for i := len(s.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		a, err := auction.Restore(s.states[s.order[i]])
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *memoryStore) Execute(ctx context.Context, id uuid.UUID, fn outbound.ExecuteFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[id]
	if !ok {
		return shared.ErrAuctionNotFound
	}
	a, err := auction.Restore(state)
	if err != nil {
		return err
	}

	journal := &stagedJournal{transferErr: s.transferErr}
	if err := fn(ctx, a, journal); err != nil {
		return err
	}

	s.states[id] = a.Snapshot()
	s.bids = append(s.bids, journal.bids...)
	s.transfers = append(s.transfers, journal.transfers...)
	return nil
}

func (s *memoryStore) state(id uuid.UUID) auction.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[id]
}

type stagedJournal struct {
	bids        []*bid.Bid
	transfers   []*auction.Transfer
	transferErr error
}

func (j *stagedJournal) RecordTransfer(ctx context.Context, transfer *auction.Transfer) error {
	if j.transferErr != nil {
		return j.transferErr
	}
	copied := *transfer
	j.transfers = append(j.transfers, &copied)
	return nil
}

func (j *stagedJournal) RecordBid(ctx context.Context, b *bid.Bid) error {
	j.bids = append(j.bids, b)
	return nil
}

type bidReader struct{ store *memoryStore }

func (r bidReader) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*bid.Bid, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*bid.Bid
	for _, b := range r.store.bids {
		if b.AuctionID == auctionID {
			out = append(out, b)
		}
	}
	return out, nil
}

type transferReader struct{ store *memoryStore }

func (r transferReader) GetByAuctionID(ctx context.Context, auctionID uuid.UUID) ([]*auction.Transfer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*auction.Transfer
	for _, t := range r.store.transfers {
		if t.AuctionID == auctionID {
			out = append(out, t)
		}
	}
	return out, nil
}

// recordingBroadcaster keeps every published event
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []outbound.Event
}

func (b *recordingBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	return nil
}

func (b *recordingBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	return nil
}

func (b *recordingBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	return nil
}

func (b *recordingBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	return false
}

func (b *recordingBroadcaster) types() []outbound.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]outbound.EventType, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

func (b *recordingBroadcaster) last() outbound.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
