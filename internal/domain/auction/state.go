package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is a plain copy of an auction used to persist and reload it
type State struct {
	ID            uuid.UUID
	Owner         uuid.UUID
	StartTime     time.Time
	Duration      time.Duration
	StartingPrice decimal.Decimal
	HighestBid    decimal.Decimal
	HighestBidder *uuid.UUID
	Pending       map[uuid.UUID]decimal.Decimal
	Withdrawn     bool
	UpdatedAt     time.Time
}

// Snapshot copies the auction state
func (a *Auction) Snapshot() State {
	pending := make(map[uuid.UUID]decimal.Decimal, len(a.pending))
	for participant, amount := range a.pending {
		pending[participant] = amount
	}

	return State{
		ID:            a.id,
		Owner:         a.owner,
		StartTime:     a.startTime,
		Duration:      a.duration,
		StartingPrice: a.startingPrice,
		HighestBid:    a.highestBid,
		HighestBidder: a.Winner(),
		Pending:       pending,
		Withdrawn:     a.withdrawn,
		UpdatedAt:     a.updatedAt,
	}
}

// Restore rebuilds an auction from a persisted state
func Restore(state State) (*Auction, error) {
	if state.ID == uuid.Nil {
		return nil, fmt.Errorf("restore auction: missing id")
	}
	if state.HighestBidder != nil && !state.Withdrawn {
		if committed := state.Pending[*state.HighestBidder]; !committed.Equal(state.HighestBid) {
			return nil, fmt.Errorf("restore auction %s: leader balance %s does not match highest bid %s",
				state.ID, committed, state.HighestBid)
		}
	}

	pending := make(map[uuid.UUID]decimal.Decimal, len(state.Pending))
	for participant, amount := range state.Pending {
		pending[participant] = amount
	}

	var leader *uuid.UUID
	if state.HighestBidder != nil {
		l := *state.HighestBidder
		leader = &l
	}

	return &Auction{
		id:            state.ID,
		owner:         state.Owner,
		startTime:     state.StartTime,
		duration:      state.Duration,
		startingPrice: state.StartingPrice,
		highestBid:    state.HighestBid,
		highestBidder: leader,
		pending:       pending,
		withdrawn:     state.Withdrawn,
		updatedAt:     state.UpdatedAt,
	}, nil
}
