package auction

import (
	"fmt"
	"time"

	"auction-ledger-service/internal/domain/shared"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Auction is the value-accounting state machine of a single deployed auction.
// It owns the highest bid, the pending balance of every participant and the
// lifecycle boundary. All mutation goes through Bid, Claim and WithdrawAll.
type Auction struct {
	id            uuid.UUID
	owner         uuid.UUID
	startTime     time.Time
	duration      time.Duration
	startingPrice decimal.Decimal

	highestBid    decimal.Decimal
	highestBidder *uuid.UUID
	pending       map[uuid.UUID]decimal.Decimal
	withdrawn     bool

	updatedAt time.Time
}

// AmountScale is the number of fractional digits the ledger keeps for a value
const AmountScale = 18

// amounts are stored as NUMERIC(78, 18)
var maxAmount = decimal.New(1, 78-AmountScale)

// Representable reports whether amount is held exactly by the ledger store
func Representable(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(AmountScale)) && amount.Abs().LessThan(maxAmount)
}

// Params holds the construction parameters of an auction
type Params struct {
	ID            uuid.UUID
	Owner         uuid.UUID
	Duration      time.Duration
	StartingPrice decimal.Decimal
	Now           time.Time
}

// New deploys a new auction starting at params.Now
func New(params Params) (*Auction, error) {
	if params.Duration < 0 {
		return nil, shared.ErrInvalidDuration
	}
	if params.StartingPrice.IsNegative() || !Representable(params.StartingPrice) {
		return nil, shared.ErrInvalidStartingPrice
	}
	if params.Owner == uuid.Nil {
		return nil, shared.ErrOwnerRequired
	}

	id := params.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	return &Auction{
		id:            id,
		owner:         params.Owner,
		startTime:     params.Now,
		duration:      params.Duration,
		startingPrice: params.StartingPrice,
		highestBid:    params.StartingPrice,
		pending:       make(map[uuid.UUID]decimal.Decimal),
		updatedAt:     params.Now,
	}, nil
}

func (a *Auction) ID() uuid.UUID                  { return a.id }
func (a *Auction) Owner() uuid.UUID               { return a.owner }
func (a *Auction) StartTime() time.Time           { return a.startTime }
func (a *Auction) Duration() time.Duration        { return a.duration }
func (a *Auction) StartingPrice() decimal.Decimal { return a.startingPrice }
func (a *Auction) HighestBid() decimal.Decimal    { return a.highestBid }
func (a *Auction) Withdrawn() bool                { return a.withdrawn }
func (a *Auction) UpdatedAt() time.Time           { return a.updatedAt }

// EndTime returns startTime + duration
func (a *Auction) EndTime() time.Time {
	return a.startTime.Add(a.duration)
}

// IsOpen reports whether bids are accepted at now. Closing is derived from the
// clock alone, there is no stored flag.
func (a *Auction) IsOpen(now time.Time) bool {
	return now.Before(a.EndTime())
}

// Winner returns the current highest bidder, or nil before the first bid
func (a *Auction) Winner() *uuid.UUID {
	if a.highestBidder == nil {
		return nil
	}
	winner := *a.highestBidder
	return &winner
}

// PendingBalance returns the committed, not yet returned value of participant
func (a *Auction) PendingBalance(participant uuid.UUID) decimal.Decimal {
	return a.pending[participant]
}

// BalanceOfContract returns the total value currently held by the auction
func (a *Auction) BalanceOfContract() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range a.pending {
		total = total.Add(amount)
	}
	return total
}

// Participants returns the number of distinct bidders with a ledger entry
func (a *Auction) Participants() int {
	return len(a.pending)
}

func (a *Auction) isLeader(participant uuid.UUID) bool {
	return a.highestBidder != nil && *a.highestBidder == participant
}

// Bid commits amount on behalf of caller. The amount must strictly exceed the
// current highest bid; the caller's cumulative pending balance becomes the new
// highest bid.
func (a *Auction) Bid(caller uuid.UUID, amount decimal.Decimal, now time.Time) (Receipt, error) {
	if !a.IsOpen(now) {
		return Receipt{}, shared.ErrAuctionClosed
	}
	if !amount.IsPositive() || amount.LessThanOrEqual(a.highestBid) {
		return Receipt{}, shared.ErrBidTooLow
	}

	committed := a.pending[caller].Add(amount)
	if !Representable(amount) || !Representable(committed) {
		return Receipt{}, shared.ErrInvalidAmount
	}
	a.pending[caller] = committed
	a.highestBid = committed
	leader := caller
	a.highestBidder = &leader
	a.updatedAt = now

	return Receipt{
		Event: Event{
			Type:        EventNewBid,
			AuctionID:   a.id,
			Participant: caller,
			Amount:      amount,
			Pending:     committed,
			At:          now,
		},
		Transfer: Transfer{
			AuctionID: a.id,
			Direction: DirectionIn,
			Party:     caller,
			Amount:    amount,
			Reason:    ReasonBid,
			At:        now,
		},
	}, nil
}

// Claimable returns what caller could claim right now
func (a *Auction) Claimable(caller uuid.UUID) decimal.Decimal {
	balance := a.pending[caller]
	if a.isLeader(caller) && !a.withdrawn {
		return balance.Sub(a.highestBid)
	}
	return balance
}

// Claim returns caller's claimable balance. The ledger entry is decremented
// before pay is invoked; when pay fails the decrement is reverted.
func (a *Auction) Claim(caller uuid.UUID, now time.Time, pay PayFunc) (Receipt, error) {
	balance := a.pending[caller]
	if !balance.IsPositive() {
		return Receipt{}, shared.ErrNotABuyer
	}

	amount := a.Claimable(caller)
	if !amount.IsPositive() {
		return Receipt{}, shared.ErrNothingToClaim
	}

	prevUpdatedAt := a.updatedAt
	a.pending[caller] = balance.Sub(amount)
	a.updatedAt = now

	transfer := Transfer{
		AuctionID: a.id,
		Direction: DirectionOut,
		Party:     caller,
		Amount:    amount,
		Reason:    ReasonClaim,
		At:        now,
	}
	if err := pay(transfer); err != nil {
		a.pending[caller] = balance
		a.updatedAt = prevUpdatedAt
		return Receipt{}, fmt.Errorf("%w: %w", shared.ErrTransferFailed, err)
	}

	return Receipt{
		Event: Event{
			Type:        EventClaimed,
			AuctionID:   a.id,
			Participant: caller,
			Amount:      amount,
			Pending:     a.pending[caller],
			At:          now,
		},
		Transfer: transfer,
	}, nil
}

// WithdrawAll pays the winning amount to the owner, once, after the auction
// closed. Unclaimed balances of other participants stay in the ledger.
func (a *Auction) WithdrawAll(caller uuid.UUID, now time.Time, pay PayFunc) (Receipt, error) {
	if caller != a.owner {
		return Receipt{}, shared.ErrNotOwner
	}
	if a.IsOpen(now) {
		return Receipt{}, shared.ErrAuctionOngoing
	}
	if a.withdrawn {
		return Receipt{}, shared.ErrAlreadyWithdrawn
	}
	if a.highestBidder == nil {
		return Receipt{}, shared.ErrNoBids
	}

	winner := *a.highestBidder
	amount := a.highestBid
	prevBalance := a.pending[winner]
	prevUpdatedAt := a.updatedAt

	a.withdrawn = true
	a.pending[winner] = prevBalance.Sub(amount)
	a.updatedAt = now

	transfer := Transfer{
		AuctionID: a.id,
		Direction: DirectionOut,
		Party:     a.owner,
		Amount:    amount,
		Reason:    ReasonSettlement,
		At:        now,
	}
	if err := pay(transfer); err != nil {
		a.withdrawn = false
		a.pending[winner] = prevBalance
		a.updatedAt = prevUpdatedAt
		return Receipt{}, fmt.Errorf("%w: %w", shared.ErrTransferFailed, err)
	}

	return Receipt{
		Event: Event{
			Type:        EventWithdrawn,
			AuctionID:   a.id,
			Participant: a.owner,
			Amount:      amount,
			Pending:     a.pending[winner],
			At:          now,
		},
		Transfer: transfer,
	}, nil
}
