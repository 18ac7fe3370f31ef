package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType identifies a ledger notification
type EventType string

const (
	EventNewBid    EventType = "NewBid"
	EventClaimed   EventType = "Claimed"
	EventWithdrawn EventType = "Withdrawn"
)

// Direction of a value transfer, seen from the auction
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Reason explains why value moved
type Reason string

const (
	ReasonBid        Reason = "bid"
	ReasonClaim      Reason = "claim"
	ReasonSettlement Reason = "settlement"
)

// Event is emitted by every successful mutating operation
type Event struct {
	Type        EventType
	AuctionID   uuid.UUID
	Participant uuid.UUID
	Amount      decimal.Decimal
	// Pending is the participant's ledger entry after the operation. For
	// Withdrawn it is the winner's remaining entry.
	Pending decimal.Decimal
	At      time.Time
}

// Transfer is a value-transfer instruction for the host environment
type Transfer struct {
	ID        uuid.UUID       `json:"id"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Direction Direction       `json:"direction"`
	Party     uuid.UUID       `json:"party"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    Reason          `json:"reason"`
	At        time.Time       `json:"at"`
}

// Receipt is the outcome of a successful operation
type Receipt struct {
	Event    Event
	Transfer Transfer
}

// PayFunc delivers an outbound transfer. It runs after the ledger has already
// been updated; a non-nil error reverts the operation.
type PayFunc func(Transfer) error
