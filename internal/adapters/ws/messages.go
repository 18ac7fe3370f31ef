package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type MessageType string

// largest duration_seconds that fits a time.Duration
var maxDurationSeconds = decimal.NewFromInt(int64(math.MaxInt64 / int64(time.Second)))

const (
	// Client to Server message types
	MessageTypeDeployAuction     MessageType = "deploy_auction"
	MessageTypeSubscribe         MessageType = "subscribe"
	MessageTypeUnsubscribe       MessageType = "unsubscribe"
	MessageTypePlaceBid          MessageType = "place_bid"
	MessageTypeClaim             MessageType = "claim"
	MessageTypeWithdrawAll       MessageType = "withdraw_all"
	MessageTypeGetAuction        MessageType = "get_auction"
	MessageTypeListAuctions      MessageType = "list_auctions"
	MessageTypeGetPendingBalance MessageType = "get_pending_balance"
	MessageTypeGetBids           MessageType = "get_bids"
	MessageTypeGetTransfers      MessageType = "get_transfers"
	MessageTypePing              MessageType = "ping"

	// Server to Client message types
	MessageTypeAuctionDeployed MessageType = "auction_deployed"
	MessageTypeBidPlaced       MessageType = "bid_placed"
	MessageTypeClaimed         MessageType = "claimed"
	MessageTypeWithdrawn       MessageType = "withdrawn"
	MessageTypeAuctionClosed   MessageType = "auction_closed"
	MessageTypeAuctionUpdate   MessageType = "auction_update"
	MessageTypePendingBalance  MessageType = "pending_balance"
	MessageTypeBids            MessageType = "bids"
	MessageTypeTransfers       MessageType = "transfers"
	MessageTypeError           MessageType = "error"
	MessageTypePong            MessageType = "pong"
)

// ClientMessage is a request from a client. Numbers in Data are kept as
// json.Number so amounts never pass through float64.
type ClientMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// ServerMessage represents a message sent from server to client
type ServerMessage struct {
	Type      MessageType            `json:"type"`
	AuctionID *uuid.UUID             `json:"auction_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     *string                `json:"error,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

func NewServerMessage(msgType MessageType) *ServerMessage {
	return &ServerMessage{
		Type:      msgType,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now().Unix(),
	}
}

func NewErrorMessage(err string, auctionID *uuid.UUID) *ServerMessage {
	return &ServerMessage{
		Type:      MessageTypeError,
		AuctionID: auctionID,
		Error:     &err,
		Timestamp: time.Now().Unix(),
	}
}

// NewAuctionMessage renders an auction summary
func NewAuctionMessage(msgType MessageType, summary *inbound.AuctionSummary) *ServerMessage {
	msg := NewServerMessage(msgType)
	msg.AuctionID = &summary.ID
	msg.Data["auction_id"] = summary.ID.String()
	msg.Data["owner_id"] = summary.OwnerID.String()
	msg.Data["start_time"] = summary.StartTime.Format(time.RFC3339Nano)
	msg.Data["end_time"] = summary.EndTime.Format(time.RFC3339Nano)
	msg.Data["starting_price"] = summary.StartingPrice.String()
	msg.Data["highest_bid"] = summary.HighestBid.String()
	msg.Data["balance_of_contract"] = summary.BalanceOfContract.String()
	msg.Data["participants"] = summary.Participants
	msg.Data["open"] = summary.Open
	msg.Data["withdrawn"] = summary.Withdrawn
	if summary.Winner != nil {
		msg.Data["winner_id"] = summary.Winner.String()
	}
	return msg
}

// ParseClientMessage parses a JSON message from client
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&msg); err != nil {
		return nil, fmt.Errorf("failed to parse client message: %w", err)
	}

	// Validate required fields
	if msg.Type == "" {
		return nil, shared.ErrMessageTypeRequired
	}

	return &msg, nil
}

// Validate validates a client message
func (m *ClientMessage) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe, MessageTypeClaim, MessageTypeWithdrawAll,
		MessageTypeGetAuction, MessageTypeGetBids, MessageTypeGetTransfers:
		return m.validateAuctionID()

	case MessageTypePlaceBid:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		amount, err := m.Amount()
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return shared.ErrInvalidAmount
		}

	case MessageTypeDeployAuction:
		if _, _, err := m.DeployParams(0, decimal.Zero); err != nil {
			return err
		}

	case MessageTypeGetPendingBalance:
		if err := m.validateAuctionID(); err != nil {
			return err
		}
		if _, err := m.ParticipantID(uuid.Nil); err != nil {
			return err
		}

	case MessageTypeListAuctions:
		if _, _, err := m.Pagination(); err != nil {
			return err
		}

	case MessageTypePing:

	default:
		return shared.ErrUnknownMessageType
	}

	return nil
}

func (m *ClientMessage) validateAuctionID() error {
	if m.AuctionID == nil || *m.AuctionID == uuid.Nil {
		return shared.ErrAuctionIDRequired
	}
	return nil
}

// Amount returns data.amount of a place_bid message
func (m *ClientMessage) Amount() (decimal.Decimal, error) {
	amount, ok, err := decimalField(m.Data, "amount")
	if err != nil || !ok || !auction.Representable(amount) {
		return decimal.Zero, shared.ErrInvalidAmount
	}
	return amount, nil
}

// DeployParams returns the duration and starting price of a deploy_auction
// message, falling back to the given defaults for missing fields
func (m *ClientMessage) DeployParams(defaultDuration time.Duration, defaultPrice decimal.Decimal) (time.Duration, decimal.Decimal, error) {
	duration := defaultDuration
	seconds, ok, err := decimalField(m.Data, "duration_seconds")
	if err != nil {
		return 0, decimal.Zero, shared.ErrInvalidDurationSeconds
	}
	if ok {
		if seconds.Abs().GreaterThan(maxDurationSeconds) {
			return 0, decimal.Zero, shared.ErrInvalidDurationSeconds
		}
		duration = time.Duration(seconds.Mul(decimal.NewFromInt(int64(time.Second))).IntPart())
	}

	price := defaultPrice
	startingPrice, ok, err := decimalField(m.Data, "starting_price")
	if err != nil || (ok && !auction.Representable(startingPrice)) {
		return 0, decimal.Zero, shared.ErrInvalidStartingPriceFormat
	}
	if ok {
		price = startingPrice
	}

	return duration, price, nil
}

// ParticipantID returns data.participant_id, or fallback when it is absent
func (m *ClientMessage) ParticipantID(fallback uuid.UUID) (uuid.UUID, error) {
	raw, ok := m.Data["participant_id"]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return uuid.Nil, shared.ErrInvalidParticipantID
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, shared.ErrInvalidParticipantID
	}
	return id, nil
}

// Pagination returns data.limit and data.offset of a list_auctions message
func (m *ClientMessage) Pagination() (limit, offset int, err error) {
	limit, offset = 10, 0

	if v, ok, err := decimalField(m.Data, "limit"); err != nil {
		return 0, 0, shared.ErrInvalidPagination
	} else if ok {
		if !v.IsInteger() || v.IsNegative() {
			return 0, 0, shared.ErrInvalidPagination
		}
		if v.IsPositive() {
			limit = int(v.IntPart())
		}
	}

	if v, ok, err := decimalField(m.Data, "offset"); err != nil {
		return 0, 0, shared.ErrInvalidPagination
	} else if ok {
		if !v.IsInteger() || v.IsNegative() {
			return 0, 0, shared.ErrInvalidPagination
		}
		offset = int(v.IntPart())
	}

	return limit, offset, nil
}

// decimalField reads a number or a decimal string from data. ok is false when
// the key is absent.
func decimalField(data map[string]interface{}, key string) (value decimal.Decimal, ok bool, err error) {
	raw, exists := data[key]
	if !exists || raw == nil {
		return decimal.Zero, false, nil
	}

	switch v := raw.(type) {
	case json.Number:
		value, err = decimal.NewFromString(v.String())
	case string:
		value, err = decimal.NewFromString(v)
	case float64:
		value = decimal.NewFromFloat(v)
	default:
		err = fmt.Errorf("%s: unsupported type %T", key, raw)
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return value, true, nil
}
