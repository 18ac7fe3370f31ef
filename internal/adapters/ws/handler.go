package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"auction-ledger-service/internal/domain/auction"
	"auction-ledger-service/internal/domain/shared"
	"auction-ledger-service/internal/ports/inbound"
	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// clientUnsubscriber is implemented by broadcasters that can drop every
// subscription of a client at once
type clientUnsubscriber interface {
	UnsubscribeAll(clientID string)
}

// WsHandler manages WebSocket connections and message routing
type WsHandler struct {
	clients              map[string]*WsClient // clientID -> Client
	clientsMu            sync.RWMutex
	eventChannels        map[string]chan outbound.Event // clientID -> local event channel
	channelsMu           sync.RWMutex
	upgrader             websocket.Upgrader
	auctionService       inbound.AuctionService
	bidService           inbound.BidService
	settlementService    inbound.SettlementService
	broadcaster          outbound.Broadcaster
	defaultDuration      time.Duration
	defaultStartingPrice decimal.Decimal
	logger               zerolog.Logger
}
type WsHandlerParams struct {
	Upgrader          websocket.Upgrader
	AuctionService    inbound.AuctionService
	BidService        inbound.BidService
	SettlementService inbound.SettlementService
	Broadcaster       outbound.Broadcaster
	// used by deploy_auction when the message omits them
	DefaultDuration      time.Duration
	DefaultStartingPrice decimal.Decimal
	Logger               zerolog.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(params WsHandlerParams) *WsHandler {
	return &WsHandler{
		clients:              make(map[string]*WsClient),
		eventChannels:        make(map[string]chan outbound.Event),
		upgrader:             params.Upgrader,
		auctionService:       params.AuctionService,
		bidService:           params.BidService,
		settlementService:    params.SettlementService,
		broadcaster:          params.Broadcaster,
		defaultDuration:      params.DefaultDuration,
		defaultStartingPrice: params.DefaultStartingPrice,
		logger:               params.Logger.With().Str("component", "ws_handler").Logger(),
	}
}

// HandleWebSocket handles WebSocket connection upgrades
func (handler *WsHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil || userID == uuid.Nil {
		http.Error(w, "invalid user_id format", http.StatusBadRequest)
		return
	}

	conn, err := handler.upgrader.Upgrade(w, r, nil)
	if err != nil {
		handler.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(WsClientParams{
		UserID:  userID,
		Conn:    conn,
		Handler: handler,
		Logger:  handler.logger,
	})

	handler.registerClient(client)
	handler.createEventChannel(client.id)

	client.Start()
	go handler.listenForClientEvents(client)

	go func() {
		<-client.ctx.Done()
		handler.unregisterClient(client)
	}()

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Msg("WebSocket client connected")
}

// createEventChannel creates a local event channel for a client
func (handler *WsHandler) createEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if eventChan, exists := handler.eventChannels[clientID]; exists {
		return eventChan
	}

	eventChan := make(chan outbound.Event, 100)
	handler.eventChannels[clientID] = eventChan

	handler.logger.Debug().Str("client_id", clientID).Msg("Created local event channel for client")
	return eventChan
}

func (handler *WsHandler) getEventChannel(clientID string) chan outbound.Event {
	handler.channelsMu.RLock()
	defer handler.channelsMu.RUnlock()

	return handler.eventChannels[clientID]
}

func (handler *WsHandler) removeEventChannel(clientID string) {
	handler.channelsMu.Lock()
	defer handler.channelsMu.Unlock()

	if _, exists := handler.eventChannels[clientID]; exists {
		delete(handler.eventChannels, clientID)
		handler.logger.Debug().Str("client_id", clientID).Msg("Removed local event channel for client")
	}
}

func (handler *WsHandler) registerClient(client *WsClient) {
	handler.clientsMu.Lock()
	defer handler.clientsMu.Unlock()
	handler.clients[client.id] = client
	handler.logger.Debug().Str("client_id", client.id).Int("total_clients", len(handler.clients)).Msg("Client registered")
}

func (handler *WsHandler) unregisterClient(client *WsClient) {
	handler.clientsMu.Lock()
	delete(handler.clients, client.id)
	total := len(handler.clients)
	handler.clientsMu.Unlock()

	client.Stop()

	// the broadcaster must stop writing before the channel is forgotten
	if unsubscriber, ok := handler.broadcaster.(clientUnsubscriber); ok {
		unsubscriber.UnsubscribeAll(client.id)
	}
	handler.removeEventChannel(client.id)

	handler.logger.Info().Str("client_id", client.id).Str("user_id", client.userID.String()).Int("total_clients", total).Msg("WebSocket client disconnected")
}

// listenForClientEvents forwards broadcast events to the client
func (handler *WsHandler) listenForClientEvents(client *WsClient) {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return
	}

	handler.logger.Debug().Str("client_id", client.id).Msg("Event listener started for client")

	for {
		select {
		case event := <-eventChan:
			if err := client.Send(convertEventToMessage(event)); err != nil {
				handler.logger.Error().Err(err).Str("client_id", client.id).Msg("Failed to send event to WebSocket client")
			} else {
				handler.logger.Debug().Str("client_id", client.id).Str("event_type", string(event.Type)).
					Msg("Sent event to WebSocket client")
			}

		case <-client.ctx.Done():
			handler.logger.Debug().Str("client_id", client.id).Msg("Client disconnected, stopping event listener")
			return
		}
	}
}

func (handler *WsHandler) HandleClientMessage(client *WsClient, msg *ClientMessage) error {
	switch msg.Type {
	case MessageTypeDeployAuction:
		return handler.handleDeployAuction(client, msg)

	case MessageTypeSubscribe:
		return handler.handleSubscribe(client, msg)

	case MessageTypeUnsubscribe:
		return handler.handleUnsubscribe(client, msg)

	case MessageTypePlaceBid:
		return handler.handlePlaceBid(client, msg)

	case MessageTypeClaim:
		return handler.handleSettlement(client, msg, MessageTypeClaimed, handler.settlementService.Claim)

	case MessageTypeWithdrawAll:
		return handler.handleSettlement(client, msg, MessageTypeWithdrawn, handler.settlementService.WithdrawAll)

	case MessageTypeGetAuction:
		return handler.handleGetAuction(client, msg)

	case MessageTypeListAuctions:
		return handler.handleListAuctions(client, msg)

	case MessageTypeGetPendingBalance:
		return handler.handleGetPendingBalance(client, msg)

	case MessageTypeGetBids:
		return handler.handleGetBids(client, msg)

	case MessageTypeGetTransfers:
		return handler.handleGetTransfers(client, msg)

	default:
		handler.logger.Warn().Str("client_id", client.id).Str("message_type", string(msg.Type)).Msg("Unknown message type from client")
		return shared.ErrUnknownMessageType
	}
}

func convertEventToMessage(event outbound.Event) *ServerMessage {
	msgType := MessageTypeAuctionUpdate
	switch event.Type {
	case outbound.EventTypeAuctionDeployed:
		msgType = MessageTypeAuctionDeployed
	case outbound.EventTypeBidPlaced:
		msgType = MessageTypeBidPlaced
	case outbound.EventTypeFundsClaimed:
		msgType = MessageTypeClaimed
	case outbound.EventTypeFundsWithdrawn:
		msgType = MessageTypeWithdrawn
	case outbound.EventTypeAuctionClosed:
		msgType = MessageTypeAuctionClosed
	case outbound.EventTypeError:
		msgType = MessageTypeError
	}

	auctionID := event.AuctionID
	return &ServerMessage{
		Type:      msgType,
		AuctionID: &auctionID,
		Data:      event.Data,
		Timestamp: event.Timestamp,
	}
}

// GetConnectedClients returns the number of connected clients
func (handler *WsHandler) GetConnectedClients() int {
	handler.clientsMu.RLock()
	defer handler.clientsMu.RUnlock()
	return len(handler.clients)
}

// subscribe binds the client's event channel to an auction
func (handler *WsHandler) subscribe(ctx context.Context, client *WsClient, auctionID uuid.UUID) error {
	eventChan := handler.getEventChannel(client.id)
	if eventChan == nil {
		handler.logger.Error().Str("client_id", client.id).Msg("No event channel found for client")
		return shared.ErrClientEventChannelNotFound
	}

	if err := handler.broadcaster.Subscribe(ctx, auctionID, client.id, eventChan); err != nil {
		handler.logger.Error().Err(err).Str("client_id", client.id).Str("auction_id", auctionID.String()).Msg("Failed to subscribe to auction")
		return err
	}
	return nil
}

func (handler *WsHandler) handleDeployAuction(client *WsClient, msg *ClientMessage) error {
	duration, startingPrice, err := msg.DeployParams(handler.defaultDuration, handler.defaultStartingPrice)
	if err != nil {
		return err
	}

	summary, err := handler.auctionService.DeployAuction(client.ctx, inbound.DeployAuctionRequest{
		OwnerID:       client.userID,
		Duration:      duration,
		StartingPrice: startingPrice,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	// the owner follows its own auction
	if err := handler.subscribe(client.ctx, client, summary.ID); err != nil {
		handler.logger.Warn().Err(err).Str("auction_id", summary.ID.String()).Msg("Failed to subscribe owner to auction")
	}

	handler.logger.Info().Str("auction_id", summary.ID.String()).Str("owner_id", client.userID.String()).Msg("Auction deployed")
	return client.Send(NewAuctionMessage(MessageTypeAuctionDeployed, summary))
}

func (handler *WsHandler) handleSubscribe(client *WsClient, msg *ClientMessage) error {
	if err := handler.subscribe(client.ctx, client, *msg.AuctionID); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "subscribed"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client subscribed to auction")
	return client.Send(response)
}

// handleUnsubscribe handles unsubscription from auction events
func (handler *WsHandler) handleUnsubscribe(client *WsClient, msg *ClientMessage) error {
	if err := handler.broadcaster.Unsubscribe(client.ctx, *msg.AuctionID, client.id); err != nil {
		return err
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.AuctionID = msg.AuctionID
	response.Data["status"] = "unsubscribed"

	handler.logger.Info().Str("client_id", client.id).Str("auction_id", msg.AuctionID.String()).Msg("Client unsubscribed from auction")
	return client.Send(response)
}

// handlePlaceBid places a bid. The bidder is subscribed to the auction before
// the bid so that its own bid_placed event reaches it.
func (handler *WsHandler) handlePlaceBid(client *WsClient, msg *ClientMessage) error {
	amount, err := msg.Amount()
	if err != nil {
		return err
	}
	ctx := client.ctx
	auctionID := *msg.AuctionID

	subscribedNow := false
	if !handler.broadcaster.IsSubscribed(ctx, auctionID, client.id) {
		if err := handler.subscribe(ctx, client, auctionID); err != nil {
			handler.logger.Warn().Err(err).Str("auction_id", auctionID.String()).Msg("Failed to subscribe bidder to auction")
		} else {
			subscribedNow = true
		}
	}

	placed, err := handler.bidService.PlaceBid(ctx, inbound.PlaceBidRequest{
		AuctionID: auctionID,
		BidderID:  client.userID,
		ClientID:  client.id,
		Amount:    amount,
	})
	if err != nil {
		if subscribedNow {
			if unsubErr := handler.broadcaster.Unsubscribe(ctx, auctionID, client.id); unsubErr != nil {
				handler.logger.Warn().Err(unsubErr).Str("auction_id", auctionID.String()).Msg("Failed to drop bidder subscription")
			}
		}
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	handler.logger.Info().
		Str("bid_id", placed.ID.String()).
		Str("auction_id", auctionID.String()).
		Str("user_id", client.userID.String()).
		Str("amount", amount.String()).
		Msg("Bid placed successfully")
	return nil
}

type settlementFunc func(ctx context.Context, req inbound.SettlementRequest) (*auction.Transfer, error)

// handleSettlement runs claim or withdraw_all. Subscribed callers get the
// broadcast event; everyone else gets a direct reply.
func (handler *WsHandler) handleSettlement(client *WsClient, msg *ClientMessage, replyType MessageType, settle settlementFunc) error {
	ctx := client.ctx

	transfer, err := settle(ctx, inbound.SettlementRequest{
		AuctionID: *msg.AuctionID,
		CallerID:  client.userID,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	handler.logger.Info().
		Str("auction_id", msg.AuctionID.String()).
		Str("user_id", client.userID.String()).
		Str("amount", transfer.Amount.String()).
		Str("reason", string(transfer.Reason)).
		Msg("Funds paid out")

	if handler.broadcaster.IsSubscribed(ctx, *msg.AuctionID, client.id) {
		return nil
	}

	response := NewServerMessage(replyType)
	response.AuctionID = msg.AuctionID
	response.Data["transfer_id"] = transfer.ID.String()
	response.Data["participant"] = transfer.Party.String()
	response.Data["amount"] = transfer.Amount.String()
	response.Data["reason"] = string(transfer.Reason)
	return client.Send(response)
}

// handleGetAuction handles getting auction details
func (handler *WsHandler) handleGetAuction(client *WsClient, msg *ClientMessage) error {
	summary, err := handler.auctionService.GetAuction(client.ctx, *msg.AuctionID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	return client.Send(NewAuctionMessage(MessageTypeAuctionUpdate, summary))
}

// handleListAuctions handles listing auctions
func (handler *WsHandler) handleListAuctions(client *WsClient, msg *ClientMessage) error {
	limit, offset, err := msg.Pagination()
	if err != nil {
		return err
	}

	summaries, err := handler.auctionService.ListAuctions(client.ctx, inbound.ListAuctionsRequest{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), nil))
	}

	response := NewServerMessage(MessageTypeAuctionUpdate)
	response.Data["auctions"] = summaries
	response.Data["count"] = len(summaries)

	return client.Send(response)
}

// handleGetPendingBalance reports a pending balance, the caller's own by default
func (handler *WsHandler) handleGetPendingBalance(client *WsClient, msg *ClientMessage) error {
	participantID, err := msg.ParticipantID(client.userID)
	if err != nil {
		return err
	}

	amount, err := handler.auctionService.PendingBalance(client.ctx, *msg.AuctionID, participantID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	response := NewServerMessage(MessageTypePendingBalance)
	response.AuctionID = msg.AuctionID
	response.Data["participant_id"] = participantID.String()
	response.Data["amount"] = amount.String()
	return client.Send(response)
}

func (handler *WsHandler) handleGetBids(client *WsClient, msg *ClientMessage) error {
	bids, err := handler.bidService.GetBids(client.ctx, *msg.AuctionID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	response := NewServerMessage(MessageTypeBids)
	response.AuctionID = msg.AuctionID
	response.Data["bids"] = bids
	response.Data["count"] = len(bids)
	return client.Send(response)
}

func (handler *WsHandler) handleGetTransfers(client *WsClient, msg *ClientMessage) error {
	transfers, err := handler.settlementService.GetTransfers(client.ctx, *msg.AuctionID)
	if err != nil {
		return client.Send(NewErrorMessage(err.Error(), msg.AuctionID))
	}

	response := NewServerMessage(MessageTypeTransfers)
	response.AuctionID = msg.AuctionID
	response.Data["transfers"] = transfers
	response.Data["count"] = len(transfers)
	return client.Send(response)
}
