package broadcaster

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"auction-ledger-service/internal/ports/outbound"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const channelPrefix = "auction:"

// ChannelName returns the Redis channel carrying events of an auction
func ChannelName(auctionID uuid.UUID) string {
	return channelPrefix + auctionID.String()
}

// subscription is the Redis side of one connected client
type subscription struct {
	pubsub   *redis.PubSub
	events   chan outbound.Event
	auctions map[uuid.UUID]struct{}
}

// RedisBroadcaster implements the broadcaster interface using Redis pub/sub
type RedisBroadcaster struct {
	client  *redis.Client
	clients map[string]*subscription // clientID -> subscription
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	logger  zerolog.Logger
}
type RedisBroadcasterParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

func NewBroadcaster(params RedisBroadcasterParams) *RedisBroadcaster {
	ctx, cancel := context.WithCancel(context.Background())

	return &RedisBroadcaster{
		client:  params.RedisClient,
		clients: make(map[string]*subscription),
		ctx:     ctx,
		cancel:  cancel,
		logger:  params.Logger.With().Str("component", "redis_broadcaster").Logger(),
	}
}

// Subscribe subscribes a client to events for a specific auction. The first
// subscription of a client binds eventChan; later ones reuse it.
func (r *RedisBroadcaster) Subscribe(ctx context.Context, auctionID uuid.UUID, clientID string, eventChan chan outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.clients[clientID]
	if exists {
		if _, ok := sub.auctions[auctionID]; ok {
			r.logger.Debug().
				Str("client_id", clientID).
				Str("auction_id", auctionID.String()).
				Msg("Client already subscribed to auction")
			return nil
		}
		if err := sub.pubsub.Subscribe(ctx, ChannelName(auctionID)); err != nil {
			return fmt.Errorf("failed to subscribe to Redis channel: %w", err)
		}
	} else {
		pubsub := r.client.Subscribe(ctx, ChannelName(auctionID))
		// wait for the subscription confirmation so no event published right
		// after Subscribe returns is lost
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return fmt.Errorf("failed to subscribe to Redis channel: %w", err)
		}

		sub = &subscription{
			pubsub:   pubsub,
			events:   eventChan,
			auctions: make(map[uuid.UUID]struct{}),
		}
		r.clients[clientID] = sub

		go r.listenForRedisMessages(sub, clientID)
	}
	sub.auctions[auctionID] = struct{}{}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Int("auctions", len(sub.auctions)).
		Msg("Client subscribed to auction")
	return nil
}

// Unsubscribe unsubscribes a client from events for a specific auction. The
// client's event channel is owned by the caller and is never closed here.
func (r *RedisBroadcaster) Unsubscribe(ctx context.Context, auctionID uuid.UUID, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.clients[clientID]
	if !exists {
		return nil
	}
	delete(sub.auctions, auctionID)

	if len(sub.auctions) == 0 {
		delete(r.clients, clientID)
		if err := sub.pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
	} else if err := sub.pubsub.Unsubscribe(ctx, ChannelName(auctionID)); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Str("auction_id", auctionID.String()).Msg("Error unsubscribing from Redis channel")
	}

	r.logger.Info().
		Str("client_id", clientID).
		Str("auction_id", auctionID.String()).
		Msg("Client unsubscribed from auction")
	return nil
}

// UnsubscribeAll drops every subscription of a client
func (r *RedisBroadcaster) UnsubscribeAll(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.clients[clientID]
	if !exists {
		return
	}
	delete(r.clients, clientID)
	if err := sub.pubsub.Close(); err != nil {
		r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
	}
}

// Publish publishes an event to all subscribers of an auction via Redis
func (r *RedisBroadcaster) Publish(ctx context.Context, auctionID uuid.UUID, event outbound.Event) error {
	channelName := ChannelName(auctionID)

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to marshal event")
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	result := r.client.Publish(ctx, channelName, eventJSON)
	if err := result.Err(); err != nil {
		r.logger.Error().Err(err).Str("channel_name", channelName).Msg("Failed to publish to Redis")
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}

	r.logger.Info().
		Str("event_type", string(event.Type)).
		Str("auction_id", auctionID.String()).
		Int64("subscriber_count", result.Val()).
		Msg("Published event to auction")

	return nil
}

// IsSubscribed checks if a client is subscribed to an auction
func (r *RedisBroadcaster) IsSubscribed(ctx context.Context, auctionID uuid.UUID, clientID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.clients[clientID]
	if !exists {
		return false
	}
	_, ok := sub.auctions[auctionID]
	return ok
}

// listenForRedisMessages forwards Redis messages to the client's local channel
func (r *RedisBroadcaster) listenForRedisMessages(sub *subscription, clientID string) {
	defer func() {
		if err := recover(); err != nil {
			r.logger.Error().Interface("panic", err).Str("client_id", clientID).Msg("Redis message listener panic for client")
		}
	}()

	ch := sub.pubsub.Channel()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				r.logger.Debug().Str("client_id", clientID).Msg("Redis channel closed for client")
				return
			}

			event, err := decodeEvent(msg.Payload)
			if err != nil {
				r.logger.Error().Err(err).Str("client_id", clientID).Msg("Failed to unmarshal Redis message for client")
				continue
			}

			select {
			case sub.events <- event:
			default:
				r.logger.Warn().Str("client_id", clientID).Msg("Local channel full for client, dropping event")
			}

		case <-r.ctx.Done():
			return
		}
	}
}

func decodeEvent(payload string) (outbound.Event, error) {
	var event outbound.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return outbound.Event{}, err
	}
	return event, nil
}

func (r *RedisBroadcaster) Close() error {
	r.cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	for clientID, sub := range r.clients {
		if err := sub.pubsub.Close(); err != nil {
			r.logger.Error().Err(err).Str("client_id", clientID).Msg("Error closing Redis pubsub for client")
		}
		delete(r.clients, clientID)
	}

	return r.client.Close()
}
