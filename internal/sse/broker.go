package sse

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	redisclient "github.com/wellspring/marketplace-server-go/internal/redis"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	HeartbeatInterval = 30 * time.Second
	clientBufferSize  = 64
)

type Event struct {
	Type string              `json:"type"`
	Data jsoniter.RawMessage `json:"data"`
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// Broker fans notification events out to every open stream of a user. Events
// travel over redis pub/sub so any instance can publish to any subscriber.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // userID -> set of clients
	subs    map[string]context.CancelFunc
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		subs:    make(map[string]context.CancelFunc),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[*Client]bool)
		subCtx, cancel := context.WithCancel(b.ctx)
		b.subs[userID] = cancel
		go b.subscribeToRedis(subCtx, userID)
	}
	b.clients[userID][client] = true
	clientCount := len(b.clients[userID])
	b.mu.Unlock()

	log.Debug().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("notification stream opened")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	clients, ok := b.clients[client.UserID]
	if !ok || !clients[client] {
		return
	}
	delete(clients, client)
	close(client.Done)

	if len(clients) == 0 {
		delete(b.clients, client.UserID)
		if cancel, ok := b.subs[client.UserID]; ok {
			cancel()
			delete(b.subs, client.UserID)
		}
	}

	log.Debug().
		Str("userId", client.UserID).
		Int("clientCount", len(clients)).
		Msg("notification stream closed")
}

// Publish sends an event to every stream of userID across instances.
func (b *Broker) Publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.NotificationChannel(userID), data).Err()
}

func (b *Broker) subscribeToRedis(ctx context.Context, userID string) {
	channel := redisclient.NotificationChannel(userID)
	pubsub := b.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Str("channel", channel).Msg("failed to unmarshal notification event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for client := range b.clients[userID] {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Str("type", event.Type).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
	b.subs = make(map[string]context.CancelFunc)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
