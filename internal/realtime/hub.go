package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-gate-api/internal/observability"
)

// Collections carried over the hub.
const (
	CollectionReleases      = "releases"
	CollectionLostFound     = "lost_found"
	CollectionNotifications = "notifications"
)

const defaultBufferSize = 16

// Topic addresses a change feed: a collection narrowed to one scope (a unit, or a student for notifications).
type Topic struct {
	Collection string `json:"collection"`
	Scope      string `json:"scope"`
}

func (t Topic) String() string {
	return t.Collection + ":" + t.Scope
}

// ReleasesTopic is the change feed of a unit's authorized releases.
func ReleasesTopic(unit string) Topic {
	return Topic{Collection: CollectionReleases, Scope: unit}
}

// LostFoundTopic is the change feed of a unit's lost and found registry.
func LostFoundTopic(unit string) Topic {
	return Topic{Collection: CollectionLostFound, Scope: unit}
}

// NotificationsTopic is the change feed of one student's notifications.
func NotificationsTopic(studentID string) Topic {
	return Topic{Collection: CollectionNotifications, Scope: studentID}
}

// Event is a change notification. Payload is optional; listeners usually re-read the store.
type Event struct {
	Topic   Topic           `json:"topic"`
	Source  string          `json:"source"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Options configures cross-node forwarding. Leaving both Redis and NATS nil keeps the hub node-local.
type Options struct {
	Redis      *redis.Client
	NATS       *nats.Conn
	Channel    string
	BufferSize int
}

// Hub fans change events out to in-process subscribers and, when configured, to other nodes.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[chan Event]struct{}

	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	bufferSize   int
	nodeID       string
	logger       zerolog.Logger
	tracer       trace.Tracer
	now          func() time.Time
}

// Subscription is a live registration on a topic. C is closed by Stop.
type Subscription struct {
	C    <-chan Event
	once sync.Once
	stop func()
}

// Stop unregisters the subscription and closes C. Safe to call more than once.
func (s *Subscription) Stop() {
	s.once.Do(s.stop)
}

// NewHub constructs a hub.
func NewHub(opts Options, logger zerolog.Logger) *Hub {
	base := strings.TrimSpace(opts.Channel)
	if base == "" {
		base = "gema:gate"
	}
	buffer := opts.BufferSize
	if buffer <= 0 {
		buffer = defaultBufferSize
	}

	return &Hub{
		subscribers:  make(map[Topic]map[chan Event]struct{}),
		redis:        opts.Redis,
		redisChannel: base + ":events",
		nats:         opts.NATS,
		natsSubject:  strings.ReplaceAll(base, ":", ".") + ".events",
		bufferSize:   buffer,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "realtime_hub").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/gema-gate-api/internal/realtime"),
		now:          time.Now,
	}
}

// NodeID identifies this process on the shared channel.
func (h *Hub) NodeID() string {
	return h.nodeID
}

// Start attaches the cross-node consumers. It returns once the subscriptions are confirmed.
func (h *Hub) Start(ctx context.Context) error {
	if h.redis != nil {
		pubsub := h.redis.Subscribe(ctx, h.redisChannel)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return fmt.Errorf("subscribe redis channel %s: %w", h.redisChannel, err)
		}
		go h.consumeRedis(ctx, pubsub)
	}

	if h.nats != nil {
		sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
			h.handleRemote(msg.Data)
		})
		if err != nil {
			return fmt.Errorf("subscribe nats subject %s: %w", h.natsSubject, err)
		}
		if err := h.nats.Flush(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to flush nats subscription")
		}

		go func() {
			<-ctx.Done()
			if err := sub.Drain(); err != nil {
				h.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
			}
		}()
	}

	return nil
}

// Subscribe registers a buffered listener on topic.
func (h *Hub) Subscribe(topic Topic) *Subscription {
	ch := make(chan Event, h.bufferSize)

	h.mu.Lock()
	if _, exists := h.subscribers[topic]; !exists {
		h.subscribers[topic] = make(map[chan Event]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}
	h.mu.Unlock()

	observability.RealtimeSubscribers().WithLabelValues(topic.Collection).Inc()

	return &Subscription{
		C: ch,
		stop: func() {
			h.unsubscribe(topic, ch)
			observability.RealtimeSubscribers().WithLabelValues(topic.Collection).Dec()
		},
	}
}

// SubscriberCount reports the local listeners on topic.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[topic])
}

// Publish delivers a change event to local subscribers and forwards it to other nodes.
// Local delivery never blocks; forwarding errors are returned after local delivery.
func (h *Hub) Publish(ctx context.Context, topic Topic, payload interface{}) error {
	spanCtx, span := h.tracer.Start(ctx, "realtime.publish", trace.WithAttributes(
		attribute.String("realtime.collection", topic.Collection),
		attribute.String("realtime.scope", topic.Scope),
	))
	defer span.End()

	event := Event{Topic: topic, Source: h.nodeID, SentAt: h.now().UTC()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("encode realtime payload: %w", err)
		}
		event.Payload = raw
	}

	h.broadcast(event)

	if err := h.forward(spanCtx, event); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (h *Hub) forward(ctx context.Context, event Event) error {
	if h.redis == nil && h.nats == nil {
		return nil
	}

	encoded, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if h.redis != nil {
		if err := h.redis.Publish(ctx, h.redisChannel, encoded).Err(); err != nil {
			return fmt.Errorf("publish redis: %w", err)
		}
	}
	if h.nats != nil {
		if err := h.nats.Publish(h.natsSubject, encoded); err != nil {
			return fmt.Errorf("publish nats: %w", err)
		}
	}
	return nil
}

func (h *Hub) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			h.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		h.handleRemote([]byte(msg.Payload))
	}
}

func (h *Hub) handleRemote(payload []byte) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.Warn().Err(err).Msg("invalid realtime event payload")
		return
	}

	if event.Source == h.nodeID {
		return
	}

	h.broadcast(event)
}

func (h *Hub) broadcast(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.Topic] {
		select {
		case ch <- event:
		default:
			observability.RealtimeEventsDropped().WithLabelValues(event.Topic.Collection).Inc()
		}
	}
}

func (h *Hub) unsubscribe(topic Topic, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.subscribers[topic]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(h.subscribers, topic)
		}
	}
}
