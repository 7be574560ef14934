package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/ccpq/academy-service/internal/config"
)

const metadataEventType = "event_type"

// LocalHandler runs inside Publish before the event leaves the process
type LocalHandler func(ctx context.Context, event *Event)

// Handler consumes events delivered by the subscriber
type Handler func(ctx context.Context, event *Event) error

// Bus publishes events to a watermill publisher. Local handlers run synchronously
// so read caches are invalid before the writer returns; subscribers run asynchronously.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	topic      string
	logger     *slog.Logger

	mu       sync.RWMutex
	local    map[EventType][]LocalHandler
	handlers map[EventType][]Handler
	wg       sync.WaitGroup
}

func NewBus(publisher message.Publisher, subscriber message.Subscriber, topic string, logger *slog.Logger) *Bus {
	return &Bus{
		publisher:  publisher,
		subscriber: subscriber,
		topic:      topic,
		logger:     logger,
		local:      make(map[EventType][]LocalHandler),
		handlers:   make(map[EventType][]Handler),
	}
}

// NewBusFromConfig uses Kafka when brokers are configured and an in-process channel otherwise
func NewBusFromConfig(cfg config.KafkaConfig, logger *slog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	if len(cfg.Brokers) == 0 {
		channel := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, wmLogger)
		return NewBus(channel, channel, cfg.Topic, logger), nil
	}

	publisher, subscriber, err := newKafkaPubSub(cfg, wmLogger)
	if err != nil {
		return nil, err
	}
	return NewBus(publisher, subscriber, cfg.Topic, logger), nil
}

// OnLocal registers a synchronous in-process handler
func (b *Bus) OnLocal(eventType EventType, handler LocalHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.local[eventType] = append(b.local[eventType], handler)
}

// Handle registers a subscriber-side handler; call before Run
func (b *Bus) Handle(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

func (b *Bus) Publish(ctx context.Context, event *Event) error {
	b.mu.RLock()
	local := b.local[event.Type]
	b.mu.RUnlock()
	for _, handler := range local {
		handler(ctx, event)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(metadataEventType, string(event.Type))

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.Type, err)
	}

	b.logger.DebugContext(ctx, "Event published", "event_id", event.ID, "event_type", event.Type)
	return nil
}

// Run consumes the topic until ctx is cancelled or the subscriber closes
func (b *Bus) Run(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.topic, err)
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for msg := range messages {
			b.dispatch(msg)
		}
	}()
	return nil
}

func (b *Bus) dispatch(msg *message.Message) {
	defer msg.Ack()

	var event Event
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		b.logger.Error("Dropping malformed event", "message_uuid", msg.UUID, "error", err)
		return
	}

	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(msg.Context(), &event); err != nil {
			b.logger.Error("Event handler failed",
				"event_id", event.ID,
				"event_type", event.Type,
				"error", err)
		}
	}
}

// Close stops the publisher and subscriber and waits for the consumer loop
func (b *Bus) Close() error {
	var firstErr error
	if err := b.publisher.Close(); err != nil {
		firstErr = err
	}
	if any(b.subscriber) != any(b.publisher) {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	b.wg.Wait()
	return firstErr
}
