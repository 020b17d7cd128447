// Package events publishes audit events onto a message bus so that other
// services can react to blocks, challenges and logins.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/logging"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTopic is the stream security events are published to.
const DefaultTopic = "goguard.security"

// Publisher sends audit events to a watermill topic. It implements the audit
// sink interface, so it is normally placed behind the async dispatcher.
type Publisher struct {
	publisher message.Publisher
	topic     string
	log       logging.Sink
}

// NewPublisher wraps any watermill publisher.
func NewPublisher(publisher message.Publisher, topic string, sink logging.Sink) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{
		publisher: publisher,
		topic:     topic,
		log:       logging.OrDiscard(sink),
	}
}

// NewRedisStreamPublisher publishes to a Redis stream named after the topic.
func NewRedisStreamPublisher(redisClient redis.UniversalClient, topic string, sink logging.Sink) (*Publisher, error) {
	publisher, err := redisstream.NewPublisher(
		redisstream.PublisherConfig{
			Client: redisClient,
		},
		watermill.NewStdLogger(false, false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis stream publisher: %w", err)
	}
	return NewPublisher(publisher, topic, sink), nil
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish sends one event.
func (p *Publisher) Publish(_ context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}
	msg := message.NewMessage(id, payload)
	msg.Metadata.Set("event_type", event.EventType)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Emit implements the audit sink interface. Failures are logged.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	if err := p.Publish(ctx, event); err != nil {
		p.log.Log(err.Error(), logging.LevelWarn)
	}
}

// Close closes the underlying publisher.
func (p *Publisher) Close() error {
	return p.publisher.Close()
}
