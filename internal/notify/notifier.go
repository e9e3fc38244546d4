package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const EventBookingExpired = "booking_expired"

// Event is the fire-and-forget payload handed to the external messaging
// dispatcher. Delivery is best-effort; the booking state transition that
// produced the event is never rolled back on publish failure.
type Event struct {
	Type      string    `json:"type"`
	BookingID uuid.UUID `json:"booking_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type redisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher publishes events on a redis pub/sub channel consumed by
// the messaging relay.
func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	return &redisPublisher{client: client, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}
	return nil
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops every event. Used when no
// dispatcher is configured and in tests.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, Event) error { return nil }
