package redis

import (
	"context"
	"encoding/json"

	"dutch-auction-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

const eventChannel = "auction_events"

type eventEnvelope struct {
	EventID   string          `json:"event_id"`
	TenantID  string          `json:"tenant_id"`
	AuctionID string          `json:"auction_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// RedisEventPublisher pushes outbox entries onto the shared pub/sub
// channel consumed by the bidding service and other live listeners.
type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (r *RedisEventPublisher) Publish(ctx context.Context, entry *domain.OutboxEntry) error {
	envelope := eventEnvelope{
		EventID:   entry.EventID,
		TenantID:  entry.TenantID,
		AuctionID: entry.AuctionID,
		EventType: string(entry.EventType),
		Payload:   entry.Payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, eventChannel, data).Err()
}
