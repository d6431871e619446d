package redis

import (
	"context"
	"encoding/json"

	"dutch-auction-system/internal/domain"
	"dutch-auction-system/pkg/logger"

	"github.com/go-redis/redis/v8"
)

type RedisEventSubscriber struct {
	client *redis.Client
	log    logger.Logger
}

func NewRedisEventSubscriber(client *redis.Client, log logger.Logger) *RedisEventSubscriber {
	return &RedisEventSubscriber{
		client: client,
		log:    log,
	}
}

func (r *RedisEventSubscriber) Subscribe(ctx context.Context, handler domain.EventHandler) error {
	pubsub := r.client.Subscribe(ctx, eventChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()

	r.log.Info("Subscribed to auction events", "channel", eventChannel)

	for {
		select {
		case msg := <-ch:
			entry, err := r.parseEnvelope(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse event", "payload", msg.Payload, "error", err)
				continue
			}

			if err := handler(entry); err != nil {
				r.log.Error("Failed to handle event", "event_id", entry.EventID, "error", err)
			}

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func (r *RedisEventSubscriber) parseEnvelope(payload string) (*domain.OutboxEntry, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return nil, err
	}

	return &domain.OutboxEntry{
		EventID:   envelope.EventID,
		TenantID:  envelope.TenantID,
		AuctionID: envelope.AuctionID,
		EventType: domain.EventType(envelope.EventType),
		Payload:   envelope.Payload,
	}, nil
}
