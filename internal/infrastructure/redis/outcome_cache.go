package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dutch-auction-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

const outcomeTTL = 24 * time.Hour

// RedisOutcomeCache remembers recent bid outcomes by bid id so a
// resubmitted bid can be answered without loading the aggregate. The
// aggregate's own outcome ledger stays the source of truth; entries
// here expire.
type RedisOutcomeCache struct {
	client *redis.Client
}

func NewRedisOutcomeCache(client *redis.Client) *RedisOutcomeCache {
	return &RedisOutcomeCache{client: client}
}

func (r *RedisOutcomeCache) GetOutcome(ctx context.Context, bidID string) (*domain.BidOutcome, bool, error) {
	key := fmt.Sprintf("bid:%s:outcome", bidID)

	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}

	var outcome domain.BidOutcome
	if err := json.Unmarshal([]byte(data), &outcome); err != nil {
		return nil, false, err
	}
	return &outcome, true, nil
}

func (r *RedisOutcomeCache) PutOutcome(ctx context.Context, bidID string, outcome *domain.BidOutcome) error {
	data, err := json.Marshal(outcome)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("bid:%s:outcome", bidID)
	return r.client.Set(ctx, key, data, outcomeTTL).Err()
}
