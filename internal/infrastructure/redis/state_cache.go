package redis

import (
	"context"
	"fmt"
	"strconv"

	"dutch-auction-system/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisStateCache mirrors each auction's status for the fast-path
// rejection of bids against closed auctions. A cache miss falls back to
// the snapshot repository; the cache is never authoritative.
type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetAuctionStatus(ctx context.Context, auctionID string, status domain.AuctionStatus) error {
	key := fmt.Sprintf("auction:%s:status", auctionID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisStateCache) GetAuctionStatus(ctx context.Context, auctionID string) (domain.AuctionStatus, bool, error) {
	key := fmt.Sprintf("auction:%s:status", auctionID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return domain.AuctionDraft, false, nil
		}
		return domain.AuctionDraft, false, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.AuctionDraft, false, err
	}

	return domain.AuctionStatus(status), true, nil
}
