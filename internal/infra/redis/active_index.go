package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"trivia-bot-service/internal/domain"
)

// ActiveIndex keeps the channel -> active-question mapping in Redis so the
// index survives process restarts without a separate durable table. The key
// TTL is the freshness window: an entry that expires is exactly a question
// that hydration would no longer consider active.
type ActiveIndex struct {
	client *redis.Client
	ttl    time.Duration
}

func NewActiveIndex(client *redis.Client, freshness time.Duration) *ActiveIndex {
	return &ActiveIndex{client: client, ttl: freshness}
}

func (i *ActiveIndex) Get(ctx context.Context, channelID int64) (int64, bool, error) {
	raw, err := i.client.Get(ctx, i.key(channelID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	questionID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return questionID, true, nil
}

func (i *ActiveIndex) Set(ctx context.Context, channelID, questionID int64) error {
	if err := i.client.Set(ctx, i.key(channelID), strconv.FormatInt(questionID, 10), i.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (i *ActiveIndex) Clear(ctx context.Context, channelID int64) error {
	if err := i.client.Del(ctx, i.key(channelID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (i *ActiveIndex) key(channelID int64) string {
	return "quiz:active:" + strconv.FormatInt(channelID, 10)
}
