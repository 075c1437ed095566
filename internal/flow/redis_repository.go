package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "flow:draft:"

// redisRepository stores each draft as a JSON value whose TTL slides on every save.
type redisRepository struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisRepository(client redis.Cmdable, ttl time.Duration) Repository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisRepository{client: client, ttl: ttl}
}

func redisKey(key Key) string {
	return fmt.Sprintf("%s%s:%s:%s", draftKeyPrefix, key.UserID, key.SessionID, key.Flow)
}

func (r *redisRepository) Get(ctx context.Context, key Key) (*Draft, error) {
	raw, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("get draft failed: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft failed: %w", err)
	}
	return &d, nil
}

func (r *redisRepository) Save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()
	state, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft failed: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(d.Key()), state, r.ttl).Err(); err != nil {
		return fmt.Errorf("save draft failed: %w", err)
	}
	return nil
}

func (r *redisRepository) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("delete draft failed: %w", err)
	}
	return nil
}
