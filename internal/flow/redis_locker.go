package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const lockKeyPrefix = "flow:lock:"

// unlockScript deletes the lock only if it still carries our token, so an
// expired lock that another replica has since taken is left alone.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisLocker is a Locker shared by every replica using the same Redis.
type redisLocker struct {
	client redis.Cmdable
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisLocker creates a Locker backed by SET NX PX. ttl bounds how long a crashed
// holder can block its draft and must outlast the slowest transition.
func NewRedisLocker(client redis.Cmdable, ttl time.Duration, log *zap.Logger) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &redisLocker{client: client, ttl: ttl, log: log}
}

func lockKey(key Key) string {
	return fmt.Sprintf("%s%s:%s:%s", lockKeyPrefix, key.UserID, key.SessionID, key.Flow)
}

func (l *redisLocker) TryLock(ctx context.Context, key Key) (func(), error) {
	token := uuid.NewString()
	k := lockKey(key)

	acquired, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire draft lock failed: %w", err)
	}
	if !acquired {
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done when the transition returns
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := unlockScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
				l.log.Warn("failed to release draft lock, it will expire", zap.String("key", k), zap.Error(err))
			}
		})
	}, nil
}
