package redisx

import (
	"context"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Locker is a SET NX lock; it holds for at most TTL.
type Locker struct {
	RDB   redis.UniversalClient
	TTL   time.Duration
	Retry time.Duration
	Log   *zap.SugaredLogger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = TTLLock
	}
	retry := l.Retry
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	token := uuid.NewString()
	for {
		ok, err := l.RDB.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry):
		}
	}
	return func() {
		// lepas pakai context baru, ctx request bisa sudah batal
		c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(c, l.RDB, []string{key}, token).Err(); err != nil && l.Log != nil {
			l.Log.Warnw("release lock", "key", key, "error", err)
		}
	}, nil
}
